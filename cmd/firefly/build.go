package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-zero/firefly-cli/build"
	"github.com/firefly-zero/firefly-cli/internal/config"
)

func (a *app) buildCmd() *cobra.Command {
	var (
		noInstall bool
		archive   string
	)
	cmd := &cobra.Command{
		Use:   "build [project-dir]",
		Short: "Build, sign and install the ROM of a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			project, err := config.LoadProject(dir)
			if err != nil {
				return err
			}
			hashAlg, err := a.settings.HashAlg()
			if err != nil {
				return err
			}
			keyAlg, err := a.settings.Alg()
			if err != nil {
				return err
			}
			res, err := build.Run(cmd.Context(), project, build.Options{
				VFS:        a.vfs(),
				Keys:       a.keys(),
				KeyAlg:     keyAlg,
				CreateKey:  a.settings.CreateKey,
				HashAlg:    hashAlg,
				Validate:   a.settings.Validate,
				NoInstall:  noInstall,
				ArchiveDir: archive,
				Logger:     a.logger,
			})
			if err != nil {
				return err
			}
			id, err := res.Package.CID()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "app:    %s\n", res.Manifest.ID)
			fmt.Fprintf(a.out, "size:   %d bytes, %d members\n", res.Package.Layout.Size, len(res.Package.Members))
			fmt.Fprintf(a.out, "digest: %s (%s)\n", hex.EncodeToString(res.Package.Digest), res.Package.HashAlg)
			fmt.Fprintf(a.out, "cid:    %s\n", id)
			if res.Archive != "" {
				fmt.Fprintf(a.out, "archive: %s\n", res.Archive)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noInstall, "no-install", false, "do not install into the VFS")
	cmd.Flags().StringVar(&archive, "archive", "", "also write <author>.<app>.zip into this directory")
	return cmd
}
