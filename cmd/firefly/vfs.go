package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) exportCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "export <author.app>",
		Short: "Verify an installed app and write it as a zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			path, err := a.vfs().ExportFile(id, outDir)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "directory to write the archive into")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <archive.zip>",
		Short: "Verify a ROM archive and install it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.vfs().ImportFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "installed %s\n", id)
			return nil
		},
	}
}

func (a *app) vfsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vfs",
		Short: "Inspect and manage the virtual filesystem",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List installed apps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := a.vfs().List()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(a.out, id)
			}
			return nil
		},
	}, &cobra.Command{
		Use:   "remove <author.app>",
		Short: "Uninstall an app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.vfs().Remove(id)
		},
	}, &cobra.Command{
		Use:   "init",
		Short: "Create the VFS directory layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.vfs().Init()
		},
	})
	return cmd
}
