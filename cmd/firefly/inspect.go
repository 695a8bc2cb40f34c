package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/firefly-zero/firefly-cli/meta"
	"github.com/firefly-zero/firefly-cli/pack"
	"github.com/firefly-zero/firefly-cli/rom"
	"github.com/firefly-zero/firefly-cli/vfs"
)

func (a *app) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <author.app | archive.zip>",
		Short: "Verify a ROM and print its manifest and members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := a.vfs()
			var (
				ver *vfs.Verified
				err error
			)
			if strings.HasSuffix(args[0], ".zip") {
				files, ferr := pack.ReadArchiveFile(args[0])
				if ferr != nil {
					return ferr
				}
				ver, err = v.Verify(files)
			} else {
				id, perr := parseID(args[0])
				if perr != nil {
					return perr
				}
				ver, err = v.Open(id)
			}
			if err != nil {
				return err
			}
			a.printVerified(ver)
			return nil
		},
	}
}

func (a *app) printVerified(ver *vfs.Verified) {
	m := ver.Manifest
	pkg := ver.Package
	fmt.Fprintf(a.out, "app:          %s\n", m.ID)
	fmt.Fprintf(a.out, "name:         %s by %s\n", m.AppName, m.AuthorName)
	fmt.Fprintf(a.out, "version:      %d\n", m.Version)
	fmt.Fprintf(a.out, "launcher:     %t\n", m.Launcher)
	fmt.Fprintf(a.out, "sudo:         %t\n", m.Sudo)
	fmt.Fprintf(a.out, "capabilities: %s\n", strings.Join(m.Capabilities, ", "))
	fmt.Fprintf(a.out, "entry points: %s\n", strings.Join(m.EntryPoints, ", "))
	fmt.Fprintf(a.out, "digest:       %s (%s)\n", hex.EncodeToString(pkg.Digest), pkg.HashAlg)
	if id, err := pkg.CID(); err == nil {
		fmt.Fprintf(a.out, "cid:          %s\n", id)
	}
	fmt.Fprintf(a.out, "signature:    %s, key %s\n", ver.Signature.Alg, hex.EncodeToString(ver.Signature.Fingerprint[:8]))
	fmt.Fprintln(a.out, "members:")
	for _, p := range pkg.Layout.Members {
		kind := "toolchain"
		if asset, ok := m.Asset(p.Name); ok {
			kind = asset.Kind.String()
		}
		fmt.Fprintf(a.out, "  %-32s %-9s %8d bytes at %d\n", p.Name, kind, p.Length, p.Offset)
	}
	if raw, ok := pkg.Member(rom.Badges); ok {
		if badges, err := meta.DecodeBadges(raw); err == nil {
			fmt.Fprintf(a.out, "badges:       %d\n", len(badges))
		}
	}
	if raw, ok := pkg.Member(rom.Boards); ok {
		if boards, err := meta.DecodeBoards(raw); err == nil {
			fmt.Fprintf(a.out, "boards:       %d\n", len(boards))
		}
	}
}
