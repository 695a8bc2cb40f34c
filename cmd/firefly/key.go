package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-zero/firefly-cli/keys"
)

func (a *app) keyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage author signing keys",
	}
	cmd.AddCommand(a.keyNewCmd(), a.keyPubCmd(), a.keyRmCmd(), a.keyListCmd())
	return cmd
}

func (a *app) keyNewCmd() *cobra.Command {
	var (
		alg     string
		seedHex string
		rootHex string
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "new <author>",
		Short: "Create a signing key for an author",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			author := args[0]
			if alg == "" {
				alg = a.settings.KeyAlg
			}
			keyAlg, err := keys.ParseAlg(alg)
			if err != nil {
				return usageError{msg: fmt.Sprintf("invalid --alg: %v", err)}
			}
			if seedHex != "" && rootHex != "" {
				return usageError{msg: "--seed-hex and --derive-from are mutually exclusive"}
			}

			var seed []byte
			switch {
			case seedHex != "":
				if seed, err = keys.ParseSeedHex(seedHex); err != nil {
					return usageError{msg: fmt.Sprintf("invalid --seed-hex: %v", err)}
				}
			case rootHex != "":
				root, err := keys.ParseSeedHex(rootHex)
				if err != nil {
					return usageError{msg: fmt.Sprintf("invalid --derive-from: %v", err)}
				}
				if seed, err = keys.DeriveSeed(root, author); err != nil {
					return err
				}
			}

			kp, err := a.keys().Create(author, keyAlg, seed, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created key: %s\n", kp.Public())
			return nil
		},
	}
	cmd.Flags().StringVar(&alg, "alg", "", "key algorithm: ed25519 or dilithium3")
	cmd.Flags().StringVar(&seedHex, "seed-hex", "", "seed as 64 hex chars (for reproducible builds)")
	cmd.Flags().StringVar(&rootHex, "derive-from", "", "root seed as 64 hex chars; the author seed is derived from it")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key")
	return cmd
}

func (a *app) keyPubCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pub <author>",
		Short: "Print the public key of an author",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, err := a.keys().Public(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, pub)
			return nil
		},
	}
}

func (a *app) keyRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <author>",
		Short: "Delete the key of an author",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.keys().Remove(args[0])
		},
	}
}

func (a *app) keyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.keys().List()
			if err != nil {
				return err
			}
			for _, e := range entries {
				kind := "pub"
				if e.Private {
					kind = "pub+priv"
				}
				fmt.Fprintf(a.out, "%s\t%s\t%s\n", e.Author, kind, e.Public.Alg)
			}
			return nil
		},
	}
}
