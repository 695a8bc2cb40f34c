// Command firefly builds, signs, installs, exports and imports ROMs.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/firefly-zero/firefly-cli/internal/config"
	"github.com/firefly-zero/firefly-cli/keys"
	"github.com/firefly-zero/firefly-cli/rom"
	"github.com/firefly-zero/firefly-cli/vfs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// app holds what every command needs once flags are parsed.
type app struct {
	out    io.Writer
	errOut io.Writer

	settingsFile string
	vfsRoot      string
	keysDir      string
	verbose      bool

	settings *config.Settings
	logger   *log.Logger
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	a := &app{out: out, errOut: errOut}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	if err := root.Execute(); err != nil {
		if _, ok := err.(usageError); ok {
			fmt.Fprintf(errOut, "%v\n", err)
			return 2
		}
		fmt.Fprintf(errOut, "error: %v\n", err)
		return 1
	}
	return 0
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "firefly",
		Short:         "Build and manage ROMs for the Firefly Zero handheld",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{msg: err.Error()}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.settingsFile, "settings", "", "settings file (toml, yaml or json)")
	pf.StringVar(&a.vfsRoot, "vfs", "", "VFS root (overrides FIREFLY_VFS)")
	pf.StringVar(&a.keysDir, "keys", "", "key store directory (default <vfs>/sys)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(a.buildCmd(), a.exportCmd(), a.importCmd(), a.vfsCmd(), a.keyCmd(), a.inspectCmd())
	return root
}

func (a *app) init() error {
	s, err := config.LoadSettings(config.LoadOptions{SettingsFile: a.settingsFile})
	if err != nil {
		return err
	}
	if a.vfsRoot != "" {
		s.VFS = a.vfsRoot
	}
	if a.keysDir != "" {
		s.Keys = a.keysDir
	}
	a.settings = s

	a.logger = log.NewWithOptions(a.errOut, log.Options{Prefix: "firefly"})
	if a.verbose {
		a.logger.SetLevel(log.DebugLevel)
	}
	return nil
}

func (a *app) vfs() *vfs.VFS {
	return vfs.New(a.settings.VFS, vfs.Options{Logger: a.logger})
}

func (a *app) keys() *keys.Store {
	return keys.NewStore(a.settings.KeysDir())
}

func parseID(s string) (rom.AppID, error) {
	id, err := rom.ParseAppID(s)
	if err != nil {
		return rom.AppID{}, usageError{msg: fmt.Sprintf("invalid app id %q: %v", s, err)}
	}
	return id, nil
}
