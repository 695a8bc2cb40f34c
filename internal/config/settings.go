package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/firefly-zero/firefly-cli/keys"
	"github.com/firefly-zero/firefly-cli/pack"
)

// EnvPrefix prefixes every environment variable the tool reads.
const EnvPrefix = "FIREFLY"

// Settings are the tool-wide options.
type Settings struct {
	// VFS is the root of the virtual filesystem.
	VFS string `mapstructure:"vfs"`
	// Keys is the key store directory. Empty uses the sys directory of VFS.
	Keys string `mapstructure:"keys"`
	// Hash names the package digest algorithm.
	Hash string `mapstructure:"hash"`
	// KeyAlg names the algorithm of newly created keys.
	KeyAlg string `mapstructure:"key_alg"`
	// CreateKey creates a missing author key during build.
	CreateKey bool `mapstructure:"create_key"`
	// Validate compiles processed modules as an extra check.
	Validate bool `mapstructure:"validate"`
}

// LoadOptions controls where settings come from.
type LoadOptions struct {
	// SettingsFile is an optional settings file (toml, yaml or json).
	SettingsFile string
	// Home overrides the home directory used for defaults.
	Home string
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings(home string) Settings {
	return Settings{
		VFS:       filepath.Join(home, ".local", "share", "firefly"),
		Hash:      pack.DefaultHash.String(),
		KeyAlg:    keys.DefaultAlg.String(),
		CreateKey: true,
	}
}

// LoadSettings layers defaults, the settings file and FIREFLY_* variables,
// in increasing priority.
func LoadSettings(opts LoadOptions) (*Settings, error) {
	home := opts.Home
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
	}

	v := viper.New()
	defaults := DefaultSettings(home)
	v.SetDefault("vfs", defaults.VFS)
	v.SetDefault("keys", defaults.Keys)
	v.SetDefault("hash", defaults.Hash)
	v.SetDefault("key_alg", defaults.KeyAlg)
	v.SetDefault("create_key", defaults.CreateKey)
	v.SetDefault("validate", defaults.Validate)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if opts.SettingsFile != "" {
		v.SetConfigFile(opts.SettingsFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings file %s: %w", opts.SettingsFile, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	if _, err := s.HashAlg(); err != nil {
		return nil, err
	}
	if _, err := s.Alg(); err != nil {
		return nil, err
	}
	return &s, nil
}

// HashAlg parses Hash.
func (s *Settings) HashAlg() (pack.HashAlg, error) {
	return pack.ParseHashAlg(s.Hash)
}

// Alg parses KeyAlg.
func (s *Settings) Alg() (keys.Alg, error) {
	return keys.ParseAlg(s.KeyAlg)
}

// KeysDir is the key store directory in effect.
func (s *Settings) KeysDir() string {
	if s.Keys != "" {
		return s.Keys
	}
	return filepath.Join(s.VFS, "sys")
}
