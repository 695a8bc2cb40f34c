// Package config loads the two kinds of configuration the toolchain reads:
// the per-project firefly.toml, decoded strictly with go-toml, and the tool
// settings (VFS location, key store, algorithms), layered by viper from
// defaults, an optional settings file and FIREFLY_* environment variables.
package config
