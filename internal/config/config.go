// Package config loads the engine's runtime configuration via spf13/viper,
// layering environment variables over an optional config file, following
// the teacher's viper-plus-env-override idiom.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/kvindex/ihashmap/internal/types"
)

// Config is the engine's runtime configuration.
type Config struct {
	// StoreDSN selects and addresses the backing store. "mem://" (the
	// default) uses the in-memory backend; "dolt://path" and
	// "mysql://..." select sqlstore's two modes.
	StoreDSN string `mapstructure:"store_dsn"`

	// IndexFile is an optional path to a TOML declarative index file.
	IndexFile string `mapstructure:"index_file"`

	// LogLevel is the configured logging verbosity. It is loaded and
	// exposed here; nothing in the engine or CLI reads it.
	LogLevel string `mapstructure:"log_level"`

	// PKField names the primary-key field every document must carry.
	// Defaults to "_id"; overriding it is mainly useful for test isolation
	// (e.g. running two engines with PK-incompatible data side by side).
	PKField string `mapstructure:"pk_field"`
}

const envPrefix = "IHASH"

// Load reads configuration from, in increasing precedence: built-in
// defaults, an optional config file named "ihash" (yaml/toml/json) found on
// the search path, then IHASH_-prefixed environment variables.
func Load(searchPaths ...string) (*Config, error) {
	v := viper.New()
	v.SetDefault("store_dsn", "mem://")
	v.SetDefault("index_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("pk_field", types.PKField)

	v.SetConfigName("ihash")
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
