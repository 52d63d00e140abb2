// Package config loads docmap settings from docmap.yaml and DOCMAP_ environment variables
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/conduit-lang/docmap/internal/orm/mapping"
	"github.com/conduit-lang/docmap/internal/orm/schema"
	"github.com/conduit-lang/docmap/internal/orm/store"
)

// EnvPrefix prefixes every environment override, e.g. DOCMAP_DATABASE_URL
const EnvPrefix = "DOCMAP"

// Config represents the docmap configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	JSON     JSONConfig     `mapstructure:"json"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// JSONConfig controls how documents are written
type JSONConfig struct {
	EnumFormat string `mapstructure:"enum_format"`
	Naming     string `mapstructure:"naming"`
}

// Load reads the configuration. With an empty path, docmap.yaml in the working directory is used
// if it exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("database.driver", "pgx")
	v.SetDefault("database.url", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("json.enum_format", "numeric")
	v.SetDefault("json.naming", "exact")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("docmap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks driver, enum format and naming policy
func (c *Config) Validate() error {
	if _, err := store.DialectFor(c.Database.Driver); err != nil {
		return fmt.Errorf("database.driver: %w", err)
	}
	if _, err := c.enumFormat(); err != nil {
		return err
	}
	if _, err := mapping.ParseNamingPolicy(c.JSON.Naming); err != nil {
		return fmt.Errorf("json.naming: %w", err)
	}
	return nil
}

func (c *Config) enumFormat() (schema.EnumFormat, error) {
	switch c.JSON.EnumFormat {
	case "numeric", "":
		return schema.EnumNumeric, nil
	case "string":
		return schema.EnumString, nil
	default:
		return 0, fmt.Errorf("json.enum_format must be numeric or string, got: %s", c.JSON.EnumFormat)
	}
}

// MappingOptions returns the convention options selected by the JSON settings
func (c *Config) MappingOptions() (mapping.Options, error) {
	opts := mapping.DefaultOptions()

	format, err := c.enumFormat()
	if err != nil {
		return opts, err
	}
	naming, err := mapping.ParseNamingPolicy(c.JSON.Naming)
	if err != nil {
		return opts, fmt.Errorf("json.naming: %w", err)
	}

	opts.EnumFormat = format
	opts.Naming = naming
	return opts, nil
}
