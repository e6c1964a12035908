// Package config loads form-receipts settings from defaults, an optional
// config file, FORM_RECEIPTS_* environment variables and command flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // receipt.timezone must resolve on hosts without zoneinfo

	"github.com/atomicdeploy/form-receipts/pkg/receipt"
	"github.com/atomicdeploy/form-receipts/pkg/store"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. FORM_RECEIPTS_STORE_DRIVER.
	EnvPrefix = "FORM_RECEIPTS"

	DefaultAddr          = ":5000"
	DefaultAllowedOrigin = "*"
	DefaultStorePath     = "submissions.json"
	DefaultMongoURI      = "mongodb://localhost:27017"
	DefaultMongoDatabase = "form"
	DefaultTimezone      = "UTC"
	DefaultOutput        = "."
)

// ReceiptConfig tunes generated receipts.
type ReceiptConfig struct {
	Locale   string `mapstructure:"locale"`
	Timezone string `mapstructure:"timezone"`
	ShowID   bool   `mapstructure:"show_id"`
}

// Config holds all settings of the server and the CLI.
type Config struct {
	// Addr is the listen address of serve.
	Addr string `mapstructure:"addr"`
	// AllowedOrigin is sent as Access-Control-Allow-Origin.
	AllowedOrigin string `mapstructure:"allowed_origin"`
	// APIURL points CLI commands at a running server instead of a local store.
	APIURL string `mapstructure:"api_url"`

	Store   store.Config  `mapstructure:"store"`
	Receipt ReceiptConfig `mapstructure:"receipt"`

	// Output is the directory receipts are saved into.
	Output  string `mapstructure:"output"`
	Verbose bool   `mapstructure:"verbose"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Addr:          DefaultAddr,
		AllowedOrigin: DefaultAllowedOrigin,
		Store: store.Config{
			Driver:        store.DriverFile,
			Path:          DefaultStorePath,
			MongoURI:      DefaultMongoURI,
			MongoDatabase: DefaultMongoDatabase,
		},
		Receipt: ReceiptConfig{
			Locale:   receipt.DefaultLocale,
			Timezone: DefaultTimezone,
		},
		Output: DefaultOutput,
	}
}

// flagKeys maps command flag names to config keys.
var flagKeys = map[string]string{
	"addr":           "addr",
	"allowed-origin": "allowed_origin",
	"api-url":        "api_url",
	"store":          "store.driver",
	"data":           "store.path",
	"mongo-uri":      "store.mongo_uri",
	"mongo-db":       "store.mongo_database",
	"locale":         "receipt.locale",
	"timezone":       "receipt.timezone",
	"show-id":        "receipt.show_id",
	"output":         "output",
	"verbose":        "verbose",
}

// Load builds the configuration. file may be empty; flags may be nil.
// Only flags that were defined on the set are bound.
func Load(flags *pflag.FlagSet, file string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so environment variables are seen by
// Unmarshal even when no file or flag mentions them.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("allowed_origin", cfg.AllowedOrigin)
	v.SetDefault("api_url", cfg.APIURL)
	v.SetDefault("store.driver", cfg.Store.Driver)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("store.mongo_uri", cfg.Store.MongoURI)
	v.SetDefault("store.mongo_database", cfg.Store.MongoDatabase)
	v.SetDefault("receipt.locale", cfg.Receipt.Locale)
	v.SetDefault("receipt.timezone", cfg.Receipt.Timezone)
	v.SetDefault("receipt.show_id", cfg.Receipt.ShowID)
	v.SetDefault("output", cfg.Output)
	v.SetDefault("verbose", cfg.Verbose)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr cannot be empty")
	}

	switch c.Store.Driver {
	case store.DriverMemory:
	case store.DriverFile:
		if c.Store.Path == "" {
			return errors.New("store.path is required for the file store")
		}
	case store.DriverMongo:
		if c.Store.MongoURI == "" || c.Store.MongoDatabase == "" {
			return errors.New("store.mongo_uri and store.mongo_database are required for the mongo store")
		}
	default:
		return fmt.Errorf("invalid store driver: %s (must be one of: memory, file, mongo)", c.Store.Driver)
	}

	if c.APIURL != "" {
		u, err := url.Parse(c.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid api_url %q: expected an http or https URL", c.APIURL)
		}
	}

	if _, err := language.Parse(c.Receipt.Locale); err != nil {
		return fmt.Errorf("invalid receipt.locale %q: %w", c.Receipt.Locale, err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location returns the time zone receipt dates are shown in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Receipt.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid receipt.timezone %q: %w", c.Receipt.Timezone, err)
	}
	return loc, nil
}

// ReceiptOptions returns the generator options for this configuration.
func (c *Config) ReceiptOptions() receipt.Options {
	loc, err := c.Location()
	if err != nil {
		loc = time.UTC
	}
	return receipt.Options{
		Locale:   c.Receipt.Locale,
		Location: loc,
		ShowID:   c.Receipt.ShowID,
	}
}

// Remote reports whether commands should talk to a server over HTTP.
func (c *Config) Remote() bool {
	return c.APIURL != ""
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Addr: %s, Store: %s, API: %s, Locale: %s, Timezone: %s, Output: %s}",
		c.Addr, c.Store.Driver, c.APIURL, c.Receipt.Locale, c.Receipt.Timezone, c.Output)
}
