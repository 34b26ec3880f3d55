// Package config provides functionality for managing configuration options
// for the application using command-line flags, a JSON file and environment
// variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/atinyakov/PomeloX/internal/pomelox"
	"github.com/atinyakov/PomeloX/internal/qrcode"
)

// Duration is a time.Duration written as "90s" or "5m" in the config file.
type Duration time.Duration

// UnmarshalJSON accepts duration strings and integer nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("duration must be a string like \"5m\" or nanoseconds")
	}
	*d = Duration(n)
	return nil
}

// Options holds the configuration values for the application.
type Options struct {
	// Address defines the server's listening address (ip:port).
	Address string `json:"address"`

	// DatabaseDSN is the PostgreSQL connection string. Scan logging is
	// disabled when empty.
	DatabaseDSN string `json:"database_dsn"`

	// RedisAddr selects the Redis cache; the in-memory cache is used when empty.
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`

	// JWTSecret enables signed identity codes.
	JWTSecret string   `json:"jwt_secret"`
	SignedTTL Duration `json:"signed_ttl"`

	// PomeloXBaseURL is the remote API root.
	PomeloXBaseURL string `json:"pomelox_base_url"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`

	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`

	LogLevel    string `json:"log_level"`
	CatalogPath string `json:"catalog_path"`

	ScanRetention Duration `json:"scan_retention"`
	CleanInterval Duration `json:"clean_interval"`

	// Config is the path to the Config file.
	Config string `json:"-"`
}

// register binds the flags to opts with their defaults.
func register(fs *flag.FlagSet, opts *Options) {
	fs.StringVar(&opts.Address, "a", "localhost:8080", "run on ip:port server")
	fs.StringVar(&opts.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&opts.RedisAddr, "redis", "", "redis address (host:port)")
	fs.StringVar(&opts.JWTSecret, "jwt-secret", "", "secret for signed identity codes")
	fs.DurationVar((*time.Duration)(&opts.SignedTTL), "signed-ttl", qrcode.DefaultSignedTTL, "signed identity code lifetime")
	fs.StringVar(&opts.PomeloXBaseURL, "upstream", pomelox.DefaultBaseURL, "PomeloX API base URL")
	fs.StringVar(&opts.TLSCert, "tls-cert", "", "TLS certificate file")
	fs.StringVar(&opts.TLSKey, "tls-key", "", "TLS key file")
	fs.Float64Var(&opts.RateLimit, "rate", 20, "requests per second per client, 0 to disable")
	fs.IntVar(&opts.RateBurst, "burst", 40, "rate limiter burst")
	fs.StringVar(&opts.LogLevel, "log-level", "info", "log level")
	fs.StringVar(&opts.CatalogPath, "catalog", "", "YAML organization/school catalog")
	fs.DurationVar((*time.Duration)(&opts.ScanRetention), "scan-retention", 30*24*time.Hour, "how long scan logs are kept")
	fs.DurationVar((*time.Duration)(&opts.CleanInterval), "clean-interval", time.Hour, "scan log cleanup interval")
	fs.StringVar(&opts.Config, "config", "config.json", "path to config file")
	fs.StringVar(&opts.Config, "c", "config.json", "path to config file (shorthand)")
}

// Load parses args into a fresh Options, then applies the config file and
// environment variables read through getenv, in that order.
func Load(fs *flag.FlagSet, args []string, getenv func(string) string) (*Options, error) {
	opts := &Options{}
	register(fs, opts)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Override flags with environment variables if set
	if configPath := getenv("CONFIG"); configPath != "" {
		opts.Config = configPath
	}

	if opts.Config != "" {
		if _, err := os.Stat(opts.Config); err == nil {
			data, err := os.ReadFile(opts.Config)
			if err != nil {
				return nil, fmt.Errorf("error while reading config file: %w", err)
			}
			if err := json.Unmarshal(data, opts); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	for env, dst := range map[string]*string{
		"SERVER_ADDRESS":   &opts.Address,
		"DATABASE_DSN":     &opts.DatabaseDSN,
		"REDIS_ADDR":       &opts.RedisAddr,
		"REDIS_PASSWORD":   &opts.RedisPassword,
		"JWT_SECRET":       &opts.JWTSecret,
		"POMELOX_BASE_URL": &opts.PomeloXBaseURL,
		"LOG_LEVEL":        &opts.LogLevel,
		"CATALOG_PATH":     &opts.CatalogPath,
	} {
		if v := getenv(env); v != "" {
			*dst = v
		}
	}

	return opts, nil
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It exits the process on invalid input.
func Parse() *Options {
	opts, err := Load(flag.CommandLine, os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return opts
}
