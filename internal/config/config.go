// Package config loads the padbank configuration from a TOML file and the environment.
package config

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Filename is the configuration file looked up in the working directory.
const Filename = "padbank.toml"

// Storage backends.
const (
	BackendFileSystem = "file_system"
	BackendSwift      = "swift"
)

type (
	// Server configures the HTTP surface.
	Server struct {
		Binding   string `toml:"binding"`
		Port      string `toml:"port"`
		Token     string `toml:"token"`
		BodyLimit string `toml:"body_limit"`
	}

	// Swift configures the OpenStack Swift archive backend.
	Swift struct {
		AuthURL  string `toml:"auth_url"`
		UserName string `toml:"username"`
		APIKey   string `toml:"api_key"`
		Tenant   string `toml:"tenant"`
		Domain   string `toml:"domain"`
		Region   string `toml:"region"`
	}

	// Storage configures where archive files are kept.
	Storage struct {
		Backend string `toml:"backend"`
		Path    string `toml:"path"`
		Swift   Swift  `toml:"swift"`
	}

	// Transfer configures imports and exports.
	Transfer struct {
		BatchSize      int    `toml:"batch_size"`
		SharedPassword string `toml:"shared_password"`
		FFmpeg         string `toml:"ffmpeg"`
		QuotaCeiling   int64  `toml:"quota_ceiling"`
	}

	// Scheduler configures the maintenance task.
	Scheduler struct {
		Specification string `toml:"specification"`
		Grace         string `toml:"grace"`
	}

	// Logging configures the log output.
	Logging struct {
		Level string `toml:"level"`
		// Colors is one of auto, always or never.
		Colors string `toml:"colors"`
	}

	// Config is the padbank configuration.
	Config struct {
		Database string `toml:"database"`
		// User is the identity of the command line operator.
		User string `toml:"user"`
		// Secret is the directory secret admin bank keys are derived from.
		Secret string `toml:"secret"`

		Server    Server    `toml:"server"`
		Storage   Storage   `toml:"storage"`
		Transfer  Transfer  `toml:"transfer"`
		Scheduler Scheduler `toml:"scheduler"`
		Logging   Logging   `toml:"logging"`
	}
)

// Default returns the default configuration.
func Default() Config {
	return Config{
		Database: "padbank.db",
		Server: Server{
			Binding:   "0.0.0.0",
			Port:      "5000",
			BodyLimit: "512M",
		},
		Storage: Storage{
			Backend: BackendFileSystem,
			Path:    "storage",
			Swift: Swift{
				Domain: "Default",
				Region: "RegionOne",
			},
		},
		Transfer: Transfer{
			BatchSize: 10,
			FFmpeg:    "ffmpeg",
		},
		Scheduler: Scheduler{
			Specification: "@every 1h",
			Grace:         "1h",
		},
		Logging: Logging{
			Level:  "info",
			Colors: "auto",
		},
	}
}

// Load reads the configuration file at path, or padbank.toml when path is empty,
// then applies the environment overrides. A missing padbank.toml is not an error
// but an explicit path must exist. The boolean reports whether a file was read.
func Load(path string) (*Config, bool, error) {
	c := Default()

	explicit := path != ""
	if !explicit {
		path = Filename
	}

	var found bool
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err = Decode(f, &c); err != nil {
			return nil, false, err
		}
		found = true
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, false, errors.Wrap(err, "could not open config")
	}

	c.overrideWithEnv()

	if err = c.Validate(); err != nil {
		return nil, false, err
	}
	return &c, found, nil
}

// Decode parses a TOML configuration into c. Unknown keys are rejected.
func Decode(r io.Reader, c *Config) error {
	d := toml.NewDecoder(r)
	d.DisallowUnknownFields()
	return errors.Wrap(d.Decode(c), "could not parse config")
}

// Encode writes c as TOML.
func Encode(w io.Writer, c Config) error {
	return errors.Wrap(toml.NewEncoder(w).Encode(c), "could not write config")
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFileSystem:
		if c.Storage.Path == "" {
			return errors.New("config: storage.path is required by the file_system backend")
		}
	case BackendSwift:
		if c.Storage.Swift.AuthURL == "" {
			return errors.New("config: storage.swift.auth_url is required by the swift backend")
		}
	default:
		return errors.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}

	if c.Transfer.BatchSize < 1 {
		return errors.Errorf("config: transfer.batch_size must be positive, got %d", c.Transfer.BatchSize)
	}
	if c.Transfer.QuotaCeiling < 0 {
		return errors.New("config: transfer.quota_ceiling must not be negative")
	}
	if _, err := c.GraceDuration(); err != nil {
		return err
	}

	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return errors.Wrap(err, "config: logging.level")
	}
	switch c.Logging.Colors {
	case "auto", "always", "never":
	default:
		return errors.Errorf("config: logging.colors must be auto, always or never, got %q", c.Logging.Colors)
	}
	return nil
}

// GraceDuration returns the parsed scheduler grace period.
func (c *Config) GraceDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Scheduler.Grace)
	return d, errors.Wrap(err, "config: scheduler.grace")
}

func (c *Config) overrideWithEnv() {
	c.Database = envORdefault("DATABASE_PATH", c.Database)
	c.User = envORdefault("PADBANK_USER", c.User)
	c.Secret = envORdefault("PADBANK_SECRET", c.Secret)

	c.Server.Token = envORdefault("PADBANK_TOKEN", c.Server.Token)

	c.Storage.Backend = envORdefault("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.Path = envORdefault("STORAGE_PATH", c.Storage.Path)
	c.Storage.Swift.AuthURL = envORdefault("SWIFT_STORAGE_AUTH_URL", c.Storage.Swift.AuthURL)
	c.Storage.Swift.UserName = envORdefault("SWIFT_STORAGE_USERNAME", c.Storage.Swift.UserName)
	c.Storage.Swift.APIKey = envORdefault("SWIFT_STORAGE_PASSWORD", c.Storage.Swift.APIKey)
	c.Storage.Swift.Tenant = envORdefault("SWIFT_STORAGE_TENANT", c.Storage.Swift.Tenant)
	c.Storage.Swift.Domain = envORdefault("SWIFT_STORAGE_DOMAIN", c.Storage.Swift.Domain)
	c.Storage.Swift.Region = envORdefault("SWIFT_STORAGE_REGION", c.Storage.Swift.Region)

	c.Transfer.SharedPassword = envORdefault("PADBANK_SHARED_PASSWORD", c.Transfer.SharedPassword)
	c.Transfer.FFmpeg = envORdefault("FFMPEG_PATH", c.Transfer.FFmpeg)
	if n, err := strconv.Atoi(os.Getenv("PADBANK_BATCH_SIZE")); err == nil {
		c.Transfer.BatchSize = n
	}

	c.Logging.Level = strings.ToLower(envORdefault("PADBANK_LOG_LEVEL", c.Logging.Level))
}

func envORdefault(env, def string) string {
	v := os.Getenv(env)
	if len(v) == 0 {
		return def
	}
	return v
}
