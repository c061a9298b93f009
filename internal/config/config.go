// Package config loads settings for the ustream-upload command from a .env file, an optional YAML file and the
// environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "ustream-upload.yaml"
	DefaultEnvPath    = ".env"

	defaultAPIURL        = "https://api.ustream.tv"
	defaultAPITimeout    = 60 * time.Second
	defaultFTPTimeout    = 30 * time.Second
	defaultProgressStore = "memory"
	defaultServeAddr     = "127.0.0.1:8080"
	defaultLockTimeout   = time.Second
)

const (
	EnvAPIURL        = "USTREAM_API_URL"
	EnvAccessToken   = "USTREAM_ACCESS_TOKEN"
	EnvProgressStore = "USTREAM_PROGRESS_STORE"
	EnvServeAddr     = "USTREAM_SERVE_ADDR"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	API      APIConfig      `yaml:"api"`
	FTP      FTPConfig      `yaml:"ftp"`
	Progress ProgressConfig `yaml:"progress"`
	Serve    ServeConfig    `yaml:"serve"`
}

type APIConfig struct {
	URL string `yaml:"url"`
	// AccessToken is only read from the environment, never from YAML.
	AccessToken string        `yaml:"-"`
	Timeout     time.Duration `yaml:"timeout"`
}

type FTPConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	DisableEPSV bool          `yaml:"disable_epsv"`
}

type ProgressConfig struct {
	// Store is "memory", "bolt:<path>" or a redis:// URL.
	Store string `yaml:"store"`
	// LockTimeout bounds the wait for a bolt file held by another process.
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

type ServeConfig struct {
	Addr string `yaml:"addr"`
}

type StoreKind string

const (
	StoreMemory StoreKind = "memory"
	StoreBolt   StoreKind = "bolt"
	StoreRedis  StoreKind = "redis"
)

// StoreLocation splits ProgressConfig.Store into its kind and the path or URL that goes with it.
func (c ProgressConfig) StoreLocation() (StoreKind, string, error) {
	switch {
	case c.Store == "" || c.Store == string(StoreMemory):
		return StoreMemory, "", nil
	case strings.HasPrefix(c.Store, "bolt:"):
		if path := strings.TrimPrefix(c.Store, "bolt:"); path == "" {
			return "", "", fmt.Errorf("bolt store needs a path, e.g. bolt:progress.db")
		} else {
			return StoreBolt, path, nil
		}
	case strings.HasPrefix(c.Store, "redis://"), strings.HasPrefix(c.Store, "rediss://"):
		return StoreRedis, c.Store, nil
	default:
		return "", "", fmt.Errorf("unrecognised progress store %q", c.Store)
	}
}

type LoadOptions struct {
	EnvPath    string
	ConfigPath string
	// Required files cause an error if missing, instead of being skipped.
	Required bool
}

// Load reads configuration, applies defaults and validates the result.
func Load(opts LoadOptions) (*Config, error) {
	log := zap.S().Named("config")
	if opts.EnvPath == "" {
		opts.EnvPath = DefaultEnvPath
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = DefaultConfigPath
	}

	if err := godotenv.Load(opts.EnvPath); err != nil {
		if opts.Required || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", opts.EnvPath, err)
		}
		log.Debugf("no %s file, using environment only", opts.EnvPath)
	}

	cfg := &Config{}
	if data, err := os.ReadFile(opts.ConfigPath); err != nil {
		if opts.Required || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", opts.ConfigPath, err)
		}
		log.Debugf("no %s file, using defaults", opts.ConfigPath)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", opts.ConfigPath, err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.API.URL = v
	}
	cfg.API.AccessToken = os.Getenv(EnvAccessToken)
	if v := os.Getenv(EnvProgressStore); v != "" {
		cfg.Progress.Store = v
	}
	if v := os.Getenv(EnvServeAddr); v != "" {
		cfg.Serve.Addr = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.API.URL == "" {
		cfg.API.URL = defaultAPIURL
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = defaultAPITimeout
	}
	if cfg.FTP.Timeout == 0 {
		cfg.FTP.Timeout = defaultFTPTimeout
	}
	if cfg.Progress.Store == "" {
		cfg.Progress.Store = defaultProgressStore
	}
	if cfg.Progress.LockTimeout == 0 {
		cfg.Progress.LockTimeout = defaultLockTimeout
	}
	if cfg.Serve.Addr == "" {
		cfg.Serve.Addr = defaultServeAddr
	}
}

// Validate reports every problem at once. An empty AccessToken is allowed; only commands that call the API need it.
func (c *Config) Validate() error {
	var result *multierror.Error
	if u, err := url.Parse(c.API.URL); err != nil {
		result = multierror.Append(result, fmt.Errorf("api.url: %w", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		result = multierror.Append(result, fmt.Errorf("api.url: expected http(s) URL, got %q", c.API.URL))
	}
	if c.API.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("api.timeout: must not be negative"))
	}
	if c.FTP.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("ftp.timeout: must not be negative"))
	}
	if _, _, err := c.Progress.StoreLocation(); err != nil {
		result = multierror.Append(result, fmt.Errorf("progress.store: %w", err))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
