package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "AVATURE_"

// Config represents the scraper configuration
type Config struct {
	Input     string `yaml:"input" validate:"required"`
	OutputDir string `yaml:"output_dir" validate:"required"`

	Scraper struct {
		RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
		DetectTimeout  time.Duration `yaml:"detect_timeout" validate:"gt=0"`
		MaxPages       int           `yaml:"max_pages" validate:"gte=1"`
		Enrich         bool          `yaml:"enrich"`
		MineHints      bool          `yaml:"mine_hints"`
		UserAgent      string        `yaml:"user_agent"`
		Proxy          string        `yaml:"proxy" validate:"omitempty,url"`
	} `yaml:"scraper"`

	Output struct {
		JobsFile   string `yaml:"jobs_file" validate:"required"`
		StatsFile  string `yaml:"stats_file" validate:"required"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"output"`

	Logging struct {
		Level  string `yaml:"level" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" validate:"oneof=console json"`
	} `yaml:"logging"`
}

var validate = validator.New()

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	cfg := &Config{
		Input:     "input/avature_sites.txt",
		OutputDir: "output",
	}

	cfg.Scraper.RequestTimeout = 30 * time.Second
	cfg.Scraper.DetectTimeout = 15 * time.Second
	cfg.Scraper.MaxPages = 500
	cfg.Scraper.Enrich = true
	cfg.Scraper.MineHints = true

	cfg.Output.JobsFile = "jobs.json"
	cfg.Output.StatsFile = "site_stats.csv"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"

	return cfg
}

// LoadConfig layers defaults, an optional YAML file, a .env file and AVATURE_*
// environment variables, then validates the result. An empty configPath reads
// config.yaml from the working directory if present.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	path := configPath
	if path == "" {
		path = "config.yaml"
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && configPath == "":
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// loadFromEnv applies AVATURE_* overrides
func (c *Config) loadFromEnv() error {
	if v := lookup("INPUT"); v != "" {
		c.Input = v
	}
	if v := lookup("OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := lookup("USER_AGENT"); v != "" {
		c.Scraper.UserAgent = v
	}
	if v := lookup("PROXY"); v != "" {
		c.Scraper.Proxy = v
	}
	if v := lookup("SQLITE_PATH"); v != "" {
		c.Output.SQLitePath = v
	}
	if v := lookup("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := lookup("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	if v := lookup("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sREQUEST_TIMEOUT: %w", envPrefix, err)
		}
		c.Scraper.RequestTimeout = d
	}
	if v := lookup("DETECT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sDETECT_TIMEOUT: %w", envPrefix, err)
		}
		c.Scraper.DetectTimeout = d
	}
	if v := lookup("MAX_PAGES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_PAGES: %w", envPrefix, err)
		}
		c.Scraper.MaxPages = n
	}
	if v := lookup("ENRICH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sENRICH: %w", envPrefix, err)
		}
		c.Scraper.Enrich = b
	}
	if v := lookup("MINE_HINTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sMINE_HINTS: %w", envPrefix, err)
		}
		c.Scraper.MineHints = b
	}
	return nil
}

func lookup(name string) string {
	return os.Getenv(envPrefix + name)
}
