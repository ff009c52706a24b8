package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// DefaultGuildID is used when no guild is configured.
const DefaultGuildID = "497544520695808000"

type Config struct {
	GuildID     string      `yaml:"guild_id"`
	Source      Source      `yaml:"source"`
	Destination Destination `yaml:"destination"`
	Schedule    Schedule    `yaml:"schedule"`
	Report      Report      `yaml:"report"`
	Server      Server      `yaml:"server"`
	Logging     Logging     `yaml:"logging"`
}

type Source struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	DSN      string `yaml:"dsn"`
	Table    string `yaml:"table"`
	OrderBy  string `yaml:"order_by"`
	PageSize int    `yaml:"page_size"`
}

type Destination struct {
	Path string `yaml:"path"`
}

type Schedule struct {
	Cron string `yaml:"cron"`
}

type Report struct {
	Top int `yaml:"top"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ConfigDir returns the XDG config directory for incydecy.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "incydecy")
}

// DataDir returns the XDG data directory for incydecy.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "incydecy")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/incydecy/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'incydecy init' to create a default config",
		xdgConfig,
	)
}

// Load reads a config YAML file, applies .env and environment overrides,
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}

	// A missing .env is the normal case.
	_ = godotenv.Load()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		GuildID: DefaultGuildID,
		Source: Source{
			Driver:   "sqlite",
			Path:     "activity.db",
			Table:    "messages",
			PageSize: 1000,
		},
		Schedule: Schedule{Cron: "@hourly"},
		Report:   Report{Top: 10},
		Server:   Server{Port: 8000},
		Logging:  Logging{Level: "info", Format: "console"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides file values with INCYDECY_* environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"INCYDECY_GUILD_ID":      &c.GuildID,
		"INCYDECY_SOURCE_DRIVER": &c.Source.Driver,
		"INCYDECY_SOURCE_PATH":   &c.Source.Path,
		"INCYDECY_SOURCE_DSN":    &c.Source.DSN,
		"INCYDECY_DB_PATH":       &c.Destination.Path,
		"INCYDECY_LOG_LEVEL":     &c.Logging.Level,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("INCYDECY_PAGE_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("INCYDECY_PAGE_SIZE: %w", err)
		}
		c.Source.PageSize = n
	}
	return nil
}

// Validate checks the values the pipeline cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.GuildID) == "" {
		errs = append(errs, errors.New("guild_id must not be empty"))
	}
	if c.Source.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("source.page_size must be positive, got %d", c.Source.PageSize))
	}
	switch c.Source.Driver {
	case "sqlite":
		if c.Source.Path == "" {
			errs = append(errs, errors.New("source.path is required for the sqlite driver"))
		}
	case "mysql":
		if c.Source.DSN == "" {
			errs = append(errs, errors.New("source.dsn is required for the mysql driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("source.driver must be sqlite or mysql, got %q", c.Source.Driver))
	}
	if !identifier.MatchString(c.Source.Table) {
		errs = append(errs, fmt.Errorf("source.table %q is not a valid identifier", c.Source.Table))
	}
	if c.Source.OrderBy != "" && !identifier.MatchString(c.Source.OrderBy) {
		errs = append(errs, fmt.Errorf("source.order_by %q is not a valid identifier", c.Source.OrderBy))
	}
	return errors.Join(errs...)
}

// GetDBPath returns the effective destination database path from config or
// the XDG data directory.
func (c *Config) GetDBPath() string {
	if c.Destination.Path != "" {
		return c.Destination.Path
	}
	return filepath.Join(DataDir(), "incydecy.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
