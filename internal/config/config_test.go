package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.GuildID != DefaultGuildID {
		t.Errorf("expected guild %q, got %q", DefaultGuildID, cfg.GuildID)
	}
	if cfg.Source.Driver != "sqlite" {
		t.Errorf("expected driver 'sqlite', got %q", cfg.Source.Driver)
	}
	if cfg.Source.PageSize != 1000 {
		t.Errorf("expected page_size 1000, got %d", cfg.Source.PageSize)
	}
	if cfg.Report.Top != 10 {
		t.Errorf("expected top 10, got %d", cfg.Report.Top)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
guild_id: "42"
source:
  page_size: 50
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.GuildID != "42" {
		t.Errorf("expected guild '42', got %q", cfg.GuildID)
	}
	if cfg.Source.PageSize != 50 {
		t.Errorf("expected page_size 50, got %d", cfg.Source.PageSize)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Source.Table != "messages" {
		t.Errorf("expected default table, got %q", cfg.Source.Table)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level, got %q", cfg.Logging.Level)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Source.Path != "activity.db" {
		t.Errorf("expected source path from file, got %q", cfg.Source.Path)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	t.Setenv("INCYDECY_GUILD_ID", "1234")
	t.Setenv("INCYDECY_PAGE_SIZE", "25")
	t.Setenv("INCYDECY_DB_PATH", "/tmp/karma.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.GuildID != "1234" {
		t.Errorf("expected guild '1234', got %q", cfg.GuildID)
	}
	if cfg.Source.PageSize != 25 {
		t.Errorf("expected page_size 25, got %d", cfg.Source.PageSize)
	}
	if cfg.GetDBPath() != "/tmp/karma.db" {
		t.Errorf("expected db path override, got %q", cfg.GetDBPath())
	}
}

func TestLoadRejectsBadPageSizeEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	t.Setenv("INCYDECY_PAGE_SIZE", "lots")

	if _, err := Load(path); err == nil {
		t.Error("expected error for non-numeric page size")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty guild", func(c *Config) { c.GuildID = " " }, "guild_id"},
		{"zero page size", func(c *Config) { c.Source.PageSize = 0 }, "page_size"},
		{"unknown driver", func(c *Config) { c.Source.Driver = "duckdb" }, "source.driver"},
		{"mysql without dsn", func(c *Config) { c.Source.Driver = "mysql" }, "source.dsn"},
		{"bad table", func(c *Config) { c.Source.Table = "messages; DROP TABLE value" }, "source.table"},
		{"bad order column", func(c *Config) { c.Source.OrderBy = "id desc" }, "source.order_by"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parse(DefaultConfigYAML)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGetDBPath(t *testing.T) {
	cfg := &Config{}
	defaultPath := cfg.GetDBPath()
	if !strings.HasSuffix(defaultPath, "incydecy.db") {
		t.Errorf("expected default path ending in incydecy.db, got %q", defaultPath)
	}

	cfg.Destination.Path = "/custom/karma.db"
	if cfg.GetDBPath() != "/custom/karma.db" {
		t.Errorf("expected '/custom/karma.db', got %q", cfg.GetDBPath())
	}
}
