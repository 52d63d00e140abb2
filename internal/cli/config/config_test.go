package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/conduit-lang/docmap/internal/orm/mapping"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

func TestLoad(t *testing.T) {
	// Test loading with no config file (should use defaults)
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error loading defaults, got %v", err)
	}

	if cfg.Database.Driver != "pgx" {
		t.Errorf("expected default driver 'pgx', got %s", cfg.Database.Driver)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Development {
		t.Error("expected production logging by default")
	}
	if cfg.JSON.EnumFormat != "numeric" {
		t.Errorf("expected default enum format 'numeric', got %s", cfg.JSON.EnumFormat)
	}
	if cfg.JSON.Naming != "exact" {
		t.Errorf("expected default naming 'exact', got %s", cfg.JSON.Naming)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	configContent := `
database:
  driver: sqlite3
  url: file:test.db
logging:
  level: debug
  development: true
json:
  enum_format: string
  naming: snake_case
`
	if err := os.WriteFile("docmap.yaml", []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("expected driver 'sqlite3', got %s", cfg.Database.Driver)
	}
	if cfg.Database.URL != "file:test.db" {
		t.Errorf("expected url 'file:test.db', got %s", cfg.Database.URL)
	}
	if !cfg.Logging.Development || cfg.Logging.Level != "debug" {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}

	opts, err := cfg.MappingOptions()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if opts.EnumFormat != schema.EnumString {
		t.Errorf("expected string enum format, got %s", opts.EnumFormat)
	}
	if opts.Naming != mapping.NamingSnakeCase {
		t.Errorf("expected snake_case naming, got %s", opts.Naming)
	}
	if opts.KeyColumn != "id" {
		t.Errorf("expected default key column 'id', got %s", opts.KeyColumn)
	}
}

func TestLoadExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("database:\n  url: postgres://localhost/docs\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Database.URL != "postgres://localhost/docs" {
		t.Errorf("expected url from explicit file, got %s", cfg.Database.URL)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoadEnvironmentOverride(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	t.Setenv("DOCMAP_DATABASE_URL", "postgres://env/db")
	t.Setenv("DOCMAP_JSON_ENUM_FORMAT", "string")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Database.URL != "postgres://env/db" {
		t.Errorf("expected url from environment, got %s", cfg.Database.URL)
	}
	if cfg.JSON.EnumFormat != "string" {
		t.Errorf("expected enum format from environment, got %s", cfg.JSON.EnumFormat)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg:  Config{Database: DatabaseConfig{Driver: "postgres"}, JSON: JSONConfig{EnumFormat: "numeric", Naming: "exact"}},
		},
		{
			name:    "unknown driver",
			cfg:     Config{Database: DatabaseConfig{Driver: "mysql"}},
			wantErr: true,
		},
		{
			name:    "unknown enum format",
			cfg:     Config{Database: DatabaseConfig{Driver: "pgx"}, JSON: JSONConfig{EnumFormat: "hex"}},
			wantErr: true,
		},
		{
			name:    "unknown naming",
			cfg:     Config{Database: DatabaseConfig{Driver: "pgx"}, JSON: JSONConfig{Naming: "kebab"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error but got: %v", err)
			}
		})
	}
}
