package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mast.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadProjectConfig(t *testing.T) {
	t.Run("valid config loads with defaults", func(t *testing.T) {
		path := writeTempConfig(t, "project: my-site\nversion: 1\ndatabase:\n  driver: memory\n")
		cfg, err := LoadProjectConfig(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Project != "my-site" {
			t.Fatalf("expected project name, got %q", cfg.Project)
		}
		if cfg.Build.BatchSize != DefaultBatchSize {
			t.Fatalf("expected default batch size, got %d", cfg.Build.BatchSize)
		}
		if cfg.Validation.MinKeyLength != DefaultMinKeyLength {
			t.Fatalf("expected default min key length, got %d", cfg.Validation.MinKeyLength)
		}
	})

	t.Run("missing project name", func(t *testing.T) {
		path := writeTempConfig(t, "version: 1\ndatabase:\n  driver: memory\n")
		if _, err := LoadProjectConfig(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("unsupported version", func(t *testing.T) {
		path := writeTempConfig(t, "project: x\nversion: 2\ndatabase:\n  driver: memory\n")
		if _, err := LoadProjectConfig(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		path := writeTempConfig(t, "project: x\nversion: 1\ndatabase:\n  driver: postgres\n")
		if _, err := LoadProjectConfig(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		path := writeTempConfig(t, "project: x\nversion: 1\ndatabase:\n  driver: mongodb\n  dsn: x\n")
		if _, err := LoadProjectConfig(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("batch size bounds", func(t *testing.T) {
		path := writeTempConfig(t, "project: x\nversion: 1\ndatabase:\n  driver: memory\nbuild:\n  batch_size: 50\n")
		if _, err := LoadProjectConfig(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("min key length floor", func(t *testing.T) {
		path := writeTempConfig(t, "project: x\nversion: 1\ndatabase:\n  driver: memory\nvalidation:\n  min_key_length: 2\n")
		if _, err := LoadProjectConfig(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadProjectConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Fatalf("expected error")
		}
	})
}
