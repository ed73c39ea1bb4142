package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: memory
openai:
  apiKey: sk-test
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Fatalf("expected default port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Ollama.Model != "deepseek-r1:8b" {
		t.Fatalf("unexpected ollama model %q", cfg.Ollama.Model)
	}
	if cfg.RateLimit.Window != time.Minute {
		t.Fatalf("unexpected rate limit window %s", cfg.RateLimit.Window)
	}
	if cfg.Analysis.ProcessingLease != 10*time.Minute {
		t.Fatalf("unexpected processing lease %s", cfg.Analysis.ProcessingLease)
	}
}

func TestLoadProcessingLease(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: memory
openai:
  apiKey: sk-test
analysis:
  processingLease: 90s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Analysis.ProcessingLease != 90*time.Second {
		t.Fatalf("expected 90s lease, got %s", cfg.Analysis.ProcessingLease)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: memory
openai:
  apiKey: from-file
  model: gpt-4o
`)
	t.Setenv("OPENAI_API_KEY", "from-env")
	t.Setenv("OLLAMA_MODEL", "llama3")
	t.Setenv("PORT", "9090")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OpenAI.APIKey != "from-env" {
		t.Fatalf("expected env api key, got %q", cfg.OpenAI.APIKey)
	}
	if cfg.OpenAI.Model != "gpt-4o" {
		t.Fatalf("file model should survive, got %q", cfg.OpenAI.Model)
	}
	if cfg.Ollama.Model != "llama3" || cfg.Server.Port != 9090 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != "memory" {
		t.Fatalf("unexpected driver %q", cfg.Database.Driver)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing api key", "database:\n  driver: memory\n"},
		{"unknown driver", "database:\n  driver: oracle\nopenai:\n  apiKey: x\n"},
		{"postgres without host", "database:\n  driver: postgres\nopenai:\n  apiKey: x\n"},
		{"minio without bucket", "database:\n  driver: memory\nopenai:\n  apiKey: x\nminio:\n  enabled: true\n  endpoint: localhost:9000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "")
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestDSNHelpers(t *testing.T) {
	var c Config
	c.Database.User = "app"
	c.Database.Password = "secret"
	c.Database.Host = "db"
	c.Database.Port = 5432
	c.Database.Name = "signaware"
	c.Database.SSLMode = "disable"

	if got, want := c.PostgresDSN(), "postgres://app:secret@db:5432/signaware?sslmode=disable"; got != want {
		t.Fatalf("postgres dsn = %q, want %q", got, want)
	}
	c.Database.Port = 3306
	if got, want := c.MySQLDSN(), "app:secret@tcp(db:3306)/signaware?parseTime=true&charset=utf8mb4&loc=UTC&multiStatements=true&clientFoundRows=true"; got != want {
		t.Fatalf("mysql dsn = %q, want %q", got, want)
	}
	c.Database.URL = "postgres://override"
	if c.PostgresDSN() != "postgres://override" || c.MySQLDSN() != "postgres://override" {
		t.Fatalf("url should take precedence")
	}
}
