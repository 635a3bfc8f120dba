package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sampleConfig struct {
	Model   string        `split_words:"true" default:"openai/gpt-4o-mini"`
	Timeout time.Duration `split_words:"true" default:"30s"`
	APIKey  string        `envconfig:"API_KEY"`
}

// Tests here mutate process env and package state, so they run serially.

func TestNewLoadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("OPSDESKTEST_MODEL=anthropic/claude\nOPSDESKTEST_API_KEY=secret\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() {
		os.Unsetenv("OPSDESKTEST_MODEL")
		os.Unsetenv("OPSDESKTEST_API_KEY")
		SetEnvFile("")
	})

	SetEnvFile(path)
	cfg, err := New[sampleConfig]("OPSDESKTEST")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if cfg.Model != "anthropic/claude" || cfg.APIKey != "secret" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Timeout != 30*time.Second {
		t.Fatalf("default timeout = %v", cfg.Timeout)
	}
}

func TestEnvironmentWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("OPSDESKTEST2_MODEL=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("OPSDESKTEST2_MODEL", "from-env")
	t.Cleanup(func() { SetEnvFile("") })

	SetEnvFile(path)
	cfg := MustNew[sampleConfig]("OPSDESKTEST2")
	if cfg.Model != "from-env" {
		t.Fatalf("model = %s", cfg.Model)
	}
}

func TestMissingEnvFileFails(t *testing.T) {
	t.Cleanup(func() { SetEnvFile("") })

	SetEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	if _, err := New[sampleConfig]("OPSDESKTEST3"); err == nil {
		t.Fatal("expected error for missing env file")
	}
}
