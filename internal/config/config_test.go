package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schemadiff.yaml")

	content := `version: 1
db_type: postgres
reference:
  host: localhost
  port: 5432
  database: testdb
  username: testuser
  password: testpass
target:
  host: localhost
  port: 5433
  database: testdb
  username: testuser
  password: testpass
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Version != 1 {
		t.Errorf("expected version 1, got %d", cfg.Version)
	}
	if cfg.DBType != "postgres" {
		t.Errorf("expected db_type postgres, got %s", cfg.DBType)
	}
	if cfg.Reference.MaxConnections != 20 {
		t.Errorf("expected default max_connections 20, got %d", cfg.Reference.MaxConnections)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoadInvalidVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schemadiff.yaml")

	content := `version: 99
db_type: postgres
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid version")
	}
}

func TestResolveEnvSecret(t *testing.T) {
	t.Setenv("TEST_SECRET", "mysecret")
	val, err := ResolveValue("${ENV:TEST_SECRET}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "mysecret" {
		t.Errorf("expected mysecret, got %s", val)
	}
}

func TestResolvePlainValue(t *testing.T) {
	val, err := ResolveValue("plaintext")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "plaintext" {
		t.Errorf("expected plaintext, got %s", val)
	}
}

func TestMaxConnectionsCapped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schemadiff.yaml")

	content := `version: 1
db_type: postgres
reference:
  host: localhost
  port: 5432
  database: testdb
  username: testuser
  password: testpass
  max_connections: 100
target:
  host: localhost
  port: 5433
  database: testdb
  username: testuser
  password: testpass
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Reference.MaxConnections != 50 {
		t.Errorf("expected max_connections capped at 50, got %d", cfg.Reference.MaxConnections)
	}
}

func TestSideConfigIsScript(t *testing.T) {
	s := SideConfig{Script: "/tmp/schema.sql"}
	if !s.IsScript() {
		t.Fatal("expected IsScript to be true when Script is set")
	}
	live := SideConfig{Host: "localhost"}
	if live.IsScript() {
		t.Fatal("expected IsScript to be false for a live connection config")
	}
}
