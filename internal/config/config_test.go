package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVFILE", "FALSE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Transport != TransportHTTP {
		t.Errorf("Transport = %q, want %q", cfg.Transport, TransportHTTP)
	}
	if cfg.Brand != "sas-viya" {
		t.Errorf("Brand = %q, want sas-viya", cfg.Brand)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.AuthFlow != "sascli" {
		t.Errorf("AuthFlow = %q, want sascli", cfg.AuthFlow)
	}
	if !cfg.TokenRefresh {
		t.Error("TokenRefresh = false, want true")
	}
	if cfg.CASServer != "cas-shared-default" {
		t.Errorf("CASServer = %q", cfg.CASServer)
	}
	if len(cfg.Toolsets) != 1 || cfg.Toolsets[0] != "default" {
		t.Errorf("Toolsets = %v, want [default]", cfg.Toolsets)
	}
}

func TestLoadRejectsBadTransport(t *testing.T) {
	t.Setenv("ENVFILE", "FALSE")
	t.Setenv("MCPTYPE", "carrier-pigeon")

	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted an unknown MCPTYPE")
	}
}

func TestLoadTokenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.txt")
	if err := os.WriteFile(path, []byte("tok-abc\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ENVFILE", "FALSE")
	t.Setenv("TOKENFILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Token != "tok-abc" {
		t.Errorf("Token = %q, want tok-abc", cfg.Token)
	}
	if cfg.AuthFlow != "token" {
		t.Errorf("AuthFlow = %q, want token", cfg.AuthFlow)
	}
}

func TestLoadTokenFileMissing(t *testing.T) {
	t.Setenv("ENVFILE", "FALSE")
	t.Setenv("TOKENFILE", filepath.Join(t.TempDir(), "nope.txt"))

	if _, err := Load(); err == nil {
		t.Fatal("Load() ignored a missing token file")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	content := "# comment\n\nFOO_A=one\nexport FOO_B=\"two words\"\nFOO_C='three'\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("FOO_A", "preset")
	t.Setenv("FOO_B", "")
	os.Unsetenv("FOO_B")
	os.Unsetenv("FOO_C")
	t.Cleanup(func() {
		os.Unsetenv("FOO_B")
		os.Unsetenv("FOO_C")
	})

	if err := loadDotEnv(filepath.Join(dir, ".env")); err != nil {
		t.Fatalf("loadDotEnv error: %v", err)
	}
	if got := os.Getenv("FOO_A"); got != "preset" {
		t.Errorf("FOO_A = %q, want preset (env wins over file)", got)
	}
	if got := os.Getenv("FOO_B"); got != "two words" {
		t.Errorf("FOO_B = %q", got)
	}
	if got := os.Getenv("FOO_C"); got != "three" {
		t.Errorf("FOO_C = %q", got)
	}
}

func TestLoadDotEnvMalformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("NOT A PAIR\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := loadDotEnv(filepath.Join(dir, ".env")); err == nil {
		t.Fatal("loadDotEnv accepted a line without '='")
	}
}
