package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("STATIC_DELETE_ADDR", "")
	t.Setenv("STATIC_DELETE_BACKEND", "")
	t.Setenv("STATIC_DELETE_MAX_BODY_BYTES", "")
	cfg := FromEnv()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.HTTPAddr)
	}
	if cfg.Backend != BackendLocal {
		t.Fatalf("expected local backend, got %q", cfg.Backend)
	}
	if cfg.SFTPPort != 22 {
		t.Fatalf("expected sftp port 22, got %d", cfg.SFTPPort)
	}
	if cfg.MaxBodyBytes != DefaultMaxBodyBytes {
		t.Fatalf("expected default body cap, got %d", cfg.MaxBodyBytes)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("STATIC_DELETE_ADDR", "unix:/run/static-delete.sock")
	t.Setenv("STATIC_DELETE_DRY_RUN", "true")
	t.Setenv("STATIC_DELETE_BACKEND", "SFTP")
	t.Setenv("STATIC_DELETE_SFTP_PORT", "2222")
	t.Setenv("STATIC_DELETE_SFTP_TIMEOUT", "3s")
	t.Setenv("STATIC_DELETE_SHUTDOWN_TIMEOUT", "not-a-duration")
	t.Setenv("STATIC_DELETE_MAX_BODY_BYTES", "4096")

	cfg := FromEnv()
	if cfg.HTTPAddr != "unix:/run/static-delete.sock" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr)
	}
	if !cfg.DryRun {
		t.Fatalf("expected dry run")
	}
	if cfg.Backend != BackendSFTP {
		t.Fatalf("expected sftp backend, got %q", cfg.Backend)
	}
	if cfg.SFTPPort != 2222 {
		t.Fatalf("expected port 2222, got %d", cfg.SFTPPort)
	}
	if cfg.SFTPTimeout != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %s", cfg.SFTPTimeout)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("expected fallback shutdown timeout, got %s", cfg.ShutdownTimeout)
	}
	if cfg.MaxBodyBytes != 4096 {
		t.Fatalf("expected 4096 byte body cap, got %d", cfg.MaxBodyBytes)
	}
}

func TestParseLocations(t *testing.T) {
	doc := `
locations:
  - pattern: /purge/{name}
    root: /var/www
    static_delete: /uploads/$param_name
  - pattern: "/tenant/{id}/*"
    root: /srv/$host
    strict: true
    static_delete: $uri
`
	locs, err := ParseLocations([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(locs) != 2 {
		t.Fatalf("expected 2 locations, got %d", len(locs))
	}
	if locs[0].StaticDelete != "/uploads/$param_name" || locs[0].Root != "/var/www" {
		t.Fatalf("unexpected first location: %+v", locs[0])
	}
	if !locs[1].Strict || locs[1].Alias {
		t.Fatalf("unexpected flags on second location: %+v", locs[1])
	}
}

func TestParseLocationsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", "", "empty"},
		{"no locations", "locations: []", "invalid locations"},
		{"missing directive", "locations:\n  - pattern: /a\n    root: /var/www\n", "invalid locations"},
		{"relative pattern", "locations:\n  - pattern: a\n    root: /r\n    static_delete: $uri\n", "invalid locations"},
		{"unknown key", "locations:\n  - pattern: /a\n    root: /r\n    static_delete: $uri\n    index: x\n", "invalid locations"},
		{"duplicate", "locations:\n  - pattern: /a\n    root: /r\n    static_delete: $uri\n  - pattern: /a\n    root: /s\n    static_delete: $uri\n", "duplicate pattern"},
		{"bad yaml", "locations: [", "parse locations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLocations([]byte(tt.doc))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadLocationsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locations.yaml")
	doc := "locations:\n  - pattern: /x\n    root: /var/www\n    alias: true\n    static_delete: $uri\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	locs, err := LoadLocations(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(locs) != 1 || !locs[0].Alias {
		t.Fatalf("unexpected locations: %+v", locs)
	}
	if _, err := LoadLocations(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}
