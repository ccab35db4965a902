package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestCritAndAlertSeverity(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, zerolog.InfoLevel, "json")

	Crit(&l).Str("path", "/var/www/x").Msg("delete failed")
	Alert(&l).Msg("alias unsupported")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	for i, want := range []string{"crit", "alert"} {
		var entry map[string]any
		if err := json.Unmarshal([]byte(lines[i]), &entry); err != nil {
			t.Fatalf("decode line %d: %v", i, err)
		}
		if entry[SeverityField] != want {
			t.Fatalf("line %d: expected severity %q, got %v", i, want, entry[SeverityField])
		}
		if entry["level"] != "error" {
			t.Fatalf("line %d: expected error level, got %v", i, entry["level"])
		}
		if entry["service"] != "nebula-static-delete" {
			t.Fatalf("line %d: missing service field", i)
		}
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, zerolog.DebugLevel, "console")
	l.Debug().Str("path", "/tmp/a").Msg("resolved")
	if !strings.Contains(buf.String(), "resolved") || !strings.Contains(buf.String(), "path=/tmp/a") {
		t.Fatalf("unexpected console output %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel(" WARN ")
	if err != nil || lvl != zerolog.WarnLevel {
		t.Fatalf("expected warn, got %v, %v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
