package logs

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWriterPrefixes(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf)
	l.Info.Printf("one")
	l.Warn.Printf("two")
	l.Error.Printf("three")
	l.Critical.Printf("four")
	tests := []string{"INFO: ", "WARN: ", "ERROR: ", "CRIT: "}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(tests) {
		t.Fatalf("got %d lines, want %d: %q", len(lines), len(tests), buf.String())
	}
	for i, prefix := range tests {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d '%s' doesn't start with '%s'", i, lines[i], prefix)
		}
	}
}

func TestNewAppendsToFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "estufa.log")
	New(name).Info.Printf("first")
	New(name).Info.Printf("second")
	b, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(b), "first") || !strings.Contains(string(b), "second") {
		t.Errorf("log file missing lines, got:\n%s", string(b))
	}
}
