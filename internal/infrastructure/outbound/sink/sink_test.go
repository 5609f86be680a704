package sink_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sophialabs/lsvstats/internal/infrastructure/outbound/sink"
)

func writeAll(t *testing.T, path string, appendMode bool, s string) {
	t.Helper()
	w, err := sink.Open(path, appendMode)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := w.Write([]byte(s)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestOpen_TruncateAndAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.log")

	tests := []struct {
		name       string
		appendMode bool
		write      string
		want       string
	}{
		{"create", false, "a\n", "a\n"},
		{"append", true, "b\n", "a\nb\n"},
		{"truncate", false, "c\n", "c\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeAll(t, path, tt.appendMode, tt.write)
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile failed: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("content = %q, want %q", data, tt.want)
			}
		})
	}
}

func TestOpen_StdoutIsNeverClosed(t *testing.T) {
	for _, path := range []string{"", sink.Stdout} {
		w, err := sink.Open(path, false)
		if err != nil {
			t.Fatalf("Open(%q) failed: %v", path, err)
		}
		if err := w.Close(); err != nil {
			t.Errorf("Close() = %v, want nil", err)
		}
		if _, err := os.Stdout.Stat(); err != nil {
			t.Errorf("stdout unusable after Close: %v", err)
		}
	}
}

func TestOpen_MissingDirectory(t *testing.T) {
	if _, err := sink.Open(filepath.Join(t.TempDir(), "nope", "stats.log"), false); err == nil {
		t.Error("expected error for missing directory")
	}
}
