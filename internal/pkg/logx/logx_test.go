package logx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"203.0.113.45:5555", "203.0.113.0"},
		{"203.0.113.45", "203.0.113.0"},
		{"127.0.0.1:80", "127.0.0.1"},
		{"[2001:db8:85a3:1:2:3:4:5]:443", "2001:db8:85a3:1::"},
		{"not-an-ip", "unknown_ip"},
	}

	for _, tt := range tests {
		if got := AnonymizeIP(tt.in); got != tt.want {
			t.Errorf("AnonymizeIP(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveLevel(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want zerolog.Level
	}{
		{"development default", Options{Development: true}, zerolog.DebugLevel},
		{"production default", Options{}, zerolog.InfoLevel},
		{"explicit level", Options{Level: "warn"}, zerolog.WarnLevel},
		{"bad level falls back", Options{Level: "loud", Development: true}, zerolog.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveLevel(tt.opts); got != tt.want {
				t.Errorf("resolveLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInitGlobalLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.log")

	InitGlobalLogger(Options{Level: "info", FilePath: path})
	t.Cleanup(func() { InitGlobalLogger(Options{Level: "info"}) })

	Info("file sink check", "key", "value")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "file sink check") {
		t.Errorf("log file missing record, got %q", data)
	}
}

func TestNewFileWriterRotation(t *testing.T) {
	w := newFileWriter(Options{FilePath: "chat.log", MaxSizeMB: 50, MaxBackups: 2, MaxAgeDays: 7})
	if w.MaxSize != 50 || w.MaxBackups != 2 || w.MaxAge != 7 {
		t.Errorf("rotation = %d/%d/%d, want 50/2/7", w.MaxSize, w.MaxBackups, w.MaxAge)
	}

	w = newFileWriter(Options{FilePath: "chat.log"})
	if w.MaxSize != 10 || w.MaxBackups != 5 || w.MaxAge != 30 {
		t.Errorf("default rotation = %d/%d/%d, want 10/5/30", w.MaxSize, w.MaxBackups, w.MaxAge)
	}
}
