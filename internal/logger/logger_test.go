package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWritesToFile(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "test.log")

	cfg := FileConfig{
		Path:       logFile,
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
		Compress:   false,
	}

	log, err := NewWithFileConfig("debug", cfg, false) // No console output
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}

	log.Info("shadow atlas initialized")
	_ = log.Sync()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "shadow atlas initialized") {
		t.Error("log file does not contain logged message")
	}
}

func TestNewNoFile(t *testing.T) {
	log, err := New("info", "")
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	// Must be usable without panicking.
	log.Info("console only")
	_ = log.Sync()
}
