package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cricsight/internal/infra/config"
)

func TestNewSinkTargets(t *testing.T) {
	tests := []struct {
		output string
		want   io.Writer
	}{
		{"stdout", os.Stdout},
		{"stderr", os.Stderr},
		{"", os.Stderr},
		{"STDOUT", os.Stdout},
		{"discard", io.Discard},
	}
	for _, tt := range tests {
		w, closer, err := newSink(tt.output)
		if err != nil {
			t.Fatalf("newSink(%q): %v", tt.output, err)
		}
		if w != tt.want {
			t.Errorf("newSink(%q) = %v, want %v", tt.output, w, tt.want)
		}
		closer()
	}
}

func TestNewSinkFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	w, closer, err := newSink(path)
	if err != nil {
		t.Fatalf("newSink: %v", err)
	}
	if _, err := w.Write([]byte("log line\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := closer(); err != nil {
		t.Fatalf("closer: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "log line\n" {
		t.Errorf("file content = %q", data)
	}
}

func TestNewSinkInvalidPath(t *testing.T) {
	if _, _, err := newSink("/nonexistent/dir/app.log"); err == nil {
		t.Error("expected error for unwritable path")
	}
}

func TestNewFileOutputAndLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	log, closer, err := New(config.LoggerConfig{Level: "warn", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	log.Info("filtered out")
	log.Warn("kept", "key", "value")
	if err := closer(); err != nil {
		t.Fatalf("closer: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "filtered out") {
		t.Error("info line not filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"kept"`) {
		t.Errorf("warn line missing or not JSON: %s", out)
	}
}

func TestNewUnknownLevelDefaultsInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	log, closer, err := New(config.LoggerConfig{Level: "loud", Output: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug("filtered")
	log.Info("kept")
	closer()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "filtered") {
		t.Error("debug line not filtered at default level")
	}
	if !strings.Contains(string(data), "kept") {
		t.Error("info line missing at default level")
	}
}

func TestNewInvalidOutput(t *testing.T) {
	_, _, err := New(config.LoggerConfig{Output: "/nonexistent/dir/app.log"})
	if err == nil {
		t.Error("expected error for unwritable output")
	}
}

func TestNewReturnsUsableLogger(t *testing.T) {
	log, closer, err := New(config.LoggerConfig{Level: "debug", Output: "discard"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closer()
	if log == nil {
		t.Fatal("logger is nil")
	}
	log.Debug("no panic", slog.String("key", "value"))
}
