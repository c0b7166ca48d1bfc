package internal

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_RequiresConfig(t *testing.T) {
	if _, err := New(); err == nil {
		t.Fatal("expected error when no config is provided")
	}
}

func TestNew_UsesProvidedLogger(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Standards.Path = t.TempDir()
	cfg.Snapshots.Path = filepath.Join(t.TempDir(), "snapshots")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	app, err := New(WithConfig(cfg), WithLogger(logger))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if app.logger != logger {
		t.Error("provided logger was replaced")
	}
	if !strings.Contains(buf.String(), "configuration loaded") {
		t.Errorf("startup log did not reach the provided logger: %q", buf.String())
	}
}

func TestNew_FailsOnMissingStandardsPath(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Standards.Path = filepath.Join(t.TempDir(), "does-not-exist")
	if _, err := New(WithConfig(cfg)); err == nil {
		t.Fatal("expected error for missing standards tree")
	}
}
