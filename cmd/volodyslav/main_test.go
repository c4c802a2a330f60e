package main

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/volodyslav/volodyslav/internal/filesystem"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "dev") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestValidateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volodyslav.toml")
	content := `
workdir = "/tmp/volodyslav"

[[tasks]]
name = "diary"
schedule = "0 9 * * *"
command = "true"
`
	if err := filesystem.WriteText(path, content); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := runCommand(t, "validate", "--config", path)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "1 task(s)") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestValidateRejectsBrokenConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volodyslav.toml")
	content := `
[[tasks]]
name = "diary"
schedule = "not a schedule"
command = "true"
`
	if err := filesystem.WriteText(path, content); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := runCommand(t, "validate", "--config", path); err == nil {
		t.Fatalf("expected validation failure")
	}
}

func TestBuildHistorySinkDefaultsToMemory(t *testing.T) {
	sink, err := buildHistorySink(nil, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if sink == nil {
		t.Fatalf("expected a fallback sink")
	}
	_ = sink.Close()
}

func TestBuildHistorySinkRejectsBadDSN(t *testing.T) {
	if _, err := buildHistorySink([]string{"kafka://nope"}, slog.New(slog.DiscardHandler)); err == nil {
		t.Fatalf("expected an error for unsupported DSN")
	}
}
