package subprocess

import (
	"context"
	"errors"
	"testing"
)

func TestResolveUnknownCommand(t *testing.T) {
	r := NewRunner()
	_, err := r.Resolve("definitely-not-a-real-command-xyz")
	var cu *CommandUnavailableError
	if !errors.As(err, &cu) {
		t.Fatalf("expected CommandUnavailableError, got %v", err)
	}
	if cu.Command != "definitely-not-a-real-command-xyz" {
		t.Fatalf("unexpected command in error: %s", cu.Command)
	}
}

func TestResolveMemoized(t *testing.T) {
	r := NewRunner()
	p1, err := r.Resolve("sh")
	if err != nil {
		t.Skipf("sh not available: %v", err)
	}
	p2, err := r.Resolve("sh")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if p1 != p2 {
		t.Fatalf("memoized resolve returned different paths: %s vs %s", p1, p2)
	}
	if r.resolved["sh"] != p1 {
		t.Fatalf("resolve result not cached")
	}
}

func TestRunCapturesStdout(t *testing.T) {
	r := NewRunner()
	if _, err := r.Resolve("sh"); err != nil {
		t.Skipf("sh not available: %v", err)
	}
	res, err := r.Run(context.Background(), "", "sh", "-c", "printf hello")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Stdout != "hello" {
		t.Fatalf("unexpected stdout: %q", res.Stdout)
	}
}

func TestRunFailureCarriesExitCodeAndStderr(t *testing.T) {
	r := NewRunner()
	if _, err := r.Resolve("sh"); err != nil {
		t.Skipf("sh not available: %v", err)
	}
	_, err := r.Run(context.Background(), "", "sh", "-c", "echo boom >&2; exit 3")
	var pf *ProcessFailedError
	if !errors.As(err, &pf) {
		t.Fatalf("expected ProcessFailedError, got %v", err)
	}
	if pf.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", pf.ExitCode)
	}
	if pf.Stderr == "" {
		t.Fatalf("expected captured stderr")
	}
}
