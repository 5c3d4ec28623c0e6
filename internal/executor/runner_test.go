package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRunCommand(t *testing.T) {
	runner := NewFakeCommandRunner()
	runner.SetOutput("ok", "fine")
	runner.SetOutput("bad", strings.Repeat("x", 100))
	runner.SetError("bad", errors.New("exit status 2"))

	res, err := RunCommand(context.Background(), runner, "ok", time.Second, 10)
	if err != nil || !res.Passed || res.Output != "fine" {
		t.Errorf("ok: res = %+v, err = %v", res, err)
	}

	res, err = RunCommand(context.Background(), runner, "bad", time.Second, 10)
	if err == nil || res.Passed {
		t.Fatal("expected failure")
	}
	if !strings.HasPrefix(res.Output, strings.Repeat("x", 10)+"\n") || len(res.Output) > 40 {
		t.Errorf("output not truncated: %q", res.Output)
	}
	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1 for a non-exec error", res.ExitCode)
	}
}

func TestRunCommandTimeout(t *testing.T) {
	runner := NewFakeCommandRunner()
	runner.block = true

	start := time.Now()
	res, err := RunCommand(context.Background(), runner, "sleep", 20*time.Millisecond, 0)
	if !IsTimeoutError(err) {
		t.Fatalf("expected ErrCommandTimeout, got %v", err)
	}
	if !res.TimedOut || res.Passed {
		t.Errorf("res = %+v", res)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout did not bound the command")
	}
}

func TestShellCommandRunner(t *testing.T) {
	runner := NewShellCommandRunner(t.TempDir())
	out, err := runner.Run(context.Background(), "echo hello")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Errorf("output = %q", out)
	}

	res, err := RunCommand(context.Background(), runner, "exit 3", time.Second, 0)
	if err == nil || res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, err = %v", res.ExitCode, err)
	}
}

func TestIntersectionError(t *testing.T) {
	err := NewIntersectionError("ix-001", PhaseValidate, "a.py", ErrValidationFailed)
	if !errors.Is(err, ErrValidationFailed) {
		t.Error("errors.Is should see the wrapped sentinel")
	}
	if !IsIntersectionError(err) || IsIntersectionError(nil) {
		t.Error("IsIntersectionError mismatch")
	}
	for _, want := range []string{"ix-001", "validate", "a.py", "validation command failed"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Error() = %q, missing %q", err.Error(), want)
		}
	}
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"app/use.py", `'app/use.py'`},
		{"a b.py", `'a b.py'`},
		{"it's.py", `'it'"'"'s.py'`},
		{"x.py; rm -rf /", `'x.py; rm -rf /'`},
	}
	for _, tt := range tests {
		if got := ShellQuote(tt.in); got != tt.want {
			t.Errorf("ShellQuote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
