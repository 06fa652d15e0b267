package recovery

import (
	"bytes"
	"os"
	"os/exec"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// stubExit records the exit code instead of terminating the test binary
func stubExit(t *testing.T) *int {
	t.Helper()
	code := -1
	orig := exit
	exit = func(c int) { code = c }
	t.Cleanup(func() { exit = orig })
	return &code
}

func TestHandlePanic_NoPanic(t *testing.T) {
	code := stubExit(t)
	func() {
		defer HandlePanic(nil)
	}()
	if *code != -1 {
		t.Errorf("exit called with %d without a panic", *code)
	}
}

func TestHandlePanicFunc_NoPanic(t *testing.T) {
	cleanupCalled := false

	func() {
		defer HandlePanicFunc(nil, func() {
			cleanupCalled = true
		})
	}()

	if cleanupCalled {
		t.Error("cleanup was called without a panic")
	}
}

func TestHandlePanicFunc_NilCleanup(t *testing.T) {
	code := stubExit(t)
	func() {
		defer HandlePanicFunc(nil, nil)
		panic("no cleanup")
	}()
	if *code != 1 {
		t.Errorf("exit code = %d, want 1", *code)
	}
}

func TestHandlePanic_LogsToZap(t *testing.T) {
	code := stubExit(t)
	core, logs := observer.New(zapcore.ErrorLevel)

	func() {
		defer HandlePanic(zap.New(core))
		panic("decoder loop exploded")
	}()

	if *code != 1 {
		t.Errorf("exit code = %d, want 1", *code)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["panic"] != "decoder loop exploded" {
		t.Errorf("panic field = %v", fields["panic"])
	}
	if _, ok := fields["stack"]; !ok {
		t.Error("stack field missing")
	}
}

func TestHandlePanicFunc_CleanupRuns(t *testing.T) {
	code := stubExit(t)
	cleanupCalled := false

	func() {
		defer HandlePanicFunc(zap.NewNop(), func() { cleanupCalled = true })
		panic("boom")
	}()

	if !cleanupCalled {
		t.Error("cleanup was not called")
	}
	if *code != 1 {
		t.Errorf("exit code = %d, want 1", *code)
	}
}

// TestHandlePanic_ExitsOnPanic uses a subprocess to test the real exit path
func TestHandlePanic_ExitsOnPanic(t *testing.T) {
	if os.Getenv("TEST_PANIC_EXIT") == "1" {
		defer HandlePanic(nil)
		panic("test panic")
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestHandlePanic_ExitsOnPanic")
	cmd.Env = append(os.Environ(), "TEST_PANIC_EXIT=1")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()

	if exitErr, ok := err.(*exec.ExitError); ok {
		if exitErr.ExitCode() != 1 {
			t.Errorf("exit code = %d, want 1", exitErr.ExitCode())
		}
	} else if err == nil {
		t.Error("expected process to exit with error, but it succeeded")
	}

	output := stderr.Bytes()
	for _, want := range []string{"FATAL", "test panic", "Stack trace"} {
		if !bytes.Contains(output, []byte(want)) {
			t.Errorf("stderr should contain %q, got: %s", want, output)
		}
	}
}
