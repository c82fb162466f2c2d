package errors

import (
	"errors"
	"strings"
	"testing"
)

// TestRecover_WithPanic tests the Recover function when a panic occurs
func TestRecover_WithPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "training.tick")
		panic("test panic message")
	}

	err := testFunc()
	if err == nil {
		t.Fatal("Expected error from recovered panic, got nil")
	}

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}
	if panicErr.Operation != "training.tick" {
		t.Errorf("Expected operation 'training.tick', got '%s'", panicErr.Operation)
	}
	if panicErr.StackTrace == "" {
		t.Error("Expected non-empty stack trace")
	}
	if panicErr.Error() != "panic in training.tick: test panic message" {
		t.Errorf("Unexpected error message '%s'", panicErr.Error())
	}
	if !strings.Contains(panicErr.String(), "Stack trace:") {
		t.Error("Expected String() to include the stack trace")
	}
}

// TestRecover_WithoutPanic tests the Recover function when no panic occurs
func TestRecover_WithoutPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "training.tick")
		return nil
	}

	if err := testFunc(); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
}

// TestRecover_WithExistingError tests that an existing error is wrapped
func TestRecover_WithExistingError(t *testing.T) {
	original := errors.New("original")
	testFunc := func() (err error) {
		defer Recover(&err, "analysis.submit")
		err = original
		panic("boom")
	}

	err := testFunc()
	if !errors.Is(err, original) {
		t.Fatalf("Expected wrapped original error, got %v", err)
	}
	if !strings.Contains(err.Error(), "panic in analysis.submit: boom") {
		t.Errorf("Unexpected message: %v", err)
	}
}

func TestSafeExecute(t *testing.T) {
	err := SafeExecute("hook", func() error {
		var m map[string]int
		m["x"] = 1
		return nil
	})

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}

	sentinel := errors.New("plain")
	if err := SafeExecute("hook", func() error { return sentinel }); err != sentinel {
		t.Errorf("Expected passthrough error, got %v", err)
	}
}
