package logging

import (
	"errors"
	"testing"
)

func TestOperationErrorWrapsCause(t *testing.T) {
	cause := errors.New("disk gone")
	err := NewOperationError("model.load", "req-1", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the cause")
	}
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if got, want := err.Error(), "model.load (request_id=req-1): disk gone"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if got, want := NewOperationError("model.load", "", cause).Error(), "model.load: disk gone"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestNewOperationErrorNil(t *testing.T) {
	if err := NewOperationError("noop", "", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	if _, err := NewLogger(""); err != nil {
		t.Fatalf("default level: %v", err)
	}
	logger, err := NewLogger("debug")
	if err != nil {
		t.Fatalf("debug level: %v", err)
	}
	if !logger.Core().Enabled(-1) {
		t.Fatal("expected debug to be enabled")
	}
	if _, err := NewLogger("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestOperationErrorNilReceiver(t *testing.T) {
	var opErr *OperationError
	if got := opErr.Error(); got != "" {
		t.Fatalf("expected empty message, got %q", got)
	}
	if opErr.Unwrap() != nil {
		t.Fatal("expected nil cause")
	}
}
