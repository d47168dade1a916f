package errors

import (
	"fmt"
	"testing"
	"time"
)

func TestError(t *testing.T) {
	// Test basic error creation
	err := New(ErrCodeNotConnected, "not connected")
	if err.Code != ErrCodeNotConnected {
		t.Errorf("expected code %s, got %s", ErrCodeNotConnected, err.Code)
	}

	// Test error wrapping
	cause := fmt.Errorf("underlying error")
	wrapped := Wrap(cause, ErrCodeConnectionFailed, "dial failed")

	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	// Test Is function
	if !Is(wrapped, ErrCodeConnectionFailed) {
		t.Error("Is should return true for matching code")
	}

	if Is(wrapped, ErrCodeNotConnected) {
		t.Error("Is should return false for non-matching code")
	}

	// Test through fmt wrapping
	outer := fmt.Errorf("connect: %w", wrapped)
	if !Is(outer, ErrCodeConnectionFailed) {
		t.Error("Is should see through fmt.Errorf wrapping")
	}
	if got, ok := As(outer); !ok || got != wrapped {
		t.Error("As should return the wrapped *Error")
	}

	// Test WithDetail
	detailed := err.WithDetail("event", "update-invoice").WithDetail("attempt", 2)
	if detailed.Details["event"] != "update-invoice" {
		t.Error("WithDetail should add details")
	}
}

func TestErrorConstructors(t *testing.T) {
	err := NotConnected("create-invoice")
	if err.Code != ErrCodeNotConnected {
		t.Errorf("expected code %s, got %s", ErrCodeNotConnected, err.Code)
	}
	if err.Details["event"] != "create-invoice" {
		t.Error("NotConnected should include event detail")
	}

	err = AckTimeout("update-invoice", 2*time.Second)
	if err.Code != ErrCodeAckTimeout {
		t.Errorf("expected code %s, got %s", ErrCodeAckTimeout, err.Code)
	}
	if err.Details["timeout"] != "2s" {
		t.Errorf("AckTimeout should include timeout detail, got %v", err.Details["timeout"])
	}

	err = AlreadyRunning("mock-server", 42)
	if err.Details["pid"] != 42 {
		t.Error("AlreadyRunning should include pid detail")
	}

	if GetCode(nil) != "" {
		t.Error("GetCode(nil) should be empty")
	}
	if Is(fmt.Errorf("plain"), "") {
		t.Error("Is should not match the empty code")
	}
}
