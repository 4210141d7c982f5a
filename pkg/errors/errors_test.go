package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := New(CodeLLMError, "backend call failed", cause)

	msg := err.Error()
	if !strings.Contains(msg, "LLM_ERROR") {
		t.Errorf("expected code in message, got %q", msg)
	}
	if !strings.Contains(msg, "connection refused") {
		t.Errorf("expected cause in message, got %q", msg)
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find cause")
	}
}

func TestWithContextChaining(t *testing.T) {
	err := New(CodeQueueDropped, "interaction evicted", nil).
		WithContext("interaction_type", "plant").
		WithRecoverable(true)

	if err.Context["interaction_type"] != "plant" {
		t.Error("context value lost")
	}
	if !err.Recoverable {
		t.Error("expected recoverable")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(CodeDebounced, "dropped", nil)); got != CodeDebounced {
		t.Errorf("CodeOf typed = %s", got)
	}
	if got := CodeOf(stderrors.New("plain")); got != CodeInternal {
		t.Errorf("CodeOf untyped = %s", got)
	}
	if got := CodeOf(nil); got != "" {
		t.Errorf("CodeOf nil = %s", got)
	}
}

func TestAsVerdantError(t *testing.T) {
	plain := stderrors.New("boom")
	wrapped := AsVerdantError(plain)
	if wrapped.Code != CodeInternal {
		t.Errorf("expected internal code, got %s", wrapped.Code)
	}
	typed := New(CodeTimeout, "slow", nil)
	if AsVerdantError(typed) != typed {
		t.Error("expected identity for typed errors")
	}
}
