package gpameta

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorError(t *testing.T) {
	err := NewError(ErrorTypeNotFound, "entity not mapped")

	expected := "not_found: entity not mapped"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}
}

func TestErrorWithCause(t *testing.T) {
	cause := errors.New("unsupported data type")
	err := NewErrorWithCause(ErrorTypeMapping, "failed to parse Invoice", cause)

	if err.Cause != cause {
		t.Error("Expected cause to be set")
	}
	if err.Unwrap() != cause {
		t.Error("Expected unwrapped error to match original cause")
	}

	expectedMsg := "mapping: failed to parse Invoice (caused by: unsupported data type)"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, err.Error())
	}
}

func TestErrorIs(t *testing.T) {
	err1 := NewError(ErrorTypeNotYetImplemented, "one_to_many")
	err2 := NewError(ErrorTypeInvalidArgument, "bad graph")

	if !errors.Is(err1, ErrNotYetImplemented) {
		t.Error("Expected errors with same type to match")
	}
	if errors.Is(err2, ErrNotYetImplemented) {
		t.Error("Expected errors with different types to not match")
	}
}

func TestNewErrorWithCode(t *testing.T) {
	err := NewErrorWithCode(ErrorTypeValidation, "validation failed", "MISSING_TABLE")

	if err.Type != ErrorTypeValidation {
		t.Errorf("Expected error type validation, got %s", err.Type)
	}
	if err.Code != "MISSING_TABLE" {
		t.Errorf("Expected code 'MISSING_TABLE', got '%s'", err.Code)
	}
	if err.Cause != nil {
		t.Error("Expected no cause")
	}
}

func TestNewErrorf(t *testing.T) {
	err := NewErrorf(ErrorTypeNotFound, "entity %s is not mapped", "Ledger")
	if err.Message != "entity Ledger is not mapped" {
		t.Errorf("Unexpected message '%s'", err.Message)
	}
}

func TestIsErrorType(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"not yet implemented", NewError(ErrorTypeNotYetImplemented, "x"), IsNotYetImplemented, true},
		{"invalid argument", NewError(ErrorTypeInvalidArgument, "x"), IsInvalidArgument, true},
		{"mapping", NewError(ErrorTypeMapping, "x"), IsMapping, true},
		{"not found", NewError(ErrorTypeNotFound, "x"), IsNotFound, true},
		{"other type", NewError(ErrorTypeMapping, "x"), IsNotFound, false},
		{"plain error", errors.New("x"), IsMapping, false},
		{"nil", nil, IsMapping, false},
		{"wrapped", fmt.Errorf("bind: %w", NewError(ErrorTypeNotYetImplemented, "x")), IsNotYetImplemented, true},
	}

	for _, tt := range tests {
		if got := tt.check(tt.err); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestChainedErrors(t *testing.T) {
	rootCause := errors.New("root cause")
	middleError := NewErrorWithCause(ErrorTypeConnection, "connection failed", rootCause)
	topError := NewErrorWithCause(ErrorTypeInternal, "validation aborted", middleError)

	if !errors.Is(topError, middleError) {
		t.Error("Expected errors.Is to find middle error in chain")
	}
	if !errors.Is(topError, rootCause) {
		t.Error("Expected errors.Is to find root cause in chain")
	}
	if !IsErrorType(topError, ErrorTypeInternal) {
		t.Error("Expected the outermost error type to be reported")
	}
}
