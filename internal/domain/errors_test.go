package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationSentinelsMatchByValueOnly(t *testing.T) {
	if !errors.Is(ErrNotAuthenticated, ErrNotAuthenticated) {
		t.Fatalf("sentinel must match itself")
	}
	if !errors.Is(ErrSessionUnresolved, ErrSessionUnresolved) {
		t.Fatalf("sentinel must match itself")
	}

	// a generic validation failure is not an authentication failure
	generic := ValidationError{Reason: "guest id required"}
	if errors.Is(generic, ErrNotAuthenticated) {
		t.Fatalf("generic validation error must not match ErrNotAuthenticated")
	}
	if errors.Is(generic, ErrSessionUnresolved) {
		t.Fatalf("generic validation error must not match ErrSessionUnresolved")
	}
	if errors.Is(ErrNotAuthenticated, ErrSessionUnresolved) {
		t.Fatalf("distinct sentinels must not match each other")
	}

	// the type itself is matched with errors.As
	var validation ValidationError
	if !errors.As(error(generic), &validation) || validation.Reason != "guest id required" {
		t.Fatalf("errors.As must extract the ValidationError")
	}
	if errors.As(error(RemoteError{Op: "add"}), &validation) {
		t.Fatalf("errors.As must not match a non-validation error")
	}
}

func TestNotFoundSentinelMatchesTypedInstances(t *testing.T) {
	err := NotFoundError{Resource: "favorite"}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("typed NotFoundError must satisfy ErrNotFound")
	}

	wrapped := fmt.Errorf("lookup: %w", err)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("wrapped NotFoundError must satisfy ErrNotFound")
	}
}

func TestRemoteSentinelMatchesTypedInstances(t *testing.T) {
	err := RemoteError{Op: "add", Err: fmt.Errorf("boom")}
	if !errors.Is(err, ErrRemote) {
		t.Fatalf("typed RemoteError must satisfy ErrRemote")
	}
	if errors.Is(NotFoundError{}, ErrRemote) {
		t.Fatalf("NotFoundError must not satisfy ErrRemote")
	}
}
