package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound is returned when a session cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrRecordNotFound is returned by record stores when no identity record matches.
var ErrRecordNotFound = errors.New("record not found")

// Uniqueness violations reported by RecordStore.Insert.
var (
	ErrDuplicatePhone   = errors.New("phone already registered")
	ErrDuplicateEmail   = errors.New("email already registered")
	ErrDuplicateAddress = errors.New("address already registered")
)

// ErrUnsupported signals that the ledger client lacks an indexing method.
var ErrUnsupported = errors.New("ledger method not supported")

// ErrProposalExpired is returned when a vote reaches a proposal past its deadline.
var ErrProposalExpired = errors.New("proposal expired")

// ErrNotRegistered is returned when an operation needs a primary address the identity lacks.
var ErrNotRegistered = errors.New("identity has no registered address")

// ValidationError reports rejected user input. The conversation stays in place.
type ValidationError struct {
	Field   string
	Invalid []string
}

func (e *ValidationError) Error() string {
	if len(e.Invalid) == 0 {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, strings.Join(e.Invalid, ", "))
}

// WriteError wraps a failed ledger or record-store write.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
