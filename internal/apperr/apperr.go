// Package apperr classifies pipeline failures and maps them to process exit codes.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the failure category
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindDataSource
	KindValidation
	KindModel
	KindPersistence
	KindEmpty
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindDataSource:
		return "data_source"
	case KindValidation:
		return "validation"
	case KindModel:
		return "model"
	case KindPersistence:
		return "persistence"
	case KindEmpty:
		return "empty_output"
	}
	return "unknown"
}

// Error is a categorized error raised by operation Op
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with a kind; a nil err yields nil
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Configuration(op string, err error) error { return New(KindConfiguration, op, err) }
func DataSource(op string, err error) error    { return New(KindDataSource, op, err) }
func Validation(op string, err error) error    { return New(KindValidation, op, err) }
func Model(op string, err error) error         { return New(KindModel, op, err) }
func Persistence(op string, err error) error   { return New(KindPersistence, op, err) }

// Empty reports a stage that produced no rows
func Empty(op, what string) error {
	return New(KindEmpty, op, fmt.Errorf("no %s produced", what))
}

// KindOf returns the outermost categorized kind in the chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Fatal reports whether the error category halts the pipeline
func Fatal(err error) bool {
	switch KindOf(err) {
	case KindModel:
		return false
	}
	return err != nil
}

// ExitCode maps an error to the CLI exit status
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindValidation:
		return 2
	case KindDataSource:
		return 3
	case KindEmpty:
		return 4
	}
	return 1
}
