package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
	"github.com/abdul-hamid-achik/hitenv/packages/output"
)

// Exit codes for hitenv CLI
const (
	// ExitSuccess indicates the command completed
	ExitSuccess = 0

	// ExitRejected indicates the operation was rejected, e.g. an index out
	// of range or a length mismatch
	ExitRejected = 1

	// ExitUnresolved indicates resolve --strict found unknown placeholders
	ExitUnresolved = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitStoreError indicates the store could not be opened or written
	ExitStoreError = 4

	// ExitNotFound indicates a referenced environment or variable is missing
	ExitNotFound = 5

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

type exitError struct {
	code   int
	err    error
	silent bool // the command already reported the outcome
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configError(err error) error { return &exitError{code: ExitConfigError, err: err} }
func storeError(err error) error  { return &exitError{code: ExitStoreError, err: err} }
func usageError(format string, args ...any) error {
	return &exitError{code: ExitUsageError, err: fmt.Errorf(format, args...)}
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	switch env.CodeOf(err) {
	case env.CodeUnknown:
		return ExitStoreError
	case env.CodeNotFound, env.CodeGroupNotFound:
		return ExitNotFound
	case env.CodeInvalidArgument:
		return ExitUsageError
	}
	return ExitRejected
}

func reportError(err error) {
	var ee *exitError
	if errors.As(err, &ee) && ee.silent {
		return
	}
	if current != nil && current.out != nil {
		if _, ok := current.out.(*output.JSONFormatter); ok {
			current.out.FormatError(err)
			return
		}
	}
	f, ferr := output.New(outputFlag, os.Stderr, noColorFlag, false)
	if ferr != nil {
		f = output.NewConsoleFormatter(output.WithWriter(os.Stderr), output.WithNoColor(noColorFlag))
	}
	f.FormatError(err)
}
