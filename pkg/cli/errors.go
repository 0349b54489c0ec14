package cli

import (
	"errors"
	"fmt"

	"policykeeper-hq/policykeeper/pkg/config"
	"policykeeper-hq/policykeeper/pkg/policy"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitError    = 1
	ExitInvalid  = 2
	ExitNotFound = 3
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps err to the process exit status: rejected input and bad
// configuration exit 2, unknown policies exit 3, anything else exits 1.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var verr *policy.ValidationError
	var cerr *ConfigError
	var cfgErr config.ValidationError
	switch {
	case errors.As(err, &verr), errors.As(err, &cerr), errors.As(err, &cfgErr):
		return ExitInvalid
	case errors.Is(err, policy.ErrNotFound):
		return ExitNotFound
	default:
		return ExitError
	}
}
