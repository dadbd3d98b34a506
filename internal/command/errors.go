package command

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a binding that names a command with no spec.
	ErrConfiguration = errors.New("command: configuration error")

	// ErrUnknownCommand is returned for a command name with no spec.
	ErrUnknownCommand = errors.New("command: unknown command")

	// ErrRefinementUnavailable is returned by refiners that cannot answer.
	// The resolver recovers from it locally.
	ErrRefinementUnavailable = errors.New("command: refinement unavailable")
)

// ConfigurationError reports a binding whose command name is not in the
// spec table. It matches ErrConfiguration with errors.Is.
type ConfigurationError struct {
	Key     string
	Command string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("command: binding %q references unknown command %q", e.Key, e.Command)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
