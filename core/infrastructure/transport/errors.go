package transport

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAuthentication matches any *AuthenticationError
	ErrAuthentication = errors.New("authentication failed")
	// ErrTimeout matches any *TimeoutError
	ErrTimeout = errors.New("timed out waiting for device")
	// ErrCommand matches any *CommandError
	ErrCommand = errors.New("command failed")
	// ErrNotConnected is returned when a command is issued on a session that is not ready
	ErrNotConnected = errors.New("session is not connected")
)

// AuthenticationError reports that the device rejected the credentials.
// Output holds everything the device sent during the login exchange.
type AuthenticationError struct {
	Host   string
	Output string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("login to %s failed: %s", e.Host, e.Output)
}

func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthentication
}

// TimeoutError reports that the device went idle before the exchange completed
type TimeoutError struct {
	Host    string
	Waiting string
	Timeout time.Duration
	Output  string
	Cause   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s waiting for %q from %s, output: %s", e.Timeout, e.Waiting, e.Host, e.Output)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// CommandError reports that the device did not understand a command
type CommandError struct {
	Host     string
	Command  string
	Response string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q failed on %s: %s", e.Command, e.Host, e.Response)
}

func (e *CommandError) Is(target error) bool {
	return target == ErrCommand
}
