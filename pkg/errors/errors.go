package errors

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// Cancellation and validation outcomes of transfer operations.
	ErrCancelled      = eris.New("operation cancelled")
	ErrTransferFailed = eris.New("transfer failed")

	// Local usage errors raised by engine sessions.
	ErrAborted        = eris.New("operation aborted")
	ErrNothingToAbort = eris.New("no operation in progress to abort")
	ErrSessionBusy    = eris.New("session already has an operation in progress")
	ErrSessionClosed  = eris.New("session is closed")

	// Connection descriptor and session opening.
	ErrMalformedDescriptor    = eris.New("malformed connection descriptor")
	ErrInvalidDescriptorValue = eris.New("invalid connection descriptor value")
	ErrUnsupportedProtocol    = eris.New("unsupported protocol")
	ErrInvalidOptions         = eris.New("invalid connection options")
	ErrHostKeyUnverifiable    = eris.New("no way to verify the remote host key")
	ErrHostKeyMismatch        = eris.New("remote host key does not match the configured fingerprint")

	// Provisioning of the external client executable.
	ErrExecutableNotFound = eris.New("client executable not found")
	ErrExecutableVersion  = eris.New("client executable version mismatch")
	ErrNotProvisioned     = eris.New("client executable has not been provisioned")

	// Application configuration.
	ErrInvalidConfig = eris.New("invalid configuration")

	NotImplementedError = eris.New("function not implemented")
)

// SessionError is returned by engine sessions. Local is true when the failure
// originated on this side (abort, misuse of the session) rather than from the
// remote endpoint or the transport.
type SessionError struct {
	Op    string
	Path  string
	Local bool
	Err   error
}

func (e *SessionError) Error() string {
	kind := "protocol"
	if e.Local {
		kind = "local"
	}
	if e.Path == "" {
		return fmt.Sprintf("%s error during %s: %v", kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s error during %s %s: %v", kind, e.Op, e.Path, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// NewProtocolError wraps a failure reported by the remote side or the transport.
func NewProtocolError(op, path string, err error) error {
	return &SessionError{Op: op, Path: path, Err: err}
}

// NewLocalError wraps a failure raised by the session itself.
func NewLocalError(op, path string, err error) error {
	return &SessionError{Op: op, Path: path, Local: true, Err: err}
}

// IsSessionError reports whether err came out of an engine session.
func IsSessionError(err error) bool {
	var se *SessionError
	return errors.As(err, &se)
}

// IsProtocolError reports whether err is a remote/transport failure.
func IsProtocolError(err error) bool {
	var se *SessionError
	return errors.As(err, &se) && !se.Local
}

// IsLocalError reports whether err is a local usage failure of a session.
func IsLocalError(err error) bool {
	var se *SessionError
	return errors.As(err, &se) && se.Local
}

func NewMalformedDescriptorError(token string) error {
	return eris.Wrapf(ErrMalformedDescriptor, "cannot parse token %q", token)
}

func NewInvalidDescriptorValueError(key, value string) error {
	return eris.Wrapf(ErrInvalidDescriptorValue, "%s=%q", key, value)
}
