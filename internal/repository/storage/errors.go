package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrStorage matches every *Error.
	ErrStorage = errors.New("storage query failed")
	// ErrTimeout matches an *Error caused by a deadline.
	ErrTimeout = errors.New("storage query timed out")
	// ErrConnection matches every *ConnectionError.
	ErrConnection = errors.New("storage connection failed")
)

// Error is a query time failure of a backend.
type Error struct {
	Backend string
	Op      string
	Key     Key
	Err     error
	timeout bool
}

func (e *Error) Error() string {
	kind := "failed"
	if e.timeout {
		kind = "timed out"
	}
	return fmt.Sprintf("%s %s %q %s: %v", e.Backend, e.Op, e.Key, kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == ErrStorage || (target == ErrTimeout && e.timeout)
}

func (e *Error) Timeout() bool { return e.timeout }

// ConnectionError is returned while opening a backend or resolving a table.
// The service must not start when it sees one.
type ConnectionError struct {
	Backend string
	Target  string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: cannot connect to %s: %v", e.Backend, e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// NewError wraps a failed backend call. Deadline and network timeouts are
// reported through ErrTimeout.
func NewError(backend, op string, key Key, err error) *Error {
	return newError(backend, op, key, err, nil)
}

// newError wraps err, classifying deadlines. extra lets a backend flag its
// own timeout errors.
func newError(backend, op string, key Key, err error, extra func(error) bool) *Error {
	return &Error{
		Backend: backend,
		Op:      op,
		Key:     key,
		Err:     err,
		timeout: isTimeout(err) || (extra != nil && extra(err)),
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
