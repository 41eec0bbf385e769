package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates which subsystem the error occurred in
type Phase string

const (
	PhaseMemory   Phase = "memory"   // linear memory allocator
	PhaseResource Phase = "resource" // scoped resource lifecycle
	PhaseEngine   Phase = "engine"   // native engine boundary
	PhaseDocument Phase = "document" // document/page operations
	PhaseProtocol Phase = "protocol" // cross-context messaging
	PhaseWorker   Phase = "worker"   // background-context server
)

// Kind categorizes the error
type Kind string

const (
	KindAllocationFailed Kind = "allocation_failed"
	KindMisalignedAccess Kind = "misaligned_access"
	KindOutOfBounds      Kind = "out_of_bounds"
	KindResourceDisposed Kind = "resource_disposed"
	KindHandleInvalid    Kind = "handle_invalid"
	KindTimeout          Kind = "timeout"
	KindTransportClosed  Kind = "transport_closed"
	KindRemoteFailed     Kind = "remote_failed"
	KindEngineFault      Kind = "engine_fault"
	KindInvalidInput     Kind = "invalid_input"
	KindNotInitialized   Kind = "not_initialized"
	KindNotFound         Kind = "not_found"
)

// Error is the structured error type used throughout the library
type Error struct {
	Cause    error
	Phase    Phase
	Kind     Kind
	Resource string
	Detail   string
	Remote   bool
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Remote {
		b.WriteString(" (remote)")
	}

	if e.Resource != "" {
		b.WriteString(" on ")
		b.WriteString(e.Resource)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether err (or anything it wraps) is a structured error
// of the given kind, regardless of phase.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// AsError returns the structured error inside err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// Convenience constructors for common error patterns

// AllocationFailed reports that the native allocator could not satisfy a
// request, or that the requested size was invalid.
func AllocationFailed(size int64) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindAllocationFailed,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
	}
}

// MisalignedAccess reports a fixed-width read or write at a pointer not
// divisible by the word size.
func MisalignedAccess(ptr, align uint32) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindMisalignedAccess,
		Detail: fmt.Sprintf("pointer %#x not aligned to %d bytes", ptr, align),
	}
}

// OutOfBounds reports an access outside the current linear memory size.
func OutOfBounds(ptr uint32, length int64, memSize uint32) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("access of %d bytes at %#x exceeds memory size %d", length, ptr, memSize),
	}
}

// ResourceDisposed reports use of a resource after disposal.
func ResourceDisposed(resource string) *Error {
	return &Error{
		Phase:    PhaseResource,
		Kind:     KindResourceDisposed,
		Resource: resource,
		Detail:   "resource disposed",
	}
}

// HandleInvalid reports that a native call returned the null handle.
func HandleInvalid(what string, lastError uint32) *Error {
	e := &Error{
		Phase:  PhaseEngine,
		Kind:   KindHandleInvalid,
		Detail: what,
	}
	if lastError != 0 {
		e.Detail = fmt.Sprintf("%s (engine error code %d)", what, lastError)
	}
	return e
}

// Timeout reports that no terminal response arrived within the configured
// window for the given correlation id.
func Timeout(op string, correlationID uint64) *Error {
	return &Error{
		Phase:  PhaseProtocol,
		Kind:   KindTimeout,
		Detail: fmt.Sprintf("%s: no response for request %d", op, correlationID),
	}
}

// TransportClosed reports that the channel to the background context failed
// while requests were pending.
func TransportClosed(cause error) *Error {
	return &Error{
		Phase:  PhaseProtocol,
		Kind:   KindTransportClosed,
		Detail: "transport closed",
		Cause:  cause,
	}
}

// RemoteFailed reconstructs a terminal error response from the background
// context. If the remote kind belongs to the local hierarchy it is kept, so
// callers see the same kind either mode would produce; Remote marks origin.
func RemoteFailed(kind Kind, message, context string) *Error {
	if kind == "" {
		kind = KindRemoteFailed
	}
	detail := message
	if context != "" {
		detail = fmt.Sprintf("%s (%s)", message, context)
	}
	return &Error{
		Phase:  PhaseWorker,
		Kind:   kind,
		Detail: detail,
		Remote: true,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotInitialized creates a not-initialized error for a missing collaborator
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Wrap wraps an existing error with phase and kind context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
