package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseResource,
				Kind:     KindResourceDisposed,
				Resource: "document",
				Detail:   "resource disposed",
			},
			contains: []string{"[resource]", "resource_disposed", "document", "resource disposed"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseMemory,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[memory]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseProtocol,
				Kind:   KindTransportClosed,
				Detail: "transport closed",
				Cause:  errors.New("pipe broken"),
			},
			contains: []string{"[protocol]", "transport_closed", "caused by", "pipe broken"},
		},
		{
			name: "remote marker",
			err: &Error{
				Phase:  PhaseWorker,
				Kind:   KindHandleInvalid,
				Remote: true,
				Detail: "load page 3",
			},
			contains: []string{"[worker]", "handle_invalid", "(remote)", "load page 3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	err := ResourceDisposed("page")

	if !errors.Is(err, &Error{Phase: PhaseResource, Kind: KindResourceDisposed}) {
		t.Error("expected match on same phase and kind")
	}
	if errors.Is(err, &Error{Phase: PhaseResource, Kind: KindHandleInvalid}) {
		t.Error("unexpected match on different kind")
	}
	if errors.Is(err, errors.New("resource disposed")) {
		t.Error("unexpected match on plain error")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := TransportClosed(cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause through Unwrap")
	}
}

func TestIsKind(t *testing.T) {
	err := MisalignedAccess(0x1003, 4)
	if !IsKind(err, KindMisalignedAccess) {
		t.Error("IsKind failed on direct error")
	}

	wrapped := fmt.Errorf("read failed: %w", err)
	if !IsKind(wrapped, KindMisalignedAccess) {
		t.Error("IsKind failed on wrapped error")
	}

	if IsKind(errors.New("misaligned"), KindMisalignedAccess) {
		t.Error("IsKind matched a plain error")
	}
}

func TestRemoteFailed_PreservesKind(t *testing.T) {
	err := RemoteFailed(KindHandleInvalid, "load page 9", "page index out of range")

	if err.Kind != KindHandleInvalid {
		t.Errorf("kind = %q, want %q", err.Kind, KindHandleInvalid)
	}
	if !err.Remote {
		t.Error("remote marker not set")
	}
	if !strings.Contains(err.Error(), "page index out of range") {
		t.Errorf("context missing from message: %q", err.Error())
	}
}

func TestRemoteFailed_UnknownKind(t *testing.T) {
	err := RemoteFailed("", "engine panicked", "")
	if err.Kind != KindRemoteFailed {
		t.Errorf("kind = %q, want %q", err.Kind, KindRemoteFailed)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err   *Error
		phase Phase
		kind  Kind
	}{
		{AllocationFailed(4096), PhaseMemory, KindAllocationFailed},
		{MisalignedAccess(5, 4), PhaseMemory, KindMisalignedAccess},
		{OutOfBounds(10, 1 << 40, 65536), PhaseMemory, KindOutOfBounds},
		{ResourceDisposed("bitmap"), PhaseResource, KindResourceDisposed},
		{HandleInvalid("open document", 3), PhaseEngine, KindHandleInvalid},
		{Timeout("render-page", 17), PhaseProtocol, KindTimeout},
		{TransportClosed(nil), PhaseProtocol, KindTransportClosed},
		{NotInitialized(PhaseWorker, "engine"), PhaseWorker, KindNotInitialized},
		{NotFound(PhaseWorker, "document", "doc-9"), PhaseWorker, KindNotFound},
		{InvalidInput(PhaseDocument, "negative page index"), PhaseDocument, KindInvalidInput},
	}

	for _, tt := range tests {
		if tt.err.Phase != tt.phase {
			t.Errorf("%v: phase = %q, want %q", tt.err, tt.err.Phase, tt.phase)
		}
		if tt.err.Kind != tt.kind {
			t.Errorf("%v: kind = %q, want %q", tt.err, tt.err.Kind, tt.kind)
		}
	}
}
