// Package errors provides the structured error types shared by every layer
// of the library.
//
// Errors carry a Phase (which subsystem failed), a Kind (what class of
// failure) and optional detail, cause and resource name. Matching is done
// on Phase+Kind via errors.Is, so callers can test for a category without
// string comparison:
//
//	if errors.IsKind(err, errors.KindResourceDisposed) {
//	    // resource was already disposed
//	}
//
// Errors that crossed the background-context boundary keep their original
// Kind and set Remote, so callers cannot tell which mode produced an error
// except via that explicit marker.
package errors
