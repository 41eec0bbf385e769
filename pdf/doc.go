// Package pdf provides the in-process resource surface over an engine
// instance: Library, Document, Page and Bitmap.
//
// Every object is a scoped resource: disposal is deterministic, idempotent
// and cascading (disposing a Library disposes the Documents it opened,
// disposing a Document disposes its live Pages, and so on down to the
// native handles and the linear-memory allocations backing them). Using a
// disposed resource fails fast with a resource_disposed error before any
// native call is attempted.
//
// All operations are synchronous calls straight into the engine instance
// and must not be issued concurrently against the same Library. The worker
// package provides the same surface driven from a background context.
package pdf
