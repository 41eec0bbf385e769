// Package worker runs the engine in a background goroutine and exposes the
// pdf surface to other goroutines through the protocol layer.
//
// The Server owns a pdf.Library and serializes every request against it in
// arrival order, which keeps the single-threaded engine instance safe. The
// Client mirrors the pdf API with proxy Document and Page types addressed
// by opaque remote IDs; disposal of a proxy is a round trip that completes
// only after the server has released the underlying resource.
package worker
