// Package resource implements the scoped resource lifecycle shared by every
// object that owns native engine state.
//
// A scoped resource moves through exactly one transition: active to
// disposed. Disposal is idempotent, exception-safe (the state transition
// happens before the release routine runs, so a failed release can never be
// retried into a double free) and cascading (a parent disposes the children
// it created, in reverse adoption order, before releasing its own handle).
//
// Base is the synchronous variant; AsyncBase is the same state machine for
// resources whose release requires a message round trip to a background
// context. Concurrent AsyncBase disposals await the single in-flight
// operation instead of starting a second one.
//
// A leak sentinel can be attached at construction via Track/TrackAsync: if
// the resource becomes unreachable without ever being disposed, a warning is
// logged. The sentinel is a development-build safety net with
// non-deterministic timing, never a substitute for deterministic disposal.
package resource
