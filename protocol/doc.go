// Package protocol defines the request/response messaging used between an
// embedding context and a background engine worker.
//
// Every request carries a correlation ID drawn from a monotonically
// increasing counter; IDs are never reused within a connection. A request
// is answered by exactly one terminal response (success or error),
// optionally preceded by progress responses carrying the same ID. Handles
// never cross the boundary: remote resources are addressed by opaque
// string IDs minted by the server, and pixel buffers are transferred as
// copies so neither side aliases the other's memory.
package protocol
