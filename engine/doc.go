// Package engine hosts the PDF engine binary inside a wazero runtime and
// exposes its fixed entry-point surface as typed Go calls.
//
// The engine binary is a core WebAssembly module with a C ABI export
// surface: a malloc/free pair plus the FPDF_* document, page, text and
// bitmap entry points. Engine compiles and instantiates the binary (WASI
// first, then the module), adapts its linear memory and allocator to the
// root pdflume interfaces and resolves every required export up front, so a
// missing entry point fails at construction rather than mid-operation.
//
// An Engine instance is single-threaded and stateful: it must never be
// entered concurrently by two logical operations. Callers serialize access
// themselves or drive the instance through the worker package, which does
// it for them.
//
// The Exports interface is the seam between this package and the resource
// layer: the pdf package is written against Exports, not against wazero, so
// tests substitute a fake engine (see enginetest) without a binary.
package engine
