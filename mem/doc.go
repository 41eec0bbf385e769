// Package mem tracks allocations inside the engine's linear memory.
//
// The engine only understands flat memory and raw pointers. Routing every
// allocation and every bulk copy through one Arena makes "did we leak a
// buffer" and "did we read out of bounds" answerable questions instead of
// silent corruption. Each Arena belongs to exactly one engine instance and
// is torn down with it via FreeAll.
package mem
