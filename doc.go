// Package pdflume is a typed façade over a PDF engine compiled to
// WebAssembly and executed in-process with wazero.
//
// The engine itself only understands flat linear memory, raw pointers and
// numeric object handles. This library supplies the machinery that makes any
// wrapped engine operation safe to call, safe to forget and safe to run off
// the caller's goroutine:
//
//	pdflume/            Root package with the Memory and Allocator interfaces
//	├── errors/         Structured error types shared by every layer
//	├── handle/         Opaque typed handles for engine object categories
//	├── mem/            Tracked allocator over the engine's linear memory
//	├── resource/       Scoped resource lifecycle (sync and async)
//	├── engine/         wazero integration and the fixed export surface
//	├── pdf/            In-process Library/Document/Page/Bitmap resources
//	├── protocol/       Cross-context request/response message vocabulary
//	└── worker/         Background-context server and client-side proxies
//
// # Quick Start
//
// Open a document against an in-process engine:
//
//	lib, err := pdf.Open(ctx, engine.Config{Binary: wasmBytes})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer lib.Dispose()
//
//	doc, err := lib.OpenDocument(ctx, pdfBytes, "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer doc.Dispose()
//
//	page, _ := doc.Page(ctx, 0)
//	bmp, _ := page.Render(ctx, pdf.RenderOptions{Scale: 2})
//	fmt.Println(bmp.Width, bmp.Height)
//
// Or drive the same API from a background context:
//
//	client, err := worker.Start(ctx, worker.Config{Binary: wasmBytes})
//	defer client.Close(ctx)
//	doc, err := client.OpenDocument(ctx, pdfBytes, "")
//
// # Concurrency
//
// An engine instance is single-threaded and stateful: it must never be
// entered by two operations at once. In-process resources are therefore
// synchronous and non-reentrant. The worker package moves an engine instance
// onto its own goroutine and serializes requests in arrival order; callers
// may keep any number of requests in flight, each matched to its response by
// correlation id.
//
// # Memory Model
//
// WASM linear memory can only grow, never shrink. Freed allocations remain
// part of the instance but are available for reuse. The mem.Arena tracks
// every live allocation so leaks are an answerable question rather than
// silent growth.
package pdflume
