package engine

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/pdflume/pdflume"
	"github.com/pdflume/pdflume/errors"
	"github.com/pdflume/pdflume/handle"
	"github.com/pdflume/pdflume/mem"
)

// Config holds configuration for engine creation.
type Config struct {
	// Binary is the compiled engine module, ready to instantiate.
	// Acquisition and hash-pinning of the binary is external tooling.
	Binary []byte

	// MemoryLimitPages caps instance memory in 64KB pages.
	// 0 means the wazero default (65536 pages = 4GB).
	MemoryLimitPages uint32
}

// Engine is one instantiated PDF engine module. It is stateful and
// single-threaded: callers must not enter it concurrently.
type Engine struct {
	runtime wazero.Runtime
	module  api.Module
	arena   *mem.Arena
	exports exportSet
	closed  atomic.Bool
}

// exportSet holds the resolved entry points of the engine binary.
type exportSet struct {
	malloc           api.Function
	free             api.Function
	initLibrary      api.Function
	destroyLibrary   api.Function
	getLastError     api.Function
	loadMemDocument  api.Function
	closeDocument    api.Function
	getPageCount     api.Function
	loadPage         api.Function
	closePage        api.Function
	getPageWidthF    api.Function
	getPageHeightF   api.Function
	pageGetRotation  api.Function
	pageSetRotation  api.Function
	textLoadPage     api.Function
	textClosePage    api.Function
	textCountChars   api.Function
	textGetText      api.Function
	textGetCharBox   api.Function
	textGetFontSize  api.Function
	bitmapCreateEx   api.Function
	bitmapFillRect   api.Function
	bitmapDestroy    api.Function
	renderPageBitmap api.Function
	getMetaText      api.Function
	getPageLabel     api.Function
}

// New compiles and instantiates the engine binary: WASI first, then the
// module itself. Every required export is resolved up front so a truncated
// or mismatched binary fails here, not mid-operation.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if len(cfg.Binary) == 0 {
		return nil, errors.InvalidInput(errors.PhaseEngine, "empty engine binary")
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindNotInitialized, err, "instantiate WASI")
	}

	compiled, err := runtime.CompileModule(ctx, cfg.Binary)
	if err != nil {
		runtime.Close(ctx)
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindInvalidInput, err, "compile engine binary")
	}

	module, err := runtime.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName("pdf-engine").WithStartFunctions())
	if err != nil {
		runtime.Close(ctx)
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindNotInitialized, err, "instantiate engine module")
	}

	// WASI reactor builds export _initialize instead of _start.
	if init := module.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			runtime.Close(ctx)
			return nil, errors.Wrap(errors.PhaseEngine, errors.KindNotInitialized, err, "run _initialize")
		}
	}

	e := &Engine{runtime: runtime, module: module}
	if err := e.resolveExports(); err != nil {
		runtime.Close(ctx)
		return nil, err
	}

	memory := &wasmMemory{mem: module.Memory()}
	e.arena = mem.NewArena(memory, memory, &wasmAllocator{engine: e})

	Logger().Debug("engine instantiated",
		zap.Int("binary_bytes", len(cfg.Binary)),
		zap.Uint32("memory_limit_pages", cfg.MemoryLimitPages))

	return e, nil
}

func (e *Engine) resolveExports() error {
	var missing []string
	resolve := func(name string) api.Function {
		fn := e.module.ExportedFunction(name)
		if fn == nil {
			missing = append(missing, name)
		}
		return fn
	}

	e.exports = exportSet{
		malloc:           resolve("malloc"),
		free:             resolve("free"),
		initLibrary:      resolve("FPDF_InitLibrary"),
		destroyLibrary:   resolve("FPDF_DestroyLibrary"),
		getLastError:     resolve("FPDF_GetLastError"),
		loadMemDocument:  resolve("FPDF_LoadMemDocument"),
		closeDocument:    resolve("FPDF_CloseDocument"),
		getPageCount:     resolve("FPDF_GetPageCount"),
		loadPage:         resolve("FPDF_LoadPage"),
		closePage:        resolve("FPDF_ClosePage"),
		getPageWidthF:    resolve("FPDF_GetPageWidthF"),
		getPageHeightF:   resolve("FPDF_GetPageHeightF"),
		pageGetRotation:  resolve("FPDFPage_GetRotation"),
		pageSetRotation:  resolve("FPDFPage_SetRotation"),
		textLoadPage:     resolve("FPDFText_LoadPage"),
		textClosePage:    resolve("FPDFText_ClosePage"),
		textCountChars:   resolve("FPDFText_CountChars"),
		textGetText:      resolve("FPDFText_GetText"),
		textGetCharBox:   resolve("FPDFText_GetCharBox"),
		textGetFontSize:  resolve("FPDFText_GetFontSize"),
		bitmapCreateEx:   resolve("FPDFBitmap_CreateEx"),
		bitmapFillRect:   resolve("FPDFBitmap_FillRect"),
		bitmapDestroy:    resolve("FPDFBitmap_Destroy"),
		renderPageBitmap: resolve("FPDF_RenderPageBitmap"),
		getMetaText:      resolve("FPDF_GetMetaText"),
		getPageLabel:     resolve("FPDF_GetPageLabel"),
	}

	if len(missing) > 0 {
		return errors.NotFound(errors.PhaseEngine, "engine exports", strings.Join(missing, ", "))
	}
	return nil
}

// Arena returns the tracked allocator over this instance's linear memory.
func (e *Engine) Arena() *mem.Arena {
	return e.arena
}

// Close frees all tracked allocations and tears down the wazero runtime.
// The caller must have destroyed the engine library first.
func (e *Engine) Close(ctx context.Context) error {
	if e.closed.Load() {
		return nil
	}
	// Release tracked allocations while calls are still allowed, then latch.
	e.arena.FreeAll()
	e.closed.Store(true)
	return e.runtime.Close(ctx)
}

func (e *Engine) call(ctx context.Context, fn api.Function, name string, params ...uint64) ([]uint64, error) {
	if e.closed.Load() {
		return nil, errors.ResourceDisposed("engine")
	}
	results, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindEngineFault, err, "call "+name)
	}
	return results, nil
}

// Exports interface implementation. Raw values in, typed handles out; a
// zero handle from the engine surfaces as handle_invalid at the pdf layer.

func (e *Engine) InitLibrary(ctx context.Context) error {
	_, err := e.call(ctx, e.exports.initLibrary, "FPDF_InitLibrary")
	return err
}

func (e *Engine) DestroyLibrary(ctx context.Context) error {
	_, err := e.call(ctx, e.exports.destroyLibrary, "FPDF_DestroyLibrary")
	return err
}

func (e *Engine) LastError(ctx context.Context) (uint32, error) {
	res, err := e.call(ctx, e.exports.getLastError, "FPDF_GetLastError")
	if err != nil {
		return 0, err
	}
	return uint32(res[0]), nil
}

func (e *Engine) LoadMemDocument(ctx context.Context, dataPtr uint32, size int, passwordPtr uint32) (handle.Document, error) {
	res, err := e.call(ctx, e.exports.loadMemDocument, "FPDF_LoadMemDocument",
		uint64(dataPtr), api.EncodeI32(int32(size)), uint64(passwordPtr))
	if err != nil {
		return 0, err
	}
	return handle.Document(res[0]), nil
}

func (e *Engine) CloseDocument(ctx context.Context, doc handle.Document) error {
	_, err := e.call(ctx, e.exports.closeDocument, "FPDF_CloseDocument", uint64(doc))
	return err
}

func (e *Engine) PageCount(ctx context.Context, doc handle.Document) (int, error) {
	res, err := e.call(ctx, e.exports.getPageCount, "FPDF_GetPageCount", uint64(doc))
	if err != nil {
		return 0, err
	}
	return int(api.DecodeI32(res[0])), nil
}

func (e *Engine) LoadPage(ctx context.Context, doc handle.Document, index int) (handle.Page, error) {
	res, err := e.call(ctx, e.exports.loadPage, "FPDF_LoadPage",
		uint64(doc), api.EncodeI32(int32(index)))
	if err != nil {
		return 0, err
	}
	return handle.Page(res[0]), nil
}

func (e *Engine) ClosePage(ctx context.Context, page handle.Page) error {
	_, err := e.call(ctx, e.exports.closePage, "FPDF_ClosePage", uint64(page))
	return err
}

func (e *Engine) PageWidth(ctx context.Context, page handle.Page) (float32, error) {
	res, err := e.call(ctx, e.exports.getPageWidthF, "FPDF_GetPageWidthF", uint64(page))
	if err != nil {
		return 0, err
	}
	return api.DecodeF32(res[0]), nil
}

func (e *Engine) PageHeight(ctx context.Context, page handle.Page) (float32, error) {
	res, err := e.call(ctx, e.exports.getPageHeightF, "FPDF_GetPageHeightF", uint64(page))
	if err != nil {
		return 0, err
	}
	return api.DecodeF32(res[0]), nil
}

func (e *Engine) PageRotation(ctx context.Context, page handle.Page) (int, error) {
	res, err := e.call(ctx, e.exports.pageGetRotation, "FPDFPage_GetRotation", uint64(page))
	if err != nil {
		return 0, err
	}
	return int(api.DecodeI32(res[0])), nil
}

func (e *Engine) SetPageRotation(ctx context.Context, page handle.Page, rotation int) error {
	_, err := e.call(ctx, e.exports.pageSetRotation, "FPDFPage_SetRotation",
		uint64(page), api.EncodeI32(int32(rotation)))
	return err
}

func (e *Engine) TextLoadPage(ctx context.Context, page handle.Page) (handle.TextPage, error) {
	res, err := e.call(ctx, e.exports.textLoadPage, "FPDFText_LoadPage", uint64(page))
	if err != nil {
		return 0, err
	}
	return handle.TextPage(res[0]), nil
}

func (e *Engine) TextClosePage(ctx context.Context, tp handle.TextPage) error {
	_, err := e.call(ctx, e.exports.textClosePage, "FPDFText_ClosePage", uint64(tp))
	return err
}

func (e *Engine) TextCountChars(ctx context.Context, tp handle.TextPage) (int, error) {
	res, err := e.call(ctx, e.exports.textCountChars, "FPDFText_CountChars", uint64(tp))
	if err != nil {
		return 0, err
	}
	return int(api.DecodeI32(res[0])), nil
}

func (e *Engine) TextGetText(ctx context.Context, tp handle.TextPage, start, count int, bufPtr uint32) (int, error) {
	res, err := e.call(ctx, e.exports.textGetText, "FPDFText_GetText",
		uint64(tp), api.EncodeI32(int32(start)), api.EncodeI32(int32(count)), uint64(bufPtr))
	if err != nil {
		return 0, err
	}
	return int(api.DecodeI32(res[0])), nil
}

func (e *Engine) TextCharBox(ctx context.Context, tp handle.TextPage, index int, leftPtr, rightPtr, bottomPtr, topPtr uint32) error {
	res, err := e.call(ctx, e.exports.textGetCharBox, "FPDFText_GetCharBox",
		uint64(tp), api.EncodeI32(int32(index)),
		uint64(leftPtr), uint64(rightPtr), uint64(bottomPtr), uint64(topPtr))
	if err != nil {
		return err
	}
	if api.DecodeI32(res[0]) == 0 {
		return errors.HandleInvalid("get char box", 0)
	}
	return nil
}

func (e *Engine) TextFontSize(ctx context.Context, tp handle.TextPage, index int) (float64, error) {
	res, err := e.call(ctx, e.exports.textGetFontSize, "FPDFText_GetFontSize",
		uint64(tp), api.EncodeI32(int32(index)))
	if err != nil {
		return 0, err
	}
	return api.DecodeF64(res[0]), nil
}

func (e *Engine) CreateBitmap(ctx context.Context, width, height, format int, bufPtr uint32, stride int) (handle.Bitmap, error) {
	res, err := e.call(ctx, e.exports.bitmapCreateEx, "FPDFBitmap_CreateEx",
		api.EncodeI32(int32(width)), api.EncodeI32(int32(height)),
		api.EncodeI32(int32(format)), uint64(bufPtr), api.EncodeI32(int32(stride)))
	if err != nil {
		return 0, err
	}
	return handle.Bitmap(res[0]), nil
}

func (e *Engine) FillBitmapRect(ctx context.Context, bmp handle.Bitmap, left, top, width, height int, color uint32) error {
	_, err := e.call(ctx, e.exports.bitmapFillRect, "FPDFBitmap_FillRect",
		uint64(bmp), api.EncodeI32(int32(left)), api.EncodeI32(int32(top)),
		api.EncodeI32(int32(width)), api.EncodeI32(int32(height)), uint64(color))
	return err
}

func (e *Engine) DestroyBitmap(ctx context.Context, bmp handle.Bitmap) error {
	_, err := e.call(ctx, e.exports.bitmapDestroy, "FPDFBitmap_Destroy", uint64(bmp))
	return err
}

func (e *Engine) RenderPageBitmap(ctx context.Context, bmp handle.Bitmap, page handle.Page, startX, startY, sizeX, sizeY, rotation, flags int) error {
	_, err := e.call(ctx, e.exports.renderPageBitmap, "FPDF_RenderPageBitmap",
		uint64(bmp), uint64(page),
		api.EncodeI32(int32(startX)), api.EncodeI32(int32(startY)),
		api.EncodeI32(int32(sizeX)), api.EncodeI32(int32(sizeY)),
		api.EncodeI32(int32(rotation)), api.EncodeI32(int32(flags)))
	return err
}

func (e *Engine) MetaText(ctx context.Context, doc handle.Document, tagPtr, bufPtr uint32, bufLen int) (int, error) {
	res, err := e.call(ctx, e.exports.getMetaText, "FPDF_GetMetaText",
		uint64(doc), uint64(tagPtr), uint64(bufPtr), api.EncodeI32(int32(bufLen)))
	if err != nil {
		return 0, err
	}
	return int(api.DecodeI32(res[0])), nil
}

func (e *Engine) PageLabel(ctx context.Context, doc handle.Document, index int, bufPtr uint32, bufLen int) (int, error) {
	res, err := e.call(ctx, e.exports.getPageLabel, "FPDF_GetPageLabel",
		uint64(doc), api.EncodeI32(int32(index)), uint64(bufPtr), api.EncodeI32(int32(bufLen)))
	if err != nil {
		return 0, err
	}
	return int(api.DecodeI32(res[0])), nil
}

var _ Exports = (*Engine)(nil)

// wasmMemory adapts wazero's api.Memory to the root pdflume interfaces.
// Reads copy out of the instance's memory: wazero returns views that alias
// linear memory and become stale across memory growth.
type wasmMemory struct {
	mem api.Memory
}

func (m *wasmMemory) Size() uint32 { return m.mem.Size() }

func (m *wasmMemory) Read(offset, length uint32) ([]byte, error) {
	view, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(offset, int64(length), m.mem.Size())
	}
	out := make([]byte, length)
	copy(out, view)
	return out, nil
}

func (m *wasmMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(offset, int64(len(data)), m.mem.Size())
	}
	return nil
}

func (m *wasmMemory) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, errors.OutOfBounds(offset, 1, m.mem.Size())
	}
	return v, nil
}

func (m *wasmMemory) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(offset, 2, m.mem.Size())
	}
	return v, nil
}

func (m *wasmMemory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(offset, 4, m.mem.Size())
	}
	return v, nil
}

func (m *wasmMemory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(offset, 8, m.mem.Size())
	}
	return v, nil
}

func (m *wasmMemory) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return errors.OutOfBounds(offset, 1, m.mem.Size())
	}
	return nil
}

func (m *wasmMemory) WriteU16(offset uint32, value uint16) error {
	if !m.mem.WriteUint16Le(offset, value) {
		return errors.OutOfBounds(offset, 2, m.mem.Size())
	}
	return nil
}

func (m *wasmMemory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(offset, 4, m.mem.Size())
	}
	return nil
}

func (m *wasmMemory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return errors.OutOfBounds(offset, 8, m.mem.Size())
	}
	return nil
}

var _ pdflume.Memory = (*wasmMemory)(nil)
var _ pdflume.MemorySizer = (*wasmMemory)(nil)

// wasmAllocator drives the engine's exported malloc/free pair.
type wasmAllocator struct {
	engine *Engine
}

func (a *wasmAllocator) Alloc(size uint32) (uint32, error) {
	res, err := a.engine.call(context.Background(), a.engine.exports.malloc, "malloc", uint64(size))
	if err != nil {
		return 0, err
	}
	return uint32(res[0]), nil
}

func (a *wasmAllocator) Free(ptr uint32) error {
	_, err := a.engine.call(context.Background(), a.engine.exports.free, "free", uint64(ptr))
	return err
}

var _ pdflume.Allocator = (*wasmAllocator)(nil)
