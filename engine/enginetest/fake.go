// Package enginetest provides an in-memory stand-in for the engine binary.
//
// The Fake implements engine.Exports over a flat byte-slice memory with a
// bump allocator, so resource, protocol and worker behavior can be tested
// without instantiating a WebAssembly module. Documents are synthetic: a
// JSON page list produced by DocumentBytes stands in for a real PDF.
package enginetest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pdflume/pdflume/engine"
	"github.com/pdflume/pdflume/errors"
	"github.com/pdflume/pdflume/handle"
	"github.com/pdflume/pdflume/mem"
)

// Engine error codes mirrored from the native surface.
const (
	ErrSuccess  = 0
	ErrUnknown  = 1
	ErrFormat   = 3
	ErrPassword = 4
	ErrPage     = 6
)

// PageSpec describes one synthetic page.
type PageSpec struct {
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
	Text   string  `json:"text"`
}

// DocumentSpec describes a synthetic document.
type DocumentSpec struct {
	Password string            `json:"password,omitempty"`
	Meta     map[string]string `json:"meta,omitempty"`
	Labels   []string          `json:"labels,omitempty"`
	Pages    []PageSpec        `json:"pages"`
}

// DocumentBytes serializes a synthetic document for LoadMemDocument.
func DocumentBytes(spec DocumentSpec) []byte {
	data, err := json.Marshal(spec)
	if err != nil {
		panic(fmt.Sprintf("enginetest: marshal document spec: %v", err))
	}
	return data
}

// SimpleDocument builds an n-page document with uniform page size and
// per-page placeholder text.
func SimpleDocument(pages int, width, height float32) []byte {
	spec := DocumentSpec{}
	for i := 0; i < pages; i++ {
		spec.Pages = append(spec.Pages, PageSpec{
			Width:  width,
			Height: height,
			Text:   fmt.Sprintf("page %d", i),
		})
	}
	return DocumentBytes(spec)
}

type fakeDoc struct {
	spec      DocumentSpec
	openPages int
}

type fakePage struct {
	doc   *fakeDoc
	spec  PageSpec
	index int
}

type fakeBitmap struct {
	bufPtr        uint32
	width, height int
	stride        int
}

// Fake implements engine.Exports without a WebAssembly instance.
// Like the real engine it is single-threaded; callers serialize access.
type Fake struct {
	memory    *Memory
	arena     *mem.Arena
	docs      map[handle.Document]*fakeDoc
	pages     map[handle.Page]*fakePage
	textPages map[handle.TextPage]*fakePage
	bitmaps   map[handle.Bitmap]*fakeBitmap
	calls     []string
	nextID    uint32
	lastError uint32
	destroyed bool
}

// New creates a fake engine with the given linear memory size.
func New(memorySize uint32) *Fake {
	f := &Fake{
		memory:    NewMemory(memorySize),
		docs:      make(map[handle.Document]*fakeDoc),
		pages:     make(map[handle.Page]*fakePage),
		textPages: make(map[handle.TextPage]*fakePage),
		bitmaps:   make(map[handle.Bitmap]*fakeBitmap),
		nextID:    1,
	}
	f.arena = mem.NewArena(f.memory, f.memory, f.memory)
	return f
}

// Arena returns the tracked allocator over the fake's memory.
func (f *Fake) Arena() *mem.Arena { return f.arena }

// Calls returns the entry-point names invoked so far, in order.
func (f *Fake) Calls() []string { return f.calls }

// CallCount returns how many times the named entry point was invoked.
func (f *Fake) CallCount(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

// OpenObjects returns the number of live documents, pages and text pages,
// for leak assertions.
func (f *Fake) OpenObjects() int {
	return len(f.docs) + len(f.pages) + len(f.textPages) + len(f.bitmaps)
}

// Destroyed reports whether DestroyLibrary has run.
func (f *Fake) Destroyed() bool { return f.destroyed }

func (f *Fake) record(name string) { f.calls = append(f.calls, name) }

func (f *Fake) newID() uint32 {
	id := f.nextID
	f.nextID++
	return id
}

func (f *Fake) InitLibrary(ctx context.Context) error {
	f.record("InitLibrary")
	f.destroyed = false
	return nil
}

func (f *Fake) DestroyLibrary(ctx context.Context) error {
	f.record("DestroyLibrary")
	f.destroyed = true
	return nil
}

func (f *Fake) LastError(ctx context.Context) (uint32, error) {
	return f.lastError, nil
}

func (f *Fake) LoadMemDocument(ctx context.Context, dataPtr uint32, size int, passwordPtr uint32) (handle.Document, error) {
	f.record("LoadMemDocument")

	data, err := f.memory.Read(dataPtr, uint32(size))
	if err != nil {
		return 0, err
	}

	var spec DocumentSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		f.lastError = ErrFormat
		return 0, nil
	}

	if spec.Password != "" {
		supplied := f.readCString(passwordPtr)
		if supplied != spec.Password {
			f.lastError = ErrPassword
			return 0, nil
		}
	}

	doc := &fakeDoc{spec: spec}
	h := handle.Document(f.newID())
	f.docs[h] = doc
	f.lastError = ErrSuccess
	return h, nil
}

func (f *Fake) CloseDocument(ctx context.Context, doc handle.Document) error {
	f.record("CloseDocument")
	delete(f.docs, doc)
	return nil
}

func (f *Fake) PageCount(ctx context.Context, doc handle.Document) (int, error) {
	f.record("PageCount")
	d, ok := f.docs[doc]
	if !ok {
		return 0, nil
	}
	return len(d.spec.Pages), nil
}

func (f *Fake) LoadPage(ctx context.Context, doc handle.Document, index int) (handle.Page, error) {
	f.record("LoadPage")
	d, ok := f.docs[doc]
	if !ok || index < 0 || index >= len(d.spec.Pages) {
		f.lastError = ErrPage
		return 0, nil
	}
	page := &fakePage{doc: d, spec: d.spec.Pages[index], index: index}
	h := handle.Page(f.newID())
	f.pages[h] = page
	d.openPages++
	return h, nil
}

func (f *Fake) ClosePage(ctx context.Context, page handle.Page) error {
	f.record("ClosePage")
	if p, ok := f.pages[page]; ok {
		p.doc.openPages--
		delete(f.pages, page)
	}
	return nil
}

func (f *Fake) PageWidth(ctx context.Context, page handle.Page) (float32, error) {
	p, ok := f.pages[page]
	if !ok {
		return 0, nil
	}
	return p.spec.Width, nil
}

func (f *Fake) PageHeight(ctx context.Context, page handle.Page) (float32, error) {
	p, ok := f.pages[page]
	if !ok {
		return 0, nil
	}
	return p.spec.Height, nil
}

func (f *Fake) PageRotation(ctx context.Context, page handle.Page) (int, error) {
	return 0, nil
}

func (f *Fake) SetPageRotation(ctx context.Context, page handle.Page, rotation int) error {
	return nil
}

func (f *Fake) TextLoadPage(ctx context.Context, page handle.Page) (handle.TextPage, error) {
	f.record("TextLoadPage")
	p, ok := f.pages[page]
	if !ok {
		return 0, nil
	}
	h := handle.TextPage(f.newID())
	f.textPages[h] = p
	return h, nil
}

func (f *Fake) TextClosePage(ctx context.Context, tp handle.TextPage) error {
	f.record("TextClosePage")
	delete(f.textPages, tp)
	return nil
}

func (f *Fake) TextCountChars(ctx context.Context, tp handle.TextPage) (int, error) {
	p, ok := f.textPages[tp]
	if !ok {
		return 0, nil
	}
	return len([]rune(p.spec.Text)), nil
}

func (f *Fake) TextGetText(ctx context.Context, tp handle.TextPage, start, count int, bufPtr uint32) (int, error) {
	f.record("TextGetText")
	p, ok := f.textPages[tp]
	if !ok {
		return 0, nil
	}

	runes := []rune(p.spec.Text)
	if start < 0 || start > len(runes) {
		return 0, nil
	}
	end := start + count
	if end > len(runes) {
		end = len(runes)
	}

	encoded, err := engine.EncodeUTF16LE(string(runes[start:end]))
	if err != nil {
		return 0, err
	}
	if err := f.memory.Write(bufPtr, encoded); err != nil {
		return 0, err
	}
	return len(encoded) / 2, nil
}

func (f *Fake) TextCharBox(ctx context.Context, tp handle.TextPage, index int, leftPtr, rightPtr, bottomPtr, topPtr uint32) error {
	p, ok := f.textPages[tp]
	if !ok {
		return errors.HandleInvalid("text page", 0)
	}
	if index < 0 || index >= len([]rune(p.spec.Text)) {
		return errors.HandleInvalid("char index", 0)
	}

	// Deterministic 6x10 glyph grid.
	left := float64(index) * 6
	boxes := []struct {
		ptr uint32
		val float64
	}{
		{leftPtr, left},
		{rightPtr, left + 5},
		{bottomPtr, 0},
		{topPtr, 10},
	}
	for _, b := range boxes {
		if err := f.writeF64(b.ptr, b.val); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fake) TextFontSize(ctx context.Context, tp handle.TextPage, index int) (float64, error) {
	if _, ok := f.textPages[tp]; !ok {
		return 0, nil
	}
	return 12, nil
}

func (f *Fake) CreateBitmap(ctx context.Context, width, height, format int, bufPtr uint32, stride int) (handle.Bitmap, error) {
	f.record("CreateBitmap")
	if width <= 0 || height <= 0 || bufPtr == 0 {
		return 0, nil
	}
	h := handle.Bitmap(f.newID())
	f.bitmaps[h] = &fakeBitmap{bufPtr: bufPtr, width: width, height: height, stride: stride}
	return h, nil
}

func (f *Fake) FillBitmapRect(ctx context.Context, bmp handle.Bitmap, left, top, width, height int, color uint32) error {
	f.record("FillBitmapRect")
	b, ok := f.bitmaps[bmp]
	if !ok {
		return errors.HandleInvalid("bitmap", 0)
	}

	// color is ARGB; the buffer is BGRA.
	px := []byte{byte(color), byte(color >> 8), byte(color >> 16), byte(color >> 24)}
	for y := top; y < top+height && y < b.height; y++ {
		for x := left; x < left+width && x < b.width; x++ {
			offset := b.bufPtr + uint32(y*b.stride+x*4)
			if err := f.memory.Write(offset, px); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *Fake) DestroyBitmap(ctx context.Context, bmp handle.Bitmap) error {
	f.record("DestroyBitmap")
	delete(f.bitmaps, bmp)
	return nil
}

func (f *Fake) RenderPageBitmap(ctx context.Context, bmp handle.Bitmap, page handle.Page, startX, startY, sizeX, sizeY, rotation, flags int) error {
	f.record("RenderPageBitmap")
	b, ok := f.bitmaps[bmp]
	if !ok {
		return errors.HandleInvalid("bitmap", 0)
	}
	p, ok := f.pages[page]
	if !ok {
		return errors.HandleInvalid("page", 0)
	}

	// Deterministic BGRA fill keyed by page index.
	px := []byte{byte(0x10 + p.index), 0x20, 0x30, 0xff}
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			offset := b.bufPtr + uint32(y*b.stride+x*4)
			if err := f.memory.Write(offset, px); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *Fake) MetaText(ctx context.Context, doc handle.Document, tagPtr, bufPtr uint32, bufLen int) (int, error) {
	f.record("MetaText")
	d, ok := f.docs[doc]
	if !ok {
		return 0, nil
	}
	tag := f.readCString(tagPtr)
	return f.writeTwoCallString(d.spec.Meta[tag], bufPtr, bufLen)
}

func (f *Fake) PageLabel(ctx context.Context, doc handle.Document, index int, bufPtr uint32, bufLen int) (int, error) {
	f.record("PageLabel")
	d, ok := f.docs[doc]
	if !ok || index < 0 || index >= len(d.spec.Labels) {
		return 0, nil
	}
	return f.writeTwoCallString(d.spec.Labels[index], bufPtr, bufLen)
}

// writeTwoCallString implements the measure-then-fill convention: byte
// length (UTF-16LE including NUL) when bufLen is too small, fill otherwise.
func (f *Fake) writeTwoCallString(s string, bufPtr uint32, bufLen int) (int, error) {
	if s == "" {
		return 0, nil
	}
	encoded, err := engine.EncodeUTF16LE(s)
	if err != nil {
		return 0, err
	}
	if bufLen < len(encoded) {
		return len(encoded), nil
	}
	if err := f.memory.Write(bufPtr, encoded); err != nil {
		return 0, err
	}
	return len(encoded), nil
}

func (f *Fake) readCString(ptr uint32) string {
	if ptr == 0 {
		return ""
	}
	var out []byte
	for {
		b, err := f.memory.ReadU8(ptr)
		if err != nil || b == 0 {
			return string(out)
		}
		out = append(out, b)
		ptr++
	}
}

func (f *Fake) writeF64(ptr uint32, v float64) error {
	return f.arena.WriteF64(ptr, v)
}

var _ engine.Exports = (*Fake)(nil)
