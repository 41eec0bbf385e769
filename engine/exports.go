package engine

import (
	"context"

	"github.com/pdflume/pdflume/handle"
)

// Bitmap pixel formats accepted by CreateBitmap.
const (
	BitmapFormatGray = 1
	BitmapFormatBGR  = 2
	BitmapFormatBGRx = 3
	BitmapFormatBGRA = 4
)

// Render flag bits for RenderPageBitmap.
const (
	RenderAnnotations = 0x01
	RenderLCDText     = 0x02
	RenderGrayscale   = 0x08
	RenderPrinting    = 0x800
)

// Exports is the fixed entry-point surface of the PDF engine binary.
//
// Handles and pointers are raw values inside the engine instance; string
// and buffer arguments are passed as pointers into linear memory that the
// caller allocated through the instance's arena. A zero handle return
// always means the operation failed; LastError narrows the cause.
//
// Implemented by the wazero-backed Engine and by enginetest.Fake.
type Exports interface {
	// Library lifetime
	InitLibrary(ctx context.Context) error
	DestroyLibrary(ctx context.Context) error
	LastError(ctx context.Context) (uint32, error)

	// Document
	LoadMemDocument(ctx context.Context, dataPtr uint32, size int, passwordPtr uint32) (handle.Document, error)
	CloseDocument(ctx context.Context, doc handle.Document) error
	PageCount(ctx context.Context, doc handle.Document) (int, error)

	// Page
	LoadPage(ctx context.Context, doc handle.Document, index int) (handle.Page, error)
	ClosePage(ctx context.Context, page handle.Page) error
	PageWidth(ctx context.Context, page handle.Page) (float32, error)
	PageHeight(ctx context.Context, page handle.Page) (float32, error)
	PageRotation(ctx context.Context, page handle.Page) (int, error)
	SetPageRotation(ctx context.Context, page handle.Page, rotation int) error

	// Text
	TextLoadPage(ctx context.Context, page handle.Page) (handle.TextPage, error)
	TextClosePage(ctx context.Context, tp handle.TextPage) error
	TextCountChars(ctx context.Context, tp handle.TextPage) (int, error)
	// TextGetText writes up to count UTF-16LE code units plus a NUL
	// terminator at bufPtr and returns the number written including the
	// terminator.
	TextGetText(ctx context.Context, tp handle.TextPage, start, count int, bufPtr uint32) (int, error)
	// TextCharBox writes four float64 page-space coordinates to the given
	// out-pointers.
	TextCharBox(ctx context.Context, tp handle.TextPage, index int, leftPtr, rightPtr, bottomPtr, topPtr uint32) error
	TextFontSize(ctx context.Context, tp handle.TextPage, index int) (float64, error)

	// Bitmap / render
	CreateBitmap(ctx context.Context, width, height, format int, bufPtr uint32, stride int) (handle.Bitmap, error)
	FillBitmapRect(ctx context.Context, bmp handle.Bitmap, left, top, width, height int, color uint32) error
	DestroyBitmap(ctx context.Context, bmp handle.Bitmap) error
	RenderPageBitmap(ctx context.Context, bmp handle.Bitmap, page handle.Page, startX, startY, sizeX, sizeY, rotation, flags int) error

	// Metadata
	// MetaText and PageLabel follow the engine's two-call pattern: with
	// bufLen 0 they return the byte length needed (UTF-16LE including the
	// NUL terminator), otherwise they fill bufPtr and return bytes written.
	MetaText(ctx context.Context, doc handle.Document, tagPtr, bufPtr uint32, bufLen int) (int, error)
	PageLabel(ctx context.Context, doc handle.Document, index int, bufPtr uint32, bufLen int) (int, error)
}
