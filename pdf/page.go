package pdf

import (
	"context"
	"fmt"
	"math"

	"github.com/pdflume/pdflume/engine"
	"github.com/pdflume/pdflume/errors"
	"github.com/pdflume/pdflume/handle"
	"github.com/pdflume/pdflume/resource"
)

// RenderOptions controls Page.Render.
type RenderOptions struct {
	// Scale multiplies the page's point size; 1.0 when zero and no
	// explicit size is given.
	Scale float64

	// Width and Height give an explicit pixel size, overriding Scale
	// when both are positive.
	Width, Height int

	// Rotation in quarter turns clockwise (0-3).
	Rotation int

	// Flags are engine render flag bits (engine.RenderAnnotations, ...).
	Flags int

	// Background is the ARGB fill applied before rendering.
	// Zero means opaque white.
	Background uint32
}

// CharBox is the page-space bounding box of one character, with its font
// size in points.
type CharBox struct {
	Left     float64
	Right    float64
	Bottom   float64
	Top      float64
	FontSize float64
}

// Page is a loaded page. It owns its native page handle and the text page
// lazily loaded for extraction.
type Page struct {
	resource.Base
	doc   *Document
	text  *textPage
	h     handle.Page
	index int
}

// Index returns the zero-based page index within its document.
func (p *Page) Index() int {
	return p.index
}

// Size returns the page size in points.
func (p *Page) Size(ctx context.Context) (width, height float64, err error) {
	if err := p.EnsureActive(); err != nil {
		return 0, 0, err
	}

	w, err := p.doc.lib.exports.PageWidth(ctx, p.h)
	if err != nil {
		return 0, 0, err
	}
	h, err := p.doc.lib.exports.PageHeight(ctx, p.h)
	if err != nil {
		return 0, 0, err
	}
	return float64(w), float64(h), nil
}

// Rotation returns the page rotation in quarter turns clockwise.
func (p *Page) Rotation(ctx context.Context) (int, error) {
	if err := p.EnsureActive(); err != nil {
		return 0, err
	}
	return p.doc.lib.exports.PageRotation(ctx, p.h)
}

// SetRotation sets the page rotation in quarter turns clockwise.
func (p *Page) SetRotation(ctx context.Context, rotation int) error {
	if err := p.EnsureActive(); err != nil {
		return err
	}
	if rotation < 0 || rotation > 3 {
		return errors.InvalidInput(errors.PhaseDocument, "rotation must be 0-3 quarter turns")
	}
	return p.doc.lib.exports.SetPageRotation(ctx, p.h, rotation)
}

// Render rasterizes the page into a Bitmap.
//
// The pixel buffer is allocated in engine memory, rendered BGRA, copied to
// the host, converted to RGBA and freed again, so no engine allocation
// outlives the call.
func (p *Page) Render(ctx context.Context, opts RenderOptions) (*Bitmap, error) {
	if err := p.EnsureActive(); err != nil {
		return nil, err
	}

	width, height := opts.Width, opts.Height
	if width <= 0 || height <= 0 {
		scale := opts.Scale
		if scale <= 0 {
			scale = 1
		}
		w, h, err := p.Size(ctx)
		if err != nil {
			return nil, err
		}
		width = int(math.Ceil(w * scale))
		height = int(math.Ceil(h * scale))
	}
	if width <= 0 || height <= 0 {
		return nil, errors.InvalidInput(errors.PhaseDocument, "render size must be positive")
	}

	background := opts.Background
	if background == 0 {
		background = 0xFFFFFFFF
	}

	arena := p.doc.lib.arena
	exports := p.doc.lib.exports

	stride := width * 4
	bufPtr, err := arena.Alloc(stride * height)
	if err != nil {
		return nil, err
	}
	defer arena.Free(bufPtr)

	bmp, err := exports.CreateBitmap(ctx, width, height, engine.BitmapFormatBGRA, bufPtr, stride)
	if err != nil {
		return nil, err
	}
	if bmp.IsNull() {
		return nil, errors.HandleInvalid("create bitmap", 0)
	}

	renderErr := func() error {
		if err := exports.FillBitmapRect(ctx, bmp, 0, 0, width, height, background); err != nil {
			return err
		}
		return exports.RenderPageBitmap(ctx, bmp, p.h, 0, 0, width, height, opts.Rotation, opts.Flags)
	}()
	// The bitmap handle is destroyed either way; pixels live in our buffer.
	if err := exports.DestroyBitmap(ctx, bmp); err != nil && renderErr == nil {
		renderErr = err
	}
	if renderErr != nil {
		return nil, renderErr
	}

	pixels, err := arena.CopyOut(bufPtr, stride*height)
	if err != nil {
		return nil, err
	}
	bgraToRGBA(pixels)

	return NewBitmap(width, height, stride, pixels), nil
}

// Text extracts the full text of the page.
func (p *Page) Text(ctx context.Context) (string, error) {
	tp, err := p.textPage(ctx)
	if err != nil {
		return "", err
	}

	exports := p.doc.lib.exports
	arena := p.doc.lib.arena

	count, err := exports.TextCountChars(ctx, tp.h)
	if err != nil {
		return "", err
	}
	if count <= 0 {
		return "", nil
	}

	// count UTF-16 code units plus the NUL terminator.
	bufPtr, err := arena.Alloc((count + 1) * 2)
	if err != nil {
		return "", err
	}
	defer arena.Free(bufPtr)

	written, err := exports.TextGetText(ctx, tp.h, 0, count, bufPtr)
	if err != nil {
		return "", err
	}
	if written <= 0 {
		return "", nil
	}

	raw, err := arena.CopyOut(bufPtr, written*2)
	if err != nil {
		return "", err
	}
	return engine.DecodeUTF16LE(raw)
}

// TextLayout returns the bounding box and font size of every character on
// the page, in character order.
func (p *Page) TextLayout(ctx context.Context) ([]CharBox, error) {
	tp, err := p.textPage(ctx)
	if err != nil {
		return nil, err
	}

	exports := p.doc.lib.exports
	arena := p.doc.lib.arena

	count, err := exports.TextCountChars(ctx, tp.h)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, nil
	}

	// Four float64 out-params written per character.
	outPtr, err := arena.Alloc(32)
	if err != nil {
		return nil, err
	}
	defer arena.Free(outPtr)

	boxes := make([]CharBox, 0, count)
	for i := 0; i < count; i++ {
		err := exports.TextCharBox(ctx, tp.h, i, outPtr, outPtr+8, outPtr+16, outPtr+24)
		if err != nil {
			return nil, err
		}

		var box CharBox
		if box.Left, err = arena.ReadF64(outPtr); err != nil {
			return nil, err
		}
		if box.Right, err = arena.ReadF64(outPtr + 8); err != nil {
			return nil, err
		}
		if box.Bottom, err = arena.ReadF64(outPtr + 16); err != nil {
			return nil, err
		}
		if box.Top, err = arena.ReadF64(outPtr + 24); err != nil {
			return nil, err
		}
		if box.FontSize, err = exports.TextFontSize(ctx, tp.h, i); err != nil {
			return nil, err
		}
		boxes = append(boxes, box)
	}
	return boxes, nil
}

// textPage loads the page's text state on first use and adopts it, so it
// is closed no later than the page itself.
func (p *Page) textPage(ctx context.Context) (*textPage, error) {
	if err := p.EnsureActive(); err != nil {
		return nil, err
	}
	if p.text != nil {
		return p.text, nil
	}

	h, err := p.doc.lib.exports.TextLoadPage(ctx, p.h)
	if err != nil {
		return nil, err
	}
	if h.IsNull() {
		return nil, errors.HandleInvalid(fmt.Sprintf("load text page %d", p.index), 0)
	}

	tp := &textPage{page: p, h: h}
	resource.Track(tp, &tp.Base, fmt.Sprintf("text-page-%d", p.index))
	p.Adopt(tp)
	p.text = tp
	return tp, nil
}

// Dispose disposes the text page, then closes the native page handle.
// Idempotent.
func (p *Page) Dispose() error {
	return p.Base.Dispose(func() error {
		return p.doc.lib.exports.ClosePage(context.Background(), p.h)
	})
}

// textPage owns the native text extraction state of one page.
type textPage struct {
	resource.Base
	page *Page
	h    handle.TextPage
}

func (t *textPage) Dispose() error {
	return t.Base.Dispose(func() error {
		return t.page.doc.lib.exports.TextClosePage(context.Background(), t.h)
	})
}
