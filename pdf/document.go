package pdf

import (
	"context"
	"fmt"

	"github.com/pdflume/pdflume/engine"
	"github.com/pdflume/pdflume/errors"
	"github.com/pdflume/pdflume/handle"
	"github.com/pdflume/pdflume/resource"
)

// Standard metadata tags accepted by Document.Metadata.
const (
	MetaTitle    = "Title"
	MetaAuthor   = "Author"
	MetaSubject  = "Subject"
	MetaKeywords = "Keywords"
	MetaCreator  = "Creator"
	MetaProducer = "Producer"
)

// Document is an open document. It owns its native handle, the engine-side
// copy of the document bytes and every Page loaded from it.
type Document struct {
	resource.Base
	lib     *Library
	h       handle.Document
	dataPtr uint32
}

// PageCount returns the number of pages.
func (d *Document) PageCount(ctx context.Context) (int, error) {
	if err := d.EnsureActive(); err != nil {
		return 0, err
	}
	return d.lib.exports.PageCount(ctx, d.h)
}

// Page loads the page at index. The returned Page is adopted by the
// document: disposing the document disposes it.
func (d *Document) Page(ctx context.Context, index int) (*Page, error) {
	if err := d.EnsureActive(); err != nil {
		return nil, err
	}
	if index < 0 {
		return nil, errors.InvalidInput(errors.PhaseDocument, "negative page index")
	}

	h, err := d.lib.exports.LoadPage(ctx, d.h, index)
	if err != nil {
		return nil, err
	}
	if h.IsNull() {
		lastErr, _ := d.lib.exports.LastError(ctx)
		return nil, errors.HandleInvalid(fmt.Sprintf("load page %d", index), lastErr)
	}

	page := &Page{doc: d, h: h, index: index}
	resource.Track(page, &page.Base, fmt.Sprintf("page-%d", index))
	d.Adopt(page)
	return page, nil
}

// Metadata returns the value of a document information tag (MetaTitle,
// MetaAuthor, ...), or "" when the tag is absent.
func (d *Document) Metadata(ctx context.Context, tag string) (string, error) {
	if err := d.EnsureActive(); err != nil {
		return "", err
	}

	tagPtr, err := d.lib.arena.CopyIn(append([]byte(tag), 0))
	if err != nil {
		return "", err
	}
	defer d.lib.arena.Free(tagPtr)

	return d.readTwoCallString(ctx, func(bufPtr uint32, bufLen int) (int, error) {
		return d.lib.exports.MetaText(ctx, d.h, tagPtr, bufPtr, bufLen)
	})
}

// PageLabel returns the display label of the page at index, or "" when the
// document defines no label for it.
func (d *Document) PageLabel(ctx context.Context, index int) (string, error) {
	if err := d.EnsureActive(); err != nil {
		return "", err
	}
	if index < 0 {
		return "", errors.InvalidInput(errors.PhaseDocument, "negative page index")
	}

	return d.readTwoCallString(ctx, func(bufPtr uint32, bufLen int) (int, error) {
		return d.lib.exports.PageLabel(ctx, d.h, index, bufPtr, bufLen)
	})
}

// readTwoCallString drives the engine's measure-then-fill convention for
// UTF-16LE string results.
func (d *Document) readTwoCallString(ctx context.Context, read func(bufPtr uint32, bufLen int) (int, error)) (string, error) {
	needed, err := read(0, 0)
	if err != nil {
		return "", err
	}
	if needed <= 2 {
		return "", nil
	}

	bufPtr, err := d.lib.arena.Alloc(needed)
	if err != nil {
		return "", err
	}
	defer d.lib.arena.Free(bufPtr)

	written, err := read(bufPtr, needed)
	if err != nil {
		return "", err
	}
	if written > needed {
		written = needed
	}

	raw, err := d.lib.arena.CopyOut(bufPtr, written)
	if err != nil {
		return "", err
	}
	return engine.DecodeUTF16LE(raw)
}

// Dispose disposes every live page loaded from this document, closes the
// native document and frees the engine-side copy of the document bytes.
// Idempotent.
func (d *Document) Dispose() error {
	return d.Base.Dispose(func() error {
		ctx := context.Background()
		err := d.lib.exports.CloseDocument(ctx, d.h)
		d.lib.arena.Free(d.dataPtr)
		return err
	})
}
