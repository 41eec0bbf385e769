package worker

import (
	"context"
	"fmt"

	"github.com/pdflume/pdflume/errors"
	"github.com/pdflume/pdflume/pdf"
	"github.com/pdflume/pdflume/protocol"
	"github.com/pdflume/pdflume/resource"
)

// Page proxies a page living on the worker.
type Page struct {
	resource.AsyncBase
	client *Client
	id     string
	index  int
}

func newPage(client *Client, id string, index int) *Page {
	p := &Page{client: client, id: id, index: index}
	resource.TrackAsync(p, &p.AsyncBase, id)
	return p
}

// RemoteID returns the server-assigned page ID.
func (p *Page) RemoteID() string {
	return p.id
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
	result, err := p.client.call(ctx, protocol.PageSize{Page: p.id})
	if err != nil {
		return 0, 0, err
	}
	r, ok := result.(protocol.PageSizeResult)
	if !ok {
		return 0, 0, errors.InvalidInput(errors.PhaseProtocol, fmt.Sprintf("unexpected result %T", result))
	}
	return r.Width, r.Height, nil
}

// Render rasterizes the page on the worker and transfers the pixels back.
// The returned bitmap owns its own copy of the data.
func (p *Page) Render(ctx context.Context, opts pdf.RenderOptions) (*pdf.Bitmap, error) {
	if err := p.EnsureActive(); err != nil {
		return nil, err
	}

	result, err := p.client.call(ctx, protocol.RenderPage{
		Page:       p.id,
		Scale:      opts.Scale,
		Width:      opts.Width,
		Height:     opts.Height,
		Rotation:   opts.Rotation,
		Flags:      opts.Flags,
		Background: opts.Background,
	})
	if err != nil {
		return nil, err
	}
	r, ok := result.(protocol.RenderResult)
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseProtocol, fmt.Sprintf("unexpected result %T", result))
	}
	return pdf.NewBitmap(r.Width, r.Height, r.Stride, r.Pixels), nil
}

// Text extracts the full text of the page.
func (p *Page) Text(ctx context.Context) (string, error) {
	if err := p.EnsureActive(); err != nil {
		return "", err
	}
	result, err := p.client.call(ctx, protocol.ExtractText{Page: p.id})
	if err != nil {
		return "", err
	}
	return stringResult(result)
}

// TextLayout returns the bounding box and font size of every character.
func (p *Page) TextLayout(ctx context.Context) ([]pdf.CharBox, error) {
	if err := p.EnsureActive(); err != nil {
		return nil, err
	}

	result, err := p.client.call(ctx, protocol.TextLayout{Page: p.id})
	if err != nil {
		return nil, err
	}
	r, ok := result.(protocol.TextLayoutResult)
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseProtocol, fmt.Sprintf("unexpected result %T", result))
	}

	boxes := make([]pdf.CharBox, len(r.Boxes))
	for i, b := range r.Boxes {
		boxes[i] = pdf.CharBox{
			Left: b.Left, Right: b.Right, Bottom: b.Bottom, Top: b.Top,
			FontSize: b.FontSize,
		}
	}
	return boxes, nil
}

// Dispose closes the remote page. Idempotent; concurrent callers share the
// in-flight round trip.
func (p *Page) Dispose(ctx context.Context) error {
	return p.AsyncBase.Dispose(ctx, func(ctx context.Context) error {
		_, err := p.client.call(ctx, protocol.ClosePage{Page: p.id})
		// Already released by the document cascade on the server.
		if errors.IsKind(err, errors.KindNotFound) {
			return nil
		}
		return err
	})
}
