package worker

import (
	"context"
	"fmt"

	"github.com/pdflume/pdflume/errors"
	"github.com/pdflume/pdflume/protocol"
	"github.com/pdflume/pdflume/resource"
)

// Document proxies a document living on the worker. Disposal is a round
// trip: it completes only once the server has closed the remote document.
type Document struct {
	resource.AsyncBase
	client *Client
	id     string
	pages  int
}

func newDocument(client *Client, id string, pages int) *Document {
	d := &Document{client: client, id: id, pages: pages}
	resource.TrackAsync(d, &d.AsyncBase, id)
	return d
}

// RemoteID returns the server-assigned document ID.
func (d *Document) RemoteID() string {
	return d.id
}

// PageCount returns the number of pages, captured when the document was
// opened.
func (d *Document) PageCount() int {
	return d.pages
}

// Metadata returns a document information tag value, or "" when absent.
func (d *Document) Metadata(ctx context.Context, tag string) (string, error) {
	if err := d.EnsureActive(); err != nil {
		return "", err
	}
	result, err := d.client.call(ctx, protocol.Metadata{Doc: d.id, Tag: tag})
	if err != nil {
		return "", err
	}
	return stringResult(result)
}

// PageLabel returns the display label of the page at index, or "".
func (d *Document) PageLabel(ctx context.Context, index int) (string, error) {
	if err := d.EnsureActive(); err != nil {
		return "", err
	}
	result, err := d.client.call(ctx, protocol.PageLabel{Doc: d.id, Index: index})
	if err != nil {
		return "", err
	}
	return stringResult(result)
}

// Page loads the page at index on the worker. The returned proxy is
// adopted: disposing the document disposes it first.
func (d *Document) Page(ctx context.Context, index int) (*Page, error) {
	if err := d.EnsureActive(); err != nil {
		return nil, err
	}

	result, err := d.client.call(ctx, protocol.LoadPage{Doc: d.id, Index: index})
	if err != nil {
		return nil, err
	}
	loaded, ok := result.(protocol.PageLoaded)
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseProtocol, fmt.Sprintf("unexpected result %T", result))
	}

	page := newPage(d.client, loaded.Page, index)
	d.Adopt(page)
	return page, nil
}

// Dispose closes the remote document, cascading to proxy pages first.
// Idempotent; concurrent callers share the in-flight round trip.
func (d *Document) Dispose(ctx context.Context) error {
	return d.AsyncBase.Dispose(ctx, func(ctx context.Context) error {
		_, err := d.client.call(ctx, protocol.CloseDocument{Doc: d.id})
		// The server cascade already released the pages; a not_found from a
		// page closed with its document is not a failure.
		if errors.IsKind(err, errors.KindNotFound) {
			return nil
		}
		return err
	})
}

func stringResult(result protocol.ResultPayload) (string, error) {
	r, ok := result.(protocol.StringResult)
	if !ok {
		return "", errors.InvalidInput(errors.PhaseProtocol, fmt.Sprintf("unexpected result %T", result))
	}
	return r.Value, nil
}
