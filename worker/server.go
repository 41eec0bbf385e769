package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdflume/pdflume/errors"
	"github.com/pdflume/pdflume/pdf"
	"github.com/pdflume/pdflume/protocol"
)

// Factory builds the library a server session runs against, from the
// handshake the client sent. The server owns the returned library and
// disposes it at shutdown.
type Factory func(ctx context.Context, hs protocol.Handshake) (*pdf.Library, error)

// Server executes requests against a pdf.Library, one at a time, in
// arrival order.
type Server struct {
	conn    protocol.ServerConn
	factory Factory
	log     *zap.Logger

	lib      *pdf.Library
	docs     map[string]*pdf.Document
	pages    map[string]*pdf.Page
	nextDoc  int
	nextPage int
}

// NewServer creates a server over one connection. A nil logger disables
// logging.
func NewServer(conn protocol.ServerConn, factory Factory, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		conn:    conn,
		factory: factory,
		log:     log,
		docs:    make(map[string]*pdf.Document),
		pages:   make(map[string]*pdf.Page),
	}
}

// Serve handles requests until a Shutdown request, transport closure or
// context cancellation. The library is always disposed before return.
func (s *Server) Serve(ctx context.Context) error {
	defer s.teardown()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, err := s.conn.Receive()
		if err != nil {
			if errors.IsKind(err, errors.KindTransportClosed) {
				s.log.Debug("transport closed, stopping")
				return nil
			}
			return err
		}

		resp, shutdown := s.handle(ctx, req)
		if err := s.conn.Send(resp); err != nil {
			if errors.IsKind(err, errors.KindTransportClosed) {
				return nil
			}
			return err
		}
		if shutdown {
			return nil
		}
	}
}

func (s *Server) teardown() {
	if s.lib != nil {
		if err := s.lib.Dispose(); err != nil {
			s.log.Warn("library dispose failed", zap.Error(err))
		}
		s.lib = nil
	}
	s.docs = make(map[string]*pdf.Document)
	s.pages = make(map[string]*pdf.Page)
}

// handle executes one request. The second return is true when the request
// was a Shutdown and the loop should stop after sending the response.
func (s *Server) handle(ctx context.Context, req *protocol.Request) (*protocol.Response, bool) {
	if hs, ok := req.Payload.(protocol.Handshake); ok {
		return s.handleHandshake(ctx, req.ID, hs), false
	}
	if s.lib == nil {
		return protocol.Failure(req.ID, errors.NotInitialized(errors.PhaseWorker, "session")), false
	}

	switch p := req.Payload.(type) {
	case protocol.Ping:
		return protocol.Success(req.ID, protocol.Ack{}), false

	case protocol.Shutdown:
		// Tear down before acknowledging so the client observes the engine
		// fully released once the response arrives.
		s.teardown()
		return protocol.Success(req.ID, protocol.Ack{}), true

	case protocol.OpenDocument:
		return s.handleOpenDocument(ctx, req.ID, p), false

	case protocol.CloseDocument:
		return s.handleCloseDocument(ctx, req.ID, p), false

	case protocol.PageCount:
		doc, err := s.doc(p.Doc)
		if err != nil {
			return protocol.Failure(req.ID, err), false
		}
		n, err := doc.PageCount(ctx)
		if err != nil {
			return protocol.Failure(req.ID, err), false
		}
		return protocol.Success(req.ID, protocol.PageCountResult{Count: n}), false

	case protocol.Metadata:
		doc, err := s.doc(p.Doc)
		if err != nil {
			return protocol.Failure(req.ID, err), false
		}
		value, err := doc.Metadata(ctx, p.Tag)
		if err != nil {
			return protocol.Failure(req.ID, err), false
		}
		return protocol.Success(req.ID, protocol.StringResult{Value: value}), false

	case protocol.PageLabel:
		doc, err := s.doc(p.Doc)
		if err != nil {
			return protocol.Failure(req.ID, err), false
		}
		label, err := doc.PageLabel(ctx, p.Index)
		if err != nil {
			return protocol.Failure(req.ID, err), false
		}
		return protocol.Success(req.ID, protocol.StringResult{Value: label}), false

	case protocol.LoadPage:
		return s.handleLoadPage(ctx, req.ID, p), false

	case protocol.ClosePage:
		return s.handleClosePage(req.ID, p), false

	case protocol.PageSize:
		page, err := s.page(p.Page)
		if err != nil {
			return protocol.Failure(req.ID, err), false
		}
		w, h, err := page.Size(ctx)
		if err != nil {
			return protocol.Failure(req.ID, err), false
		}
		return protocol.Success(req.ID, protocol.PageSizeResult{Width: w, Height: h}), false

	case protocol.RenderPage:
		return s.handleRenderPage(ctx, req.ID, p), false

	case protocol.ExtractText:
		page, err := s.page(p.Page)
		if err != nil {
			return protocol.Failure(req.ID, err), false
		}
		text, err := page.Text(ctx)
		if err != nil {
			return protocol.Failure(req.ID, err), false
		}
		return protocol.Success(req.ID, protocol.StringResult{Value: text}), false

	case protocol.TextLayout:
		page, err := s.page(p.Page)
		if err != nil {
			return protocol.Failure(req.ID, err), false
		}
		boxes, err := page.TextLayout(ctx)
		if err != nil {
			return protocol.Failure(req.ID, err), false
		}
		result := protocol.TextLayoutResult{Boxes: make([]protocol.CharBox, len(boxes))}
		for i, b := range boxes {
			result.Boxes[i] = protocol.CharBox{
				Left: b.Left, Right: b.Right, Bottom: b.Bottom, Top: b.Top,
				FontSize: b.FontSize,
			}
		}
		return protocol.Success(req.ID, result), false

	default:
		return protocol.Failure(req.ID,
			errors.InvalidInput(errors.PhaseWorker, fmt.Sprintf("unknown request %T", req.Payload))), false
	}
}

func (s *Server) handleHandshake(ctx context.Context, id uint64, hs protocol.Handshake) *protocol.Response {
	if hs.Version != protocol.ProtocolVersion {
		return protocol.Failure(id, errors.InvalidInput(errors.PhaseWorker,
			fmt.Sprintf("protocol version %d not supported", hs.Version)))
	}
	if s.lib != nil {
		return protocol.Failure(id, errors.InvalidInput(errors.PhaseWorker, "session already established"))
	}

	lib, err := s.factory(ctx, hs)
	if err != nil {
		return protocol.Failure(id, err)
	}
	s.lib = lib
	s.log.Info("session established")
	return protocol.Success(id, protocol.HandshakeResult{Version: protocol.ProtocolVersion})
}

func (s *Server) handleOpenDocument(ctx context.Context, id uint64, p protocol.OpenDocument) *protocol.Response {
	doc, err := s.lib.OpenDocument(ctx, p.Data, p.Password)
	if err != nil {
		return protocol.Failure(id, err)
	}
	pages, err := doc.PageCount(ctx)
	if err != nil {
		doc.Dispose()
		return protocol.Failure(id, err)
	}

	s.nextDoc++
	docID := fmt.Sprintf("doc-%d", s.nextDoc)
	s.docs[docID] = doc
	s.log.Debug("document opened", zap.String("doc", docID), zap.Int("pages", pages))
	return protocol.Success(id, protocol.DocumentOpened{Doc: docID, Pages: pages})
}

func (s *Server) handleCloseDocument(ctx context.Context, id uint64, p protocol.CloseDocument) *protocol.Response {
	doc, err := s.doc(p.Doc)
	if err != nil {
		return protocol.Failure(id, err)
	}
	delete(s.docs, p.Doc)
	err = doc.Dispose()
	// The cascade disposed the document's pages; drop their IDs too.
	for pageID, page := range s.pages {
		if page.Disposed() {
			delete(s.pages, pageID)
		}
	}
	if err != nil {
		return protocol.Failure(id, err)
	}
	return protocol.Success(id, protocol.Ack{})
}

func (s *Server) handleLoadPage(ctx context.Context, id uint64, p protocol.LoadPage) *protocol.Response {
	doc, err := s.doc(p.Doc)
	if err != nil {
		return protocol.Failure(id, err)
	}
	page, err := doc.Page(ctx, p.Index)
	if err != nil {
		return protocol.Failure(id, err)
	}

	s.nextPage++
	pageID := fmt.Sprintf("page-%d", s.nextPage)
	s.pages[pageID] = page
	return protocol.Success(id, protocol.PageLoaded{Page: pageID})
}

func (s *Server) handleClosePage(id uint64, p protocol.ClosePage) *protocol.Response {
	page, err := s.page(p.Page)
	if err != nil {
		return protocol.Failure(id, err)
	}
	delete(s.pages, p.Page)
	if err := page.Dispose(); err != nil {
		return protocol.Failure(id, err)
	}
	return protocol.Success(id, protocol.Ack{})
}

func (s *Server) handleRenderPage(ctx context.Context, id uint64, p protocol.RenderPage) *protocol.Response {
	page, err := s.page(p.Page)
	if err != nil {
		return protocol.Failure(id, err)
	}

	bmp, err := page.Render(ctx, pdf.RenderOptions{
		Scale:      p.Scale,
		Width:      p.Width,
		Height:     p.Height,
		Rotation:   p.Rotation,
		Flags:      p.Flags,
		Background: p.Background,
	})
	if err != nil {
		return protocol.Failure(id, err)
	}
	defer bmp.Dispose()

	pixels, err := bmp.Data()
	if err != nil {
		return protocol.Failure(id, err)
	}
	return protocol.Success(id, protocol.RenderResult{
		Width:  bmp.Width(),
		Height: bmp.Height(),
		Stride: bmp.Stride(),
		Pixels: protocol.CloneBytes(pixels),
	})
}

func (s *Server) doc(id string) (*pdf.Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, errors.NotFound(errors.PhaseWorker, "document", id)
	}
	return doc, nil
}

func (s *Server) page(id string) (*pdf.Page, error) {
	page, ok := s.pages[id]
	if !ok {
		return nil, errors.NotFound(errors.PhaseWorker, "page", id)
	}
	return page, nil
}
