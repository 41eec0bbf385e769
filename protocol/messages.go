package protocol

import (
	"github.com/pdflume/pdflume/errors"
)

// ProtocolVersion is negotiated during the handshake; the server rejects
// clients speaking a different version.
const ProtocolVersion = 1

// Request is one message from client to server.
type Request struct {
	ID      uint64
	Payload RequestPayload
}

// RequestPayload is the sealed union of request bodies.
type RequestPayload interface {
	isRequest()
}

// Handshake opens a connection. It must be the first request sent.
type Handshake struct {
	Version int
	Binary  []byte // engine binary; empty when the server supplies its own
}

// OpenDocument loads a document from bytes on the worker.
type OpenDocument struct {
	Data     []byte
	Password string
}

// CloseDocument disposes a remote document and everything under it.
type CloseDocument struct {
	Doc string
}

// PageCount asks for the number of pages of a remote document.
type PageCount struct {
	Doc string
}

// Metadata asks for a document information tag value.
type Metadata struct {
	Doc string
	Tag string
}

// PageLabel asks for the display label of a page.
type PageLabel struct {
	Doc   string
	Index int
}

// LoadPage loads a page of a remote document.
type LoadPage struct {
	Doc   string
	Index int
}

// ClosePage disposes a remote page.
type ClosePage struct {
	Page string
}

// PageSize asks for a remote page's size in points.
type PageSize struct {
	Page string
}

// RenderPage rasterizes a remote page.
type RenderPage struct {
	Page       string
	Scale      float64
	Width      int
	Height     int
	Rotation   int
	Flags      int
	Background uint32
}

// ExtractText asks for the full text of a remote page.
type ExtractText struct {
	Page string
}

// TextLayout asks for per-character boxes of a remote page.
type TextLayout struct {
	Page string
}

// Ping checks connection liveness.
type Ping struct{}

// Shutdown disposes the worker's engine instance and ends the connection.
type Shutdown struct{}

func (Handshake) isRequest()     {}
func (OpenDocument) isRequest()  {}
func (CloseDocument) isRequest() {}
func (PageCount) isRequest()     {}
func (Metadata) isRequest()      {}
func (PageLabel) isRequest()     {}
func (LoadPage) isRequest()      {}
func (ClosePage) isRequest()     {}
func (PageSize) isRequest()      {}
func (RenderPage) isRequest()    {}
func (ExtractText) isRequest()   {}
func (TextLayout) isRequest()    {}
func (Ping) isRequest()          {}
func (Shutdown) isRequest()      {}

// Status classifies a response.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
	StatusProgress Status = "progress"
)

// Response is one message from server to client. Exactly one terminal
// response (success or error) answers each request; progress responses may
// precede it.
type Response struct {
	ID       uint64
	Status   Status
	Result   ResultPayload // set when Status is success
	Err      *WireError    // set when Status is error
	Progress float64       // set when Status is progress, in [0, 1]
}

// ResultPayload is the sealed union of success bodies.
type ResultPayload interface {
	isResult()
}

// HandshakeResult acknowledges a handshake.
type HandshakeResult struct {
	Version int
}

// DocumentOpened returns the remote ID of a freshly opened document.
type DocumentOpened struct {
	Doc   string
	Pages int
}

// PageCountResult carries a page count.
type PageCountResult struct {
	Count int
}

// StringResult carries a metadata value, page label or extracted text.
type StringResult struct {
	Value string
}

// PageLoaded returns the remote ID of a loaded page.
type PageLoaded struct {
	Page string
}

// PageSizeResult carries a page size in points.
type PageSizeResult struct {
	Width  float64
	Height float64
}

// RenderResult carries transferred RGBA pixels.
type RenderResult struct {
	Width  int
	Height int
	Stride int
	Pixels []byte
}

// CharBox is one character's page-space box in a TextLayoutResult.
type CharBox struct {
	Left     float64
	Right    float64
	Bottom   float64
	Top      float64
	FontSize float64
}

// TextLayoutResult carries per-character boxes.
type TextLayoutResult struct {
	Boxes []CharBox
}

// Ack is the empty success body for close, ping and shutdown.
type Ack struct{}

func (HandshakeResult) isResult()  {}
func (DocumentOpened) isResult()   {}
func (PageCountResult) isResult()  {}
func (StringResult) isResult()     {}
func (PageLoaded) isResult()       {}
func (PageSizeResult) isResult()   {}
func (RenderResult) isResult()     {}
func (TextLayoutResult) isResult() {}
func (Ack) isResult()              {}

// WireError is the boundary form of an error. The kind survives the
// crossing so clients can match on it; stack context does not.
type WireError struct {
	Kind    string
	Message string
	Context string
}

// WireErrorFrom converts an error for transmission.
func WireErrorFrom(err error) *WireError {
	if e, ok := errors.AsError(err); ok {
		return &WireError{
			Kind:    string(e.Kind),
			Message: e.Detail,
			Context: e.Resource,
		}
	}
	return &WireError{
		Kind:    string(errors.KindRemoteFailed),
		Message: err.Error(),
	}
}

// Err converts a received WireError back to an error that still matches
// the original kind.
func (w *WireError) Err() error {
	return errors.RemoteFailed(errors.Kind(w.Kind), w.Message, w.Context)
}

// Success builds a terminal success response.
func Success(id uint64, result ResultPayload) *Response {
	return &Response{ID: id, Status: StatusSuccess, Result: result}
}

// Failure builds a terminal error response.
func Failure(id uint64, err error) *Response {
	return &Response{ID: id, Status: StatusError, Err: WireErrorFrom(err)}
}

// ProgressUpdate builds a non-terminal progress response.
func ProgressUpdate(id uint64, fraction float64) *Response {
	return &Response{ID: id, Status: StatusProgress, Progress: fraction}
}

// CloneBytes copies a buffer so the sender can keep mutating its own copy
// after the message is handed to the transport.
func CloneBytes(data []byte) []byte {
	if data == nil {
		return nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
