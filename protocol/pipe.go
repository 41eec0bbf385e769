package protocol

import (
	"sync"

	"github.com/pdflume/pdflume/errors"
)

// ClientConn is the client end of a connection.
type ClientConn interface {
	Send(req *Request) error
	Receive() (*Response, error)
	Close() error
}

// ServerConn is the server end of a connection.
type ServerConn interface {
	Receive() (*Request, error)
	Send(resp *Response) error
	Close() error
}

// Pipe returns the two ends of an in-memory connection. Messages are
// delivered in order; both ends unblock with a transport_closed error once
// either end closes.
func Pipe(buffer int) (ClientConn, ServerConn) {
	p := &pipe{
		requests:  make(chan *Request, buffer),
		responses: make(chan *Response, buffer),
		done:      make(chan struct{}),
	}
	return (*pipeClient)(p), (*pipeServer)(p)
}

type pipe struct {
	requests  chan *Request
	responses chan *Response
	done      chan struct{}
	closeOnce sync.Once
}

func (p *pipe) close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

type pipeClient pipe

func (c *pipeClient) Send(req *Request) error {
	select {
	case c.requests <- req:
		return nil
	case <-c.done:
		return errors.TransportClosed(nil)
	}
}

func (c *pipeClient) Receive() (*Response, error) {
	select {
	case resp := <-c.responses:
		return resp, nil
	case <-c.done:
		// Drain responses already in flight before reporting closure.
		select {
		case resp := <-c.responses:
			return resp, nil
		default:
			return nil, errors.TransportClosed(nil)
		}
	}
}

func (c *pipeClient) Close() error { return (*pipe)(c).close() }

type pipeServer pipe

func (s *pipeServer) Receive() (*Request, error) {
	select {
	case req := <-s.requests:
		return req, nil
	case <-s.done:
		select {
		case req := <-s.requests:
			return req, nil
		default:
			return nil, errors.TransportClosed(nil)
		}
	}
}

func (s *pipeServer) Send(resp *Response) error {
	select {
	case s.responses <- resp:
		return nil
	case <-s.done:
		return errors.TransportClosed(nil)
	}
}

func (s *pipeServer) Close() error { return (*pipe)(s).close() }
