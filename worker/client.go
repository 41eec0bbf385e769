package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pdflume/pdflume/errors"
	"github.com/pdflume/pdflume/protocol"
)

// DefaultTimeout bounds each request when the caller's context carries no
// deadline of its own.
const DefaultTimeout = 30 * time.Second

// Client drives a worker session from the embedding side. Safe for
// concurrent use; the server still executes requests one at a time.
type Client struct {
	conn    protocol.ClientConn
	pending *protocol.Pending
	timeout time.Duration

	mu        sync.Mutex
	started   bool
	connected bool
	closed    bool
	readDone  chan struct{}
}

// NewClient creates a client over one connection. A zero timeout selects
// DefaultTimeout.
func NewClient(conn protocol.ClientConn, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		conn:     conn,
		pending:  protocol.NewPending(),
		timeout:  timeout,
		readDone: make(chan struct{}),
	}
}

// Connect performs the handshake. Every other method fails until it
// succeeds.
func (c *Client) Connect(ctx context.Context, binary []byte) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.InvalidInput(errors.PhaseProtocol, "already connected")
	}
	c.started = true
	c.mu.Unlock()

	go c.readLoop()

	result, err := c.call(ctx, protocol.Handshake{
		Version: protocol.ProtocolVersion,
		Binary:  protocol.CloneBytes(binary),
	})
	if err != nil {
		return err
	}
	if _, ok := result.(protocol.HandshakeResult); !ok {
		return errors.InvalidInput(errors.PhaseProtocol, fmt.Sprintf("unexpected handshake result %T", result))
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *Client) readLoop() {
	defer close(c.readDone)
	for {
		resp, err := c.conn.Receive()
		if err != nil {
			c.pending.FailAll(errors.TransportClosed(err))
			return
		}
		c.pending.Dispatch(resp)
	}
}

// call sends one request and waits for its terminal response.
func (c *Client) call(ctx context.Context, payload protocol.RequestPayload) (protocol.ResultPayload, error) {
	id := c.pending.NextID()
	ch := c.pending.Register(id)

	if err := c.conn.Send(&protocol.Request{ID: id, Payload: payload}); err != nil {
		c.pending.Retire(id)
		return nil, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if resp.Status == protocol.StatusError {
			return nil, resp.Err.Err()
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.pending.Retire(id)
		return nil, ctx.Err()
	case <-timer.C:
		c.pending.Retire(id)
		return nil, errors.Timeout(fmt.Sprintf("%T", payload), id)
	}
}

func (c *Client) ensureConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.TransportClosed(nil)
	}
	if !c.connected {
		return errors.NotInitialized(errors.PhaseProtocol, "session")
	}
	return nil
}

// Ping checks that the worker is responsive.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.ensureConnected(); err != nil {
		return err
	}
	_, err := c.call(ctx, protocol.Ping{})
	return err
}

// OpenDocument loads a document on the worker. The data is cloned before
// transfer; the caller's slice may be reused immediately.
func (c *Client) OpenDocument(ctx context.Context, data []byte, password string) (*Document, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}

	result, err := c.call(ctx, protocol.OpenDocument{
		Data:     protocol.CloneBytes(data),
		Password: password,
	})
	if err != nil {
		return nil, err
	}
	opened, ok := result.(protocol.DocumentOpened)
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseProtocol, fmt.Sprintf("unexpected result %T", result))
	}
	return newDocument(c, opened.Doc, opened.Pages), nil
}

// Pending returns the number of requests awaiting a response.
func (c *Client) Pending() int {
	return c.pending.Active()
}

// Shutdown asks the worker to dispose its engine and closes the
// connection. Safe to call more than once.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	connected := c.connected
	started := c.started
	c.mu.Unlock()

	var err error
	if connected {
		_, err = c.call(ctx, protocol.Shutdown{})
	}
	c.conn.Close()

	if started {
		select {
		case <-c.readDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
