package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pdflume/pdflume/engine"
	"github.com/pdflume/pdflume/errors"
	"github.com/pdflume/pdflume/pdf"
	"github.com/pdflume/pdflume/protocol"
)

// Config configures Start.
type Config struct {
	// Binary is the engine WebAssembly binary, handed to the worker during
	// the handshake. Required unless Factory ignores it.
	Binary []byte

	// Factory overrides how the worker builds its library. Nil selects the
	// default, which instantiates Binary.
	Factory Factory

	// Timeout bounds each request; zero selects DefaultTimeout.
	Timeout time.Duration

	// Buffer is the transport channel depth; zero selects 16.
	Buffer int

	// Logger receives server-side diagnostics; nil disables logging.
	Logger *zap.Logger
}

// Start launches a worker goroutine and returns a connected client.
// Shutting the client down stops the worker and disposes its engine.
func Start(ctx context.Context, cfg Config) (*Client, error) {
	factory := cfg.Factory
	if factory == nil {
		factory = defaultFactory
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 16
	}

	clientConn, serverConn := protocol.Pipe(buffer)
	srv := NewServer(serverConn, factory, cfg.Logger)
	go func() {
		if err := srv.Serve(context.WithoutCancel(ctx)); err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Error("worker stopped", zap.Error(err))
			}
		}
		serverConn.Close()
	}()

	client := NewClient(clientConn, cfg.Timeout)
	if err := client.Connect(ctx, cfg.Binary); err != nil {
		clientConn.Close()
		return nil, err
	}
	return client, nil
}

// defaultFactory instantiates the binary carried by the handshake.
func defaultFactory(ctx context.Context, hs protocol.Handshake) (*pdf.Library, error) {
	if len(hs.Binary) == 0 {
		return nil, errors.InvalidInput(errors.PhaseWorker, "handshake carries no engine binary")
	}
	return pdf.Open(ctx, engine.Config{Binary: hs.Binary})
}
