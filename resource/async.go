package resource

import (
	"context"
	stderrors "errors"
	"runtime"
	"sync"

	"github.com/pdflume/pdflume/errors"
)

// AsyncDisposable is implemented by every asynchronous scoped resource.
type AsyncDisposable interface {
	Dispose(ctx context.Context) error
	Disposed() bool
}

type asyncState uint8

const (
	stateActive asyncState = iota
	stateDisposing
	stateDisposed
)

// AsyncBase is the Base state machine for resources whose release requires
// a round trip to a background context. Concurrent Dispose calls while a
// disposal is pending await the same in-flight operation; calls after the
// transition completed are no-ops.
type AsyncBase struct {
	done       chan struct{}
	err        error
	cleanup    runtime.Cleanup
	name       string
	children   []AsyncDisposable
	mu         sync.Mutex
	state      asyncState
	hasCleanup bool
}

// TrackAsync names the resource and registers its leak sentinel.
func TrackAsync[T any](owner *T, b *AsyncBase, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.name = name
	b.cleanup = runtime.AddCleanup(owner, reportLeak, name)
	b.hasCleanup = true
}

// Name returns the diagnostic resource name.
func (b *AsyncBase) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.name
}

// Disposed reports whether disposal has started. A resource mid-disposal
// already fails EnsureActive; callers must not race new operations against
// a pending release.
func (b *AsyncBase) Disposed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state != stateActive
}

// EnsureActive fails with a resource_disposed error once disposal has
// started.
func (b *AsyncBase) EnsureActive() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateActive {
		return errors.ResourceDisposed(b.name)
	}
	return nil
}

// Adopt registers a child resource disposed before this one's release.
func (b *AsyncBase) Adopt(child AsyncDisposable) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.children = append(b.children, child)
}

// Dispose performs the one-way transition. The first caller runs release
// exactly once; concurrent callers block until that same operation finishes
// and observe its error; later callers return nil immediately.
func (b *AsyncBase) Dispose(ctx context.Context, release func(context.Context) error) error {
	b.mu.Lock()
	switch b.state {
	case stateDisposed:
		b.mu.Unlock()
		return nil
	case stateDisposing:
		done := b.done
		b.mu.Unlock()
		select {
		case <-done:
			return b.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.state = stateDisposing
	b.done = make(chan struct{})
	done := b.done
	children := b.children
	b.children = nil
	hasCleanup := b.hasCleanup
	b.mu.Unlock()

	if hasCleanup {
		b.cleanup.Stop()
	}

	var errs []error
	for i := len(children) - 1; i >= 0; i-- {
		if err := children[i].Dispose(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if release != nil {
		if err := release(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	b.mu.Lock()
	b.state = stateDisposed
	b.err = stderrors.Join(errs...)
	err := b.err
	b.mu.Unlock()
	close(done)

	return err
}
