package resource

import (
	stderrors "errors"
	"runtime"
	"sync"

	"github.com/pdflume/pdflume/errors"
)

// Disposable is implemented by every synchronous scoped resource.
type Disposable interface {
	Dispose() error
	Disposed() bool
}

// Base provides the active-to-disposed state machine for synchronous
// resources. Embed it and route Dispose through its dispose helper:
//
//	type Document struct {
//	    resource.Base
//	    ...
//	}
//
//	func (d *Document) Dispose() error {
//	    return d.Base.Dispose(d.releaseNative)
//	}
type Base struct {
	cleanup    runtime.Cleanup
	name       string
	children   []Disposable
	mu         sync.Mutex
	disposed   bool
	hasCleanup bool
}

// Track names the resource and registers its leak sentinel. owner must be
// the outermost object embedding b; the sentinel fires if owner becomes
// unreachable while still active.
func Track[T any](owner *T, b *Base, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.name = name
	b.cleanup = runtime.AddCleanup(owner, reportLeak, name)
	b.hasCleanup = true
}

// Name returns the diagnostic resource name.
func (b *Base) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.name
}

// Disposed reports whether the resource has been disposed.
func (b *Base) Disposed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disposed
}

// EnsureActive fails with a resource_disposed error if the resource has
// been disposed. Every public method that touches a native handle must call
// it before entering native code.
func (b *Base) EnsureActive() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed {
		return errors.ResourceDisposed(b.name)
	}
	return nil
}

// Adopt registers a child resource. On disposal, children are disposed in
// reverse adoption order before the parent's own release runs.
func (b *Base) Adopt(child Disposable) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.children = append(b.children, child)
}

// Dispose performs the one-way transition. The first call marks the
// resource disposed, stops the leak sentinel, disposes adopted children in
// reverse order and then invokes release exactly once. Subsequent calls are
// no-ops. The disposed mark is set before release runs, so a release
// failure cannot be retried into a double free.
func (b *Base) Dispose(release func() error) error {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return nil
	}
	b.disposed = true
	children := b.children
	b.children = nil
	hasCleanup := b.hasCleanup
	b.mu.Unlock()

	if hasCleanup {
		b.cleanup.Stop()
	}

	var errs []error
	for i := len(children) - 1; i >= 0; i-- {
		if err := children[i].Dispose(); err != nil {
			errs = append(errs, err)
		}
	}

	if release != nil {
		if err := release(); err != nil {
			errs = append(errs, err)
		}
	}

	return stderrors.Join(errs...)
}
