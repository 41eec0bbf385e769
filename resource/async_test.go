package resource

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdflume/pdflume/errors"
)

type fakeRemote struct {
	AsyncBase
	releases atomic.Int32
	gate     chan struct{} // release blocks until closed, when non-nil
	fail     error
}

func newFakeRemote(name string) *fakeRemote {
	r := &fakeRemote{}
	TrackAsync(r, &r.AsyncBase, name)
	return r
}

func (r *fakeRemote) Dispose(ctx context.Context) error {
	return r.AsyncBase.Dispose(ctx, func(ctx context.Context) error {
		r.releases.Add(1)
		if r.gate != nil {
			select {
			case <-r.gate:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return r.fail
	})
}

func TestAsyncBase_DisposeIdempotent(t *testing.T) {
	ctx := context.Background()
	r := newFakeRemote("remote-document")

	for i := 0; i < 3; i++ {
		if err := r.Dispose(ctx); err != nil {
			t.Fatalf("dispose %d: %v", i, err)
		}
	}
	if n := r.releases.Load(); n != 1 {
		t.Fatalf("release invoked %d times, want exactly 1", n)
	}
}

func TestAsyncBase_ConcurrentDisposeSharesInFlight(t *testing.T) {
	ctx := context.Background()
	r := newFakeRemote("remote-document")
	r.gate = make(chan struct{})
	r.fail = stderrors.New("remote close failed")

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = r.Dispose(ctx)
		}(i)
	}

	// Let the callers pile up on the single in-flight disposal.
	time.Sleep(20 * time.Millisecond)
	close(r.gate)
	wg.Wait()

	if n := r.releases.Load(); n != 1 {
		t.Fatalf("release invoked %d times under concurrency, want 1", n)
	}
	for i, err := range errs {
		if err == nil || err.Error() != "remote close failed" {
			t.Fatalf("caller %d observed %v, want in-flight error", i, err)
		}
	}

	// After the transition completed, dispose is a silent no-op.
	if err := r.Dispose(ctx); err != nil {
		t.Fatalf("post-completion dispose: %v", err)
	}
}

func TestAsyncBase_EnsureActiveDuringDisposal(t *testing.T) {
	ctx := context.Background()
	r := newFakeRemote("remote-page")
	r.gate = make(chan struct{})

	go r.Dispose(ctx)

	deadline := time.After(time.Second)
	for r.EnsureActive() == nil {
		select {
		case <-deadline:
			t.Fatal("EnsureActive still passing while disposal pending")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	err := r.EnsureActive()
	if !errors.IsKind(err, errors.KindResourceDisposed) {
		t.Fatalf("EnsureActive mid-disposal = %v, want resource_disposed", err)
	}
	close(r.gate)
}

func TestAsyncBase_WaiterHonorsContext(t *testing.T) {
	r := newFakeRemote("remote-document")
	r.gate = make(chan struct{})
	defer close(r.gate)

	go r.Dispose(context.Background())
	for !r.Disposed() {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Dispose(ctx); !stderrors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("waiter returned %v, want deadline exceeded", err)
	}
}

func TestAsyncBase_CascadingDisposal(t *testing.T) {
	ctx := context.Background()
	parent := newFakeRemote("remote-document")
	child := newFakeRemote("remote-page")
	parent.Adopt(child)

	if err := parent.Dispose(ctx); err != nil {
		t.Fatalf("dispose parent: %v", err)
	}
	if !child.Disposed() {
		t.Fatal("child not disposed with parent")
	}
	if err := child.Dispose(ctx); err != nil {
		t.Fatalf("re-dispose child: %v", err)
	}
	if n := child.releases.Load(); n != 1 {
		t.Fatalf("child release invoked %d times, want 1", n)
	}
}
