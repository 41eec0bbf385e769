package resource

import (
	stderrors "errors"
	"testing"

	"github.com/pdflume/pdflume/errors"
)

type fakeResource struct {
	Base
	releases int
	fail     error
}

func newFakeResource(name string) *fakeResource {
	r := &fakeResource{}
	Track(r, &r.Base, name)
	return r
}

func (r *fakeResource) Dispose() error {
	return r.Base.Dispose(func() error {
		r.releases++
		return r.fail
	})
}

func TestBase_DisposeIdempotent(t *testing.T) {
	r := newFakeResource("document")

	for i := 0; i < 3; i++ {
		if err := r.Dispose(); err != nil {
			t.Fatalf("dispose %d: %v", i, err)
		}
	}

	if r.releases != 1 {
		t.Fatalf("release invoked %d times, want exactly 1", r.releases)
	}
	if !r.Disposed() {
		t.Fatal("resource not marked disposed")
	}
}

func TestBase_EnsureActive(t *testing.T) {
	r := newFakeResource("page")

	if err := r.EnsureActive(); err != nil {
		t.Fatalf("EnsureActive on active resource: %v", err)
	}

	if err := r.Dispose(); err != nil {
		t.Fatalf("dispose: %v", err)
	}

	err := r.EnsureActive()
	if !errors.IsKind(err, errors.KindResourceDisposed) {
		t.Fatalf("EnsureActive after dispose = %v, want resource_disposed", err)
	}
	var se *errors.Error
	if !stderrors.As(err, &se) || se.Resource != "page" {
		t.Fatalf("error does not carry resource name: %v", err)
	}
}

func TestBase_DisposeFailureStillDisposes(t *testing.T) {
	r := newFakeResource("bitmap")
	r.fail = stderrors.New("native release failed")

	if err := r.Dispose(); err == nil {
		t.Fatal("expected release error")
	}
	if !r.Disposed() {
		t.Fatal("failed release left resource active")
	}

	// Retrying must not re-enter the release routine.
	if err := r.Dispose(); err != nil {
		t.Fatalf("second dispose after failure: %v", err)
	}
	if r.releases != 1 {
		t.Fatalf("release invoked %d times after failed dispose, want 1", r.releases)
	}
}

func TestBase_CascadingDisposal(t *testing.T) {
	parent := newFakeResource("document")

	var order []string
	child := func(name string) *fakeResource {
		c := newFakeResource(name)
		parent.Adopt(disposeRecorder{c, &order})
		return c
	}
	first := child("page-0")
	second := child("page-1")

	if err := parent.Dispose(); err != nil {
		t.Fatalf("dispose parent: %v", err)
	}

	if !first.Disposed() || !second.Disposed() {
		t.Fatal("children not disposed with parent")
	}
	// Reverse adoption order.
	if len(order) != 2 || order[0] != "page-1" || order[1] != "page-0" {
		t.Fatalf("disposal order = %v, want [page-1 page-0]", order)
	}

	// Explicitly disposing an already-parent-disposed child is a no-op.
	if err := first.Dispose(); err != nil {
		t.Fatalf("re-dispose child: %v", err)
	}
	if first.releases != 1 {
		t.Fatalf("child release invoked %d times, want 1", first.releases)
	}
}

type disposeRecorder struct {
	r     *fakeResource
	order *[]string
}

func (d disposeRecorder) Dispose() error {
	*d.order = append(*d.order, d.r.Name())
	return d.r.Dispose()
}

func (d disposeRecorder) Disposed() bool { return d.r.Disposed() }

func TestBase_ChildFailureDoesNotStopCascade(t *testing.T) {
	parent := newFakeResource("document")

	bad := newFakeResource("form-env")
	bad.fail = stderrors.New("form teardown failed")
	good := newFakeResource("page-0")
	parent.Adopt(good)
	parent.Adopt(bad)

	err := parent.Dispose()
	if err == nil {
		t.Fatal("expected joined child error")
	}
	if !good.Disposed() || !bad.Disposed() || !parent.Disposed() {
		t.Fatal("cascade stopped early on child failure")
	}
	if parent.releases != 1 {
		t.Fatalf("parent release invoked %d times, want 1", parent.releases)
	}
}
