package protocol

import (
	"sync"
	"testing"

	"github.com/pdflume/pdflume/errors"
)

func TestPipeRoundTrip(t *testing.T) {
	client, server := Pipe(4)
	defer client.Close()

	if err := client.Send(&Request{ID: 1, Payload: Ping{}}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	req, err := server.Receive()
	if err != nil {
		t.Fatalf("server Receive: %v", err)
	}
	if req.ID != 1 {
		t.Fatalf("request ID = %d, want 1", req.ID)
	}
	if _, ok := req.Payload.(Ping); !ok {
		t.Fatalf("payload = %T, want Ping", req.Payload)
	}

	if err := server.Send(Success(1, Ack{})); err != nil {
		t.Fatalf("server Send: %v", err)
	}
	resp, err := client.Receive()
	if err != nil {
		t.Fatalf("client Receive: %v", err)
	}
	if resp.ID != 1 || resp.Status != StatusSuccess {
		t.Fatalf("response = %+v, want success for ID 1", resp)
	}
}

func TestPipeOrdering(t *testing.T) {
	client, server := Pipe(8)
	defer client.Close()

	for i := uint64(1); i <= 5; i++ {
		if err := client.Send(&Request{ID: i, Payload: Ping{}}); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}
	for i := uint64(1); i <= 5; i++ {
		req, err := server.Receive()
		if err != nil {
			t.Fatalf("Receive %d: %v", i, err)
		}
		if req.ID != i {
			t.Fatalf("request %d arrived with ID %d", i, req.ID)
		}
	}
}

func TestPipeClose(t *testing.T) {
	client, server := Pipe(1)

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := client.Send(&Request{ID: 1, Payload: Ping{}}); !errors.IsKind(err, errors.KindTransportClosed) {
		t.Fatalf("Send after close = %v, want transport_closed", err)
	}
	if _, err := server.Receive(); !errors.IsKind(err, errors.KindTransportClosed) {
		t.Fatalf("Receive after close = %v, want transport_closed", err)
	}
	if err := server.Send(Success(1, Ack{})); !errors.IsKind(err, errors.KindTransportClosed) {
		t.Fatalf("server Send after close = %v, want transport_closed", err)
	}
	// Closing again is a no-op.
	if err := server.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestPipeDrainsInFlightOnClose(t *testing.T) {
	client, server := Pipe(2)

	if err := server.Send(Success(7, Ack{})); err != nil {
		t.Fatalf("Send: %v", err)
	}
	server.Close()

	resp, err := client.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if resp.ID != 7 {
		t.Fatalf("response ID = %d, want 7", resp.ID)
	}
	if _, err := client.Receive(); !errors.IsKind(err, errors.KindTransportClosed) {
		t.Fatalf("second Receive = %v, want transport_closed", err)
	}
}

func TestPendingIDsNeverRepeat(t *testing.T) {
	p := NewPending()
	seen := make(map[uint64]bool)
	for i := 0; i < 1000; i++ {
		id := p.NextID()
		if seen[id] {
			t.Fatalf("ID %d minted twice", id)
		}
		seen[id] = true
	}
}

func TestPendingDispatch(t *testing.T) {
	p := NewPending()

	id := p.NextID()
	ch := p.Register(id)

	p.Dispatch(Success(id, PageCountResult{Count: 4}))

	resp := <-ch
	if resp.Status != StatusSuccess {
		t.Fatalf("status = %s, want success", resp.Status)
	}
	if got := resp.Result.(PageCountResult).Count; got != 4 {
		t.Fatalf("count = %d, want 4", got)
	}
	if p.Active() != 0 {
		t.Fatalf("Active = %d after dispatch, want 0", p.Active())
	}
}

func TestPendingLateResponseDropped(t *testing.T) {
	p := NewPending()

	id := p.NextID()
	ch := p.Register(id)
	p.Retire(id)

	// A response after retirement must not be delivered anywhere.
	p.Dispatch(Success(id, Ack{}))

	select {
	case resp := <-ch:
		t.Fatalf("retired waiter received %+v", resp)
	default:
	}
	if p.Active() != 0 {
		t.Fatalf("Active = %d, want 0", p.Active())
	}
}

func TestPendingProgressRouting(t *testing.T) {
	p := NewPending()

	id := p.NextID()
	ch := p.Register(id)

	var progress []float64
	p.Observe(id, func(fraction float64) {
		progress = append(progress, fraction)
	})

	p.Dispatch(ProgressUpdate(id, 0.25))
	p.Dispatch(ProgressUpdate(id, 0.75))
	p.Dispatch(Success(id, Ack{}))

	if len(progress) != 2 || progress[0] != 0.25 || progress[1] != 0.75 {
		t.Fatalf("progress = %v, want [0.25 0.75]", progress)
	}
	resp := <-ch
	if resp.Status != StatusSuccess {
		t.Fatalf("status = %s, want success", resp.Status)
	}

	// Progress after the terminal response is dropped.
	p.Dispatch(ProgressUpdate(id, 1.0))
	if len(progress) != 2 {
		t.Fatalf("observer ran after terminal response: %v", progress)
	}
}

func TestPendingFailAll(t *testing.T) {
	p := NewPending()

	var chans []<-chan *Response
	for i := 0; i < 3; i++ {
		chans = append(chans, p.Register(p.NextID()))
	}

	p.FailAll(errors.TransportClosed(nil))

	for i, ch := range chans {
		resp := <-ch
		if resp.Status != StatusError {
			t.Fatalf("waiter %d status = %s, want error", i, resp.Status)
		}
		if !errors.IsKind(resp.Err.Err(), errors.KindTransportClosed) {
			t.Fatalf("waiter %d error = %v, want transport_closed", i, resp.Err.Err())
		}
	}

	// Registration after failure resolves immediately.
	ch := p.Register(p.NextID())
	resp := <-ch
	if resp.Status != StatusError {
		t.Fatalf("post-failure register status = %s, want error", resp.Status)
	}
}

func TestPendingConcurrent(t *testing.T) {
	p := NewPending()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := p.NextID()
			ch := p.Register(id)
			go p.Dispatch(Success(id, Ack{}))
			resp := <-ch
			if resp.ID != id {
				t.Errorf("response ID = %d, want %d", resp.ID, id)
			}
		}()
	}
	wg.Wait()

	if p.Active() != 0 {
		t.Fatalf("Active = %d, want 0", p.Active())
	}
}

func TestWireErrorPreservesKind(t *testing.T) {
	orig := errors.HandleInvalid("load page 3", 6)
	wire := WireErrorFrom(orig)
	back := wire.Err()

	if !errors.IsKind(back, errors.KindHandleInvalid) {
		t.Fatalf("reconstructed error = %v, want handle_invalid", back)
	}
	e, ok := errors.AsError(back)
	if !ok {
		t.Fatal("reconstructed error is not structured")
	}
	if !e.Remote {
		t.Fatal("reconstructed error not marked remote")
	}
}

func TestWireErrorPlainError(t *testing.T) {
	wire := WireErrorFrom(errTest("boom"))
	back := wire.Err()
	if !errors.IsKind(back, errors.KindRemoteFailed) {
		t.Fatalf("error = %v, want remote_failed", back)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }

func TestCloneBytes(t *testing.T) {
	src := []byte{1, 2, 3}
	dst := CloneBytes(src)
	src[0] = 99
	if dst[0] != 1 {
		t.Fatal("clone aliases source")
	}
	if CloneBytes(nil) != nil {
		t.Fatal("CloneBytes(nil) != nil")
	}
}
