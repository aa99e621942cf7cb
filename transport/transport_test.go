package transport

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"callsight/insight"
)

type fakeWire struct {
	mu     sync.Mutex
	msgs   chan []byte
	pings  int
	closed bool
}

func newFakeWire() *fakeWire {
	return &fakeWire{msgs: make(chan []byte, 16)}
}

func (w *fakeWire) Ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return io.ErrClosedPipe
	}
	w.pings++
	return nil
}

func (w *fakeWire) Recv() ([]byte, error) {
	data, ok := <-w.msgs
	if !ok {
		return nil, io.EOF
	}
	return data, nil
}

func (w *fakeWire) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.msgs)
	}
	return nil
}

func (w *fakeWire) drop() { w.Close() }

func (w *fakeWire) pingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pings
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

type eventLog struct {
	mu     sync.Mutex
	events []insight.Event
	lost   int
}

func (l *eventLog) onEvent(ev insight.Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) onLost() {
	l.mu.Lock()
	l.lost++
	l.mu.Unlock()
}

func (l *eventLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func (l *eventLog) lostCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lost
}

func TestEventsDeliveredInOrder(t *testing.T) {
	wire := newFakeWire()
	el := &eventLog{}
	c := New(func(ctx context.Context) (Wire, error) { return wire, nil },
		Options{OnEvent: el.onEvent, OnLost: el.onLost})
	c.Open(context.Background())

	waitFor(t, "open", func() bool { return c.State() == StateOpen })

	wire.msgs <- []byte(`{"risk_score":20}`)
	wire.msgs <- []byte(`{"transcript_chunk":"hello"}`)
	wire.msgs <- []byte(`{"risk_score":65,"sentiment":"Distressed"}`)

	waitFor(t, "3 events", func() bool { return el.count() == 3 })

	el.mu.Lock()
	defer el.mu.Unlock()
	if *el.events[0].RiskScore != 20 {
		t.Errorf("event 0 risk = %v, want 20", *el.events[0].RiskScore)
	}
	if el.events[1].TranscriptChunk != "hello" {
		t.Errorf("event 1 chunk = %q", el.events[1].TranscriptChunk)
	}
	if *el.events[2].RiskScore != 65 || el.events[2].Sentiment != "Distressed" {
		t.Errorf("event 2 = %+v", el.events[2])
	}

	c.Close()
}

func TestMalformedMessageDropped(t *testing.T) {
	wire := newFakeWire()
	el := &eventLog{}
	c := New(func(ctx context.Context) (Wire, error) { return wire, nil },
		Options{OnEvent: el.onEvent, OnLost: el.onLost})
	c.Open(context.Background())
	waitFor(t, "open", func() bool { return c.State() == StateOpen })

	wire.msgs <- []byte(`{"risk_score":10}`)
	wire.msgs <- []byte(`{not json`)
	wire.msgs <- []byte(`{"risk_score":30}`)

	waitFor(t, "2 events", func() bool { return el.count() == 2 })

	// A bad message must not tear the connection down.
	if c.State() != StateOpen {
		t.Errorf("state = %v after malformed message, want open", c.State())
	}
	if el.lostCount() != 0 {
		t.Error("OnLost fired for malformed message")
	}

	c.Close()
}

func TestUnexpectedDropRedialsExactlyOnce(t *testing.T) {
	var mu sync.Mutex
	dials := 0
	wire := newFakeWire()
	el := &eventLog{}
	c := New(func(ctx context.Context) (Wire, error) {
		mu.Lock()
		dials++
		n := dials
		mu.Unlock()
		if n == 1 {
			return wire, nil
		}
		return nil, errors.New("backend unreachable")
	}, Options{OnEvent: el.onEvent, OnLost: el.onLost})
	c.Open(context.Background())
	waitFor(t, "open", func() bool { return c.State() == StateOpen })

	wire.drop()

	waitFor(t, "failed", func() bool { return c.State() == StateFailed })
	<-c.Done()

	mu.Lock()
	if dials != 2 {
		t.Errorf("dials = %d, want 2 (one reconnect attempt)", dials)
	}
	mu.Unlock()
	if el.lostCount() != 1 {
		t.Errorf("OnLost fired %d times, want 1", el.lostCount())
	}
}

func TestRedialRecoversSilently(t *testing.T) {
	var mu sync.Mutex
	wires := []*fakeWire{newFakeWire(), newFakeWire()}
	dials := 0
	el := &eventLog{}
	c := New(func(ctx context.Context) (Wire, error) {
		mu.Lock()
		w := wires[dials]
		dials++
		mu.Unlock()
		return w, nil
	}, Options{OnEvent: el.onEvent, OnLost: el.onLost})
	c.Open(context.Background())
	waitFor(t, "open", func() bool { return c.State() == StateOpen })

	wires[0].drop()
	waitFor(t, "reopen", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return dials == 2 && c.State() == StateOpen
	})

	wires[1].msgs <- []byte(`{"sentiment":"Calm"}`)
	waitFor(t, "event after redial", func() bool { return el.count() == 1 })

	if el.lostCount() != 0 {
		t.Error("OnLost fired for a recovered drop")
	}

	c.Close()
}

func TestNoRedialWhenOwnerNotLive(t *testing.T) {
	var mu sync.Mutex
	dials := 0
	wire := newFakeWire()
	el := &eventLog{}
	c := New(func(ctx context.Context) (Wire, error) {
		mu.Lock()
		dials++
		mu.Unlock()
		return wire, nil
	}, Options{OnEvent: el.onEvent, OnLost: el.onLost, Live: func() bool { return false }})
	c.Open(context.Background())
	waitFor(t, "open", func() bool { return c.State() == StateOpen })

	wire.drop()
	waitFor(t, "failed", func() bool { return c.State() == StateFailed })
	<-c.Done()

	mu.Lock()
	if dials != 1 {
		t.Errorf("dials = %d, want 1 (no redial for a dead owner)", dials)
	}
	mu.Unlock()
}

func TestCloseIsIdempotent(t *testing.T) {
	wire := newFakeWire()
	c := New(func(ctx context.Context) (Wire, error) { return wire, nil }, Options{})
	c.Open(context.Background())
	waitFor(t, "open", func() bool { return c.State() == StateOpen })

	c.Close()
	c.Close()

	if c.State() != StateClosed {
		t.Errorf("state = %v, want closed", c.State())
	}
	<-c.Done()
}

func TestCloseBeforeOpenResolves(t *testing.T) {
	release := make(chan struct{})
	wire := newFakeWire()
	c := New(func(ctx context.Context) (Wire, error) {
		<-release
		return wire, nil
	}, Options{})
	c.Open(context.Background())

	c.Close()
	close(release) // late dial resolution must be discarded

	<-c.Done()
	if c.State() != StateClosed {
		t.Errorf("state = %v, want closed", c.State())
	}
	wire.mu.Lock()
	defer wire.mu.Unlock()
	if !wire.closed {
		t.Error("late-resolved wire left open")
	}
}

func TestPingStates(t *testing.T) {
	release := make(chan struct{})
	wire := newFakeWire()
	c := New(func(ctx context.Context) (Wire, error) {
		<-release
		return wire, nil
	}, Options{})
	c.Open(context.Background())

	if err := c.Ping(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Ping while connecting = %v, want ErrNotOpen", err)
	}

	close(release)
	waitFor(t, "open", func() bool { return c.State() == StateOpen })

	if err := c.Ping(); err != nil {
		t.Errorf("Ping while open = %v", err)
	}
	if wire.pingCount() != 1 {
		t.Errorf("pings = %d, want 1", wire.pingCount())
	}

	c.Close()
	if err := c.Ping(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Ping after close = %v, want ErrNotOpen", err)
	}
}
