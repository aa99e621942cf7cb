package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"callsight/insight"
	"callsight/log"
)

// Wire is the minimal surface of one established connection. The real
// implementation wraps a websocket; tests substitute an in-memory pipe.
type Wire interface {
	Ping() error
	Recv() ([]byte, error)
	Close() error
}

type DialFunc func(ctx context.Context) (Wire, error)

type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var ErrNotOpen = errors.New("transport: connection not open")

// Options binds the connection to its owner. OnEvent fires once per
// parsed inbound message, in arrival order, from a single goroutine.
// OnLost fires at most once, after the single silent redial has also
// failed. Live gates the redial: a connection whose owner is no longer
// live is not worth re-establishing.
type Options struct {
	OnEvent func(insight.Event)
	OnLost  func()
	Live    func() bool
}

// Conn owns one logical connection to the analysis backend.
type Conn struct {
	dial DialFunc
	opts Options

	mu     sync.Mutex
	state  State
	wire   Wire
	closed bool
	cancel context.CancelFunc

	lostOnce sync.Once
	done     chan struct{}
}

func New(dial DialFunc, opts Options) *Conn {
	if opts.Live == nil {
		opts.Live = func() bool { return true }
	}
	return &Conn{
		dial:  dial,
		opts:  opts,
		state: StateConnecting,
		done:  make(chan struct{}),
	}
}

// Open starts connection establishment and the receive loop. It never
// blocks; dial failures and later losses surface through OnLost.
func (c *Conn) Open(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return
	}
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx)
}

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ping sends one keepalive. Returns ErrNotOpen while the connection is
// still being established or after it went away; the owner logs and
// carries on, the session itself is unaffected.
func (c *Conn) Ping() error {
	c.mu.Lock()
	wire := c.wire
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || wire == nil {
		return ErrNotOpen
	}
	return wire.Ping()
}

// Close tears the connection down. Idempotent, and always leaves the
// state at closed regardless of what the connection was doing.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = StateClosed
	wire := c.wire
	c.wire = nil
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wire != nil {
		wire.Close()
	}
	log.TransportState(StateClosed.String())
}

// Done closes once the connection goroutine has fully wound down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// run drives dial, receive and the one-shot redial policy.
func (c *Conn) run(ctx context.Context) {
	defer close(c.done)

	redialed := false
	for {
		wire, err := c.dial(ctx)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			if wire != nil {
				wire.Close()
			}
			return
		}
		if err == nil {
			c.wire = wire
			c.state = StateOpen
		}
		c.mu.Unlock()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warnf("transport dial failed: %v", err)
			if !redialed && c.opts.Live() {
				redialed = true
				continue
			}
			c.fail()
			return
		}

		log.TransportState(StateOpen.String())
		c.recvLoop(wire)

		c.mu.Lock()
		closedByUser := c.closed
		c.wire = nil
		if !closedByUser {
			c.state = StateConnecting
		}
		c.mu.Unlock()

		if closedByUser {
			return
		}

		// Unexpected closure mid-session: one silent reconnect, then
		// give up and tell the owner.
		log.Warn("transport connection dropped")
		if !redialed && c.opts.Live() {
			redialed = true
			log.TransportState(StateConnecting.String())
			continue
		}
		c.fail()
		return
	}
}

func (c *Conn) recvLoop(wire Wire) {
	for {
		data, err := wire.Recv()
		if err != nil {
			return
		}

		var ev insight.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			// One bad message must not kill a live session.
			log.EventDropped(err)
			continue
		}
		if c.opts.OnEvent != nil {
			c.opts.OnEvent(ev)
		}
	}
}

func (c *Conn) fail() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = StateFailed
	c.mu.Unlock()

	log.TransportState(StateFailed.String())
	c.lostOnce.Do(func() {
		if c.opts.OnLost != nil {
			c.opts.OnLost()
		}
	})
}
