package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"callsight/audio"
	"callsight/insight"
	"callsight/log"
	"callsight/transport"
	"callsight/waveform"
)

type State int

const (
	StateIdle State = iota
	StateArming
	StateCapturing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArming:
		return "arming"
	case StateCapturing:
		return "capturing"
	default:
		return "unknown"
	}
}

// ErrBusy rejects a start while a session is already live. One session
// at a time; the caller decides whether to stop the current one first.
var ErrBusy = errors.New("session: capture already in progress")

// Sink receives everything the presentation layer renders. Calls arrive
// from the session's control goroutine, one at a time.
type Sink interface {
	SessionStarted()
	SessionStopped()
	Tick(elapsed int)
	Level(rms float64)
	Waveform(samples []float64)
	SnapshotUpdated(snap insight.Snapshot)
	NoVoiceWarning(active bool)
	TransportLost()
}

// control loop messages
type levelMsg float64
type eventMsg insight.Event
type tickMsg struct{}

// Recorder owns the capture lifecycle: device callbacks, the 1 Hz
// duration tick with its coupled keepalive, the transport connection
// and the insight snapshot. Device frames, transport events and ticks
// are all marshaled onto one control goroutine, so events reach the
// aggregator strictly in arrival order and nothing else mutates shared
// state.
type Recorder struct {
	capture   audio.CaptureDevice
	dial      transport.DialFunc
	sink      Sink
	wave      *waveform.Buffer
	tickEvery time.Duration
	noVoice   bool // disables VAD, used by tests and -novad

	mu        sync.Mutex
	state     State
	gen       int
	startedAt time.Time
	elapsed   int
	snap      insight.Snapshot
	lost      bool
	conn      *transport.Conn
	stopCh    chan struct{}
	loopDone  chan struct{}
}

func NewRecorder(capture audio.CaptureDevice, dial transport.DialFunc, sink Sink, window time.Duration) *Recorder {
	return &Recorder{
		capture:   capture,
		dial:      dial,
		sink:      sink,
		wave:      waveform.New(window),
		tickEvery: time.Second,
		snap:      insight.NewSnapshot(),
	}
}

// DisableVoiceDetection turns off speech detection and the no-voice
// warning. Call before Start.
func (r *Recorder) DisableVoiceDetection() {
	r.noVoice = true
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Recorder) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

// Snapshot returns the current aggregate. Snapshots never mutate after
// publication, so the value is safe to keep.
func (r *Recorder) Snapshot() insight.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// TransportLost reports whether the backend connection is gone for this
// session. The session keeps capturing locally regardless; the operator
// decides whether that is still worth anything.
func (r *Recorder) TransportLost() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lost
}

// Start requests device access and begins capturing. Fails with
// audio.ErrPermissionDenied or audio.ErrDeviceUnavailable when the
// device cannot deliver, and ErrBusy when a session is already live.
// The transport connects in the background; a stalled dial never delays
// the first tick.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return ErrBusy
	}
	r.state = StateArming
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	var voice *voiceGate
	if !r.noVoice {
		var err error
		if voice, err = newVoiceGate(); err != nil {
			log.Warnf("voice detection unavailable: %v", err)
			voice = nil
		}
	}

	msgs := make(chan any, 256)
	stopCh := make(chan struct{})

	r.capture.SetCallback(func(data []byte, frameCount uint32) {
		if len(data) == 0 {
			return
		}
		if voice != nil {
			voice.process(data)
		}
		// Levels are presentation-only; drop rather than stall the
		// device thread when the loop falls behind.
		select {
		case msgs <- levelMsg(audio.Level(data)):
		case <-stopCh:
		default:
		}
	})

	if err := r.capture.Start(); err != nil {
		r.capture.ClearCallback()
		r.mu.Lock()
		if r.gen == gen {
			r.state = StateIdle
		}
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	if r.gen != gen {
		// Stopped while the permission prompt was still pending; the
		// late resolution must not revive the session.
		r.mu.Unlock()
		r.capture.Stop()
		r.capture.ClearCallback()
		return nil
	}
	r.state = StateCapturing
	r.startedAt = time.Now()
	r.elapsed = 0
	r.snap = insight.NewSnapshot()
	r.lost = false
	r.wave.Reset()
	r.stopCh = stopCh
	loopDone := make(chan struct{})
	r.loopDone = loopDone

	conn := transport.New(r.dial, transport.Options{
		OnEvent: func(ev insight.Event) {
			select {
			case msgs <- eventMsg(ev):
			case <-stopCh:
			}
		},
		OnLost: func() {
			r.mu.Lock()
			if r.gen == gen {
				r.lost = true
			}
			r.mu.Unlock()
			r.sink.TransportLost()
		},
		Live: func() bool { return r.State() == StateCapturing },
	})
	r.conn = conn
	r.mu.Unlock()

	conn.Open(context.Background())
	go r.runTicker(msgs, stopCh)
	go r.runLoop(voice, msgs, stopCh, loopDone)

	log.SessionStart(r.capture.DeviceName())
	r.sink.SessionStarted()
	return nil
}

// Stop ends the session: releases the device, halts ticks and closes
// the transport. Idempotent; stopping an idle recorder is a no-op.
// Device callbacks and transport events that race the stop are
// discarded, never applied.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.state == StateIdle {
		r.mu.Unlock()
		return
	}
	r.gen++
	wasCapturing := r.state == StateCapturing
	r.state = StateIdle
	conn := r.conn
	r.conn = nil
	stopCh := r.stopCh
	r.stopCh = nil
	loopDone := r.loopDone
	r.loopDone = nil
	elapsed := r.elapsed
	snap := r.snap
	r.mu.Unlock()

	if !wasCapturing {
		// Still arming; the start path sees the bumped generation and
		// unwinds on its own.
		return
	}

	r.capture.Stop()
	r.capture.ClearCallback()
	close(stopCh)
	<-loopDone
	if conn != nil {
		conn.Close()
	}

	log.SessionEnd(elapsed, len(snap.Segments), len(snap.Entities))
	r.sink.SessionStopped()
}

func (r *Recorder) runTicker(msgs chan any, stopCh chan struct{}) {
	ticker := time.NewTicker(r.tickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			select {
			case msgs <- tickMsg{}:
			case <-stopCh:
				return
			}
		}
	}
}

func (r *Recorder) runLoop(voice *voiceGate, msgs chan any, stopCh chan struct{}, loopDone chan struct{}) {
	defer close(loopDone)

	mon := newSilenceMonitor()
	for {
		select {
		case <-stopCh:
			return
		case m := <-msgs:
			switch m := m.(type) {
			case levelMsg:
				r.wave.Push(float64(m))
				r.sink.Level(float64(m))
				r.sink.Waveform(r.wave.Snapshot())

			case tickMsg:
				r.mu.Lock()
				r.elapsed++
				elapsed := r.elapsed
				conn := r.conn
				r.mu.Unlock()

				// Capture and liveness-signaling are coupled: the
				// backend detects silent disconnects by missed pings.
				if conn != nil {
					if err := conn.Ping(); err != nil && !errors.Is(err, transport.ErrNotOpen) {
						log.KeepaliveFailed(err)
					}
				}
				r.sink.Tick(elapsed)

				if voice != nil {
					switch mon.Tick(voice.speechTick()) {
					case silenceWarn:
						log.Info("no_voice_warning")
						r.sink.NoVoiceWarning(true)
					case silenceClear:
						r.sink.NoVoiceWarning(false)
					}
				}

			case eventMsg:
				ev := insight.Event(m)
				r.mu.Lock()
				arrival := time.Since(r.startedAt).Seconds()
				r.snap = insight.Apply(r.snap, ev, arrival)
				snap := r.snap
				r.mu.Unlock()

				if ev.TranscriptChunk != "" {
					log.TranscriptLine(insight.LiveSpeaker, ev.TranscriptChunk)
				}
				r.sink.SnapshotUpdated(snap)
			}
		}
	}
}
