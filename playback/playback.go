package playback

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"callsight/audio"
)

const tickInterval = 100 * time.Millisecond

// Player replays a recorded session clip and reports its position. It
// drives the same timeline index as a live session: position ticks flow
// out through OnTime, seek requests flow in through SetTime.
//
// Only the position clock is modeled here; decoding and rendering the
// audio itself belongs to the platform player, not this engine.
type Player struct {
	mu       sync.Mutex
	duration float64
	pos      float64
	playing  bool
	ready    bool
	stop     chan struct{}

	onReady  func(duration float64)
	onTime   func(pos float64)
	onFinish func()
}

func New() *Player {
	return &Player{}
}

func (p *Player) OnReady(fn func(duration float64)) { p.onReady = fn }
func (p *Player) OnTime(fn func(pos float64))       { p.onTime = fn }
func (p *Player) OnFinish(fn func())                { p.onFinish = fn }

// Load reads a WAV file and derives the clip duration from its PCM
// payload. The ready callback fires once the duration is known.
func (p *Player) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) < audio.WAVHeaderSize {
		return fmt.Errorf("playback: %s is not a WAV file", path)
	}

	rate := binary.LittleEndian.Uint32(data[24:28])
	channels := binary.LittleEndian.Uint16(data[22:24])
	bits := binary.LittleEndian.Uint16(data[34:36])
	if rate == 0 || channels == 0 || bits == 0 {
		return fmt.Errorf("playback: %s has a malformed WAV header", path)
	}

	pcmBytes := len(data) - audio.WAVHeaderSize
	bytesPerSecond := int(rate) * int(channels) * int(bits) / 8
	p.loadDuration(float64(pcmBytes) / float64(bytesPerSecond))
	return nil
}

// LoadDuration marks the player ready for a clip of known length
// without backing audio, e.g. a bundled demo session.
func (p *Player) LoadDuration(seconds float64) {
	p.loadDuration(seconds)
}

func (p *Player) loadDuration(seconds float64) {
	p.mu.Lock()
	p.duration = seconds
	p.pos = 0
	p.ready = true
	ready := p.onReady
	p.mu.Unlock()

	if ready != nil {
		ready(seconds)
	}
}

func (p *Player) Duration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration
}

func (p *Player) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Play starts or resumes the position clock. Silently ignored until the
// clip is loaded.
func (p *Player) Play() {
	p.mu.Lock()
	if !p.ready || p.playing {
		p.mu.Unlock()
		return
	}
	p.playing = true
	p.stop = make(chan struct{})
	stop := p.stop
	p.mu.Unlock()

	go p.run(stop)
}

func (p *Player) Pause() {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return
	}
	p.playing = false
	close(p.stop)
	p.mu.Unlock()
}

// SetTime moves the position. Fire and forget: a player that is not
// ready rejects the request silently, per the playback contract.
func (p *Player) SetTime(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready {
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	if seconds > p.duration {
		seconds = p.duration
	}
	p.pos = seconds
}

func (p *Player) Close() {
	p.Pause()
}

func (p *Player) run(stop chan struct{}) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last).Seconds()
			last = now

			p.mu.Lock()
			p.pos += elapsed
			finished := p.pos >= p.duration
			if finished {
				p.pos = p.duration
				p.playing = false
			}
			pos := p.pos
			onTime, onFinish := p.onTime, p.onFinish
			p.mu.Unlock()

			if onTime != nil {
				onTime(pos)
			}
			if finished {
				if onFinish != nil {
					onFinish()
				}
				return
			}
		}
	}
}
