package waveform

import (
	"math"
	"sync"
	"time"
)

const DefaultWindow = 5 * time.Second

type sample struct {
	at    time.Time
	value float64
}

// Buffer holds a scrolling window of amplitude samples for waveform
// rendering. Eviction is wall-clock based so the visible span stays
// constant regardless of how often the capture device delivers frames.
type Buffer struct {
	mu      sync.Mutex
	window  time.Duration
	samples []sample
	start   int // index of oldest live sample
	now     func() time.Time
}

func New(window time.Duration) *Buffer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Buffer{window: window, now: time.Now}
}

// Push appends one amplitude sample and evicts samples that fell out of
// the window. NaN and negative amplitudes are clamped to zero.
func (b *Buffer) Push(amplitude float64) {
	if math.IsNaN(amplitude) || amplitude < 0 {
		amplitude = 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.samples = append(b.samples, sample{at: now, value: amplitude})

	cutoff := now.Add(-b.window)
	for b.start < len(b.samples) && b.samples[b.start].at.Before(cutoff) {
		b.start++
	}

	// Compact once the dead prefix dominates, keeping memory bounded by
	// window duration times sample rate.
	if b.start > len(b.samples)/2 {
		n := copy(b.samples, b.samples[b.start:])
		b.samples = b.samples[:n]
		b.start = 0
	}
}

// Snapshot returns the live samples oldest-first. The returned slice is
// a copy and safe to hand to a render loop.
func (b *Buffer) Snapshot() []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]float64, len(b.samples)-b.start)
	for i, s := range b.samples[b.start:] {
		out[i] = s.value
	}
	return out
}

// Span reports the wall-clock distance between the oldest and newest
// live samples.
func (b *Buffer) Span() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.samples)-b.start < 2 {
		return 0
	}
	return b.samples[len(b.samples)-1].at.Sub(b.samples[b.start].at)
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples) - b.start
}

func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = b.samples[:0]
	b.start = 0
}
