package session

import (
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"callsight/audio"
)

const (
	vadMode       = 3
	vadFrameMs    = 20
	vadFrameBytes = audio.SampleRate * vadFrameMs / 1000 * 2 // 640 bytes
)

// voiceGate accumulates device frames into VAD-sized chunks and keeps a
// per-tick speech ratio. The session reads it once per duration tick to
// decide whether the operator has gone quiet.
type voiceGate struct {
	vad *webrtcvad.VAD

	mu         sync.Mutex
	buf        []byte
	total      int
	speech     int
	tickTotal  int
	tickSpeech int
}

func newVoiceGate() (*voiceGate, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(vadMode); err != nil {
		return nil, err
	}
	return &voiceGate{vad: v}, nil
}

func (g *voiceGate) process(data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.buf = append(g.buf, data...)
	for len(g.buf) >= vadFrameBytes {
		frame := g.buf[:vadFrameBytes]
		g.buf = g.buf[vadFrameBytes:]

		active, err := g.vad.Process(audio.SampleRate, frame)
		if err != nil {
			continue
		}
		g.total++
		if active {
			g.speech++
		}
	}
}

const speechThreshold = 0.10 // 10% of frames must be speech to count as "speaking"

// speechTick reports whether enough speech arrived since the previous
// tick, and resets the per-tick counters.
func (g *voiceGate) speechTick() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := g.total - g.tickTotal
	s := g.speech - g.tickSpeech
	g.tickTotal, g.tickSpeech = g.total, g.speech
	if t == 0 {
		return false
	}
	return float64(s)/float64(t) >= speechThreshold
}
