package session

const (
	silenceWarnTicks = 8    // seconds of quiet before warning
	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher threshold to clear warning (hysteresis)
)

type silenceEvent int

const (
	silenceNone silenceEvent = iota
	silenceWarn                // no voice detected
	silenceClear               // speech resumed after warning
)

// silenceMonitor tracks speech presence over the last few duration
// ticks. Advisory only: a warning never stops capture.
type silenceMonitor struct {
	window [silenceWarnTicks]bool
	ticks  int
	warned bool
}

func newSilenceMonitor() *silenceMonitor {
	return &silenceMonitor{}
}

func (m *silenceMonitor) ratio() float64 {
	n := m.ticks
	if n > silenceWarnTicks {
		n = silenceWarnTicks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i)%silenceWarnTicks] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(hasSpeech bool) silenceEvent {
	m.window[m.ticks%silenceWarnTicks] = hasSpeech
	m.ticks++

	r := m.ratio()

	if m.ticks >= silenceWarnTicks && r < speechMinRatio && !m.warned {
		m.warned = true
		return silenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return silenceClear
	}
	return silenceNone
}
