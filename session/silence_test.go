package session

import "testing"

func feedTicks(m *silenceMonitor, speech bool, n int) silenceEvent {
	last := silenceNone
	for i := 0; i < n; i++ {
		if ev := m.Tick(speech); ev != silenceNone {
			last = ev
		}
	}
	return last
}

func TestSilenceWarnsAfterQuietWindow(t *testing.T) {
	m := newSilenceMonitor()

	for i := 0; i < silenceWarnTicks-1; i++ {
		if ev := m.Tick(false); ev != silenceNone {
			t.Fatalf("tick %d: got %v before window filled", i, ev)
		}
	}
	if ev := m.Tick(false); ev != silenceWarn {
		t.Fatalf("got %v at window boundary, want silenceWarn", ev)
	}
	// Warning fires once, not every quiet tick.
	if ev := feedTicks(m, false, 5); ev != silenceNone {
		t.Errorf("repeated warn: %v", ev)
	}
}

func TestSilenceNoWarnWhileSpeaking(t *testing.T) {
	m := newSilenceMonitor()
	// Every other tick has speech: ratio stays at 0.5.
	for i := 0; i < 30; i++ {
		if ev := m.Tick(i%2 == 0); ev != silenceNone {
			t.Fatalf("tick %d: unexpected %v", i, ev)
		}
	}
}

func TestSilenceClearsWithHysteresis(t *testing.T) {
	m := newSilenceMonitor()
	if ev := feedTicks(m, false, silenceWarnTicks); ev != silenceWarn {
		t.Fatalf("setup: got %v, want silenceWarn", ev)
	}

	// One speech tick in eight is 0.125: above the warn threshold but
	// below the clear threshold, so the warning holds.
	if ev := m.Tick(true); ev != silenceNone {
		t.Fatalf("got %v at ratio 0.125, want none", ev)
	}
	if ev := m.Tick(true); ev != silenceClear {
		t.Fatalf("got %v at ratio 0.25, want silenceClear", ev)
	}

	// And the cycle can repeat.
	if ev := feedTicks(m, false, silenceWarnTicks); ev != silenceWarn {
		t.Errorf("after clear: got %v, want silenceWarn again", ev)
	}
}
