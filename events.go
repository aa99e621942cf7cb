package main

import (
	"fmt"

	"callsight/insight"
	"callsight/timeline"
)

// teaSink feeds session events into the Bubble Tea program and keeps
// the timeline index in step with the latest snapshot. Calls arrive
// serialized from the session's control goroutine.
type teaSink struct {
	idx *timeline.Index
}

func (s *teaSink) SessionStarted() { tuiSend(SessionStartedMsg{}) }
func (s *teaSink) SessionStopped() { tuiSend(SessionStoppedMsg{}) }

func (s *teaSink) Tick(elapsed int) { tuiSend(DurationTickMsg{Elapsed: elapsed}) }

func (s *teaSink) Level(rms float64) { tuiSend(AudioLevelMsg{Level: rms}) }

func (s *teaSink) Waveform(samples []float64) { tuiSend(WaveformMsg{Samples: samples}) }

func (s *teaSink) SnapshotUpdated(snap insight.Snapshot) {
	s.idx.Update(snap.Segments)
	tuiSend(SnapshotMsg{Snap: snap})
}

func (s *teaSink) NoVoiceWarning(active bool) { tuiSend(NoVoiceMsg{Active: active}) }

func (s *teaSink) TransportLost() { tuiSend(TransportLostMsg{}) }

// consoleSink is the headless (-tui=false) display: one line per event
// on stdout, transcript as it arrives.
type consoleSink struct {
	idx *timeline.Index

	lastSegs int
}

func (s *consoleSink) SessionStarted() { fmt.Println("session started") }
func (s *consoleSink) SessionStopped() { fmt.Println("session stopped") }

func (s *consoleSink) Tick(elapsed int)           {}
func (s *consoleSink) Level(rms float64)          {}
func (s *consoleSink) Waveform(samples []float64) {}

func (s *consoleSink) SnapshotUpdated(snap insight.Snapshot) {
	s.idx.Update(snap.Segments)
	for _, seg := range snap.Segments[s.lastSegs:] {
		fmt.Printf("[%4.0fs] %s: %s\n", seg.StartTime, seg.Speaker, seg.Text)
	}
	s.lastSegs = len(snap.Segments)
	fmt.Printf("        risk %.0f, sentiment %s\n", snap.RiskScore, snap.Sentiment)
}

func (s *consoleSink) NoVoiceWarning(active bool) {
	if active {
		fmt.Println("warning: no voice detected")
	}
}

func (s *consoleSink) TransportLost() { fmt.Println("warning: backend connection lost") }
