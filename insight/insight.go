package insight

// DefaultSentiment is the bootstrap value shown before the backend has
// reported anything. It is never re-applied once a real value arrives.
const DefaultSentiment = "Neutral"

// LiveSpeaker labels segments produced during a live session. The
// backend does not attribute chunks to a speaker.
const LiveSpeaker = "Live"

// provisionalSegmentDur pads each transcript chunk into a one second
// segment. The backend does not report utterance boundaries, so this is
// a documented simplification rather than real segmentation.
const provisionalSegmentDur = 1.0

type Entity struct {
	Type    string `json:"type"`
	Value   string `json:"value"`
	Context string `json:"context,omitempty"`
}

// Segment is one timestamped span of transcribed speech. Immutable once
// appended; the sequence stays sorted by StartTime.
type Segment struct {
	ID        int64
	Speaker   string
	StartTime float64
	EndTime   float64
	Text      string
}

// Event is one inbound analysis message. Every field is optional; an
// event carrying none of them is a no-op.
type Event struct {
	RiskScore       *float64 `json:"risk_score,omitempty"`
	Sentiment       string   `json:"sentiment,omitempty"`
	TranscriptChunk string   `json:"transcript_chunk,omitempty"`
	Entities        []Entity `json:"entities,omitempty"`
}

// Snapshot is the running aggregate of everything the backend has said
// about the session so far.
type Snapshot struct {
	RiskScore float64
	Sentiment string
	Entities  []Entity
	Segments  []Segment

	nextID int64
}

func NewSnapshot() Snapshot {
	return Snapshot{Sentiment: DefaultSentiment, nextID: 1}
}

// Apply folds one event into the snapshot and returns the result.
// elapsed is the session's elapsed time in seconds when the event
// arrived. Rules:
//
//   - risk_score overwrites, latest value wins, clamped to [0, 100]
//   - sentiment overwrites only when present
//   - transcript_chunk appends a provisional one second segment
//   - entities append as-is, duplicates included
func Apply(s Snapshot, e Event, elapsed float64) Snapshot {
	if e.RiskScore != nil {
		score := *e.RiskScore
		if score < 0 {
			score = 0
		} else if score > 100 {
			score = 100
		}
		s.RiskScore = score
	}

	if e.Sentiment != "" {
		s.Sentiment = e.Sentiment
	}

	if e.TranscriptChunk != "" {
		start := elapsed
		// Arrival order defines segment order; clamp a stale clock so
		// start times stay non-decreasing for the timeline lookup.
		if n := len(s.Segments); n > 0 && start < s.Segments[n-1].StartTime {
			start = s.Segments[n-1].StartTime
		}
		seg := Segment{
			ID:        s.nextID,
			Speaker:   LiveSpeaker,
			StartTime: start,
			EndTime:   start + provisionalSegmentDur,
			Text:      e.TranscriptChunk,
		}
		s.nextID++
		s.Segments = appendCopy(s.Segments, seg)
	}

	if len(e.Entities) > 0 {
		s.Entities = appendCopy(s.Entities, e.Entities...)
	}

	return s
}

// appendCopy appends without sharing backing arrays between snapshot
// generations, so a retained snapshot never mutates under a reader.
func appendCopy[T any](in []T, items ...T) []T {
	out := make([]T, len(in), len(in)+len(items))
	copy(out, in)
	return append(out, items...)
}
