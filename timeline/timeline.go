package timeline

import (
	"sort"
	"sync"

	"callsight/insight"
)

// Seeker is the playback side of the timeline. Seek requests are fire
// and forget; an implementation may silently ignore them while not
// ready.
type Seeker interface {
	SetTime(seconds float64)
	Play()
}

// Index maps a continuous playback position to the active transcript
// segment. Lookups rely on the segment sequence being sorted by start
// time, which the aggregator guarantees.
type Index struct {
	mu     sync.RWMutex
	segs   []insight.Segment
	seeker Seeker
}

func NewIndex(seeker Seeker) *Index {
	return &Index{seeker: seeker}
}

// Update replaces the indexed segment sequence. Callers hand over
// aggregator snapshots, which never mutate, so no copy is taken.
func (x *Index) Update(segs []insight.Segment) {
	x.mu.Lock()
	x.segs = segs
	x.mu.Unlock()
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.segs)
}

// ActiveSegment returns the segment whose span contains pos, inclusive
// on both ends. In a gap between segments, before the first or after
// the last it reports no match. When provisional segment spans overlap
// the latest-starting containing segment wins.
func (x *Index) ActiveSegment(pos float64) (insight.Segment, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	// First segment starting strictly after pos; the candidate is the
	// one just before it.
	i := sort.Search(len(x.segs), func(i int) bool {
		return x.segs[i].StartTime > pos
	})
	if i == 0 {
		return insight.Segment{}, false
	}
	if seg := x.segs[i-1]; pos <= seg.EndTime {
		return seg, true
	}
	return insight.Segment{}, false
}

// Seek asks the playback source to move to the given time and resume
// playing. No-op when no seeker is bound.
func (x *Index) Seek(startTime float64) {
	x.mu.RLock()
	seeker := x.seeker
	x.mu.RUnlock()

	if seeker == nil {
		return
	}
	seeker.SetTime(startTime)
	seeker.Play()
}
