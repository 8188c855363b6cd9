// Package sequencer stamps outgoing frames with a monotonic sequence number
// and classifies incoming frames against the cursor it expects next.
package sequencer

import "sync"

// Classification describes how an incoming frame relates to the Sequencer's
// expected_sequence cursor. A frame is classified as exactly one of these.
type Classification string

const (
	// Normal is a frame whose sequence equals expected_sequence.
	Normal Classification = "normal"
	// Duplicate is a frame whose sequence has already been seen.
	Duplicate Classification = "duplicate"
	// Gap is a frame whose sequence is ahead of expected_sequence, meaning
	// one or more frames were lost or are still in flight.
	Gap Classification = "gap"
	// OutOfOrder is a frame whose sequence is behind expected_sequence but
	// has not been seen before (it arrived late).
	OutOfOrder Classification = "out_of_order"
)

// seenSetCapacity bounds how many trailing sequence numbers the Sequencer
// remembers for duplicate detection.
const seenSetCapacity = 1000

// Sequencer stamps a monotonically increasing sequence number onto
// outgoing frames and classifies incoming frames against the sequence it
// expects next. It is not safe to share a single Sequencer between an
// outgoing and an incoming stream; each direction gets its own instance.
type Sequencer struct {
	mu sync.Mutex

	nextOut uint64

	expected uint64
	started  bool
	seen     map[uint64]struct{}

	stats Stats
}

// Stats tallies every classification Process has ever returned for this
// Sequencer's incoming stream.
type Stats struct {
	Normal     uint64
	Duplicate  uint64
	Gap        uint64
	OutOfOrder uint64
}

// New returns a Sequencer ready to stamp or classify frames, starting its
// outgoing counter and its expected-incoming cursor at zero.
func New() *Sequencer {
	return &Sequencer{
		seen: make(map[uint64]struct{}, seenSetCapacity),
	}
}

// Next returns the next outgoing sequence number and advances the
// outgoing counter.
func (s *Sequencer) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.nextOut
	s.nextOut++
	return seq
}

// Result is the outcome of classifying one incoming sequence number.
type Result struct {
	Sequence       uint64
	Classification Classification
	// Expected is the sequence the Sequencer was expecting at the time
	// this frame was processed.
	Expected uint64
	// Missing lists the sequence numbers skipped over by a Gap
	// classification. It is empty for every other classification.
	Missing []uint64
}

// Process classifies an incoming sequence number and advances the
// expected-sequence cursor when appropriate.
//
// The seen-set is checked strictly before the gap/out-of-order/normal
// branch runs, so a frame is never classified as both duplicate and gap:
// once a sequence number has been recorded as seen, every later arrival of
// that same number is a duplicate regardless of where the cursor has moved.
func (s *Sequencer) Process(seq uint64) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.started = true
		s.expected = seq
	}

	if _, dup := s.seen[seq]; dup {
		s.stats.Duplicate++
		return Result{Sequence: seq, Classification: Duplicate, Expected: s.expected}
	}

	s.markSeen(seq)

	switch {
	case seq == s.expected:
		s.expected = seq + 1
		s.stats.Normal++
		return Result{Sequence: seq, Classification: Normal, Expected: seq}

	case seq > s.expected:
		missing := make([]uint64, 0, seq-s.expected)
		for m := s.expected; m < seq; m++ {
			missing = append(missing, m)
		}
		result := Result{Sequence: seq, Classification: Gap, Expected: s.expected, Missing: missing}
		s.expected = seq + 1
		s.stats.Gap++
		return result

	default: // seq < s.expected
		s.stats.OutOfOrder++
		return Result{Sequence: seq, Classification: OutOfOrder, Expected: s.expected}
	}
}

// Stats reports the cumulative classification counts for this Sequencer's
// incoming stream.
func (s *Sequencer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// markSeen records seq and, once the set exceeds seenSetCapacity, evicts
// every entry more than seenSetCapacity below seq so the seen-set stays
// bounded regardless of call duration.
func (s *Sequencer) markSeen(seq uint64) {
	s.seen[seq] = struct{}{}
	if len(s.seen) <= seenSetCapacity {
		return
	}

	floor := uint64(0)
	if seq > seenSetCapacity {
		floor = seq - seenSetCapacity
	}
	for old := range s.seen {
		if old < floor {
			delete(s.seen, old)
		}
	}
}

// Expected reports the sequence number the Sequencer currently expects.
func (s *Sequencer) Expected() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expected
}
