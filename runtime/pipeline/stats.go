package pipeline

import (
	"github.com/callbridge/streamcore/runtime/jitter"
	"github.com/callbridge/streamcore/runtime/playback"
	"github.com/callbridge/streamcore/runtime/sequencer"
)

// Stats aggregates the per-call counters exposed by a Pipeline, folding
// together the jitter buffer's own window statistics, the egress
// sequencer's classification counts, and the pipeline's own
// ingress/egress/augmentation counters.
type Stats struct {
	FramesIngressed     uint64
	FramesEgressed      uint64
	BytesIngressed      uint64
	BytesEgressed       uint64
	TranscriptsReceived uint64
	TokenEventsReceived uint64
	Concealed           uint64
	BreathingInserted   uint64
	PausesInserted      uint64
	ReconnectEvents     uint64
	PlaybackRate        float64
	PlaybackState       playback.State
	Jitter              jitter.Stats
	Sequencer           sequencer.Stats
}
