// Package pipeline wires the audio codec, sequencer, jitter buffer,
// playback controller, chunk manager, breathing generator, pause manager,
// and upstream client into one per-call engine, and exposes the ingress
// callback and event stream a carrier adapter drives and observes.
package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/callbridge/streamcore/pkg/config"
	pkgerrors "github.com/callbridge/streamcore/pkg/errors"
	"github.com/callbridge/streamcore/runtime/breathing"
	"github.com/callbridge/streamcore/runtime/carrier"
	"github.com/callbridge/streamcore/runtime/chunking"
	"github.com/callbridge/streamcore/runtime/codec"
	"github.com/callbridge/streamcore/runtime/enginelog"
	"github.com/callbridge/streamcore/runtime/jitter"
	"github.com/callbridge/streamcore/runtime/pause"
	"github.com/callbridge/streamcore/runtime/playback"
	"github.com/callbridge/streamcore/runtime/sequencer"
	"github.com/callbridge/streamcore/runtime/upstream"
)

const (
	sampleRateWide = 16000
	tickBaseMs     = 20
)

// Pipeline owns one call's full engine: the upstream connection and every
// downstream component, wired per the data-flow contract. A Pipeline is
// constructed for exactly one CallSession and is not reused.
type Pipeline struct {
	cfg     config.PipelineConfigSpec
	log     enginelog.Logger
	adapter carrier.Adapter
	session *CallSession

	upstreamClient *upstream.Client
	// seqIngress stamps carrier frames forwarded upstream; seqEgress stamps
	// audio chunks entering the jitter buffer. Each direction gets its own
	// instance, since a Sequencer's counter and classification state are
	// not meant to be shared across directions.
	seqIngress   *sequencer.Sequencer
	seqEgress    *sequencer.Sequencer
	jitterBuf    *jitter.Buffer
	playbackCtrl *playback.Controller
	chunkMgr     *chunking.Manager
	breathingGen *breathing.Generator
	pauseMgr     *pause.Manager

	events chan Event

	mu                 sync.Mutex
	stats              Stats
	lastEmittedWide    []byte
	pendingText        string
	pendingWordCount   int
	pendingSentenceEnd bool
	pendingLongPause   bool

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// New constructs a Pipeline for session from cfg, ready to Start.
func New(session *CallSession, cfg config.PipelineConfigSpec, adapter carrier.Adapter, log enginelog.Logger) *Pipeline {
	if log == nil {
		log = enginelog.Noop()
	}

	upstreamClient := upstream.New(upstream.Config{
		BaseURL:  cfg.Upstream.BaseURL,
		APIKey:   cfg.Upstream.APIKey,
		Language: cfg.Upstream.Language,
		Logger:   log,
	})

	jitterBuf := jitter.New(jitter.Config{
		MinMs:    cfg.Jitter.MinMs,
		MaxMs:    cfg.Jitter.MaxMs,
		TargetMs: cfg.Jitter.TargetMs,
	})

	playbackCtrl := playback.New(playback.Config{
		MinRate:       cfg.Playback.MinRate,
		MaxRate:       cfg.Playback.MaxRate,
		LowWatermark:  cfg.Playback.LowWatermark,
		HighWatermark: cfg.Playback.HighWatermark,
		CrossfadeMs:   cfg.Playback.CrossfadeMs,
		SampleRate:    sampleRateWide,
	})

	chunkMgr := chunking.New(chunking.Config{MinMs: cfg.Chunk.MinMs, MaxMs: cfg.Chunk.MaxMs})

	breathingGen := breathing.New(breathing.Config{
		Enabled:   cfg.Breathing.Enabled,
		Intensity: cfg.Breathing.Intensity,
	}, sampleRateWide)

	pauseMgr := pause.New(pause.Config{
		Enabled:    cfg.Pauses.Enabled,
		SpeechRate: cfg.Pauses.SpeechRate,
		Adaptive:   cfg.Pauses.Adaptive,
	}, sampleRateWide)

	return &Pipeline{
		cfg:            cfg,
		log:            log,
		adapter:        adapter,
		session:        session,
		upstreamClient: upstreamClient,
		seqIngress:     sequencer.New(),
		seqEgress:      sequencer.New(),
		jitterBuf:      jitterBuf,
		playbackCtrl:   playbackCtrl,
		chunkMgr:       chunkMgr,
		breathingGen:   breathingGen,
		pauseMgr:       pauseMgr,
		events:         make(chan Event, 128),
	}
}

// Events returns the channel of events surfaced to the pipeline's owner.
// The caller must drain it for the pipeline's lifetime.
func (p *Pipeline) Events() <-chan Event { return p.events }

// Session returns the CallSession this pipeline drives.
func (p *Pipeline) Session() *CallSession { return p.session }

// IngressHandler adapts PushIngress to the carrier.IngressSource shape,
// for registration with whatever delivers inbound carrier media frames.
// Frames addressed to any session other than this pipeline's are ignored.
func (p *Pipeline) IngressHandler() carrier.IngressSource {
	return func(sessionID string, frameBytes []byte) {
		if sessionID != p.session.ID {
			return
		}
		if err := p.PushIngress(frameBytes); err != nil {
			p.log.Debug("ingress after session terminal", "session_id", sessionID, "error", err)
		}
	}
}

// Start opens the upstream connection and begins the playback loop. It
// returns once the three per-call tasks are running; it does not block for
// the call's duration. ctx bounds the pipeline's lifetime: canceling it winds
// the three tasks down and closes the event stream, but unlike Stop it does
// not mark the session Completed or invoke the adapter's teardown hook.
func (p *Pipeline) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	p.session.transitionTo(InProgress)
	p.emit(Event{Kind: EventStarted})
	p.playbackCtrl.Start()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		return p.upstreamClient.Run(groupCtx)
	})
	group.Go(func() error {
		p.relayUpstreamEvents(groupCtx)
		return nil
	})
	group.Go(func() error {
		return p.playbackLoop(groupCtx)
	})

	go func() {
		err := group.Wait()
		if err != nil {
			p.log.Error("pipeline task failed", "session_id", p.session.ID, "error", err)
		}
		// Emitted here rather than inside Stop itself so it fires however the
		// three tasks actually wound down, whether via an explicit Stop or
		// the caller canceling ctx directly.
		p.emit(Event{Kind: EventStopped})
		close(p.events)
		close(p.done)
	}()

	return nil
}

// PushIngress performs the narrow-to-wide transcode and forwards the
// result upstream if the connection is open. When not connected, the frame
// is dropped silently; ingress never blocks or retries. FramesIngressed
// counts every decoded frame, sent or dropped, and BytesIngressed counts
// only bytes actually sent; there is no separate dropped-frame counter. It
// returns SESSION_GONE if the session has already reached a terminal status.
func (p *Pipeline) PushIngress(carrierFrameBytes []byte) error {
	if p.session.Status.terminal() {
		return pkgerrors.New("pipeline", "PushIngress", nil).WithKind(pkgerrors.KindSessionGone)
	}

	wide, err := codec.DecodeNarrowToWide(carrierFrameBytes)
	if err != nil {
		p.log.Warn("ingress decode failed", "session_id", p.session.ID, "error", err)
		return nil
	}

	stamp := p.seqIngress.Next()
	p.mu.Lock()
	p.stats.FramesIngressed++
	p.mu.Unlock()

	if sendErr := p.upstreamClient.Send(wide); sendErr != nil {
		p.log.Debug("ingress dropped, upstream not open", "session_id", p.session.ID, "sequence", stamp)
		return nil
	}

	p.mu.Lock()
	p.stats.BytesIngressed += uint64(len(wide))
	p.mu.Unlock()
	return nil
}

// relayUpstreamEvents drains the upstream client's event channel, feeding
// audio into the chunking/sequencing/jitter pipeline and forwarding
// transcript/token/lifecycle events to the pipeline's own event channel.
// It never returns an error: an upstream connection failure must not
// propagate as a fatal error to the rest of the call.
func (p *Pipeline) relayUpstreamEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-p.upstreamClient.Events():
			if !ok {
				return
			}
			p.handleUpstreamEvent(evt)
		}
	}
}

func (p *Pipeline) handleUpstreamEvent(evt upstream.Event) {
	switch evt.Kind {
	case upstream.EventConnected:
		p.emit(Event{Kind: EventConnected, ConnectionID: evt.ConnectionID})
	case upstream.EventDisconnected:
		p.mu.Lock()
		p.stats.ReconnectEvents++
		p.mu.Unlock()
		p.emit(Event{Kind: EventDisconnected, CloseReason: evt.CloseReason})
	case upstream.EventTranscript:
		p.mu.Lock()
		p.stats.TranscriptsReceived++
		p.mu.Unlock()
		p.notePendingText(evt.Text, false)
		p.emit(Event{Kind: EventTranscript, Text: evt.Text})
	case upstream.EventLLMToken:
		p.mu.Lock()
		p.stats.TokenEventsReceived++
		p.mu.Unlock()
		p.emit(Event{Kind: EventLLMToken, Text: evt.Text})
	case upstream.EventLLMDone:
		p.notePendingText(evt.Text, true)
		p.emit(Event{Kind: EventLLMDone, Text: evt.Text})
	case upstream.EventAudio:
		p.enqueueAudio(evt.Audio)
	case upstream.EventError:
		p.emit(Event{Kind: EventError, Err: evt.Err})
	}
}

// notePendingText records the most recently completed response text, used
// as the pause/breathing correlate for the next audio frame the protocol
// delivers. The upstream protocol carries no explicit linkage between a
// text frame and the binary audio that realizes it, so pairing "most
// recently completed response" with "next audio frame" is a heuristic.
func (p *Pipeline) notePendingText(text string, sentenceEnd bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingText = text
	p.pendingWordCount = len(strings.Fields(text))
	p.pendingSentenceEnd = sentenceEnd
	for _, pt := range p.pauseMgr.Analyze(text) {
		if pt.DurationMs > cfgSentencePauseThresholdMs {
			p.pendingLongPause = true
			break
		}
	}
}

const cfgSentencePauseThresholdMs = 400

// enqueueAudio splits one upstream audio frame into chunks sized by the
// chunk manager's current policy, optionally splices in punctuation pauses
// correlated with the most recent completed text, and sequences+enqueues
// each resulting chunk onto the jitter buffer.
func (p *Pipeline) enqueueAudio(wide []byte) {
	now := time.Now()

	jstats := p.jitterBuf.Stats()
	p.chunkMgr.Observe(jstats.MeanGapMs, jstats.JitterMs)

	chunks := p.chunkMgr.Split(wide, sampleRateWide, nil)

	p.mu.Lock()
	text := p.pendingText
	p.pendingText = ""
	p.mu.Unlock()

	var pauseChunks []pause.Chunk
	if text != "" {
		points := p.pauseMgr.Analyze(text)
		if len(points) > 0 {
			samplesPerChar := float64(len(wide)/2) / float64(max1(pause.RuneLen(text)))
			audioChunks := make([]pause.Chunk, len(chunks))
			offset := 0
			for i, c := range chunks {
				audioChunks[i] = pause.Chunk{Bytes: c.Bytes, CharOffset: int(float64(offset) / samplesPerChar)}
				offset += len(c.Bytes) / 2
			}
			pauseChunks = p.pauseMgr.InsertPauses(audioChunks, points, samplesPerChar)
		}
	}

	if pauseChunks != nil {
		for _, pc := range pauseChunks {
			p.sequenceAndEnqueue(pc.Bytes, now)
		}
		p.mu.Lock()
		p.stats.PausesInserted += uint64(len(pauseChunks) - len(chunks))
		p.mu.Unlock()
		return
	}

	for _, c := range chunks {
		p.sequenceAndEnqueue(c.Bytes, now)
	}
}

func max1(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

func (p *Pipeline) sequenceAndEnqueue(payload []byte, now time.Time) {
	seq := p.seqEgress.Next()
	p.seqEgress.Process(seq)

	durationMs := float64(len(payload)/2) * 1000 / float64(sampleRateWide)
	p.jitterBuf.Enqueue(jitter.Frame{Sequence: seq, DurationMs: durationMs, Payload: payload}, now)

	p.updateBufferLevel()
}

func (p *Pipeline) updateBufferLevel() {
	stats := p.jitterBuf.Stats()
	target := p.jitterBuf.TargetDepthMs()
	level := 0.0
	if target > 0 {
		level = stats.CurrentDepthMs / target
	}
	if level > 1 {
		level = 1
	}
	p.playbackCtrl.UpdateBufferLevel(level)
}

// playbackLoop is the timer-driven playback task: on each tick it dequeues
// one frame (or conceals a gap), optionally splices in a breathing burst,
// transcodes to narrow band, and emits it to the carrier adapter and to the
// pipeline's own event stream. The tick period is adjusted by the
// controller's current rate.
func (p *Pipeline) playbackLoop(ctx context.Context) error {
	for {
		rate := p.playbackCtrl.CurrentRate()
		if rate <= 0 {
			rate = 1.0
		}
		interval := time.Duration(float64(tickBaseMs) / rate * float64(time.Millisecond))

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.flushPending()
			return nil
		case <-timer.C:
		}

		p.tick()
	}
}

func (p *Pipeline) tick() {
	if p.playbackCtrl.State() != playback.Playing && p.playbackCtrl.State() != playback.Buffering {
		return
	}

	frame, ok := p.jitterBuf.Dequeue()
	p.updateBufferLevel()

	var widePayload []byte
	if ok {
		widePayload = frame.Payload
		p.maybeSpliceBreathing(&widePayload)
		p.mu.Lock()
		p.lastEmittedWide = widePayload
		p.mu.Unlock()
	} else {
		p.mu.Lock()
		last := p.lastEmittedWide
		p.mu.Unlock()
		widePayload = playback.Conceal(last, tickBaseMs, sampleRateWide)
		p.mu.Lock()
		p.stats.Concealed++
		p.mu.Unlock()
	}

	spliced := p.playbackCtrl.Emit(widePayload)
	p.emitNarrowFrame(spliced)
}

func (p *Pipeline) maybeSpliceBreathing(widePayload *[]byte) {
	p.mu.Lock()
	wordCount := p.pendingWordCount
	atSentenceEnd := p.pendingSentenceEnd
	atLongPause := p.pendingLongPause
	p.pendingSentenceEnd = false
	p.pendingLongPause = false
	p.mu.Unlock()

	decision := p.breathingGen.ShouldInsert(wordCount, atSentenceEnd, atLongPause)
	if !decision.Insert {
		return
	}
	burst := p.breathingGen.Generate(decision.Type, nil)
	*widePayload = append(*widePayload, burst...)

	p.mu.Lock()
	p.stats.BreathingInserted++
	p.mu.Unlock()
}

func (p *Pipeline) flushPending() {
	spliced := p.playbackCtrl.Flush()
	p.emitNarrowFrame(spliced)
}

func (p *Pipeline) emitNarrowFrame(wide []byte) {
	if wide == nil {
		return
	}
	narrow, err := codec.EncodeWideToNarrow(wide)
	if err != nil {
		p.log.Warn("egress encode failed", "session_id", p.session.ID, "error", err)
		return
	}

	if err := p.adapter.EgressSink(narrow); err != nil {
		p.log.Warn("carrier egress sink failed", "session_id", p.session.ID, "error", err)
	}

	p.mu.Lock()
	p.stats.FramesEgressed++
	p.stats.BytesEgressed += uint64(len(narrow))
	p.mu.Unlock()

	p.emit(Event{Kind: EventAudio, Audio: narrow})
}

func (p *Pipeline) emit(evt Event) {
	select {
	case p.events <- evt:
	default:
		p.log.Warn("dropping pipeline event, channel full", "kind", evt.Kind)
	}
}

// Stop is idempotent: it signals the upstream task to close and the
// playback task to exit on its next tick, then blocks until the errgroup
// has unwound before reporting the session's terminal status as Completed.
// Reason, if non-empty, is passed to the carrier adapter's teardown hook.
func (p *Pipeline) Stop(reason string) {
	p.stopOnce.Do(func() {
		p.upstreamClient.Stop()
		p.playbackCtrl.Stop()
		if p.cancel != nil {
			p.cancel()
		}
		if p.done != nil {
			<-p.done
		}
		p.session.transitionTo(Completed)
		p.adapter.OnTeardown(p.session.ID, reason)
	})
}

// Stats returns a snapshot of the pipeline's aggregated counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	stats := p.stats
	stats.PlaybackRate = p.playbackCtrl.CurrentRate()
	stats.PlaybackState = p.playbackCtrl.State()
	stats.Jitter = p.jitterBuf.Stats()
	stats.Sequencer = p.seqEgress.Stats()
	return stats
}
