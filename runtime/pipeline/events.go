package pipeline

// EventKind discriminates the events a Pipeline surfaces to its owner. It
// mirrors the upstream client's event vocabulary plus the pipeline's own
// error surface, so a caller never needs to reach past the pipeline into
// upstream internals to observe call progress.
type EventKind string

const (
	EventStarted      EventKind = "started"
	EventStopped      EventKind = "stopped"
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
	EventTranscript   EventKind = "transcript"
	EventLLMToken     EventKind = "llm_token"
	EventLLMDone      EventKind = "llm_done"
	EventAudio        EventKind = "audio"
	EventError        EventKind = "error"
)

// Event is the sum type carried on the Pipeline's event channel.
type Event struct {
	Kind         EventKind
	ConnectionID string
	Audio        []byte
	Text         string
	CloseReason  string
	Err          error
}
