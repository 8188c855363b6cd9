package pipeline

import "time"

// Direction is the call's originating direction.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Status is a CallSession's lifecycle state.
type Status string

const (
	Queued     Status = "queued"
	Ringing    Status = "ringing"
	InProgress Status = "in-progress"
	Completed  Status = "completed"
	Failed     Status = "failed"
)

func (s Status) terminal() bool {
	return s == Completed || s == Failed
}

// CallSession is the root entity holding one pipeline instance. It owns
// all pipeline resources exclusively; nothing outside the session accesses
// them.
type CallSession struct {
	ID        string
	Direction Direction
	Status    Status
	StartedAt time.Time
	EndedAt   time.Time
	Metadata  map[string]any
}

// NewCallSession constructs a session in the Queued state.
func NewCallSession(id string, direction Direction) *CallSession {
	return &CallSession{
		ID:        id,
		Direction: direction,
		Status:    Queued,
		Metadata:  make(map[string]any),
	}
}

func (s *CallSession) transitionTo(status Status) {
	if s.Status.terminal() {
		return
	}
	s.Status = status
	if status == InProgress && s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	if status.terminal() {
		s.EndedAt = time.Now()
	}
}
