package generation

import "time"

// EventType names what happened to a session.
type EventType string

const (
	EventSnapshot     EventType = "snapshot"
	EventState        EventType = "state"
	EventProgress     EventType = "progress"
	EventCompleted    EventType = "completed"
	EventFailed       EventType = "failed"
	EventTimeout      EventType = "timeout"
	EventNotification EventType = "notification"
)

// Event is published on a session stream, or on the owner stream when it is
// a notification.
type Event struct {
	SessionID    string    `json:"sessionId,omitempty"`
	OwnerID      string    `json:"-"`
	RecordID     string    `json:"cvId,omitempty"`
	Type         EventType `json:"type"`
	State        State     `json:"state,omitempty"`
	Progress     int       `json:"progress"`
	CandidateURL string    `json:"candidateUrl,omitempty"`
	ArtifactURL  string    `json:"artifactUrl,omitempty"`
	Error        string    `json:"error,omitempty"`
	ErrorKind    Kind      `json:"errorKind,omitempty"`
	Message      string    `json:"message,omitempty"`
	At           time.Time `json:"at"`
}

// Terminal reports whether the event ends its session stream.
func (e Event) Terminal() bool {
	switch e.Type {
	case EventCompleted, EventFailed, EventTimeout:
		return true
	}
	return false
}

// mustDeliver events are never dropped for a slow subscriber.
func (e Event) mustDeliver() bool {
	return e.Terminal() || e.Type == EventNotification
}

func eventFromSnapshot(t EventType, snap Snapshot, at time.Time) Event {
	return Event{
		SessionID:    snap.ID,
		OwnerID:      snap.OwnerID,
		RecordID:     snap.RecordID,
		Type:         t,
		State:        snap.State,
		Progress:     snap.Progress,
		CandidateURL: snap.CandidateURL,
		ArtifactURL:  snap.ArtifactURL,
		Error:        snap.Error,
		ErrorKind:    snap.ErrorKind,
		At:           at,
	}
}
