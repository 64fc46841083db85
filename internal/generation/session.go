package generation

import (
	"sync"
	"time"

	"cvbuilder-backend/internal/artifacts"
)

// State is the lifecycle position of a generation session.
type State string

const (
	StateIdle          State = "idle"
	StatePendingSubmit State = "pendingSubmit"
	StateGenerating    State = "generating"
	StateFinalizing    State = "finalizing"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
	StateTimedOut      State = "timedOut"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut
}

// Outcome is how a session ended.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeTimeout Outcome = "timeout"
)

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID             string           `json:"id"`
	RecordID       string           `json:"cvId"`
	OwnerID        string           `json:"-"`
	CVName         string           `json:"cvName"`
	State          State            `json:"state"`
	Progress       int              `json:"progress"`
	CandidateURL   string           `json:"candidateUrl,omitempty"`
	ArtifactURL    string           `json:"artifactUrl,omitempty"`
	ArtifactStatus artifacts.Status `json:"artifactStatus,omitempty"`
	Outcome        Outcome          `json:"outcome,omitempty"`
	Error          string           `json:"error,omitempty"`
	ErrorKind      Kind             `json:"errorKind,omitempty"`
	StartedAt      time.Time        `json:"startedAt"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
}

// session is the mutable in-memory state behind a Snapshot.
type session struct {
	mu       sync.Mutex
	snap     Snapshot
	progress *Progress
	err      error
	done     chan struct{}
	// remoteDone closes when the generation service call has returned.
	remoteDone chan struct{}
}

func newSession(snap Snapshot, progress *Progress) *session {
	return &session{
		snap:       snap,
		progress:   progress,
		done:       make(chan struct{}),
		remoteDone: make(chan struct{}),
	}
}

func (s *session) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.snap
	if out.CompletedAt != nil {
		t := *out.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// update applies fn unless the session is already terminal. It reports
// whether fn ran.
func (s *session) update(fn func(*Snapshot)) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.State.Terminal() {
		return s.snap, false
	}
	fn(&s.snap)
	return s.snap, true
}

// finish moves the session to a terminal state exactly once.
func (s *session) finish(at time.Time, fn func(*Snapshot), err error) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.State.Terminal() {
		return s.snap, false
	}
	fn(&s.snap)
	t := at
	s.snap.CompletedAt = &t
	s.err = err
	if err != nil {
		s.snap.Error = err.Error()
		s.snap.ErrorKind = KindOf(err)
	}
	close(s.done)
	return s.snap, true
}

func (s *session) result() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, s.err
}
