package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"cvbuilder-backend/internal/artifacts"
	"cvbuilder-backend/internal/cvs"
	"cvbuilder-backend/internal/queue"
	"cvbuilder-backend/internal/shared/auth"
	"cvbuilder-backend/internal/shared/metrics"
	"cvbuilder-backend/internal/shared/storage/object"
	"cvbuilder-backend/internal/shared/telemetry"
	"cvbuilder-backend/internal/shared/tracing"
)

// ErrSessionNotFound is returned for unknown or foreign session ids.
var ErrSessionNotFound = errors.New("session not found")

const (
	DefaultDisplayTimeout = 90 * time.Second
	defaultTick           = 500 * time.Millisecond
	defaultRetention      = 10 * time.Minute
	confirmRetries        = 3
	tempRetention         = time.Hour
	tempIDPrefix          = "tmp-"
)

var tracer = tracing.Tracer("cvbuilder-backend/generation")

// Coordinator drives CV records from submitted job description to a
// displayable artifact. Sessions live in memory; records and artifacts live
// in the document and object stores.
type Coordinator struct {
	Records   cvs.Repo
	Artifacts *artifacts.Resolver
	Service   Service
	Tokens    auth.TokenProvider
	Events    *Broker
	// Queue receives the remote outcome of every generation. Optional.
	Queue queue.Client

	DisplayTimeout time.Duration
	Tick           time.Duration
	Retention      time.Duration
	Phases         []Phase
	Now            func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	active   map[string]string
	temps    map[string]cvs.Record
	failed   map[string]time.Time
	seed     uint64
	wg       sync.WaitGroup
}

// NewCoordinator wires a coordinator with default timings.
func NewCoordinator(records cvs.Repo, resolver *artifacts.Resolver, svc Service, tokens auth.TokenProvider, events *Broker) *Coordinator {
	if events == nil {
		events = NewBroker(0)
	}
	return &Coordinator{
		Records:        records,
		Artifacts:      resolver,
		Service:        svc,
		Tokens:         tokens,
		Events:         events,
		DisplayTimeout: DefaultDisplayTimeout,
		sessions:       make(map[string]*session),
		active:         make(map[string]string),
		temps:          make(map[string]cvs.Record),
		failed:         make(map[string]time.Time),
		seed:           uint64(time.Now().UnixNano()),
	}
}

// CreatePendingRecord stores a new record for jobDescription. When the store
// rejects the write, a temporary in-memory record is returned together with
// a store_write_error so the caller can continue in degraded mode.
func (c *Coordinator) CreatePendingRecord(ctx context.Context, ownerID, jobDescription, name string) (cvs.Record, error) {
	ctx, span := tracer.Start(ctx, "generation.create_record")
	defer span.End()

	if strings.TrimSpace(ownerID) == "" {
		return cvs.Record{}, newError(KindAuthRequired, "sign in required", nil)
	}
	jd := strings.TrimSpace(jobDescription)
	if jd == "" {
		return cvs.Record{}, fmt.Errorf("%w: job description is required", cvs.ErrInvalidInput)
	}

	now := c.now()
	if strings.TrimSpace(name) == "" {
		name = cvs.DefaultName(now)
	} else {
		n, err := cvs.NormalizeName(name)
		if err != nil {
			return cvs.Record{}, err
		}
		name = n
	}

	rec := cvs.Record{
		ID:             uuid.NewString(),
		UserID:         ownerID,
		Name:           name,
		JobDescription: jd,
		Status:         cvs.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := c.Records.Create(ctx, rec); err != nil {
		rec.ID = tempIDPrefix + uuid.NewString()
		rec.IsTemporary = true
		c.mu.Lock()
		c.prune(now)
		c.temps[rec.ID] = rec
		c.mu.Unlock()

		werr := newError(KindStoreWrite, "cv record could not be saved", err)
		span.RecordError(err)
		metrics.IncRecordDegraded()
		telemetry.Warn("generation.record.degraded", map[string]any{
			"cv_id":   rec.ID,
			"user_id": ownerID,
			"error":   err,
		})
		c.notify(ctx, ownerID, rec.ID, "", werr)
		return rec, werr
	}

	span.SetAttributes(attribute.String("cv.id", rec.ID))
	telemetry.Info("generation.record.created", map[string]any{"cv_id": rec.ID, "user_id": ownerID})
	return rec, nil
}

// RequestGeneration runs one generation for the record and waits until the
// session reaches a terminal state. A display timeout returns early with a
// timeout error while the remote call keeps running.
func (c *Coordinator) RequestGeneration(ctx context.Context, ownerID, recordID string) (Snapshot, error) {
	s, rec, err := c.begin(ctx, ownerID, recordID)
	if err != nil {
		return Snapshot{}, err
	}
	c.launch(ctx, s, rec)

	select {
	case <-s.done:
	case <-ctx.Done():
		return s.snapshot(), ctx.Err()
	}
	return s.result()
}

// StartGeneration validates the request, starts the session in the
// background and returns its first snapshot.
func (c *Coordinator) StartGeneration(ctx context.Context, ownerID, recordID string) (Snapshot, error) {
	s, rec, err := c.begin(ctx, ownerID, recordID)
	if err != nil {
		return Snapshot{}, err
	}
	c.launch(ctx, s, rec)
	return s.snapshot(), nil
}

// Record returns a stored or temporary record owned by ownerID.
func (c *Coordinator) Record(ctx context.Context, ownerID, recordID string) (cvs.Record, error) {
	if strings.TrimSpace(ownerID) == "" {
		return cvs.Record{}, newError(KindAuthRequired, "sign in required", nil)
	}
	return c.resolveRecord(ctx, ownerID, recordID)
}

// ActiveSession returns the id of the session generating recordID, if any.
func (c *Coordinator) ActiveSession(recordID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.active[recordID]
	return id, ok
}

// CheckArtifactExists resolves the artifact for cvName. Storage read errors
// never fail the call; they degrade the result to a candidate URL.
func (c *Coordinator) CheckArtifactExists(ctx context.Context, ownerID, cvName string) (artifacts.Lookup, error) {
	paths, name, err := c.pathsForName(ctx, ownerID, cvName)
	if err != nil {
		return artifacts.Lookup{}, err
	}
	lookup := c.Artifacts.Resolve(ctx, false, paths...)
	c.recordLookup(ctx, ownerID, name, lookup)
	return lookup, nil
}

// Retry clears the failure flag for cvName and runs exactly one new lookup.
func (c *Coordinator) Retry(ctx context.Context, ownerID, cvName string) (artifacts.Lookup, error) {
	paths, name, err := c.pathsForName(ctx, ownerID, cvName)
	if err != nil {
		return artifacts.Lookup{}, err
	}
	c.mu.Lock()
	delete(c.failed, lookupKey(ownerID, name))
	c.mu.Unlock()

	lookup := c.Artifacts.Resolve(ctx, true, paths...)
	c.recordLookup(ctx, ownerID, name, lookup)
	return lookup, nil
}

// LookupFailed reports whether the last lookup for cvName did not confirm
// an artifact.
func (c *Coordinator) LookupFailed(ownerID, cvName string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, failed := c.failed[lookupKey(ownerID, strings.TrimSpace(cvName))]
	return failed
}

// RefreshDisplay returns a display URL for the record with a fresh
// cache-busting token. The record is resolved by id, then by name.
func (c *Coordinator) RefreshDisplay(ctx context.Context, ownerID, cvIDOrName string) (string, error) {
	if strings.TrimSpace(ownerID) == "" {
		return "", newError(KindAuthRequired, "sign in required", nil)
	}
	key := strings.TrimSpace(cvIDOrName)

	var paths []string
	rec, err := c.resolveRecord(ctx, ownerID, key)
	switch {
	case err == nil:
		paths = cvs.ArtifactPaths(rec)
	case errors.Is(err, ErrRecordNotFound):
		paths, _, err = c.pathsForName(ctx, ownerID, key)
		if err != nil {
			return "", err
		}
	default:
		return "", err
	}

	lookup := c.Artifacts.Resolve(ctx, true, paths...)
	if !lookup.Displayable() {
		return "", newError(KindArtifactUnavailable, "no artifact to display", nil)
	}
	url := lookup.URL
	// Signed S3/GCS URLs cover the query string; a new signature is already fresh.
	if lookup.Status == artifacts.StatusCandidate || !object.SignsQuery(c.Artifacts.Store) {
		url = artifacts.CacheBust(url, c.now())
	}
	return url, nil
}

// Session returns a snapshot of a session owned by ownerID.
func (c *Coordinator) Session(ownerID, sessionID string) (Snapshot, error) {
	c.mu.Lock()
	s, ok := c.sessions[sessionID]
	c.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}
	snap := s.snapshot()
	if snap.OwnerID != ownerID {
		return Snapshot{}, ErrSessionNotFound
	}
	return snap, nil
}

// Subscribe streams the events of one session. Sessions running on another
// instance can be followed when a relay is configured.
func (c *Coordinator) Subscribe(ownerID, sessionID string) (*Subscription, error) {
	if ownerID == "" {
		return nil, newError(KindAuthRequired, "sign in required", nil)
	}
	c.mu.Lock()
	s, ok := c.sessions[sessionID]
	c.mu.Unlock()
	if !ok {
		if c.Events.Relay == nil {
			return nil, ErrSessionNotFound
		}
		return c.Events.SubscribeSession(sessionID, ownerID, nil), nil
	}
	snap := s.snapshot()
	if snap.OwnerID != ownerID {
		return nil, ErrSessionNotFound
	}
	var initial *Event
	if !snap.State.Terminal() {
		ev := eventFromSnapshot(EventSnapshot, snap, c.now())
		initial = &ev
	}
	return c.Events.SubscribeSession(sessionID, ownerID, initial), nil
}

// SubscribeOwner streams notifications for ownerID.
func (c *Coordinator) SubscribeOwner(ownerID string) *Subscription {
	return c.Events.SubscribeOwner(ownerID)
}

// Wait blocks until every in-flight remote call has returned or ctx ends.
func (c *Coordinator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) begin(ctx context.Context, ownerID, recordID string) (*session, cvs.Record, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, cvs.Record{}, newError(KindAuthRequired, "sign in required", nil)
	}
	rec, err := c.resolveRecord(ctx, ownerID, recordID)
	if err != nil {
		return nil, cvs.Record{}, err
	}
	if strings.TrimSpace(rec.Name) == "" {
		return nil, cvs.Record{}, newError(KindRecordNotFound, "cv has no name yet", nil)
	}

	now := c.now()
	c.mu.Lock()
	c.prune(now)
	if _, busy := c.active[rec.ID]; busy {
		c.mu.Unlock()
		return nil, cvs.Record{}, newError(KindInProgress, "a generation is already running for this cv", nil)
	}
	c.seed++
	progress := NewProgress(c.Phases, c.seed)
	s := newSession(Snapshot{
		ID:        uuid.NewString(),
		RecordID:  rec.ID,
		OwnerID:   ownerID,
		CVName:    rec.Name,
		State:     StateIdle,
		StartedAt: now,
	}, progress)
	c.sessions[s.snap.ID] = s
	c.active[rec.ID] = s.snap.ID
	c.mu.Unlock()

	c.Events.Track(s.snap.ID)
	c.transition(ctx, s, func(sn *Snapshot) { sn.State = StatePendingSubmit })

	metrics.IncGenerationStarted()
	telemetry.Info("generation.session.started", map[string]any{
		"session_id": s.snap.ID,
		"cv_id":      rec.ID,
		"user_id":    ownerID,
		"temporary":  rec.IsTemporary,
	})
	return s, rec, nil
}

// launch runs the session detached from the caller's cancellation; the
// remote call is never cancelled once issued.
func (c *Coordinator) launch(ctx context.Context, s *session, rec cvs.Record) {
	c.wg.Add(1)
	go c.run(context.WithoutCancel(ctx), s, rec)
}

func (c *Coordinator) run(ctx context.Context, s *session, rec cvs.Record) {
	defer c.wg.Done()
	ctx, span := tracer.Start(ctx, "generation.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("cv.id", rec.ID),
		attribute.String("generation.session_id", s.snap.ID),
	)

	started := time.Now()
	path := artifacts.Path(rec.UserID, rec.Name)
	c.transition(ctx, s, func(sn *Snapshot) {
		sn.State = StateGenerating
		sn.Progress = s.progress.Advance(0)
		sn.CandidateURL = c.Artifacts.Candidate(path)
	})

	stopTicker := c.startTicker(ctx, s, started)
	timer := time.AfterFunc(c.displayTimeout(), func() { c.timeout(ctx, s) })

	lookup, genErr := c.generate(ctx, rec, path)
	stopTicker()
	timer.Stop()
	close(s.remoteDone)
	c.release(rec.ID, s.snap.ID)

	if genErr != nil {
		span.RecordError(genErr)
		span.SetStatus(codes.Error, string(KindOf(genErr)))
	}
	c.persist(ctx, rec, lookup, genErr)
	c.publishOutcome(ctx, s, rec, lookup, genErr)
	c.complete(ctx, s, rec, lookup, genErr, started)
}

// release frees the record for a new session once the remote call is back.
func (c *Coordinator) release(recordID, sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[recordID] == sessionID {
		delete(c.active, recordID)
	}
}

func (c *Coordinator) generate(ctx context.Context, rec cvs.Record, path string) (artifacts.Lookup, error) {
	// Generation may outlast a cached credential, so always mint a new one.
	token, err := c.Tokens.Token(ctx, rec.UserID, true)
	if err != nil {
		return artifacts.Lookup{}, newError(KindAuthRequired, "could not obtain credentials", err)
	}

	res, err := c.Service.GenerateCV(ctx, token, Request{
		CVName:         rec.Name,
		CVID:           rec.ID,
		JobDescription: rec.JobDescription,
	})
	if err != nil {
		return artifacts.Lookup{}, &Error{Kind: KindServiceError, Message: "generation service unreachable", Err: err}
	}
	if !res.Success {
		return artifacts.Lookup{}, ServiceError(res.Message, res.Status)
	}
	if res.PDFURL != "" {
		return artifacts.Lookup{
			Status:    artifacts.StatusConfirmed,
			URL:       res.PDFURL,
			Path:      path,
			CheckedAt: c.now(),
		}, nil
	}

	lookup := c.Artifacts.LookupFresh(ctx, path)
	for i := 0; i < confirmRetries && lookup.Status == artifacts.StatusCandidate; i++ {
		select {
		case <-ctx.Done():
			return lookup, nil
		case <-time.After(2 * c.tick()):
		}
		lookup = c.Artifacts.LookupFresh(ctx, path)
	}
	if lookup.Status == artifacts.StatusAbsent {
		return lookup, newError(KindArtifactUnavailable, "generation reported success but no artifact was found", nil)
	}
	return lookup, nil
}

func (c *Coordinator) complete(ctx context.Context, s *session, rec cvs.Record, lookup artifacts.Lookup, genErr error, started time.Time) {
	metrics.ObserveGenerationDurationMs(float64(time.Since(started).Milliseconds()))

	if genErr != nil {
		metrics.IncGenerationFailed()
		snap, ok := s.finish(c.now(), func(sn *Snapshot) {
			sn.State = StateFailed
			sn.Progress = s.progress.Freeze()
			sn.Outcome = OutcomeFailure
			sn.ArtifactURL = ""
			sn.CandidateURL = ""
		}, genErr)
		if ok {
			c.Events.Publish(ctx, eventFromSnapshot(EventFailed, snap, c.now()))
		}
		telemetry.Warn("generation.session.failed", map[string]any{
			"session_id": s.snap.ID,
			"cv_id":      rec.ID,
			"user_id":    rec.UserID,
			"kind":       string(KindOf(genErr)),
			"error":      genErr,
			"progress":   snap.Progress,
		})
		c.notify(ctx, rec.UserID, rec.ID, s.snap.ID, genErr)
		return
	}

	metrics.IncGenerationCompleted()
	if snap, ok := s.update(func(sn *Snapshot) {
		sn.State = StateFinalizing
		sn.Progress = s.progress.Finalize()
	}); ok {
		c.Events.Publish(ctx, eventFromSnapshot(EventState, snap, c.now()))
	}
	// Only a confirmed artifact reaches 100%. An unconfirmed one ends the
	// session at the finalizing value with the URL offered as a candidate.
	confirmed := lookup.Status == artifacts.StatusConfirmed
	snap, ok := s.finish(c.now(), func(sn *Snapshot) {
		sn.State = StateCompleted
		sn.Outcome = OutcomeSuccess
		sn.ArtifactStatus = lookup.Status
		if confirmed {
			sn.Progress = s.progress.Complete()
			sn.ArtifactURL = lookup.URL
			return
		}
		sn.CandidateURL = lookup.URL
	}, nil)
	if ok {
		c.Events.Publish(ctx, eventFromSnapshot(EventCompleted, snap, c.now()))
		telemetry.Info("generation.session.completed", map[string]any{
			"session_id": s.snap.ID,
			"cv_id":      rec.ID,
			"user_id":    rec.UserID,
			"artifact":   string(lookup.Status),
		})
	} else {
		telemetry.Info("generation.remote.late_success", map[string]any{
			"session_id": s.snap.ID,
			"cv_id":      rec.ID,
			"user_id":    rec.UserID,
		})
	}
	notifyProgress := FinalizingProgress
	if confirmed {
		notifyProgress = CompleteProgress
	}
	c.Events.Publish(ctx, Event{
		SessionID:   s.snap.ID,
		OwnerID:     rec.UserID,
		RecordID:    rec.ID,
		Type:        EventNotification,
		State:       StateCompleted,
		Progress:    notifyProgress,
		ArtifactURL: lookup.URL,
		Message:     fmt.Sprintf("Your CV %q is ready.", rec.Name),
		At:          c.now(),
	})
}

func (c *Coordinator) timeout(ctx context.Context, s *session) {
	err := newError(KindTimeout, "generation is still running after the display budget", nil)
	snap, ok := s.finish(c.now(), func(sn *Snapshot) {
		sn.State = StateTimedOut
		sn.Progress = s.progress.Freeze()
		sn.Outcome = OutcomeTimeout
	}, err)
	if !ok {
		return
	}
	metrics.IncGenerationTimedOut()
	c.Events.Publish(ctx, eventFromSnapshot(EventTimeout, snap, c.now()))
	telemetry.Warn("generation.session.timeout", map[string]any{
		"session_id": snap.ID,
		"cv_id":      snap.RecordID,
		"user_id":    snap.OwnerID,
		"progress":   snap.Progress,
	})
	c.notify(ctx, snap.OwnerID, snap.RecordID, snap.ID, err)
}

func (c *Coordinator) startTicker(ctx context.Context, s *session, started time.Time) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(c.tick())
		defer t.Stop()
		last := -1
		for {
			select {
			case <-stop:
				return
			case <-s.done:
				return
			case <-t.C:
				v := s.progress.Advance(time.Since(started))
				if v == last {
					continue
				}
				last = v
				snap, ok := s.update(func(sn *Snapshot) {
					if v > sn.Progress {
						sn.Progress = v
					}
				})
				if !ok {
					return
				}
				c.Events.Publish(ctx, eventFromSnapshot(EventProgress, snap, c.now()))
			}
		}
	}()
	return func() {
		close(stop)
		<-done
	}
}

func (c *Coordinator) transition(ctx context.Context, s *session, fn func(*Snapshot)) {
	if snap, ok := s.update(fn); ok {
		c.Events.Publish(ctx, eventFromSnapshot(EventState, snap, c.now()))
	}
}

func (c *Coordinator) persist(ctx context.Context, rec cvs.Record, lookup artifacts.Lookup, genErr error) {
	now := c.now()
	if rec.IsTemporary {
		c.mu.Lock()
		if tmp, ok := c.temps[rec.ID]; ok {
			if genErr == nil {
				tmp.Status = cvs.StatusReady
				tmp.ArtifactPath = lookup.Path
				tmp.GeneratedAt = &now
			} else {
				tmp.Status = cvs.StatusFailed
			}
			tmp.UpdatedAt = now
			c.temps[rec.ID] = tmp
		}
		c.mu.Unlock()
		return
	}

	var err error
	if genErr == nil {
		err = c.Records.MarkReady(ctx, rec.UserID, rec.ID, lookup.Path, now)
	} else {
		err = c.Records.MarkFailed(ctx, rec.UserID, rec.ID, now)
	}
	if err != nil {
		telemetry.Error("generation.record.update_failed", map[string]any{
			"cv_id":   rec.ID,
			"user_id": rec.UserID,
			"error":   err,
		})
	}
}

func (c *Coordinator) publishOutcome(ctx context.Context, s *session, rec cvs.Record, lookup artifacts.Lookup, genErr error) {
	if c.Queue == nil {
		return
	}
	msg := queue.Message{
		SessionID:   s.snap.ID,
		CVID:        rec.ID,
		OwnerID:     rec.UserID,
		Outcome:     string(OutcomeSuccess),
		CompletedAt: c.now().Format(time.RFC3339),
		Version:     queue.MessageVersion,
	}
	if genErr != nil {
		msg.Outcome = string(OutcomeFailure)
		msg.ErrorKind = string(KindOf(genErr))
	} else {
		msg.ArtifactPath = lookup.Path
	}
	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Queue.Send(sendCtx, msg); err != nil {
		telemetry.Warn("generation.queue.send_failed", map[string]any{
			"session_id": s.snap.ID,
			"error":      err,
		})
	}
}

func (c *Coordinator) notify(ctx context.Context, ownerID, recordID, sessionID string, err error) {
	c.Events.Publish(ctx, Event{
		SessionID: sessionID,
		OwnerID:   ownerID,
		RecordID:  recordID,
		Type:      EventNotification,
		Error:     err.Error(),
		ErrorKind: KindOf(err),
		Message:   UserMessage(err),
		At:        c.now(),
	})
}

func (c *Coordinator) recordLookup(ctx context.Context, ownerID, name string, lookup artifacts.Lookup) {
	key := lookupKey(ownerID, name)
	now := c.now()
	c.mu.Lock()
	c.prune(now)
	if lookup.Status == artifacts.StatusConfirmed {
		delete(c.failed, key)
	} else {
		c.failed[key] = now
	}
	c.mu.Unlock()
	if lookup.ReadError != "" {
		c.notify(ctx, ownerID, "", "", newError(KindStorageRead, lookup.ReadError, nil))
	}
}

// resolveRecord finds a record by id among temporary and stored records.
func (c *Coordinator) resolveRecord(ctx context.Context, ownerID, recordID string) (cvs.Record, error) {
	if strings.TrimSpace(recordID) == "" {
		return cvs.Record{}, newError(KindRecordNotFound, "cv id is required", nil)
	}
	c.mu.Lock()
	tmp, ok := c.temps[recordID]
	c.mu.Unlock()
	if ok {
		if tmp.UserID != ownerID {
			return cvs.Record{}, newError(KindRecordNotFound, "cv not found", nil)
		}
		return tmp, nil
	}

	rec, err := c.Records.GetByID(ctx, ownerID, recordID)
	if err != nil {
		if errors.Is(err, cvs.ErrNotFound) || errors.Is(err, cvs.ErrForbidden) {
			return cvs.Record{}, newError(KindRecordNotFound, "cv not found", err)
		}
		return cvs.Record{}, fmt.Errorf("load cv record: %w", err)
	}
	return rec, nil
}

// pathsForName lists candidate artifact paths for a CV name, preferring the
// path stored on a matching record.
func (c *Coordinator) pathsForName(ctx context.Context, ownerID, cvName string) ([]string, string, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, "", newError(KindAuthRequired, "sign in required", nil)
	}
	name, err := cvs.NormalizeName(cvName)
	if err != nil {
		return nil, "", newError(KindRecordNotFound, "invalid cv name", err)
	}
	rec, err := c.Records.GetByName(ctx, ownerID, name)
	switch {
	case err == nil:
		return cvs.ArtifactPaths(rec), name, nil
	case !errors.Is(err, cvs.ErrNotFound):
		telemetry.Warn("generation.record.lookup_failed", map[string]any{"user_id": ownerID, "error": err})
	}
	return []string{artifacts.Path(ownerID, name)}, name, nil
}

// prune expires finished sessions, stale failure flags and idle temporary
// records. Caller holds c.mu.
func (c *Coordinator) prune(now time.Time) {
	for key, at := range c.failed {
		if now.Sub(at) > c.retention() {
			delete(c.failed, key)
		}
	}
	for id, rec := range c.temps {
		if _, busy := c.active[id]; busy {
			continue
		}
		if now.Sub(rec.UpdatedAt) > tempRetention {
			delete(c.temps, id)
		}
	}
	for id, s := range c.sessions {
		select {
		case <-s.remoteDone:
		default:
			continue
		}
		snap := s.snapshot()
		if snap.CompletedAt != nil && now.Sub(*snap.CompletedAt) > c.retention() {
			delete(c.sessions, id)
			c.Events.Forget(id)
		}
	}
}

func lookupKey(ownerID, name string) string {
	return ownerID + "\x00" + name
}

func (c *Coordinator) displayTimeout() time.Duration {
	if c.DisplayTimeout <= 0 {
		return DefaultDisplayTimeout
	}
	return c.DisplayTimeout
}

func (c *Coordinator) tick() time.Duration {
	if c.Tick <= 0 {
		return defaultTick
	}
	return c.Tick
}

func (c *Coordinator) retention() time.Duration {
	if c.Retention <= 0 {
		return defaultRetention
	}
	return c.Retention
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}
