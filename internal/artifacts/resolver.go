package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ledongthuc/pdf"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"cvbuilder-backend/internal/shared/metrics"
	"cvbuilder-backend/internal/shared/storage/object"
	"cvbuilder-backend/internal/shared/telemetry"
	"cvbuilder-backend/internal/shared/tracing"
)

// Status is the trust level of a lookup result.
type Status string

const (
	// StatusConfirmed means the object store vouched for the artifact.
	StatusConfirmed Status = "confirmed"
	// StatusCandidate is a convention-derived URL that was not verified.
	StatusCandidate Status = "candidate"
	// StatusAbsent means the object store confirmed there is no artifact.
	StatusAbsent Status = "absent"
)

const maxVerifyBytes = 32 << 20

// Lookup is the result of resolving an artifact.
type Lookup struct {
	Status    Status    `json:"status"`
	URL       string    `json:"url,omitempty"`
	Path      string    `json:"path"`
	ReadError string    `json:"readError,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Displayable reports whether the UI has a URL to try rendering.
func (l Lookup) Displayable() bool {
	return l.URL != "" && l.Status != StatusAbsent
}

// Resolver turns artifact paths into display URLs. Concurrent lookups of the
// same path share one object store round trip.
type Resolver struct {
	Store     object.ObjectStore
	TTL       time.Duration
	VerifyPDF bool
	Now       func() time.Time

	group singleflight.Group
}

// NewResolver creates a resolver issuing signed URLs valid for ttl.
func NewResolver(store object.ObjectStore, ttl time.Duration) *Resolver {
	return &Resolver{Store: store, TTL: ttl}
}

// Candidate returns the unverified URL for path.
func (r *Resolver) Candidate(path string) string {
	if r == nil || r.Store == nil || path == "" {
		return ""
	}
	return r.Store.PublicURL(path)
}

// Lookup resolves a single path, joining any lookup already in flight.
func (r *Resolver) Lookup(ctx context.Context, path string) Lookup {
	v, _, _ := r.group.Do(path, func() (any, error) {
		return r.lookup(ctx, path), nil
	})
	return v.(Lookup)
}

// LookupFresh resolves path with a new object store round trip even if
// another lookup for it is in flight.
func (r *Resolver) LookupFresh(ctx context.Context, path string) Lookup {
	r.group.Forget(path)
	return r.Lookup(ctx, path)
}

// Resolve tries each path in order and returns the first confirmed result.
// Otherwise a candidate beats absent; absent reports the last path tried.
func (r *Resolver) Resolve(ctx context.Context, fresh bool, paths ...string) Lookup {
	var candidate *Lookup
	var last Lookup
	seen := map[string]bool{}
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		var res Lookup
		if fresh {
			res = r.LookupFresh(ctx, p)
		} else {
			res = r.Lookup(ctx, p)
		}
		switch res.Status {
		case StatusConfirmed:
			return res
		case StatusCandidate:
			if candidate == nil {
				c := res
				candidate = &c
			}
		}
		last = res
	}
	if candidate != nil {
		return *candidate
	}
	if last.Path == "" {
		last = Lookup{Status: StatusAbsent, CheckedAt: r.now()}
	}
	return last
}

func (r *Resolver) lookup(ctx context.Context, path string) Lookup {
	ctx, span := tracing.Tracer("cvbuilder-backend/artifacts").Start(ctx, "artifacts.lookup")
	defer span.End()
	span.SetAttributes(attribute.String("artifact.path", path))

	res := Lookup{Path: path, CheckedAt: r.now()}
	signed, err := r.Store.SignedURL(ctx, path, r.ttl())
	switch {
	case err == nil:
		res.Status = StatusConfirmed
		res.URL = signed
		if r.VerifyPDF {
			if verr := Verify(ctx, r.Store, path); verr != nil {
				res.Status = StatusCandidate
				res.ReadError = verr.Error()
			}
		}
	case errors.Is(err, object.ErrNotFound):
		res.Status = StatusAbsent
	default:
		// Read failures degrade to the convention URL so display is not blocked.
		res.Status = StatusCandidate
		res.URL = r.Candidate(path)
		res.ReadError = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage read error")
		telemetry.Warn("artifacts.lookup.candidate", map[string]any{"path": path, "error": err})
	}
	span.SetAttributes(attribute.String("artifact.status", string(res.Status)))
	metrics.IncArtifactLookup(string(res.Status))
	return res
}

func (r *Resolver) ttl() time.Duration {
	if r.TTL <= 0 {
		return 15 * time.Minute
	}
	return r.TTL
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

// Verify checks that the object at path parses as a PDF.
func Verify(ctx context.Context, store object.ObjectStore, path string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("artifact is not a readable pdf: %v", rec)
		}
	}()
	rc, err := store.Open(ctx, path)
	if err != nil {
		return err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxVerifyBytes))
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("artifact is not a readable pdf: %w", err)
	}
	if doc.NumPage() == 0 {
		return errors.New("artifact has no pages")
	}
	return nil
}
