package cvs

import (
	"context"
	"time"
)

// Repo defines persistence operations for CV records.
type Repo interface {
	Create(ctx context.Context, rec Record) error
	GetByID(ctx context.Context, userID, id string) (Record, error)
	// GetByName returns the most recently created record with that name.
	GetByName(ctx context.Context, userID, name string) (Record, error)
	// ListByUser returns visible records newest first.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Record, error)
	Update(ctx context.Context, rec Record) error
	MarkReady(ctx context.Context, userID, id, artifactPath string, at time.Time) error
	MarkFailed(ctx context.Context, userID, id string, at time.Time) error
	Delete(ctx context.Context, userID, id string) error
}
