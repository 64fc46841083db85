package cvs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cvbuilder-backend/internal/artifacts"
	"cvbuilder-backend/internal/shared/storage/object"
	"cvbuilder-backend/internal/shared/telemetry"
)

// Service contains business logic for CV records.
type Service struct {
	Repo  Repo
	Store object.ObjectStore
	Now   func() time.Time
}

// List returns the visible records of a user.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, userID, id string) (Record, error) {
	if userID == "" || strings.TrimSpace(id) == "" {
		return Record{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, userID, id)
}

// Update applies patch to a record. Renaming keeps the stored artifact path,
// so a previously generated PDF stays reachable.
func (s *Service) Update(ctx context.Context, userID, id string, patch Patch) (Record, error) {
	rec, err := s.Get(ctx, userID, id)
	if err != nil {
		return Record{}, err
	}
	if patch.Name != nil {
		name, err := NormalizeName(*patch.Name)
		if err != nil {
			return Record{}, err
		}
		rec.Name = name
	}
	if patch.JobDescription != nil {
		rec.JobDescription = strings.TrimSpace(*patch.JobDescription)
	}
	if patch.Summary != nil {
		rec.Summary = *patch.Summary
	}
	if patch.GenerationData != nil {
		rec.GenerationData = patch.GenerationData
	}
	rec.UpdatedAt = s.now()
	if err := s.Repo.Update(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Delete removes the record and its artifact. A missing artifact is not an error.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	rec, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	if s.Store == nil {
		return nil
	}
	for _, p := range ArtifactPaths(rec) {
		if s.artifactShared(ctx, userID, p) {
			telemetry.Info("cvs.artifact.kept", map[string]any{
				"cv_id":   rec.ID,
				"user_id": userID,
				"path":    p,
			})
			continue
		}
		if err := s.Store.Delete(ctx, p); err != nil {
			telemetry.Warn("cvs.artifact.delete_failed", map[string]any{
				"cv_id":   rec.ID,
				"user_id": userID,
				"path":    p,
				"error":   err,
			})
		}
	}
	telemetry.Info("cvs.deleted", map[string]any{"cv_id": rec.ID, "user_id": userID})
	return nil
}

// ArtifactPaths lists where the record's PDF may live: the stored path first,
// then the one derived from its current name.
func ArtifactPaths(rec Record) []string {
	var out []string
	if rec.ArtifactPath != "" {
		out = append(out, rec.ArtifactPath)
	}
	if rec.Name != "" {
		derived := artifacts.Path(rec.UserID, rec.Name)
		if derived != rec.ArtifactPath {
			out = append(out, derived)
		}
	}
	return out
}

// artifactShared reports whether another record of userID still resolves to
// path. Names are not unique, so a derived path can belong to a sibling.
// Lookup errors count as shared.
func (s *Service) artifactShared(ctx context.Context, userID, path string) bool {
	name, ok := artifacts.NameFromPath(userID, path)
	if !ok {
		return false
	}
	other, err := s.Repo.GetByName(ctx, userID, name)
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		telemetry.Warn("cvs.artifact.lookup_failed", map[string]any{
			"user_id": userID,
			"path":    path,
			"error":   err,
		})
		return true
	}
	return other.ID != ""
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
