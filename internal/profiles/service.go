package profiles

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cvbuilder-backend/internal/artifacts"
	"cvbuilder-backend/internal/generation"
	"cvbuilder-backend/internal/shared/auth"
	"cvbuilder-backend/internal/shared/storage/object"
	"cvbuilder-backend/internal/shared/telemetry"
)

const maxPhotoBytes = 5 << 20

var photoTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// Service contains business logic for profiles.
type Service struct {
	Repo      Repo
	Store     object.ObjectStore
	Generator generation.Service
	Tokens    auth.TokenProvider
	URLTTL    time.Duration
	Now       func() time.Time
}

// Get returns the profile of userID, creating the empty template on first
// access.
func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return Profile{}, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	p, err := s.Repo.Get(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Profile{}, err
	}
	p = Template(userID, s.now())
	if err := s.Repo.Save(ctx, p); err != nil {
		return Profile{}, err
	}
	telemetry.Info("profiles.template.created", map[string]any{"user_id": userID})
	return p, nil
}

// Update applies patch and overwrites the stored profile.
func (s *Service) Update(ctx context.Context, userID string, patch Patch) (Profile, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	patch.Apply(&p.Data)
	p.UpdatedAt = s.now()
	if err := s.Repo.Save(ctx, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// UploadPhoto stores the profile photo, replacing any previous one.
func (s *Service) UploadPhoto(ctx context.Context, userID string, r io.Reader) (Profile, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	contentType, body, err := object.Sniff(r)
	if err != nil {
		return Profile{}, err
	}
	if _, ok := photoTypes[contentType]; !ok {
		return Profile{}, fmt.Errorf("%w: unsupported photo type %s", ErrInvalidInput, contentType)
	}

	// Size is checked before the live key is replaced.
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(body, maxPhotoBytes+1)); err != nil {
		return Profile{}, fmt.Errorf("read photo user=%s: %w", userID, err)
	}
	if buf.Len() > maxPhotoBytes {
		return Profile{}, fmt.Errorf("%w: photo exceeds %d bytes", ErrInvalidInput, maxPhotoBytes)
	}

	key := artifacts.PhotoPath(userID)
	size, err := s.Store.Put(ctx, key, contentType, &buf)
	if err != nil {
		return Profile{}, fmt.Errorf("store photo user=%s: %w", userID, err)
	}

	p.PhotoPath = key
	p.UpdatedAt = s.now()
	if err := s.Repo.Save(ctx, p); err != nil {
		return Profile{}, err
	}
	telemetry.Info("profiles.photo.uploaded", map[string]any{
		"user_id":      userID,
		"size_bytes":   size,
		"content_type": contentType,
	})
	return p, nil
}

// PhotoURL returns a time-limited URL for the profile photo.
func (s *Service) PhotoURL(ctx context.Context, userID string) (string, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	key := p.PhotoPath
	if key == "" {
		key = artifacts.PhotoPath(userID)
	}
	url, err := s.Store.SignedURL(ctx, key, s.ttl())
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if !object.SignsQuery(s.Store) {
		url = artifacts.CacheBust(url, p.UpdatedAt)
	}
	return url, nil
}

// GenerateFromSources asks the generation service to build a profile from
// the owner's uploaded sources and stores the result. The photo is kept.
func (s *Service) GenerateFromSources(ctx context.Context, userID string) (Profile, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	token, err := s.Tokens.Token(ctx, userID, true)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", generation.ErrAuthRequired, err)
	}

	started := s.now()
	raw, err := s.Generator.GenerateProfile(ctx, token)
	if err != nil {
		telemetry.Warn("profiles.generate.failed", map[string]any{
			"user_id": userID,
			"err":     err.Error(),
		})
		return Profile{}, err
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return Profile{}, generation.ServiceError("generated profile is malformed", 0)
	}
	p.Data = data.normalized()
	p.UpdatedAt = s.now()
	if err := s.Repo.Save(ctx, p); err != nil {
		return Profile{}, err
	}
	telemetry.Info("profiles.generate.completed", map[string]any{
		"user_id":     userID,
		"experiences": len(p.Data.Experiences),
		"educations":  len(p.Data.Educations),
		"duration_ms": p.UpdatedAt.Sub(started).Milliseconds(),
	})
	return p, nil
}

func (s *Service) ttl() time.Duration {
	if s.URLTTL > 0 {
		return s.URLTTL
	}
	return 15 * time.Minute
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
