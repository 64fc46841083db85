package profiles

import "context"

// Repo defines persistence operations for profiles.
type Repo interface {
	Get(ctx context.Context, userID string) (Profile, error)
	// Save creates or overwrites the profile of p.UserID.
	Save(ctx context.Context, p Profile) error
}
