package sources

import "context"

// Repo defines persistence operations for source documents.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, userID, id string) (Document, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Document, error)
	SetExtractedKey(ctx context.Context, userID, id, key string) error
	Delete(ctx context.Context, userID, id string) error
}
