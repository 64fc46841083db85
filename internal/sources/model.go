package sources

import "time"

// Document is an uploaded source file (old CV, certificate, cover letter)
// that profile generation reads from.
type Document struct {
	ID               string
	UserID           string
	FileName         string
	MimeType         string
	SizeBytes        int64
	StorageKey       string
	ExtractedTextKey string
	CreatedAt        time.Time
}
