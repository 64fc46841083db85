package cvs

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a CV record.
type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

const maxNameLength = 120

// Record is one job-targeted CV variant owned by a user.
type Record struct {
	ID             string
	UserID         string
	Name           string
	JobDescription string
	Summary        string
	GenerationData map[string]any
	ArtifactPath   string
	Status         Status
	// IsTemporary marks a record that only exists in memory because the
	// document store rejected the write.
	IsTemporary bool
	GeneratedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Visible reports whether the record belongs in list results.
func (r Record) Visible() bool {
	return r.UserID != "" && strings.TrimSpace(r.Name) != ""
}

// Patch is a field-level update; nil fields are left untouched.
type Patch struct {
	Name           *string
	JobDescription *string
	Summary        *string
	GenerationData map[string]any
}

// DefaultName returns the name given to records created without one. The
// suffix keeps records created in the same second on distinct artifact keys.
func DefaultName(now time.Time) string {
	return "CV_" + now.Format("2006-01-02_15-04-05") + "_" + uuid.NewString()[:6]
}

// NormalizeName trims and validates a display name. Names become part of the
// artifact storage key, so path separators and traversal are rejected.
func NormalizeName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len([]rune(n)) > maxNameLength {
		return "", fmt.Errorf("%w: name is too long", ErrInvalidInput)
	}
	if strings.ContainsAny(n, `/\`) || strings.Contains(n, "..") {
		return "", fmt.Errorf("%w: name contains invalid characters", ErrInvalidInput)
	}
	for _, r := range n {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: name contains invalid characters", ErrInvalidInput)
		}
	}
	return n, nil
}
