package cvs

import "time"

// RecordResponse is the outward-facing representation of a CV record.
type RecordResponse struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	JobDescription string         `json:"jobDescription"`
	Summary        string         `json:"summary,omitempty"`
	GenerationData map[string]any `json:"generationData,omitempty"`
	Status         Status         `json:"status"`
	HasArtifact    bool           `json:"hasArtifact"`
	Temporary      bool           `json:"temporary,omitempty"`
	GeneratedAt    *time.Time     `json:"generatedAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// ToResponse maps a record to its API shape.
func ToResponse(rec Record) RecordResponse {
	return RecordResponse{
		ID:             rec.ID,
		Name:           rec.Name,
		JobDescription: rec.JobDescription,
		Summary:        rec.Summary,
		GenerationData: rec.GenerationData,
		Status:         statusOrPending(rec.Status),
		HasArtifact:    rec.ArtifactPath != "",
		Temporary:      rec.IsTemporary,
		GeneratedAt:    rec.GeneratedAt,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

type updateRequest struct {
	Name           *string        `json:"name"`
	JobDescription *string        `json:"jobDescription"`
	Summary        *string        `json:"summary"`
	GenerationData map[string]any `json:"generationData"`
}
