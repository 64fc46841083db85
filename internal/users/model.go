package users

import (
	"strings"
	"time"
)

// Account is the owner every CV, profile and source document is filed under.
type Account struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	PictureURL  string    `json:"pictureUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	LastLoginAt time.Time `json:"lastLoginAt"`
}

// Identity is what a login provider asserts about the caller.
type Identity struct {
	Provider   string
	Subject    string
	Email      string
	Name       string
	PictureURL string
}

// OwnerID is the stable id records are keyed by, e.g. "google:1234".
func (i Identity) OwnerID() string {
	return strings.ToLower(strings.TrimSpace(i.Provider)) + ":" + strings.TrimSpace(i.Subject)
}
