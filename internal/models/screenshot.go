package models

import "time"

type VerificationStatus string

const (
	VerificationVerified VerificationStatus = "verified"
	VerificationPending  VerificationStatus = "pending"
	VerificationFailed   VerificationStatus = "failed"
)

// Screenshot is one verified image. A row is never created without the
// corresponding object already present in storage.
type Screenshot struct {
	ID               string
	UserID           string
	StorageKey       string
	OriginalFilename string
	SizeBytes        int64
	MimeType         string
	PublicURL        string
	SHA256           string
	IPAddress        string
	UserAgent        string
	Project          *string
	Tags             []string
	Status           VerificationStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ShareLink grants public read access to one screenshot to anyone holding
// the token. Ownership is checked at creation time only.
type ShareLink struct {
	ID           string
	ScreenshotID string
	UserID       string
	Token        string
	ExpiresAt    *time.Time
	CreatedAt    time.Time
}
