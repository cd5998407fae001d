package upgrades

import (
	"errors"
	"time"
)

// Status is the review state of an upgrade request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Decided reports whether s is a terminal review outcome.
func (s Status) Decided() bool {
	return s == StatusApproved || s == StatusRejected
}

// ListLimit caps list responses.
const ListLimit = 100

const maxMessageLength = 1000

var (
	ErrNotFound     = errors.New("upgrade request not found")
	ErrInvalidInput = errors.New("invalid upgrade request")
	// ErrNotPending is returned when a request was already reviewed.
	ErrNotPending = errors.New("upgrade request already processed")
)

// Request asks an admin to move a user onto another plan.
type Request struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	CurrentPlanID   string     `json:"currentPlanId,omitempty"`
	RequestedPlanID string     `json:"requestedPlanId"`
	Status          Status     `json:"status"`
	Message         string     `json:"message"`
	AdminNotes      string     `json:"adminNotes"`
	ProcessedBy     string     `json:"processedBy,omitempty"`
	ProcessedAt     *time.Time `json:"processedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}
