package models

import "encoding/json"

type ClaimStatus string

const (
	ClaimClaimed    ClaimStatus = "claimed"
	ClaimInProgress ClaimStatus = "in_progress"
	ClaimCompleted  ClaimStatus = "completed"
	ClaimCancelled  ClaimStatus = "cancelled"
)

func (s ClaimStatus) Valid() bool {
	switch s {
	case ClaimClaimed, ClaimInProgress, ClaimCompleted, ClaimCancelled:
		return true
	}
	return false
}

// ClaimRequest is the body of POST /tasks/claim (claim without a path id).
type ClaimRequest struct {
	TaskID string `json:"task_id" binding:"required"`
	Notes  string `json:"notes,omitempty"`
}

type ClaimStatusUpdate struct {
	Status ClaimStatus `json:"status" binding:"required"`
	Notes  string      `json:"notes,omitempty"`
}

// Claim payloads, statistics, activity logs and conflict reports are owned by
// the task API; the gateway passes them through without interpreting them.
type (
	Claims      = json.RawMessage
	Statistics  = json.RawMessage
	ActivityLog = json.RawMessage
	Conflicts   = json.RawMessage
)
