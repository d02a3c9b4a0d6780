// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"fmt"
	"time"
)

// OrgMember is a single account listed as a member of the organization.
type OrgMember struct {
	Login string `json:"login"`
}

// UserStats holds the contribution counters of one member within the date window.
// It is the core domain entity of this application.
type UserStats struct {
	Username string `json:"username"`
	Reviews  int    `json:"reviews"`
	Comments int    `json:"comments"`
	Commits  int    `json:"commits"`
	PROpened int    `json:"pr_opened"`
	PRMerged int    `json:"pr_merged"`
}

// RateLimitState is the primary quota as reported at the start of a run.
type RateLimitState struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// Exhausted reports whether no calls are left in the current window.
func (s RateLimitState) Exhausted() bool {
	return s.Remaining <= 0
}

// RateLimitError signals that GitHub answered with 403 Forbidden.
// Every 403 is treated as quota exhaustion; ResetAt is when calls may resume.
type RateLimitError struct {
	ResetAt time.Time
	Err     error
}

func (e *RateLimitError) Error() string {
	msg := fmt.Sprintf("rate limited until %s", e.ResetAt.Format(time.RFC3339))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}
