package models

import "time"

// SearchTemplate is a named, reusable set of search criteria. Persisted;
// created, updated, and deleted only by explicit calls.
type SearchTemplate struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Criteria    SearchCriteria `json:"criteria"`
	CreatedAt   time.Time      `json:"created_at"`
	LastUsedAt  time.Time      `json:"last_used_at"`
}
