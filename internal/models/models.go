package models

import "time"

// Deletion is the audit record written after a file was removed.
type Deletion struct {
	ID         string    `json:"id"`
	Location   string    `json:"location"`
	Path       string    `json:"path"`
	Method     string    `json:"method"`
	RemoteAddr string    `json:"remote_addr"`
	RequestID  string    `json:"request_id,omitempty"`
	DryRun     bool      `json:"dry_run"`
	DeletedAt  time.Time `json:"deleted_at"`
}
