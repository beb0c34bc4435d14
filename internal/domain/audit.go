package domain

import "time"

// AuditRecord is one append-only entry in a client's audit log.
type AuditRecord struct {
	ID           string         `json:"id"`
	Module       string         `json:"module"`
	Action       string         `json:"action"`
	ParentPath   string         `json:"parentPath,omitempty"`
	DocID        string         `json:"docId,omitempty"`
	UserID       string         `json:"userId"`
	FriendlyName string         `json:"friendlyName,omitempty"`
	Notes        string         `json:"notes,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}
