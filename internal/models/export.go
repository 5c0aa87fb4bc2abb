package models

import "time"

// ExportKind identifies what an export file contains.
type ExportKind string

const (
	ExportKindWeek  ExportKind = "week"
	ExportKindRecap ExportKind = "recap"
)

// ExportResult points to a generated file.
type ExportResult struct {
	ID          string     `json:"id"`
	Kind        ExportKind `json:"kind"`
	Format      string     `json:"format"`
	FileName    string     `json:"file_name"`
	DownloadURL string     `json:"download_url"`
	ExpiresAt   time.Time  `json:"expires_at"`
}
