package database

import (
	"time"
)

// ExportStatus represents the terminal-or-running state of an export job
type ExportStatus string

const (
	StatusExporting ExportStatus = "exporting" // archiver subprocess running
	StatusCompleted ExportStatus = "completed" // export and combination done
	StatusFailed    ExportStatus = "failed"    // retries exhausted
)

// ExportRecord is the persisted history row for one fired export pipeline.
// Live event state stays in memory; these rows only record what the
// pipeline did, for the operator-facing history endpoint.
type ExportRecord struct {
	ID           string       `json:"id"`           // unique row id
	Identifier   string       `json:"identifier"`   // event identifier
	StartTime    time.Time    `json:"startTime"`    // exported window start
	EndTime      time.Time    `json:"endTime"`      // exported window end
	Cameras      string       `json:"cameras"`      // comma-joined, empty means all
	Status       ExportStatus `json:"status"`       // current status
	Attempts     int          `json:"attempts"`     // archiver attempts made
	OutputPath   string       `json:"outputPath"`   // folder the archiver wrote into
	MergedFiles  string       `json:"mergedFiles"`  // comma-joined combined outputs
	UploadedURLs string       `json:"uploadedUrls"` // comma-joined remote URLs, if uploaded
	ErrorMessage string       `json:"errorMessage"` // diagnostics on failure
	CreatedAt    time.Time    `json:"createdAt"`    // when the pipeline fired
	FinishedAt   *time.Time   `json:"finishedAt"`   // when it completed or failed
}

// Database defines the interface for export history operations
type Database interface {
	CreateExport(rec ExportRecord) error
	UpdateExport(rec ExportRecord) error
	GetExport(id string) (*ExportRecord, error)
	ListExports(limit, offset int) ([]ExportRecord, error)
	GetExportsByIdentifier(identifier string) ([]ExportRecord, error)
	GetExportsByStatus(status ExportStatus, limit, offset int) ([]ExportRecord, error)
	DeleteExportsBefore(cutoff time.Time) (int64, error)
	Close() error
}
