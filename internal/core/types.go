package core

import (
	"time"

	"github.com/JonMunkholm/csvtable/internal/table"
)

// TableInfo describes a stored table.
type TableInfo struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Source    string         `json:"source"` // file name, "merge" or a directory
	Columns   []table.Column `json:"columns"`
	Key       []string       `json:"key,omitempty"`
	Rows      int            `json:"rows"`
	CreatedAt time.Time      `json:"created_at"`
}

// LoadRequest selects the options of a single load. Zero fields fall back
// to the profile, then to the CSV configuration.
type LoadRequest struct {
	Profile    string   `json:"profile,omitempty"`
	Delimiter  string   `json:"delimiter,omitempty"`
	Encoding   string   `json:"encoding,omitempty"`
	HasColumns *bool    `json:"has_columns,omitempty"`
	Key        []string `json:"key,omitempty"`
	InferTypes *bool    `json:"infer_types,omitempty"`
	Workers    int      `json:"workers,omitempty"`
}

// SaveRequest selects the options of a single export to delimited text.
type SaveRequest struct {
	Profile    string   `json:"profile,omitempty"`
	Delimiter  string   `json:"delimiter,omitempty"`
	Encoding   string   `json:"encoding,omitempty"`
	HasColumns *bool    `json:"has_columns,omitempty"`
	Exclude    []string `json:"exclude,omitempty"`
}

// LoadSummary is the outcome of a load.
type LoadSummary struct {
	Table         TableInfo `json:"table"`
	TotalRows     int       `json:"total_rows"`
	ProcessedRows int       `json:"processed_rows"`
	BytesRead     int64     `json:"bytes_read"`
	DurationMs    int64     `json:"duration_ms"`
}

// FileResult reports one file of a directory import.
type FileResult struct {
	File          string `json:"file"`
	TotalRows     int    `json:"total_rows"`
	ProcessedRows int    `json:"processed_rows"`
	FailedRows    int    `json:"failed_rows"`
	FailedFile    string `json:"failed_file,omitempty"`
	Error         string `json:"error,omitempty"`
}

// ImportResult is the outcome of a directory import.
type ImportResult struct {
	Dir   string       `json:"dir"`
	Files []FileResult `json:"files"`

	// Table is the merge of every file loaded without error. It is nil
	// when no file loaded.
	Table *TableInfo `json:"table,omitempty"`
}
