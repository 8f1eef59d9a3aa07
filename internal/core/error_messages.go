package core

// error_messages.go maps technical errors to user-friendly messages with
// codes for support reference.
//
// Error codes are grouped by category:
//
// # CSV Format Errors (CSV001-CSV099)
//
//	CSV001 - No rows: The file contains no data
//	         Patterns: "no rows"
//	CSV002 - Empty delimiter: No field delimiter was given
//	         Patterns: "delimiter is empty"
//	CSV003 - Unknown encoding: The text encoding is not supported
//	         Patterns: "unknown encoding"
//
// # Load Errors (LOAD001-LOAD099)
//
//	LOAD001 - Row rejected: A row failed validation
//	          Patterns: "row rejected"
//	LOAD002 - Table rejected: The header does not satisfy the profile
//	          Patterns: "table validation"
//	LOAD003 - Callback failure: A row callback failed unexpectedly
//	          Patterns: "panic:"
//	LOAD004 - System busy: Too many loads in progress
//	          Patterns: "too many concurrent loads"
//
// # Table Errors (TBL001-TBL099)
//
//	TBL001 - Table not found: The table handle is unknown or expired
//	         Patterns: "table not found"
//	TBL002 - Store full: The table store is at capacity
//	         Patterns: "table store is full"
//	TBL003 - Duplicate column: Two columns resolve to the same name
//	         Patterns: "duplicate column"
//	TBL004 - Column not found: A referenced column does not exist
//	         Patterns: "column not found"
//	TBL005 - Nothing to merge: No tables were given to merge
//	         Patterns: "no tables to merge"
//
// # Value Errors (VAL001-VAL099)
//
//	VAL001 - Invalid date       Patterns: "invalid date"
//	VAL002 - Invalid number     Patterns: "invalid number", "invalid integer"
//	VAL003 - Invalid boolean    Patterns: "invalid bool"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large    Patterns: "file too large"
//	FILE002 - File not found    Patterns: "file not found"
//	FILE003 - No file           Patterns: "no file provided"
//	FILE004 - Unknown profile   Patterns: "unknown profile"
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Export disabled    Patterns: "postgres export is not configured"
//	EXP002 - Duplicate key      Patterns: "duplicate key"
//	EXP003 - Connection refused Patterns: "connection refused"
//	EXP004 - Invalid target     Patterns: "invalid target table"
//
// # Request Errors (REQ001-REQ099), Rate Limiting (RATE001)
//
//	REQ001 - Request cancelled  Patterns: "context canceled"
//	REQ002 - Request timeout    Patterns: "context deadline exceeded"
//	RATE001 - Rate limited      Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check the application logs
// for the original technical error.
//
// Patterns are matched case-insensitively with strings.Contains, first
// match wins, so more specific patterns come first.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// CSV format
	{"no rows", UserMessage{"The file contains no data", "Upload a file with at least one non-blank line", "CSV001"}},
	{"delimiter is empty", UserMessage{"No field delimiter was given", "Specify a delimiter such as ';' or ','", "CSV002"}},
	{"unknown encoding", UserMessage{"The text encoding is not supported", "Use utf-8, utf-16le, windows-1251 or another listed encoding", "CSV003"}},

	// Load
	{"row rejected", UserMessage{"A row failed validation", "Fix the reported line and upload again", "LOAD001"}},
	{"table validation", UserMessage{"The file header does not match the expected columns", "Check that all required columns are present", "LOAD002"}},
	{"panic:", UserMessage{"A row could not be processed", "Check the reported line for unexpected content", "LOAD003"}},
	{"too many concurrent loads", UserMessage{"Too many files are being processed", "Please wait a moment and try again", "LOAD004"}},

	// Tables
	{"table not found", UserMessage{"The table does not exist or has expired", "Upload the file again", "TBL001"}},
	{"table store is full", UserMessage{"Too many tables are loaded", "Delete tables you no longer need", "TBL002"}},
	{"duplicate column", UserMessage{"Two columns have the same name", "Rename one of the columns", "TBL003"}},
	{"column not found", UserMessage{"A referenced column does not exist", "Check the column names used as keys or filters", "TBL004"}},
	{"no tables to merge", UserMessage{"No tables were given to merge", "Select at least one table", "TBL005"}},

	// Values
	{"invalid date", UserMessage{"Invalid date format detected", "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024", "VAL001"}},
	{"invalid number", UserMessage{"Invalid number format detected", "Use a standard decimal format", "VAL002"}},
	{"invalid integer", UserMessage{"Invalid number format detected", "Use a standard decimal format", "VAL002"}},
	{"invalid bool", UserMessage{"Invalid yes/no value detected", "Use true/false or yes/no", "VAL003"}},

	// Files
	{"file too large", UserMessage{"File exceeds the maximum size limit", "Split the file into smaller chunks", "FILE001"}},
	{"file not found", UserMessage{"The file does not exist", "Check the path", "FILE002"}},
	{"no file provided", UserMessage{"No file was selected", "Please select a CSV file to upload", "FILE003"}},
	{"unknown profile", UserMessage{"The profile is not configured", "Choose one of the configured profiles", "FILE004"}},

	// Export
	{"postgres export is not configured", UserMessage{"Database export is not available", "Configure DATABASE_URL to enable it", "EXP001"}},
	{"duplicate key", UserMessage{"A record with this key already exists in the target table", "Truncate the target or export to a new table", "EXP002"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "EXP003"}},
	{"invalid target table", UserMessage{"The target table name is not valid", "Use a name like schema.table", "EXP004"}},

	// Requests
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "REQ001"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller file or try again later", "REQ002"}},
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first matching pattern, or the ERR000 fallback.
//
//	msg := MapError(csv.ErrNoRows)
//	// msg.Code == "CSV001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
