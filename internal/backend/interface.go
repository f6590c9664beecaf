package backend

import (
	"context"

	"retaildash/internal/source"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the transaction reader and optional cleanup function
type BackendResult struct {
	Reader  source.TransactionReader
	Cleanup CleanupFunc
}

// Factory creates transaction readers based on configuration
type Factory interface {
	CreateReader(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for reader creation
type Config struct {
	Type BackendType
	// Location is a file path, SQL DSN or spreadsheet id depending on Type.
	Location string

	// Google Sheets specific
	SheetsRange              string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}

// BackendType represents the type of backend
type BackendType string

const (
	CSVBackend    BackendType = "csv"
	XLSXBackend   BackendType = "xlsx"
	SQLiteBackend BackendType = "sqlite"
	MySQLBackend  BackendType = "mysql"
	SheetsBackend BackendType = "sheets"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case CSVBackend, XLSXBackend, SQLiteBackend, MySQLBackend, SheetsBackend:
		return true
	default:
		return false
	}
}
