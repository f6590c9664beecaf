package backend

import (
	"context"
	"fmt"
	"log/slog"

	"retaildash/internal/source/csvfile"
	"retaildash/internal/source/google"
	"retaildash/internal/source/xlsx"
	"retaildash/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateReader implements Factory.CreateReader
func (f *DefaultFactory) CreateReader(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case CSVBackend:
		f.logger.Info("Initialized CSV backend", "path", config.Location)
		return &BackendResult{Reader: csvfile.New(config.Location)}, nil
	case XLSXBackend:
		f.logger.Info("Initialized XLSX backend", "path", config.Location)
		return &BackendResult{Reader: xlsx.New(config.Location)}, nil
	case SQLiteBackend:
		return f.createSQLBackend(storage.DriverSQLite, config)
	case MySQLBackend:
		return f.createSQLBackend(storage.DriverMySQL, config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLBackend(driver string, config Config) (*BackendResult, error) {
	repo, err := storage.Open(driver, config.Location)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s repository: %w", driver, err)
	}

	f.logger.Info("Initialized SQL backend", "source", repo.Source())

	return &BackendResult{
		Reader:  repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := google.New(ctx, google.Config{
		SpreadsheetID:   config.Location,
		Range:           config.SheetsRange,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend", "source", cli.Source())

	return &BackendResult{Reader: cli}, nil
}
