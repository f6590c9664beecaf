// Command retaildash-import copies a transaction file or sheet into the SQLite
// snapshot read by the sqlite backend, then announces the new snapshot.
//
// Usage: retaildash-import [path]
//
// The input defaults to TRANSACTIONS_SOURCE and DATA_BACKEND; a path argument
// overrides both, with the backend taken from the file extension.
package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"retaildash/internal/amqp"
	"retaildash/internal/backend"
	"retaildash/internal/cli"
	"retaildash/internal/config"
	"retaildash/internal/log"
	"retaildash/internal/storage"
)

const importTimeout = 5 * time.Minute

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat).WithComponent(log.ComponentImporter)

	if len(os.Args) > 1 {
		applyInputArg(cfg, os.Args[1])
	}
	if err := cfg.ValidateImporter(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.DataBackend == string(backend.SQLiteBackend) {
		logger.Error("Importer input must not be the sqlite snapshot", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
	defer cancel()

	if err := run(ctx, cfg, backendCfg, logger); err != nil {
		logger.Error("Import failed", log.FieldOperation, log.OpImport, log.FieldError, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, backendCfg backend.Config, logger *log.Logger) error {
	result, err := backend.NewFactory(logger.Logger).CreateReader(ctx, backendCfg)
	if err != nil {
		return err
	}
	if result.Cleanup != nil {
		defer result.Cleanup()
	}

	ds, err := result.Reader.ReadTransactions(ctx)
	if err != nil {
		return err
	}
	logger.Info("Transactions read",
		log.FieldSource, ds.Source,
		log.FieldRows, ds.Len(),
		"skipped", ds.Skipped)

	repo, err := storage.Open(storage.DriverSQLite, cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	if prev, ok, err := repo.LastImport(ctx); err != nil {
		logger.Warn("Could not read previous import", log.FieldError, err)
	} else if ok {
		logger.Info("Replacing previous snapshot",
			log.FieldSource, prev.Source,
			log.FieldRows, prev.Rows,
			"imported_at", prev.ImportedAt)
	}

	if err := repo.ReplaceTransactions(ctx, ds); err != nil {
		return err
	}
	logger.Info("Snapshot written",
		"database", cfg.SQLiteDBPath,
		log.FieldRows, ds.Len(),
		log.FieldOperation, log.OpImport)

	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - running servers pick the snapshot up after the cache TTL")
		return nil
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Snapshot written but reload notice not sent", log.FieldError, err)
		return nil
	}
	defer client.Close()

	msg := amqp.NewDatasetReloadedMessage(repo.Source(), ds.Len(), ds.Skipped)
	if err := client.PublishDatasetReloaded(ctx, msg); err != nil {
		logger.Warn("Snapshot written but reload notice not sent", log.FieldError, err)
	}
	return nil
}

// applyInputArg points the importer at path, picking the backend from its
// extension.
func applyInputArg(cfg *config.Config, path string) {
	cfg.TransactionsSource = path
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		cfg.DataBackend = string(backend.XLSXBackend)
	default:
		cfg.DataBackend = string(backend.CSVBackend)
	}
}
