// Package storage keeps transaction snapshots in SQL databases. SQLite
// snapshots are written by the importer; MySQL tables are read only.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"retaildash/internal/core"
	"retaildash/internal/source"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// ErrReadOnly is returned when writing to a repository that only supports reads.
var ErrReadOnly = errors.New("repository is read only")

const selectTransactions = `SELECT member_status, member_type, member_tier, member_points,
	transaction_date, points_group, member_name
FROM transactions ORDER BY id`

// column order of selectTransactions
var selectColumns = []string{
	core.ColStatus, core.ColType, core.ColTier, core.ColPoints,
	core.ColDate, core.ColPointsGroup, core.ColName,
}

// Import describes one snapshot written by ReplaceTransactions.
type Import struct {
	Source     string
	Rows       int
	Skipped    int
	ImportedAt time.Time
}

type Repository struct {
	db     *sql.DB
	driver string
	dsn    string
}

var _ source.TransactionReader = (*Repository)(nil)

// Open connects to a transaction database. SQLite databases are created and
// migrated on demand.
func Open(driver, dsn string) (*Repository, error) {
	switch driver {
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	case DriverMySQL:
		if _, err := mysql.ParseDSN(dsn); err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported sql driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if driver == DriverSQLite {
		if err := RunMigrations(dsn); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return &Repository{db: db, driver: driver, dsn: dsn}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Source names the database without credentials.
func (r *Repository) Source() string {
	return r.driver + ":" + redactDSN(r.driver, r.dsn)
}

// ReadTransactions loads every stored transaction. Values go through the same
// row mapping as file inputs, so MySQL DATETIME and DECIMAL columns work too.
func (r *Repository) ReadTransactions(ctx context.Context) (core.Dataset, error) {
	rows, err := r.db.QueryContext(ctx, selectTransactions)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var records [][]string
	for rows.Next() {
		var cols [7]sql.NullString
		if err := rows.Scan(&cols[0], &cols[1], &cols[2], &cols[3], &cols[4], &cols[5], &cols[6]); err != nil {
			return core.Dataset{}, fmt.Errorf("scan transaction: %w", err)
		}
		rec := make([]string, len(cols))
		for i, c := range cols {
			rec[i] = c.String
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return core.Dataset{}, fmt.Errorf("iterate transactions: %w", err)
	}

	return source.MapRows(r.Source(), selectColumns, records)
}

// ReplaceTransactions swaps the stored snapshot for ds in a single transaction
// and records the import.
func (r *Repository) ReplaceTransactions(ctx context.Context, ds core.Dataset) error {
	if r.driver != DriverSQLite {
		return ErrReadOnly
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO transactions
		(id, member_status, member_type, member_tier, member_points, transaction_date, points_group, member_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range ds.Rows {
		date := ""
		if t.DateValid {
			date = t.Date.UTC().Format(time.RFC3339Nano)
		}
		if _, err := stmt.ExecContext(ctx, i+1, t.Status, t.Type, t.Tier,
			t.Points.String(), date, t.PointsGroup, t.Name); err != nil {
			return fmt.Errorf("insert transaction %d: %w", t.ID, err)
		}
	}

	importedAt := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO imports (source, row_count, skipped, imported_at) VALUES (?, ?, ?, ?)`,
		ds.Source, len(ds.Rows), ds.Skipped, importedAt.Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("record import: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Transactions snapshot replaced",
		"source", ds.Source,
		"rows", len(ds.Rows),
		"skipped", ds.Skipped)
	return nil
}

// LastImport returns the most recent import, or false when none was recorded.
func (r *Repository) LastImport(ctx context.Context) (Import, bool, error) {
	if r.driver != DriverSQLite {
		return Import{}, false, nil
	}

	var (
		imp Import
		at  string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT source, row_count, skipped, imported_at FROM imports ORDER BY id DESC LIMIT 1`).
		Scan(&imp.Source, &imp.Rows, &imp.Skipped, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return Import{}, false, nil
	}
	if err != nil {
		return Import{}, false, fmt.Errorf("query last import: %w", err)
	}
	imp.ImportedAt, err = time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return Import{}, false, fmt.Errorf("parse import time: %w", err)
	}
	return imp, true, nil
}

func redactDSN(driver, dsn string) string {
	if driver != DriverMySQL {
		return dsn
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "invalid-dsn"
	}
	cfg.Passwd = ""
	return cfg.FormatDSN()
}
