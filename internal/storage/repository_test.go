package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"retaildash/internal/core"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "data", "snapshot.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleDataset() core.Dataset {
	return core.Dataset{
		Source:  "transactions.csv",
		Skipped: 2,
		Rows: []core.Transaction{
			{ID: 1, Status: "Active", Type: "Retail", Tier: "Gold", Points: decimal.RequireFromString("100.5"),
				Date: time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC), DateValid: true, PointsGroup: "High", Name: "Ann"},
			{ID: 3, Status: "Inactive", Type: "Online", Tier: "Silver", Points: decimal.NewFromInt(30),
				DateValid: false, PointsGroup: "Low", Name: "Bob"},
		},
	}
}

func TestReplaceAndReadTransactions(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.ReplaceTransactions(ctx, sampleDataset()); err != nil {
		t.Fatalf("ReplaceTransactions: %v", err)
	}
	ds, err := repo.ReadTransactions(ctx)
	if err != nil {
		t.Fatalf("ReadTransactions: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("rows = %d", ds.Len())
	}

	first := ds.Rows[0]
	if first.Name != "Ann" || first.Points.String() != "100.5" || !first.DateValid ||
		!first.Date.Equal(time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("first = %+v", first)
	}
	if ds.Rows[1].DateValid {
		t.Fatalf("invalid date should survive the round trip")
	}
	if !strings.HasPrefix(ds.Source, "sqlite:") {
		t.Fatalf("source = %q", ds.Source)
	}
}

func TestReplaceTransactionsOverwrites(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.ReplaceTransactions(ctx, sampleDataset()); err != nil {
		t.Fatal(err)
	}
	next := sampleDataset()
	next.Source = "second.csv"
	next.Rows = next.Rows[:1]
	if err := repo.ReplaceTransactions(ctx, next); err != nil {
		t.Fatal(err)
	}

	ds, err := repo.ReadTransactions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ds.Len() != 1 {
		t.Fatalf("rows = %d, want 1", ds.Len())
	}

	imp, ok, err := repo.LastImport(ctx)
	if err != nil || !ok {
		t.Fatalf("LastImport = %v, %v", ok, err)
	}
	if imp.Source != "second.csv" || imp.Rows != 1 || imp.Skipped != 2 {
		t.Fatalf("import = %+v", imp)
	}
}

func TestLastImportEmpty(t *testing.T) {
	repo := openTestRepo(t)
	if _, ok, err := repo.LastImport(context.Background()); ok || err != nil {
		t.Fatalf("LastImport = %v, %v", ok, err)
	}
}

func TestReopenKeepsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.db")
	repo, err := Open(DriverSQLite, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.ReplaceTransactions(context.Background(), sampleDataset()); err != nil {
		t.Fatal(err)
	}
	repo.Close()

	repo, err = Open(DriverSQLite, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()
	ds, err := repo.ReadTransactions(context.Background())
	if err != nil || ds.Len() != 2 {
		t.Fatalf("after reopen rows=%d err=%v", ds.Len(), err)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open("postgres", "x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestMySQLIsReadOnly(t *testing.T) {
	r := &Repository{driver: DriverMySQL, dsn: "user:secret@tcp(localhost:3306)/retail"}
	if err := r.ReplaceTransactions(context.Background(), sampleDataset()); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("err = %v, want ErrReadOnly", err)
	}
	if strings.Contains(r.Source(), "secret") {
		t.Fatalf("source leaks password: %s", r.Source())
	}
	if !strings.HasPrefix(r.Source(), "mysql:user@tcp(localhost:3306)/retail") {
		t.Fatalf("source = %s", r.Source())
	}
}
