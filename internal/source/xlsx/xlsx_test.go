package xlsx

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"retaildash/internal/core"
)

func writeWorkbook(t *testing.T, rows [][]any) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

var sampleRows = [][]any{
	{"memberStatus", "memberType", "memberTier", "memberPoints", "transactionDate", "pointsGroup", "memberName"},
	{"Active", "Retail", "Gold", 100, "2024-01-01", "High", "Ann"},
	{"Active", "Retail", "Silver", 30, "2024-01-01", "Low", "Bob"},
	{"Active", "Retail", "Gold", 50, "2024-01-02", "High", "Cid"},
}

func TestReaderFromFile(t *testing.T) {
	f := writeWorkbook(t, sampleRows)
	path := filepath.Join(t.TempDir(), "transactions.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	ds, err := New(path).ReadTransactions(context.Background())
	if err != nil {
		t.Fatalf("ReadTransactions: %v", err)
	}
	if ds.Len() != 3 {
		t.Fatalf("rows = %d", ds.Len())
	}
	if ds.Rows[0].Points.String() != "100" || ds.Rows[2].Tier != "Gold" || !ds.Rows[2].DateValid {
		t.Fatalf("rows = %+v", ds.Rows)
	}
}

func TestParseFromReader(t *testing.T) {
	f := writeWorkbook(t, sampleRows)
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	ds, err := Parse("upload.xlsx", &buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ds.Source != "upload.xlsx" || ds.Len() != 3 {
		t.Fatalf("dataset = %s/%d", ds.Source, ds.Len())
	}
}

func TestParseEmptySheet(t *testing.T) {
	f := excelize.NewFile()
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	if _, err := Parse("empty.xlsx", &buf); !errors.Is(err, core.ErrEmptySource) {
		t.Fatalf("err = %v, want ErrEmptySource", err)
	}
}
