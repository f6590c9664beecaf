package source

import (
	"errors"
	"strings"
	"testing"
	"time"

	"retaildash/internal/core"
)

var header = []string{
	"memberName", "memberStatus", "memberType", "memberTier",
	"memberPoints", "transactionDate", "pointsGroup", "extra",
}

func TestMapRows(t *testing.T) {
	rows := [][]string{
		{"Ann", "Active", "Retail", "Gold", "100", "2024-01-01", "High", "x"},
		{"Bob", "Active", "Retail", "Silver", "30.5", "2024-01-01 10:30:00", "Low"},
		{"", "", "", "", "", "", "", ""},
		{"Cid", "Inactive", "Online", "Gold", "-5", "2024-01-02", "High", ""},
		{"Dee", "Inactive", "Online", "Gold", "abc", "2024-01-02", "High", ""},
		{"Eve", "Active", "Online", "Bronze", "7", "someday", "Low", ""},
	}

	ds, err := MapRows("test.csv", header, rows)
	if err != nil {
		t.Fatalf("MapRows: %v", err)
	}
	if ds.Source != "test.csv" {
		t.Fatalf("source = %q", ds.Source)
	}
	if ds.Len() != 3 {
		t.Fatalf("rows = %d, want 3", ds.Len())
	}
	if ds.Skipped != 2 {
		t.Fatalf("skipped = %d, want 2", ds.Skipped)
	}

	first := ds.Rows[0]
	if first.ID != 1 || first.Name != "Ann" || first.Tier != "Gold" || first.PointsGroup != "High" {
		t.Fatalf("first row = %+v", first)
	}
	if !first.DateValid || !first.Date.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("first date = %v valid=%v", first.Date, first.DateValid)
	}

	second := ds.Rows[1]
	if second.ID != 2 || second.Points.String() != "30.5" {
		t.Fatalf("second row = %+v", second)
	}
	if !second.Date.Equal(time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)) {
		t.Fatalf("second date = %v", second.Date)
	}

	last := ds.Rows[2]
	if last.ID != 6 || last.DateValid {
		t.Fatalf("last row = %+v", last)
	}
}

func TestMapRowsMissingColumns(t *testing.T) {
	_, err := MapRows("x", []string{"memberStatus", "memberTier"}, nil)
	if !errors.Is(err, core.ErrMissingColumn) {
		t.Fatalf("err = %v, want ErrMissingColumn", err)
	}
	if !strings.Contains(err.Error(), "memberPoints") {
		t.Fatalf("error should name the missing column: %v", err)
	}
}

func TestMapRowsEmptyHeader(t *testing.T) {
	if _, err := MapRows("x", nil, nil); !errors.Is(err, core.ErrEmptySource) {
		t.Fatalf("err = %v, want ErrEmptySource", err)
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-03-05", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), true},
		{"2024-03-05T08:15:00Z", time.Date(2024, 3, 5, 8, 15, 0, 0, time.UTC), true},
		{"2024-03-05T10:15:00+02:00", time.Date(2024, 3, 5, 8, 15, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"not a date", time.Time{}, false},
	}
	for _, tc := range cases {
		got, ok := ParseDate(tc.in)
		if ok != tc.ok || !got.Equal(tc.want) {
			t.Errorf("ParseDate(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParsePoints(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"100", "100", true},
		{" 12.25 ", "12.25", true},
		{"0", "0", true},
		{"-1", "0", false},
		{"", "0", false},
		{"ten", "0", false},
	}
	for _, tc := range cases {
		got, ok := ParsePoints(tc.in)
		if ok != tc.ok || got.String() != tc.want {
			t.Errorf("ParsePoints(%q) = %s, %v; want %s, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
