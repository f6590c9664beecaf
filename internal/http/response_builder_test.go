package http

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"retaildash/internal/core"
)

func TestErrorResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	UnprocessableEntityError("start date is after end date").Header("X-Test", "1").Write(rr)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content type = %q", ct)
	}
	if rr.Header().Get("X-Test") != "1" {
		t.Error("custom header missing")
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"error":"start date is after end date"}` {
		t.Errorf("body = %s", got)
	}
}

func TestNewDashboardJSON_Encoding(t *testing.T) {
	d := core.Dashboard{
		Rows: 1,
		PointsByTier: []core.CategoryTotal{
			{Key: "Gold", Points: decimal.RequireFromString("0.1").Add(decimal.RequireFromString("0.2"))},
		},
		Correlation: core.CorrelationMatrix{
			Labels: [2]string{core.ColPoints, core.ColDate},
			Values: [2][2]float64{{1, math.NaN()}, {math.NaN(), math.Inf(1)}},
			N:      2,
		},
	}

	b, err := json.Marshal(newDashboardJSON("src", core.Criteria{}, d))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(b)

	for _, want := range []string{
		`"pointsByTier":[{"key":"Gold","points":0.3}]`,
		`"values":[[1,null],[null,null]]`,
		`"statuses":[]`,
		`"scatter":[]`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("encoded dashboard missing %s\n%s", want, out)
		}
	}
}

func TestFinite(t *testing.T) {
	if finite(math.NaN()) != nil || finite(math.Inf(-1)) != nil {
		t.Error("non-finite values should map to nil")
	}
	if v := finite(0.5); v == nil || *v != 0.5 {
		t.Errorf("finite(0.5) = %v", v)
	}
}
