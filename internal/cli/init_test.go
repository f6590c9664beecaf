package cli

import (
	"context"
	"log/slog"
	"testing"
)

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		name      string
		level     string
		format    string
		wantDebug bool
		wantJSON  bool
	}{
		{"debug json", "debug", "json", true, true},
		{"info text", "info", "text", false, false},
		{"unknown level falls back to info", "loud", "text", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := SetupLogger(tt.level, tt.format)
			if logger == nil {
				t.Fatal("SetupLogger returned nil")
			}

			ctx := context.Background()
			if got := logger.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if !logger.Enabled(ctx, slog.LevelInfo) {
				t.Error("info should be enabled")
			}

			if slog.Default().Handler() != logger.Handler() {
				t.Error("logger was not installed as the slog default")
			}
			_, isJSON := logger.Handler().(*slog.JSONHandler)
			if isJSON != tt.wantJSON {
				t.Errorf("json handler = %v, want %v", isJSON, tt.wantJSON)
			}
		})
	}
}
