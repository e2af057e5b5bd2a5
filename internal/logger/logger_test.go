package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestConfigure(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantLevel zerolog.Level
		wantJSON  bool
	}{
		{name: "json debug", level: "debug", format: "json", wantLevel: zerolog.DebugLevel, wantJSON: true},
		{name: "padded upper case", level: " WARN ", format: " JSON", wantLevel: zerolog.WarnLevel, wantJSON: true},
		{name: "console default level", level: "", format: "console", wantLevel: zerolog.InfoLevel},
		{name: "unknown level and format", level: "verbose", format: "xml", wantLevel: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := Configure(tt.level, tt.format, &buf)
			if log.GetLevel() != tt.wantLevel {
				t.Errorf("level = %v, want %v", log.GetLevel(), tt.wantLevel)
			}

			log.Error().Str("period_id", "2024-03").Msg("entry posted")
			var decoded map[string]interface{}
			isJSON := json.Unmarshal(buf.Bytes(), &decoded) == nil
			if isJSON != tt.wantJSON {
				t.Errorf("json output = %v, want %v: %s", isJSON, tt.wantJSON, buf.String())
			}
			if !strings.Contains(buf.String(), "entry posted") {
				t.Errorf("output missing message: %s", buf.String())
			}
		})
	}
}

func TestNew(t *testing.T) {
	if New().GetLevel() != zerolog.InfoLevel {
		t.Error("New should log at info")
	}
	if Nop().GetLevel() != zerolog.Disabled {
		t.Error("Nop logger should be disabled")
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	log := Component(NewWithWriter(&buf), "queue")
	log.Info().Msg("started")
	if !strings.Contains(buf.String(), `"component":"queue"`) {
		t.Errorf("output missing component: %s", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithContext(context.Background(), NewWithWriter(&buf))

	log := FromContext(ctx)
	log.Info().Msg("from context")
	if !strings.Contains(buf.String(), "from context") {
		t.Errorf("context logger not used: %q", buf.String())
	}

	if FromContext(context.Background()).GetLevel() == zerolog.Disabled {
		t.Error("default logger should be enabled")
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := WithFields(NewWithWriter(&buf), map[string]interface{}{
		"job_id":  "job-1",
		"retries": 2,
	})
	log.Info().Msg("job failed")

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if decoded["job_id"] != "job-1" || decoded["retries"] != float64(2) {
		t.Errorf("fields = %v", decoded)
	}
}
