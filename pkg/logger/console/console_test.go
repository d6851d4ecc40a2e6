package console

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestConsoleLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(ConsoleLoggerParams{JSON: true, Output: &buf})
	l.Info("[Cache] write failed", "book_id", "b1")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output %q is not JSON: %v", buf.String(), err)
	}
	if line["msg"] != "[Cache] write failed" || line["book_id"] != "b1" || line["level"] != "info" {
		t.Fatalf("unexpected line %v", line)
	}
}

func TestConsoleLogger_Level(t *testing.T) {
	tests := []struct {
		name  string
		debug bool
		want  bool
	}{
		{name: "info hides debug", debug: false, want: false},
		{name: "debug shows debug", debug: true, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewConsoleLogger(ConsoleLoggerParams{Debug: tt.debug, Output: &buf})
			l.Debug("retrieving", "k", 5)
			if got := strings.Contains(buf.String(), "retrieving"); got != tt.want {
				t.Fatalf("debug line logged = %v, want %v (%q)", got, tt.want, buf.String())
			}
		})
	}
}
