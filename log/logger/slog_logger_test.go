package logger

import (
	"log/slog"
	"testing"

	"github.com/hatlonely/ignorable/log/writer"
	"github.com/hatlonely/ignorable/ref"
)

func TestNewSLogWithOptions(t *testing.T) {
	tests := []struct {
		name    string
		options *SLogOptions
		wantErr bool
	}{
		{name: "nil options", options: nil, wantErr: true},
		{name: "default console output", options: &SLogOptions{Level: "info"}},
		{
			name: "console output with options",
			options: &SLogOptions{
				Level:  "debug",
				Format: "json",
				Output: &ref.TypeOptions{
					Namespace: "github.com/hatlonely/ignorable/log/writer",
					Type:      "ConsoleWriter",
					Options:   &writer.ConsoleWriterOptions{Target: "stderr"},
				},
				Fields: map[string]any{"service": "ignorable"},
			},
		},
		{name: "custom time format", options: &SLogOptions{TimeFormat: "2006-01-02 15:04:05"}},
		{name: "invalid level", options: &SLogOptions{Level: "invalid"}, wantErr: true},
		{name: "invalid format", options: &SLogOptions{Format: "xml"}, wantErr: true},
		{
			name: "unknown writer",
			options: &SLogOptions{Output: &ref.TypeOptions{
				Namespace: "github.com/hatlonely/ignorable/log/writer",
				Type:      "KafkaWriter",
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewSLogWithOptions(tt.options)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSLogWithOptions() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && l == nil {
				t.Error("NewSLogWithOptions() returned nil logger without error")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"fatal", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := parseLevel(tt.level)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
