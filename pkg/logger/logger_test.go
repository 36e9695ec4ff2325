package logger

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/groupkeeper-tgbot-go/internal/config"
	"github.com/groupkeeper-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
)

func TestNewLogger(t *testing.T) {
	log, err := NewLogger(&config.LoggingConfig{Level: "debug", Format: "json", Output: OutputStdout})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v, want debug", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("expected JSON formatter, got %T", log.Formatter)
	}
}

func TestNewLoggerOutputs(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		file    bool
		wantErr bool
	}{
		{"default", "", false, false},
		{"stdout", OutputStdout, false, false},
		{"file", OutputFile, true, false},
		{"both", OutputBoth, true, false},
		{"file without path", OutputFile, false, true},
		{"unknown", "syslog", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.LoggingConfig{Level: "info", Output: tt.output}
			if tt.file {
				cfg.File = config.FileConfig{Path: filepath.Join(t.TempDir(), "logs", "bot.log"), MaxSize: 1}
			}
			log, err := NewLogger(cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewLogger: %v", err)
			}
			if _, ok := log.Formatter.(*logrus.TextFormatter); !ok {
				t.Errorf("expected text formatter, got %T", log.Formatter)
			}
		})
	}
}

func TestNewLoggerBadLevel(t *testing.T) {
	if _, err := NewLogger(&config.LoggingConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestEventFieldsInJSON(t *testing.T) {
	var buf bytes.Buffer
	log := Discard()
	log.SetOutput(&buf)
	log.SetFormatter(newFormatter("json"))

	WithEvent(log, models.Event{ID: "e1", Kind: models.EventCommand, ChatID: 5, UserID: 6, Command: "rank"}).Info("handled")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	want := map[string]interface{}{
		FieldEventID: "e1",
		FieldChatID:  float64(5),
		FieldUserID:  float64(6),
		FieldCommand: "rank",
		"message":    "handled",
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("%s = %v, want %v", k, line[k], v)
		}
	}
	if _, ok := line["timestamp"]; !ok {
		t.Errorf("missing timestamp in %v", line)
	}
}

func TestWithChat(t *testing.T) {
	entry := WithChat(Discard(), -100, 7)
	if entry.Data[FieldChatID] != int64(-100) || entry.Data[FieldUserID] != int64(7) {
		t.Errorf("unexpected fields: %v", entry.Data)
	}
	if _, ok := WithEvent(Discard(), models.Event{}).Data[FieldCommand]; ok {
		t.Error("command field set for an event without a command")
	}
}
