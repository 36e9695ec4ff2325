// Package logger builds the bot's logrus logger and the entries handlers
// log through.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/groupkeeper-tgbot-go/internal/config"
	"github.com/groupkeeper-tgbot-go/internal/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Field names shared by every component that logs about a chat or event.
const (
	FieldEventID = "event_id"
	FieldKind    = "kind"
	FieldChatID  = "chat_id"
	FieldUserID  = "user_id"
	FieldCommand = "command"
)

// Output destinations accepted in logging.output.
const (
	OutputStdout = "stdout"
	OutputFile   = "file"
	OutputBoth   = "both"
)

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg *config.LoggingConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	out, err := openOutput(cfg)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(newFormatter(cfg.Format))
	log.SetOutput(out)
	return log, nil
}

func newFormatter(format string) logrus.Formatter {
	if format == "json" {
		return &logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		}
	}
	return &logrus.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
	}
}

func openOutput(cfg *config.LoggingConfig) (io.Writer, error) {
	switch cfg.Output {
	case "", OutputStdout:
		return os.Stdout, nil
	case OutputFile:
		return rotatingFile(&cfg.File)
	case OutputBoth:
		file, err := rotatingFile(&cfg.File)
		if err != nil {
			return nil, err
		}
		return io.MultiWriter(os.Stdout, file), nil
	}
	return nil, fmt.Errorf("unknown log output %q", cfg.Output)
}

// rotatingFile opens a lumberjack writer; sizes are in megabytes, age in days.
func rotatingFile(cfg *config.FileConfig) (*lumberjack.Logger, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("log file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}, nil
}

// WithChat returns an entry about one member of a chat.
func WithChat(log logrus.FieldLogger, chatID, userID int64) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		FieldChatID: chatID,
		FieldUserID: userID,
	})
}

// WithEvent returns an entry tagged with the event's identity.
func WithEvent(log logrus.FieldLogger, ev models.Event) *logrus.Entry {
	fields := logrus.Fields{
		FieldEventID: ev.ID,
		FieldKind:    ev.Kind,
		FieldChatID:  ev.ChatID,
		FieldUserID:  ev.UserID,
	}
	if ev.Command != "" {
		fields[FieldCommand] = ev.Command
	}
	return log.WithFields(fields)
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
