// Package moderation keeps the warning log and scans text for banned words.
// It holds no policy; callers compare counts against the chat's limits.
package moderation

import (
	"context"
	"strings"

	"github.com/groupkeeper-tgbot-go/internal/apperrors"
	"github.com/groupkeeper-tgbot-go/internal/models"
	"github.com/groupkeeper-tgbot-go/internal/services/storage"
	"github.com/sirupsen/logrus"
)

// Recorder receives moderation counters; middleware.Metrics implements it.
type Recorder interface {
	RecordWarning(source string)
}

type noopRecorder struct{}

func (noopRecorder) RecordWarning(string) {}

// Service wraps the warning log.
type Service struct {
	store    *storage.Manager
	logger   *logrus.Logger
	recorder Recorder
}

func NewService(store *storage.Manager, logger *logrus.Logger) *Service {
	return &Service{store: store, logger: logger, recorder: noopRecorder{}}
}

// SetRecorder installs a metrics sink.
func (s *Service) SetRecorder(r Recorder) {
	if r == nil {
		r = noopRecorder{}
	}
	s.recorder = r
}

// RecordWarning appends a warning and returns it with the user's new count.
// An issuer of 0 means the bot itself.
func (s *Service) RecordWarning(ctx context.Context, chatID, userID int64, reason string, issuer int64) (*models.Warning, int, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, 0, apperrors.Invalid("reason", "must not be empty")
	}
	w, err := s.store.AddWarning(ctx, chatID, userID, reason, issuer)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.store.CountWarnings(ctx, chatID, userID)
	if err != nil {
		return nil, 0, err
	}

	source := "admin"
	if issuer == 0 {
		source = "filter"
	}
	s.recorder.RecordWarning(source)
	s.logger.WithFields(logrus.Fields{
		"chat_id":    chatID,
		"user_id":    userID,
		"warning_id": w.ID,
		"count":      count,
		"source":     source,
	}).Info("Warning recorded")
	return w, count, nil
}

func (s *Service) CountWarnings(ctx context.Context, chatID, userID int64) (int, error) {
	return s.store.CountWarnings(ctx, chatID, userID)
}

// ListWarnings returns the user's warnings, most recent first.
func (s *Service) ListWarnings(ctx context.Context, chatID, userID int64) ([]models.Warning, error) {
	return s.store.ListWarnings(ctx, chatID, userID)
}

// ClearWarnings deletes the user's warnings and returns how many were removed.
func (s *Service) ClearWarnings(ctx context.Context, chatID, userID int64) (int, error) {
	n, err := s.store.ClearWarnings(ctx, chatID, userID)
	if err != nil {
		return 0, err
	}
	s.logger.WithFields(logrus.Fields{
		"chat_id": chatID,
		"user_id": userID,
		"removed": n,
	}).Info("Warnings cleared")
	return n, nil
}

// GetWarning looks up a single warning; unknown ids return apperrors.ErrNotFound.
func (s *Service) GetWarning(ctx context.Context, id int64) (*models.Warning, error) {
	return s.store.GetWarning(ctx, id)
}

// ThresholdReached reports whether count has reached maxWarnings.
func ThresholdReached(count, maxWarnings int) bool {
	return maxWarnings > 0 && count >= maxWarnings
}

// ScanBannedWords returns the first banned word contained in text.
// Matching is case-insensitive and by substring.
func ScanBannedWords(text string, words []string) (string, bool) {
	if text == "" || len(words) == 0 {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, w := range words {
		if w == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(w)) {
			return w, true
		}
	}
	return "", false
}
