package progression

import (
	"context"
	"sort"

	"github.com/groupkeeper-tgbot-go/internal/apperrors"
	"github.com/groupkeeper-tgbot-go/internal/models"
	"github.com/groupkeeper-tgbot-go/internal/services/storage"
	"github.com/sirupsen/logrus"
)

// Recorder receives progression counters; middleware.Metrics implements it.
type Recorder interface {
	RecordXPAwarded(source string, xp int)
	RecordLevelUp()
}

type noopRecorder struct{}

func (noopRecorder) RecordXPAwarded(string, int) {}
func (noopRecorder) RecordLevelUp()              {}

// AwardResult describes one XP award after it was stored.
type AwardResult struct {
	Rank         models.UserRank
	OldLevel     int
	LevelsGained int
	XPNeeded     int
}

// LeveledUp reports whether the award crossed at least one level.
func (r AwardResult) LeveledUp() bool {
	return r.LevelsGained > 0
}

// DailyResult describes a daily bonus claim.
type DailyResult struct {
	AlreadyClaimed bool
	Award          AwardResult
	BaseBonus      int
	StreakBonus    int
	Total          int
}

// Service persists progression state through the storage manager.
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

// Rank returns the user's rank in a chat, creating it on first use.
func (s *Service) Rank(ctx context.Context, chatID, userID int64) (*models.UserRank, error) {
	return s.store.GetUserRank(ctx, chatID, userID)
}

// AwardMessageXP counts one message and awards delta XP. Every award is
// stored, level-up or not.
func (s *Service) AwardMessageXP(ctx context.Context, chatID, userID int64, delta int) (AwardResult, error) {
	var res AwardResult
	_, err := s.store.UpdateUserRank(ctx, chatID, userID, func(r *models.UserRank) error {
		res.OldLevel = r.Level
		updated, gained := AwardXP(*r, delta)
		updated.MessagesCount++
		*r = updated
		res.Rank = updated
		res.LevelsGained = gained
		res.XPNeeded = XPNeededFor(updated.Level)
		return nil
	})
	if err != nil {
		return AwardResult{}, err
	}

	s.recorder.RecordXPAwarded("message", delta)
	if res.LeveledUp() {
		s.recorder.RecordLevelUp()
		s.logger.WithFields(logrus.Fields{
			"chat_id": chatID,
			"user_id": userID,
			"level":   res.Rank.Level,
		}).Info("User leveled up")
	}
	return res, nil
}

// ClaimDailyBonus records today's claim and awards base plus the streak
// bonus. A repeat claim on the same day awards nothing.
func (s *Service) ClaimDailyBonus(ctx context.Context, chatID, userID int64, base int, today models.Date) (DailyResult, error) {
	var res DailyResult
	_, err := s.store.UpdateUserRank(ctx, chatID, userID, func(r *models.UserRank) error {
		updated, claimed := UpdateDailyStreak(*r, today)
		if !claimed {
			res.AlreadyClaimed = true
			res.Award = AwardResult{Rank: *r, OldLevel: r.Level, XPNeeded: XPNeededFor(r.Level)}
			return storage.ErrSkipWrite
		}
		total, streakBonus := DailyBonus(base, updated.DailyStreak)
		res.BaseBonus = total - streakBonus
		res.StreakBonus = streakBonus
		res.Total = total

		res.Award.OldLevel = updated.Level
		updated, gained := AwardXP(updated, total)
		*r = updated
		res.Award.Rank = updated
		res.Award.LevelsGained = gained
		res.Award.XPNeeded = XPNeededFor(updated.Level)
		return nil
	})
	if err != nil {
		return DailyResult{}, err
	}
	if !res.AlreadyClaimed {
		s.recorder.RecordXPAwarded("daily", res.Total)
		if res.Award.LeveledUp() {
			s.recorder.RecordLevelUp()
		}
	}
	return res, nil
}

// SetCardStyle stores the user's rank card style.
func (s *Service) SetCardStyle(ctx context.Context, chatID, userID int64, style models.RankCardStyle) (*models.UserRank, error) {
	if !style.Valid() {
		return nil, apperrors.Invalid("style", "unknown rank card style "+string(style))
	}
	return s.store.UpdateUserRank(ctx, chatID, userID, func(r *models.UserRank) error {
		if r.CardStyle == style {
			return storage.ErrSkipWrite
		}
		r.CardStyle = style
		return nil
	})
}

// SortRanks orders ranks for the leaderboard: level, then xp, then message
// count, all descending, with user id as the final tie break.
func SortRanks(ranks []models.UserRank) {
	sort.Slice(ranks, func(i, j int) bool {
		a, b := ranks[i], ranks[j]
		if a.Level != b.Level {
			return a.Level > b.Level
		}
		if a.XP != b.XP {
			return a.XP > b.XP
		}
		if a.MessagesCount != b.MessagesCount {
			return a.MessagesCount > b.MessagesCount
		}
		return a.UserID < b.UserID
	})
}

// Leaderboard returns the top limit ranks of a chat. limit <= 0 returns all.
func (s *Service) Leaderboard(ctx context.Context, chatID int64, limit int) ([]models.UserRank, error) {
	ranks, err := s.store.ListChatRanks(ctx, chatID)
	if err != nil {
		return nil, err
	}
	SortRanks(ranks)
	if limit > 0 && len(ranks) > limit {
		ranks = ranks[:limit]
	}
	return ranks, nil
}

// Position returns the user's 1-based leaderboard position: one more than
// the number of users with a higher level, or the same level and more XP.
func (s *Service) Position(ctx context.Context, chatID, userID int64) (int, error) {
	rank, err := s.store.GetUserRank(ctx, chatID, userID)
	if err != nil {
		return 0, err
	}
	ranks, err := s.store.ListChatRanks(ctx, chatID)
	if err != nil {
		return 0, err
	}
	return PositionOf(*rank, ranks), nil
}

// PositionOf computes the position of rank among ranks.
func PositionOf(rank models.UserRank, ranks []models.UserRank) int {
	pos := 1
	for _, other := range ranks {
		if other.UserID == rank.UserID {
			continue
		}
		if other.Level > rank.Level || (other.Level == rank.Level && other.XP > rank.XP) {
			pos++
		}
	}
	return pos
}
