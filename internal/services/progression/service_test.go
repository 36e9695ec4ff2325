package progression

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/groupkeeper-tgbot-go/internal/apperrors"
	"github.com/groupkeeper-tgbot-go/internal/config"
	"github.com/groupkeeper-tgbot-go/internal/models"
	"github.com/groupkeeper-tgbot-go/internal/services/storage"
	"github.com/groupkeeper-tgbot-go/pkg/logger"
)

type countingRecorder struct {
	mu       sync.Mutex
	xp       map[string]int
	levelUps int
}

func (c *countingRecorder) RecordXPAwarded(source string, xp int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.xp[source] += xp
}

func (c *countingRecorder) RecordLevelUp() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.levelUps++
}

func newTestService(t *testing.T) (*Service, *storage.Manager) {
	t.Helper()
	log := logger.Discard()
	store := storage.NewManagerWithBackend(storage.NewMemoryStorage(&config.MemoryConfig{}, log), time.Second, log)
	return NewService(store, log), store
}

func TestAwardMessageXPPersistsEveryAward(t *testing.T) {
	svc, store := newTestService(t)
	rec := &countingRecorder{xp: map[string]int{}}
	svc.SetRecorder(rec)
	ctx := context.Background()

	res, err := svc.AwardMessageXP(ctx, 1, 2, 10)
	if err != nil {
		t.Fatalf("AwardMessageXP: %v", err)
	}
	if res.LeveledUp() || res.Rank.XP != 10 || res.Rank.MessagesCount != 1 {
		t.Errorf("result = %+v", res)
	}

	stored, err := store.GetUserRank(ctx, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if stored.XP != 10 || stored.MessagesCount != 1 {
		t.Errorf("sub-level progress was not stored: %+v", stored)
	}
	if !stored.LastActive.IsZero() {
		t.Errorf("message xp touched last_active: %v", stored.LastActive)
	}

	res, err = svc.AwardMessageXP(ctx, 1, 2, 2490)
	if err != nil {
		t.Fatal(err)
	}
	if res.OldLevel != 1 || res.Rank.Level != 2 || res.Rank.XP != 1500 || res.LevelsGained != 1 || res.XPNeeded != 2000 {
		t.Errorf("result = %+v", res)
	}
	if rec.xp["message"] != 2500 || rec.levelUps != 1 {
		t.Errorf("recorder = %+v", rec)
	}
}

func TestConcurrentAwardsBothApplied(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, delta := range []int{10, 20} {
		wg.Add(1)
		go func(delta int) {
			defer wg.Done()
			if _, err := svc.AwardMessageXP(ctx, 5, 6, delta); err != nil {
				t.Errorf("AwardMessageXP: %v", err)
			}
		}(delta)
	}
	wg.Wait()

	r, _ := store.GetUserRank(ctx, 5, 6)
	if r.XP != 30 || r.MessagesCount != 2 {
		t.Errorf("rank = %+v, want xp 30 and 2 messages", r)
	}
}

func TestClaimDailyBonus(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	d1 := models.Date{Year: 2026, Month: time.May, Day: 1}

	res, err := svc.ClaimDailyBonus(ctx, 1, 2, 50, d1)
	if err != nil {
		t.Fatalf("ClaimDailyBonus: %v", err)
	}
	if res.AlreadyClaimed || res.Total != 50 || res.Award.Rank.DailyStreak != 1 || res.Award.Rank.XP != 50 {
		t.Errorf("first claim = %+v", res)
	}

	again, err := svc.ClaimDailyBonus(ctx, 1, 2, 50, d1)
	if err != nil {
		t.Fatal(err)
	}
	if !again.AlreadyClaimed || again.Total != 0 || again.Award.Rank.DailyStreak != 1 {
		t.Errorf("same-day claim = %+v", again)
	}
	r, _ := store.GetUserRank(ctx, 1, 2)
	if r.XP != 50 {
		t.Errorf("same-day claim awarded xp: %d", r.XP)
	}

	// claims on days 2 and 3 reach the mid tier
	for i := 1; i <= 2; i++ {
		res, err = svc.ClaimDailyBonus(ctx, 1, 2, 50, d1.AddDays(i))
		if err != nil {
			t.Fatal(err)
		}
	}
	if res.Award.Rank.DailyStreak != 3 || res.StreakBonus != MidTierBonus || res.Total != 100 {
		t.Errorf("day 3 claim = %+v", res)
	}

	// a gap restarts the streak
	res, _ = svc.ClaimDailyBonus(ctx, 1, 2, 50, d1.AddDays(10))
	if res.Award.Rank.DailyStreak != 1 || res.StreakBonus != 0 {
		t.Errorf("after gap = %+v", res)
	}
	r, _ = store.GetUserRank(ctx, 1, 2)
	if r.XP != 50+50+100+50 {
		t.Errorf("stored xp = %d", r.XP)
	}
}

func TestSetCardStyle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	r, err := svc.SetCardStyle(ctx, 1, 2, models.StyleColorful)
	if err != nil || r.CardStyle != models.StyleColorful {
		t.Fatalf("SetCardStyle = %+v, %v", r, err)
	}
	_, err = svc.SetCardStyle(ctx, 1, 2, models.RankCardStyle("neon"))
	if _, ok := apperrors.IsValidation(err); !ok {
		t.Errorf("err = %v, want validation error", err)
	}
	r, _ = svc.Rank(ctx, 1, 2)
	if r.CardStyle != models.StyleColorful {
		t.Errorf("style = %q", r.CardStyle)
	}
}

func TestLeaderboardAndPosition(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seed := []models.UserRank{
		{UserID: 1, ChatID: 9, Level: 2, XP: 100, MessagesCount: 5},
		{UserID: 2, ChatID: 9, Level: 3, XP: 0, MessagesCount: 1},
		{UserID: 3, ChatID: 9, Level: 2, XP: 100, MessagesCount: 9},
		{UserID: 4, ChatID: 9, Level: 2, XP: 900, MessagesCount: 2},
		{UserID: 5, ChatID: 9, Level: 1, XP: 0, MessagesCount: 0},
		{UserID: 1, ChatID: 10, Level: 50, XP: 0, MessagesCount: 0},
	}
	for i := range seed {
		seed[i].CardStyle = models.StyleDefault
		if err := store.PutUserRank(ctx, &seed[i]); err != nil {
			t.Fatal(err)
		}
	}

	board, err := svc.Leaderboard(ctx, 9, 10)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	var order []int64
	for _, r := range board {
		order = append(order, r.UserID)
	}
	want := []int64{2, 4, 3, 1, 5}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}

	top, _ := svc.Leaderboard(ctx, 9, 2)
	if len(top) != 2 {
		t.Errorf("limit ignored: %d", len(top))
	}

	positions := map[int64]int{2: 1, 4: 2, 3: 3, 1: 3, 5: 5}
	for uid, wantPos := range positions {
		pos, err := svc.Position(ctx, 9, uid)
		if err != nil {
			t.Fatal(err)
		}
		if pos != wantPos {
			t.Errorf("Position(%d) = %d, want %d", uid, pos, wantPos)
		}
	}
}
