// Package progression turns chat activity into levels and daily streaks.
package progression

import (
	"math"

	"github.com/groupkeeper-tgbot-go/internal/models"
)

const xpPerLevelStep = 1000

// Streak tiers for the daily bonus.
const (
	TopTierStreak = 7
	TopTierBonus  = 100
	MidTierStreak = 3
	MidTierBonus  = 50
)

// XPNeededFor returns the XP that completes level.
func XPNeededFor(level int) int {
	return level * xpPerLevelStep
}

// AwardXP adds delta to the rank and normalizes XP into levels. It returns
// the updated rank and how many levels were gained. Negative deltas count as 0
// and XP saturates at math.MaxInt instead of wrapping.
func AwardXP(rank models.UserRank, delta int) (models.UserRank, int) {
	if delta < 0 {
		delta = 0
	}
	if rank.Level < 1 {
		rank.Level = 1
	}
	if rank.XP < 0 {
		rank.XP = 0
	}
	if delta > math.MaxInt-rank.XP {
		delta = math.MaxInt - rank.XP
	}
	rank.XP += delta
	gained := 0
	for rank.XP >= XPNeededFor(rank.Level) {
		rank.XP -= XPNeededFor(rank.Level)
		rank.Level++
		gained++
	}
	return rank, gained
}

// UpdateDailyStreak records a claim on today. A second claim on the same day
// leaves the streak unchanged; the next day extends it; anything else
// restarts it at 1.
func UpdateDailyStreak(rank models.UserRank, today models.Date) (models.UserRank, bool) {
	if !rank.LastActive.IsZero() && today == rank.LastActive {
		return rank, false
	}
	if !rank.LastActive.IsZero() && today.DaysSince(rank.LastActive) == 1 {
		rank.DailyStreak++
	} else {
		rank.DailyStreak = 1
	}
	rank.LastActive = today
	return rank, true
}

// StreakBonus returns the extra XP a streak earns.
func StreakBonus(streak int) int {
	switch {
	case streak >= TopTierStreak:
		return TopTierBonus
	case streak >= MidTierStreak:
		return MidTierBonus
	}
	return 0
}

// DailyBonus returns the total daily award and its streak component.
func DailyBonus(base, streak int) (total, streakBonus int) {
	if base < 0 {
		base = 0
	}
	streakBonus = StreakBonus(streak)
	return base + streakBonus, streakBonus
}

// Progress returns the share of the current level completed, in [0, 1].
func Progress(rank models.UserRank) float64 {
	needed := XPNeededFor(rank.Level)
	if needed <= 0 {
		return 0
	}
	p := float64(rank.XP) / float64(needed)
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}
