// Package rankcard renders rank state as Telegram HTML cards.
package rankcard

import (
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/groupkeeper-tgbot-go/internal/models"
	"github.com/groupkeeper-tgbot-go/internal/services/progression"
)

// BarWidth is the number of cells in a progress bar.
const BarWidth = 20

var prestigeIcons = []string{"⭐", "🌟", "💫", "✨", "🔥", "⚡", "🎯", "🏆", "👑", "💎"}

// UserInfo is the display data of the card owner.
type UserInfo struct {
	DisplayName string
	Username    string
}

// PrestigeIcon returns the icon for a prestige tier, clamped to the ladder.
func PrestigeIcon(prestige int) string {
	if prestige < 0 {
		prestige = 0
	}
	if prestige >= len(prestigeIcons) {
		prestige = len(prestigeIcons) - 1
	}
	return prestigeIcons[prestige]
}

// ProgressBar draws current/total as a bar of width cells plus a percentage,
// clamped to 100%.
func ProgressBar(current, total, width int) string {
	pct := 0.0
	if total > 0 {
		pct = float64(current) / float64(total) * 100
	}
	pct = math.Max(0, math.Min(100, pct))
	filled := int(math.Round(pct / 100 * float64(width)))
	return fmt.Sprintf("┃%s%s┃ %.1f%%", strings.Repeat("█", filled), strings.Repeat("━", width-filled), pct)
}

type card struct {
	name     string
	username string
	level    int
	position int
	xp       int
	needed   int
	bar      string
	icon     string
	streak   int
	messages int
}

// Render formats a rank card. Unknown styles use the default layout.
func Render(style models.RankCardStyle, user UserInfo, rank models.UserRank, position int) string {
	name := strings.TrimSpace(user.DisplayName)
	if name == "" {
		name = "User"
	}
	needed := progression.XPNeededFor(rank.Level)
	c := card{
		name:     html.EscapeString(name),
		username: html.EscapeString(strings.TrimPrefix(user.Username, "@")),
		level:    rank.Level,
		position: position,
		xp:       rank.XP,
		needed:   needed,
		bar:      ProgressBar(rank.XP, needed, BarWidth),
		icon:     PrestigeIcon(rank.Prestige),
		streak:   rank.DailyStreak,
		messages: rank.MessagesCount,
	}

	switch style {
	case models.StyleMinimal:
		return c.minimal()
	case models.StyleDetailed:
		return c.detailed()
	case models.StyleColorful:
		return c.colorful()
	default:
		return c.standard()
	}
}

func (c card) handle() string {
	if c.username == "" {
		return ""
	}
	return "@" + c.username
}

func (c card) standard() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>LEVEL %d</b> %s\n\n", c.icon, c.level, c.icon)
	fmt.Fprintf(&b, "🏆 <b>RANK #%d</b>\n\n", c.position)
	fmt.Fprintf(&b, "<b>%s</b>\n", c.name)
	if h := c.handle(); h != "" {
		b.WriteString(h + "\n")
	}
	fmt.Fprintf(&b, "\n📊 <b>PROGRESS</b>\n%d / %d XP\n%s\n\n", c.xp, c.needed, c.bar)
	fmt.Fprintf(&b, "🔥 <b>Daily Streak:</b> %d days\n", c.streak)
	fmt.Fprintf(&b, "💬 <b>Messages:</b> %d", c.messages)
	return b.String()
}

func (c card) minimal() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>LEVEL %d</b> • <b>RANK #%d</b> %s\n\n", c.icon, c.level, c.position, c.icon)
	fmt.Fprintf(&b, "<b>%s</b>", c.name)
	if h := c.handle(); h != "" {
		b.WriteString(" • " + h)
	}
	fmt.Fprintf(&b, "\n\n%s\n%d/%d XP\n\n🔥 %d days", c.bar, c.xp, c.needed, c.streak)
	return b.String()
}

func (c card) detailed() string {
	const rule = "├────────────────────────┤"
	var b strings.Builder
	b.WriteString("<pre>")
	b.WriteString("┌────────────────────────┐\n")
	fmt.Fprintf(&b, "│    %s RANK CARD %s    │\n", c.icon, c.icon)
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "│ LEVEL %16d │\n", c.level)
	fmt.Fprintf(&b, "│ RANK %17s │\n", fmt.Sprintf("#%d", c.position))
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "│ %s\n", c.name)
	if h := c.handle(); h != "" {
		fmt.Fprintf(&b, "│ %s\n", h)
	}
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "│ %s\n", c.bar)
	fmt.Fprintf(&b, "│ %6d / %6d XP      │\n", c.xp, c.needed)
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "│ 🔥 Streak: %11d │\n", c.streak)
	fmt.Fprintf(&b, "│ 💬 Msgs: %13d │\n", c.messages)
	b.WriteString("└────────────────────────┘")
	b.WriteString("</pre>")
	return b.String()
}

func (c card) colorful() string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌈 %s <b>%s</b> %s 🌈\n\n", c.icon, c.name, c.icon)
	if h := c.handle(); h != "" {
		fmt.Fprintf(&b, "🏷 %s\n", h)
	}
	fmt.Fprintf(&b, "🟣 <b>Level</b> %d   🟡 <b>Rank</b> #%d\n\n", c.level, c.position)
	fmt.Fprintf(&b, "🟢 %s\n", c.bar)
	fmt.Fprintf(&b, "🔵 %d / %d XP\n\n", c.xp, c.needed)
	fmt.Fprintf(&b, "🟠 <b>Streak:</b> %d days", c.streak)
	return b.String()
}
