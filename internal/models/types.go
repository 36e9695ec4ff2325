package models

import (
	"sort"
	"strings"
	"time"
)

// Feature names known to the bot. Features absent from a chat document are enabled.
const (
	FeatureAntiSpam       = "anti_spam"
	FeatureAutoMute       = "auto_mute"
	FeatureKeywordFilter  = "keyword_filter"
	FeatureFloodControl   = "flood_control"
	FeatureWelcomeMessage = "welcome_message"
	FeatureGreetUsers     = "greet_users"
	FeatureReportSystem   = "report_system"
	FeatureMessageCounter = "message_counter"
	FeatureCustomCommands = "custom_commands"
	FeatureRankSystem     = "rank_system"
	FeatureDailyRewards   = "daily_rewards"
)

// ChatOptions holds the recognised per-chat configuration values.
type ChatOptions struct {
	WelcomeMessage string `json:"welcome_message"`
	GoodbyeMessage string `json:"goodbye_message"`
	Rules          string `json:"rules"`
	MaxWarnings    int    `json:"max_warnings"`
	FloodLimit     int    `json:"flood_limit"`
	FloodWindow    int    `json:"flood_window"`  // seconds
	MuteDuration   int    `json:"mute_duration"` // minutes
	XPPerMessage   int    `json:"xp_per_message"`
	// XPPerLevel is kept for stored documents; the leveling curve itself is fixed.
	XPPerLevel   int `json:"xp_per_level"`
	DailyBonusXP int `json:"daily_bonus_xp"`
}

// CustomCommand is an admin-defined slash command answered with fixed text.
type CustomCommand struct {
	Response   string `json:"response"`
	CreatedBy  int64  `json:"created_by"`
	UsageCount int    `json:"usage_count"`
}

// ChatSettings is the per-chat document.
type ChatSettings struct {
	ChatID          int64                    `json:"chat_id"`
	ChatTitle       string                   `json:"chat_title"`
	Settings        ChatOptions              `json:"settings"`
	CustomResponses map[string]string        `json:"custom_responses"`
	CustomCommands  map[string]CustomCommand `json:"custom_commands"`
	EnabledFeatures map[string]bool          `json:"enabled_features"`
	BannedWords     []string                 `json:"banned_words"`
}

// DefaultChatOptions are the options a new chat starts with.
var DefaultChatOptions = ChatOptions{
	WelcomeMessage: "👋 Welcome {name} to {chat}!",
	GoodbyeMessage: "👋 Goodbye {name}! We'll miss you!",
	Rules:          "Be respectful to everyone!",
	MaxWarnings:    3,
	FloodLimit:     5,
	FloodWindow:    10,
	MuteDuration:   5,
	XPPerMessage:   10,
	XPPerLevel:     1000,
	DailyBonusXP:   50,
}

var defaultFeatures = []string{
	FeatureAntiSpam, FeatureAutoMute, FeatureKeywordFilter, FeatureFloodControl,
	FeatureWelcomeMessage, FeatureGreetUsers, FeatureReportSystem, FeatureMessageCounter,
	FeatureCustomCommands, FeatureRankSystem, FeatureDailyRewards,
}

var defaultBannedWords = []string{"badword1", "badword2", "spam"}

// DefaultFeatures returns the feature names every new chat starts with.
func DefaultFeatures() []string {
	return append([]string(nil), defaultFeatures...)
}

// DefaultChatSettings returns the document seeded for a chat seen for the first time.
func DefaultChatSettings(chatID int64) *ChatSettings {
	features := make(map[string]bool, len(defaultFeatures))
	for _, name := range defaultFeatures {
		features[name] = true
	}
	return &ChatSettings{
		ChatID:          chatID,
		Settings:        DefaultChatOptions,
		CustomResponses: map[string]string{},
		CustomCommands:  map[string]CustomCommand{},
		EnabledFeatures: features,
		BannedWords:     append([]string(nil), defaultBannedWords...),
	}
}

// Normalize fills nil maps left by older documents and restores set semantics
// on the banned word list.
func (s *ChatSettings) Normalize() {
	if s.CustomResponses == nil {
		s.CustomResponses = map[string]string{}
	}
	if s.CustomCommands == nil {
		s.CustomCommands = map[string]CustomCommand{}
	}
	if s.EnabledFeatures == nil {
		s.EnabledFeatures = map[string]bool{}
	}
	seen := make(map[string]struct{}, len(s.BannedWords))
	words := make([]string, 0, len(s.BannedWords))
	for _, w := range s.BannedWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	sort.Strings(words)
	s.BannedWords = words
}

// FeatureOn reports whether a feature is enabled. Features never configured
// for the chat count as on.
func (s *ChatSettings) FeatureOn(name string) bool {
	on, ok := s.EnabledFeatures[name]
	return !ok || on
}

// Clone returns a deep copy.
func (s *ChatSettings) Clone() *ChatSettings {
	c := *s
	c.CustomResponses = make(map[string]string, len(s.CustomResponses))
	for k, v := range s.CustomResponses {
		c.CustomResponses[k] = v
	}
	c.CustomCommands = make(map[string]CustomCommand, len(s.CustomCommands))
	for k, v := range s.CustomCommands {
		c.CustomCommands[k] = v
	}
	c.EnabledFeatures = make(map[string]bool, len(s.EnabledFeatures))
	for k, v := range s.EnabledFeatures {
		c.EnabledFeatures[k] = v
	}
	c.BannedWords = append([]string(nil), s.BannedWords...)
	return &c
}

// NotificationPreferences controls which bot notices a user receives.
type NotificationPreferences struct {
	GameNotifications bool `json:"game_notifications"`
	RankUpdates       bool `json:"rank_updates"`
	DailyRewards      bool `json:"daily_rewards"`
}

// UserSettings is the per-user document.
type UserSettings struct {
	UserID        int64                   `json:"user_id"`
	Username      string                  `json:"username"`
	DisplayName   string                  `json:"display_name"`
	Language      string                  `json:"preferred_language"`
	Theme         string                  `json:"theme"`
	Notifications NotificationPreferences `json:"notification_preferences"`
}

// DefaultUserSettings returns the document seeded for a user seen for the first time.
func DefaultUserSettings(userID int64) *UserSettings {
	return &UserSettings{
		UserID:   userID,
		Language: "en",
		Theme:    "default",
		Notifications: NotificationPreferences{
			GameNotifications: true,
			RankUpdates:       true,
			DailyRewards:      true,
		},
	}
}

// RankCardStyle selects one of the fixed rank card layouts.
type RankCardStyle string

const (
	StyleDefault  RankCardStyle = "default"
	StyleMinimal  RankCardStyle = "minimal"
	StyleDetailed RankCardStyle = "detailed"
	StyleColorful RankCardStyle = "colorful"
)

// RankCardStyles lists every style in menu order.
var RankCardStyles = []RankCardStyle{StyleDefault, StyleMinimal, StyleDetailed, StyleColorful}

// Valid reports whether s is one of the known styles.
func (s RankCardStyle) Valid() bool {
	switch s {
	case StyleDefault, StyleMinimal, StyleDetailed, StyleColorful:
		return true
	}
	return false
}

// UserRank is the per-(user, chat) progression document.
type UserRank struct {
	UserID        int64         `json:"user_id"`
	ChatID        int64         `json:"chat_id"`
	XP            int           `json:"xp"`
	Level         int           `json:"level"`
	MessagesCount int           `json:"messages_count"`
	DailyStreak   int           `json:"daily_streak"`
	LastActive    Date          `json:"last_active"`
	CardStyle     RankCardStyle `json:"rank_card_style"`
	Prestige      int           `json:"prestige"`
}

// DefaultUserRank returns the rank a user starts with in a chat.
func DefaultUserRank(chatID, userID int64) *UserRank {
	return &UserRank{
		UserID:    userID,
		ChatID:    chatID,
		Level:     1,
		CardStyle: StyleDefault,
	}
}

// Warning is one entry of the append-only moderation log.
type Warning struct {
	ID        int64     `json:"warning_id"`
	ChatID    int64     `json:"chat_id"`
	UserID    int64     `json:"user_id"`
	Reason    string    `json:"reason"`
	WarnedBy  int64     `json:"warned_by"`
	CreatedAt time.Time `json:"created_at"`
}

// GlobalSetting is a process-wide deployment default.
type GlobalSetting struct {
	Key         string      `json:"setting_key"`
	Value       interface{} `json:"setting_value"`
	Description string      `json:"description"`
}
