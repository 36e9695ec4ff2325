package i18n

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/groupkeeper-tgbot-go/internal/config"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Localizer manages internationalization
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	languages       []string
	localizers      map[string]*i18n.Localizer
}

// NewLocalizer creates a new localizer
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	defaultLang := cfg.DefaultLanguage
	if defaultLang == "" {
		defaultLang = "en"
	}
	tag, err := language.Parse(defaultLang)
	if err != nil {
		return nil, fmt.Errorf("invalid default language %q: %w", defaultLang, err)
	}

	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	languages := cfg.Languages
	if len(languages) == 0 {
		languages = []string{defaultLang}
	}

	// Load language files
	for _, lang := range languages {
		if _, err := bundle.LoadMessageFileFS(localeFS, fmt.Sprintf("locales/%s.json", lang)); err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", lang, err)
		}
	}

	localizers := make(map[string]*i18n.Localizer)
	for _, lang := range languages {
		localizers[lang] = i18n.NewLocalizer(bundle, lang, defaultLang)
	}
	if _, ok := localizers[defaultLang]; !ok {
		localizers[defaultLang] = i18n.NewLocalizer(bundle, defaultLang)
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: defaultLang,
		languages:       languages,
		localizers:      localizers,
	}, nil
}

// Languages returns the loaded language codes.
func (l *Localizer) Languages() []string {
	return append([]string(nil), l.languages...)
}

// Get returns localized message
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID // Fallback to message ID
	}

	return msg
}

// Message IDs
const (
	MsgStart              = "start"
	MsgHelp               = "help"
	MsgError              = "error"
	MsgInvalid            = "invalid"
	MsgUsage              = "usage"
	MsgAdminsOnly         = "admins_only"
	MsgFeatureDisabled    = "feature_disabled"
	MsgNeedReply          = "need_reply"
	MsgLevelUp            = "level_up"
	MsgDailyClaimed       = "daily_claimed"
	MsgDailyAlready       = "daily_already"
	MsgLeaderboardTitle   = "leaderboard_title"
	MsgLeaderboardEmpty   = "leaderboard_empty"
	MsgLeaderboardRow     = "leaderboard_row"
	MsgStyleChoose        = "style_choose"
	MsgStyleSet           = "style_set"
	MsgButtonLeaderboard  = "button_leaderboard"
	MsgButtonDaily        = "button_daily"
	MsgWarned             = "warned"
	MsgMuted              = "muted"
	MsgWarningsNone       = "warnings_none"
	MsgWarningsTitle      = "warnings_title"
	MsgWarningsCleared    = "warnings_cleared"
	MsgBannedWordDetected = "banned_word_detected"
	MsgBannedWordAdded    = "banned_word_added"
	MsgBannedWordExists   = "banned_word_exists"
	MsgBannedWordRemoved  = "banned_word_removed"
	MsgBannedWordMissing  = "banned_word_missing"
	MsgBannedWordsList    = "banned_words_list"
	MsgBannedWordsEmpty   = "banned_words_empty"
	MsgFeatureSet         = "feature_set"
	MsgFeaturesTitle      = "features_title"
	MsgStateOn            = "state_on"
	MsgStateOff           = "state_off"
	MsgOptionSet          = "option_set"
	MsgSettingsTitle      = "settings_title"
	MsgWelcomeSet         = "welcome_set"
	MsgGoodbyeSet         = "goodbye_set"
	MsgRulesSet           = "rules_set"
	MsgRules              = "rules"
	MsgResponseAdded      = "response_added"
	MsgResponseRemoved    = "response_removed"
	MsgResponseMissing    = "response_missing"
	MsgCommandAdded       = "command_added"
	MsgCommandRemoved     = "command_removed"
	MsgCommandMissing     = "command_missing"
	MsgCommandsTitle      = "commands_title"
	MsgCommandsEmpty      = "commands_empty"
	MsgLanguageSet        = "language_set"
)
