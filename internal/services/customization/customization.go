// Package customization exposes typed accessors over the per-chat and
// per-user documents. Every mutation is a read-modify-write of one subtree
// through storage.Manager; the rest of the document is left untouched.
package customization

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/groupkeeper-tgbot-go/internal/apperrors"
	"github.com/groupkeeper-tgbot-go/internal/models"
	"github.com/groupkeeper-tgbot-go/internal/services/storage"
	"github.com/sirupsen/logrus"
)

// GlobalMaxCustomCommands is the global setting bounding custom commands per chat.
const GlobalMaxCustomCommands = "max_custom_commands"

const maxTextLength = 4096

var (
	featureNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)
	commandNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,32}$`)
)

// Feature is one row of the feature menu.
type Feature struct {
	Name    string
	Enabled bool
}

// Service manages chat customization.
type Service struct {
	store       *storage.Manager
	logger      *logrus.Logger
	maxCommands int

	mu        sync.RWMutex
	listeners []func(chatID int64)
}

// NewService creates the facade. maxCommands is used when the global
// max_custom_commands setting is absent.
func NewService(store *storage.Manager, maxCommands int, logger *logrus.Logger) *Service {
	return &Service{
		store:       store,
		logger:      logger,
		maxCommands: maxCommands,
	}
}

// OnOptionsChange registers a callback run after a chat's options change.
func (s *Service) OnOptionsChange(listener func(chatID int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

func (s *Service) notifyOptionsChange(chatID int64) {
	s.mu.RLock()
	listeners := append([]func(int64){}, s.listeners...)
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(chatID)
	}
}

// Settings returns the whole chat document.
func (s *Service) Settings(ctx context.Context, chatID int64) (*models.ChatSettings, error) {
	return s.store.GetChatSettings(ctx, chatID)
}

// SetChatTitle records the chat title when it changed.
func (s *Service) SetChatTitle(ctx context.Context, chatID int64, title string) error {
	_, err := s.store.UpdateChatSettings(ctx, chatID, func(cs *models.ChatSettings) error {
		if title == "" || cs.ChatTitle == title {
			return storage.ErrSkipWrite
		}
		cs.ChatTitle = title
		return nil
	})
	return err
}

// Features

func normalizeFeature(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !featureNamePattern.MatchString(name) {
		return "", apperrors.Invalid("feature", "use letters, digits and underscores")
	}
	return name, nil
}

// FeatureEnabled reports whether a feature is on. Features never configured are on.
func (s *Service) FeatureEnabled(ctx context.Context, chatID int64, name string) (bool, error) {
	name, err := normalizeFeature(name)
	if err != nil {
		return false, err
	}
	cs, err := s.store.GetChatSettings(ctx, chatID)
	if err != nil {
		return false, err
	}
	return cs.FeatureOn(name), nil
}

// SetFeature stores an explicit state for a feature.
func (s *Service) SetFeature(ctx context.Context, chatID int64, name string, enabled bool) error {
	name, err := normalizeFeature(name)
	if err != nil {
		return err
	}
	_, err = s.store.UpdateChatSettings(ctx, chatID, func(cs *models.ChatSettings) error {
		if current, ok := cs.EnabledFeatures[name]; ok && current == enabled {
			return storage.ErrSkipWrite
		}
		cs.EnabledFeatures[name] = enabled
		return nil
	})
	return err
}

// ToggleFeature flips a feature and returns its new state.
func (s *Service) ToggleFeature(ctx context.Context, chatID int64, name string) (bool, error) {
	name, err := normalizeFeature(name)
	if err != nil {
		return false, err
	}
	var state bool
	_, err = s.store.UpdateChatSettings(ctx, chatID, func(cs *models.ChatSettings) error {
		state = !cs.FeatureOn(name)
		cs.EnabledFeatures[name] = state
		return nil
	})
	return state, err
}

// Features lists the known features plus any stored ones, sorted by name.
func (s *Service) Features(ctx context.Context, chatID int64) ([]Feature, error) {
	cs, err := s.store.GetChatSettings(ctx, chatID)
	if err != nil {
		return nil, err
	}
	names := map[string]struct{}{}
	for _, name := range models.DefaultFeatures() {
		names[name] = struct{}{}
	}
	for name := range cs.EnabledFeatures {
		names[name] = struct{}{}
	}
	out := make([]Feature, 0, len(names))
	for name := range names {
		out = append(out, Feature{Name: name, Enabled: cs.FeatureOn(name)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Options

type intOption struct {
	min, max int
	field    func(*models.ChatOptions) *int
}

var intOptions = map[string]intOption{
	"max_warnings":   {1, 100, func(o *models.ChatOptions) *int { return &o.MaxWarnings }},
	"flood_limit":    {1, 100, func(o *models.ChatOptions) *int { return &o.FloodLimit }},
	"flood_window":   {1, 3600, func(o *models.ChatOptions) *int { return &o.FloodWindow }},
	"mute_duration":  {1, 10080, func(o *models.ChatOptions) *int { return &o.MuteDuration }},
	"xp_per_message": {0, 1000, func(o *models.ChatOptions) *int { return &o.XPPerMessage }},
	"xp_per_level":   {1, 1000000, func(o *models.ChatOptions) *int { return &o.XPPerLevel }},
	"daily_bonus_xp": {0, 100000, func(o *models.ChatOptions) *int { return &o.DailyBonusXP }},
}

var textOptions = map[string]func(*models.ChatOptions) *string{
	"welcome_message": func(o *models.ChatOptions) *string { return &o.WelcomeMessage },
	"goodbye_message": func(o *models.ChatOptions) *string { return &o.GoodbyeMessage },
	"rules":           func(o *models.ChatOptions) *string { return &o.Rules },
}

// OptionNames lists every recognised option, sorted.
func OptionNames() []string {
	names := make([]string, 0, len(intOptions)+len(textOptions))
	for name := range intOptions {
		names = append(names, name)
	}
	for name := range textOptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OptionValue formats the current value of a recognised option.
func OptionValue(o models.ChatOptions, name string) (string, bool) {
	if opt, ok := intOptions[name]; ok {
		return strconv.Itoa(*opt.field(&o)), true
	}
	if field, ok := textOptions[name]; ok {
		return *field(&o), true
	}
	return "", false
}

// Options returns the chat's typed options.
func (s *Service) Options(ctx context.Context, chatID int64) (models.ChatOptions, error) {
	cs, err := s.store.GetChatSettings(ctx, chatID)
	if err != nil {
		return models.ChatOptions{}, err
	}
	return cs.Settings, nil
}

// SetOption parses raw for the named option and stores it.
func (s *Service) SetOption(ctx context.Context, chatID int64, name, raw string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	raw = strings.TrimSpace(raw)

	var apply func(*models.ChatOptions)
	if opt, ok := intOptions[name]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return apperrors.Invalid(name, "must be a whole number")
		}
		if n < opt.min || n > opt.max {
			return apperrors.Invalid(name, "must be between "+strconv.Itoa(opt.min)+" and "+strconv.Itoa(opt.max))
		}
		apply = func(o *models.ChatOptions) { *opt.field(o) = n }
	} else if field, ok := textOptions[name]; ok {
		if raw == "" {
			return apperrors.Invalid(name, "must not be empty")
		}
		if len(raw) > maxTextLength {
			return apperrors.Invalid(name, "is too long")
		}
		apply = func(o *models.ChatOptions) { *field(o) = raw }
	} else {
		return apperrors.Invalid("option", "unknown option "+strconv.Quote(name))
	}

	if _, err := s.store.UpdateChatSettings(ctx, chatID, func(cs *models.ChatSettings) error {
		apply(&cs.Settings)
		return nil
	}); err != nil {
		return err
	}
	s.notifyOptionsChange(chatID)
	return nil
}

func (s *Service) SetWelcomeMessage(ctx context.Context, chatID int64, text string) error {
	return s.SetOption(ctx, chatID, "welcome_message", text)
}

func (s *Service) SetGoodbyeMessage(ctx context.Context, chatID int64, text string) error {
	return s.SetOption(ctx, chatID, "goodbye_message", text)
}

func (s *Service) SetRules(ctx context.Context, chatID int64, text string) error {
	return s.SetOption(ctx, chatID, "rules", text)
}

// Custom responses

func normalizeTrigger(trigger string) string {
	return strings.ToLower(strings.TrimSpace(trigger))
}

// AddCustomResponse maps trigger to response, replacing an existing mapping.
func (s *Service) AddCustomResponse(ctx context.Context, chatID int64, trigger, response string) error {
	trigger = normalizeTrigger(trigger)
	response = strings.TrimSpace(response)
	if trigger == "" {
		return apperrors.Invalid("trigger", "must not be empty")
	}
	if response == "" {
		return apperrors.Invalid("response", "must not be empty")
	}
	if len(response) > maxTextLength {
		return apperrors.Invalid("response", "is too long")
	}
	_, err := s.store.UpdateChatSettings(ctx, chatID, func(cs *models.ChatSettings) error {
		cs.CustomResponses[trigger] = response
		return nil
	})
	return err
}

// RemoveCustomResponse deletes a trigger and reports whether it existed.
func (s *Service) RemoveCustomResponse(ctx context.Context, chatID int64, trigger string) (bool, error) {
	trigger = normalizeTrigger(trigger)
	if trigger == "" {
		return false, apperrors.Invalid("trigger", "must not be empty")
	}
	var removed bool
	_, err := s.store.UpdateChatSettings(ctx, chatID, func(cs *models.ChatSettings) error {
		if _, ok := cs.CustomResponses[trigger]; !ok {
			return storage.ErrSkipWrite
		}
		delete(cs.CustomResponses, trigger)
		removed = true
		return nil
	})
	return removed, err
}

// MatchCustomResponse looks up the response whose trigger equals the
// normalized text. Substrings never match.
func (s *Service) MatchCustomResponse(ctx context.Context, chatID int64, text string) (string, bool, error) {
	key := normalizeTrigger(text)
	if key == "" {
		return "", false, nil
	}
	cs, err := s.store.GetChatSettings(ctx, chatID)
	if err != nil {
		return "", false, err
	}
	response, ok := cs.CustomResponses[key]
	return response, ok, nil
}

// CustomResponses returns the trigger list, sorted.
func (s *Service) CustomResponses(ctx context.Context, chatID int64) ([]string, error) {
	cs, err := s.store.GetChatSettings(ctx, chatID)
	if err != nil {
		return nil, err
	}
	triggers := make([]string, 0, len(cs.CustomResponses))
	for trigger := range cs.CustomResponses {
		triggers = append(triggers, trigger)
	}
	sort.Strings(triggers)
	return triggers, nil
}

// Custom commands

// NormalizeCommandName strips a leading slash and lower-cases the name.
func NormalizeCommandName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "/")
	return strings.ToLower(name)
}

// AddCustomCommand defines or redefines a custom command.
func (s *Service) AddCustomCommand(ctx context.Context, chatID int64, name, response string, createdBy int64) error {
	name = NormalizeCommandName(name)
	response = strings.TrimSpace(response)
	if !commandNamePattern.MatchString(name) {
		return apperrors.Invalid("command", "use up to 32 letters, digits and underscores")
	}
	if response == "" {
		return apperrors.Invalid("response", "must not be empty")
	}
	if len(response) > maxTextLength {
		return apperrors.Invalid("response", "is too long")
	}

	limit, err := s.store.GlobalInt(ctx, GlobalMaxCustomCommands, s.maxCommands)
	if err != nil {
		return err
	}

	_, err = s.store.UpdateChatSettings(ctx, chatID, func(cs *models.ChatSettings) error {
		existing, ok := cs.CustomCommands[name]
		if !ok && limit > 0 && len(cs.CustomCommands) >= limit {
			return apperrors.Invalid("command", "limit of "+strconv.Itoa(limit)+" custom commands reached")
		}
		cs.CustomCommands[name] = models.CustomCommand{
			Response:   response,
			CreatedBy:  createdBy,
			UsageCount: existing.UsageCount,
		}
		return nil
	})
	return err
}

// RemoveCustomCommand deletes a command and reports whether it existed.
func (s *Service) RemoveCustomCommand(ctx context.Context, chatID int64, name string) (bool, error) {
	name = NormalizeCommandName(name)
	if name == "" {
		return false, apperrors.Invalid("command", "must not be empty")
	}
	var removed bool
	_, err := s.store.UpdateChatSettings(ctx, chatID, func(cs *models.ChatSettings) error {
		if _, ok := cs.CustomCommands[name]; !ok {
			return storage.ErrSkipWrite
		}
		delete(cs.CustomCommands, name)
		removed = true
		return nil
	})
	return removed, err
}

// RunCustomCommand returns the command's response and counts the use.
func (s *Service) RunCustomCommand(ctx context.Context, chatID int64, name string) (string, bool, error) {
	name = NormalizeCommandName(name)
	if name == "" {
		return "", false, nil
	}
	var (
		response string
		found    bool
	)
	_, err := s.store.UpdateChatSettings(ctx, chatID, func(cs *models.ChatSettings) error {
		cmd, ok := cs.CustomCommands[name]
		if !ok {
			return storage.ErrSkipWrite
		}
		cmd.UsageCount++
		cs.CustomCommands[name] = cmd
		response, found = cmd.Response, true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return response, found, nil
}

// NamedCommand pairs a custom command with its name.
type NamedCommand struct {
	Name string
	models.CustomCommand
}

// CustomCommands lists the chat's custom commands by name.
func (s *Service) CustomCommands(ctx context.Context, chatID int64) ([]NamedCommand, error) {
	cs, err := s.store.GetChatSettings(ctx, chatID)
	if err != nil {
		return nil, err
	}
	out := make([]NamedCommand, 0, len(cs.CustomCommands))
	for name, cmd := range cs.CustomCommands {
		out = append(out, NamedCommand{Name: name, CustomCommand: cmd})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Banned words

func normalizeWord(word string) (string, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return "", apperrors.Invalid("word", "must not be empty")
	}
	if strings.ContainsAny(word, "\n\r\t") {
		return "", apperrors.Invalid("word", "must be a single line")
	}
	return word, nil
}

// AddBannedWord adds a word. Adding a present word is a no-op and reports false.
func (s *Service) AddBannedWord(ctx context.Context, chatID int64, word string) (bool, error) {
	word, err := normalizeWord(word)
	if err != nil {
		return false, err
	}
	var added bool
	_, err = s.store.UpdateChatSettings(ctx, chatID, func(cs *models.ChatSettings) error {
		if containsWord(cs.BannedWords, word) {
			return storage.ErrSkipWrite
		}
		cs.BannedWords = append(cs.BannedWords, word)
		added = true
		return nil
	})
	return added, err
}

// RemoveBannedWord removes a word. Removing an absent word is a no-op and reports false.
func (s *Service) RemoveBannedWord(ctx context.Context, chatID int64, word string) (bool, error) {
	word, err := normalizeWord(word)
	if err != nil {
		return false, err
	}
	var removed bool
	_, err = s.store.UpdateChatSettings(ctx, chatID, func(cs *models.ChatSettings) error {
		kept := cs.BannedWords[:0]
		for _, w := range cs.BannedWords {
			if w == word {
				removed = true
				continue
			}
			kept = append(kept, w)
		}
		if !removed {
			return storage.ErrSkipWrite
		}
		cs.BannedWords = kept
		return nil
	})
	return removed, err
}

// BannedWords returns the sorted banned word set.
func (s *Service) BannedWords(ctx context.Context, chatID int64) ([]string, error) {
	cs, err := s.store.GetChatSettings(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return cs.BannedWords, nil
}

// IsWordBanned reports whether word is in the chat's set.
func (s *Service) IsWordBanned(ctx context.Context, chatID int64, word string) (bool, error) {
	word, err := normalizeWord(word)
	if err != nil {
		return false, err
	}
	words, err := s.BannedWords(ctx, chatID)
	if err != nil {
		return false, err
	}
	return containsWord(words, word), nil
}

func containsWord(words []string, word string) bool {
	i := sort.SearchStrings(words, word)
	return i < len(words) && words[i] == word
}

// User preferences

// TouchUser returns the user's settings, recording a changed username or
// display name on the way.
func (s *Service) TouchUser(ctx context.Context, userID int64, username, displayName string) (*models.UserSettings, error) {
	return s.store.UpdateUserSettings(ctx, userID, func(us *models.UserSettings) error {
		changed := false
		if username != "" && us.Username != username {
			us.Username = username
			changed = true
		}
		if displayName != "" && us.DisplayName != displayName {
			us.DisplayName = displayName
			changed = true
		}
		if !changed {
			return storage.ErrSkipWrite
		}
		return nil
	})
}

// User returns the user's settings.
func (s *Service) User(ctx context.Context, userID int64) (*models.UserSettings, error) {
	return s.store.GetUserSettings(ctx, userID)
}

// UserLanguage returns the user's preferred language code.
func (s *Service) UserLanguage(ctx context.Context, userID int64) (string, error) {
	us, err := s.store.GetUserSettings(ctx, userID)
	if err != nil {
		return "", err
	}
	return us.Language, nil
}

// SetUserLanguage stores the user's preferred language. supported lists the
// accepted codes; an empty list accepts any code.
func (s *Service) SetUserLanguage(ctx context.Context, userID int64, username, lang string, supported []string) error {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return apperrors.Invalid("language", "must not be empty")
	}
	if len(supported) > 0 {
		ok := false
		for _, code := range supported {
			if code == lang {
				ok = true
				break
			}
		}
		if !ok {
			return apperrors.Invalid("language", "supported: "+strings.Join(supported, ", "))
		}
	}
	_, err := s.store.UpdateUserSettings(ctx, userID, func(us *models.UserSettings) error {
		us.Language = lang
		if username != "" {
			us.Username = username
		}
		return nil
	})
	return err
}
