package customization

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/groupkeeper-tgbot-go/internal/apperrors"
	"github.com/groupkeeper-tgbot-go/internal/config"
	"github.com/groupkeeper-tgbot-go/internal/models"
	"github.com/groupkeeper-tgbot-go/internal/services/storage"
	"github.com/groupkeeper-tgbot-go/pkg/logger"
)

func newTestService(t *testing.T) (*Service, *storage.Manager) {
	t.Helper()
	log := logger.Discard()
	mem := storage.NewMemoryStorage(&config.MemoryConfig{}, log)
	store := storage.NewManagerWithBackend(mem, time.Second, log)
	return NewService(store, 50, log), store
}

func TestFeatureDefaultsOn(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"never_configured", models.FeatureRankSystem, "Mixed_Case"} {
		on, err := svc.FeatureEnabled(ctx, 1, name)
		if err != nil {
			t.Fatalf("FeatureEnabled(%q): %v", name, err)
		}
		if !on {
			t.Errorf("FeatureEnabled(%q) = false, want true", name)
		}
	}

	if _, err := svc.FeatureEnabled(ctx, 1, "  "); err == nil {
		t.Errorf("expected validation error for empty feature")
	}
}

func TestSetAndToggleFeature(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.SetFeature(ctx, 1, models.FeatureFloodControl, false); err != nil {
		t.Fatalf("SetFeature: %v", err)
	}
	on, _ := svc.FeatureEnabled(ctx, 1, models.FeatureFloodControl)
	if on {
		t.Errorf("flood_control still on")
	}

	state, err := svc.ToggleFeature(ctx, 1, "brand_new")
	if err != nil {
		t.Fatalf("ToggleFeature: %v", err)
	}
	if state {
		t.Errorf("toggling an absent (on) feature should turn it off")
	}
	state, _ = svc.ToggleFeature(ctx, 1, "brand_new")
	if !state {
		t.Errorf("second toggle should turn it back on")
	}

	features, err := svc.Features(ctx, 1)
	if err != nil {
		t.Fatalf("Features: %v", err)
	}
	if len(features) != len(models.DefaultFeatures())+1 {
		t.Errorf("got %d features", len(features))
	}
	for i := 1; i < len(features); i++ {
		if features[i-1].Name > features[i].Name {
			t.Fatalf("features not sorted: %v", features)
		}
	}

	// another chat is untouched
	if on, _ := svc.FeatureEnabled(ctx, 2, models.FeatureFloodControl); !on {
		t.Errorf("feature change leaked into another chat")
	}
}

func TestSetOption(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var notified []int64
	svc.OnOptionsChange(func(chatID int64) { notified = append(notified, chatID) })

	tests := []struct {
		name, option, value string
		wantErr             bool
	}{
		{"max warnings", "max_warnings", "5", false},
		{"upper case name", "FLOOD_LIMIT", "8", false},
		{"not a number", "max_warnings", "five", true},
		{"out of range", "mute_duration", "0", true},
		{"unknown option", "colour", "red", true},
		{"rules", "rules", "No spam", false},
		{"empty text", "welcome_message", "   ", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.SetOption(ctx, 7, tt.option, tt.value)
			if tt.wantErr {
				if _, ok := apperrors.IsValidation(err); !ok {
					t.Errorf("err = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Errorf("SetOption: %v", err)
			}
		})
	}

	opts, err := svc.Options(ctx, 7)
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if opts.MaxWarnings != 5 || opts.FloodLimit != 8 || opts.Rules != "No spam" {
		t.Errorf("options = %+v", opts)
	}
	if opts.MuteDuration != models.DefaultChatOptions.MuteDuration {
		t.Errorf("rejected option changed mute_duration to %d", opts.MuteDuration)
	}
	if len(notified) != 3 {
		t.Errorf("listeners notified %d times, want 3", len(notified))
	}
}

func TestOptionChangeKeepsOtherSubtrees(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.AddCustomResponse(ctx, 1, "hello", "hi"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AddBannedWord(ctx, 1, "scam"); err != nil {
		t.Fatal(err)
	}
	before, _ := svc.Settings(ctx, 1)

	if err := svc.SetWelcomeMessage(ctx, 1, "Hi {name}"); err != nil {
		t.Fatal(err)
	}
	after, _ := svc.Settings(ctx, 1)

	if !reflect.DeepEqual(before.CustomResponses, after.CustomResponses) ||
		!reflect.DeepEqual(before.BannedWords, after.BannedWords) ||
		!reflect.DeepEqual(before.EnabledFeatures, after.EnabledFeatures) {
		t.Errorf("option change touched other subtrees")
	}
	if after.Settings.WelcomeMessage != "Hi {name}" {
		t.Errorf("welcome = %q", after.Settings.WelcomeMessage)
	}
}

func TestCustomResponsesExactMatch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.AddCustomResponse(ctx, 1, "  Good Morning ", "☀️ Morning!"); err != nil {
		t.Fatalf("AddCustomResponse: %v", err)
	}

	tests := []struct {
		text string
		want bool
	}{
		{"good morning", true},
		{"GOOD MORNING  ", true},
		{"good morning everyone", false},
		{"morning", false},
		{"", false},
	}
	for _, tt := range tests {
		got, ok, err := svc.MatchCustomResponse(ctx, 1, tt.text)
		if err != nil {
			t.Fatalf("MatchCustomResponse: %v", err)
		}
		if ok != tt.want {
			t.Errorf("MatchCustomResponse(%q) matched = %v, want %v", tt.text, ok, tt.want)
		}
		if ok && got != "☀️ Morning!" {
			t.Errorf("response = %q", got)
		}
	}

	removed, err := svc.RemoveCustomResponse(ctx, 1, "GOOD MORNING")
	if err != nil || !removed {
		t.Fatalf("RemoveCustomResponse = %v, %v", removed, err)
	}
	removed, err = svc.RemoveCustomResponse(ctx, 1, "good morning")
	if err != nil || removed {
		t.Errorf("second remove = %v, %v; want false, nil", removed, err)
	}
	if err := svc.AddCustomResponse(ctx, 1, "", "x"); err == nil {
		t.Errorf("expected error for empty trigger")
	}
}

func TestBannedWordsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	added, err := svc.AddBannedWord(ctx, 1, "Scam")
	if err != nil || !added {
		t.Fatalf("AddBannedWord = %v, %v", added, err)
	}
	added, err = svc.AddBannedWord(ctx, 1, "scam")
	if err != nil || added {
		t.Fatalf("second AddBannedWord = %v, %v; want false, nil", added, err)
	}

	words, _ := svc.BannedWords(ctx, 1)
	count := 0
	for _, w := range words {
		if w == "scam" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("scam present %d times in %v", count, words)
	}

	removed, err := svc.RemoveBannedWord(ctx, 1, "not-there")
	if err != nil || removed {
		t.Errorf("removing absent word = %v, %v", removed, err)
	}
	removed, err = svc.RemoveBannedWord(ctx, 1, "SCAM")
	if err != nil || !removed {
		t.Errorf("RemoveBannedWord = %v, %v", removed, err)
	}
	if banned, _ := svc.IsWordBanned(ctx, 1, "scam"); banned {
		t.Errorf("scam still banned")
	}
	if banned, _ := svc.IsWordBanned(ctx, 1, "spam"); !banned {
		t.Errorf("default word spam not banned")
	}
	if _, err := svc.AddBannedWord(ctx, 1, " "); err == nil {
		t.Errorf("expected error for empty word")
	}
}

func TestCustomCommands(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := svc.AddCustomCommand(ctx, 1, "/Rules2", "Read the pinned message", 42); err != nil {
		t.Fatalf("AddCustomCommand: %v", err)
	}
	for i := 0; i < 2; i++ {
		resp, ok, err := svc.RunCustomCommand(ctx, 1, "rules2")
		if err != nil || !ok || resp != "Read the pinned message" {
			t.Fatalf("RunCustomCommand = %q, %v, %v", resp, ok, err)
		}
	}
	if _, ok, _ := svc.RunCustomCommand(ctx, 1, "missing"); ok {
		t.Errorf("missing command matched")
	}

	cmds, err := svc.CustomCommands(ctx, 1)
	if err != nil || len(cmds) != 1 {
		t.Fatalf("CustomCommands = %v, %v", cmds, err)
	}
	if cmds[0].Name != "rules2" || cmds[0].UsageCount != 2 || cmds[0].CreatedBy != 42 {
		t.Errorf("command = %+v", cmds[0])
	}

	if err := svc.AddCustomCommand(ctx, 1, "bad name", "x", 1); err == nil {
		t.Errorf("expected validation error for name with space")
	}

	if err := store.SetGlobalSetting(ctx, models.GlobalSetting{Key: GlobalMaxCustomCommands, Value: 1}); err != nil {
		t.Fatal(err)
	}
	err = svc.AddCustomCommand(ctx, 1, "another", "x", 1)
	if _, ok := apperrors.IsValidation(err); !ok {
		t.Errorf("err = %v, want limit validation error", err)
	}
	// redefining an existing command is not limited
	if err := svc.AddCustomCommand(ctx, 1, "rules2", "updated", 7); err != nil {
		t.Errorf("redefine: %v", err)
	}
	cmds, _ = svc.CustomCommands(ctx, 1)
	if cmds[0].UsageCount != 2 || cmds[0].Response != "updated" {
		t.Errorf("redefined command = %+v", cmds[0])
	}

	removed, err := svc.RemoveCustomCommand(ctx, 1, "/rules2")
	if err != nil || !removed {
		t.Errorf("RemoveCustomCommand = %v, %v", removed, err)
	}
}

func TestUserLanguage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	lang, err := svc.UserLanguage(ctx, 5)
	if err != nil || lang != "en" {
		t.Fatalf("UserLanguage = %q, %v", lang, err)
	}
	if err := svc.SetUserLanguage(ctx, 5, "alice", "RU", []string{"en", "ru"}); err != nil {
		t.Fatalf("SetUserLanguage: %v", err)
	}
	if lang, _ := svc.UserLanguage(ctx, 5); lang != "ru" {
		t.Errorf("language = %q", lang)
	}
	if err := svc.SetUserLanguage(ctx, 5, "", "de", []string{"en", "ru"}); err == nil {
		t.Errorf("expected error for unsupported language")
	}
}
