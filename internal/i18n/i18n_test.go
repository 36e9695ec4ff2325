package i18n

import (
	"testing"

	"github.com/groupkeeper-tgbot-go/internal/config"
)

func TestLocalizer(t *testing.T) {
	l, err := NewLocalizer(&config.I18nConfig{DefaultLanguage: "en", Languages: []string{"en", "ru"}})
	if err != nil {
		t.Fatalf("NewLocalizer: %v", err)
	}

	tests := []struct {
		lang, id string
		data     map[string]interface{}
		want     string
	}{
		{"en", MsgLevelUp, map[string]interface{}{"Name": "Ann", "Level": 3}, "🎉 Ann reached level 3!"},
		{"ru", MsgStateOn, nil, "вкл"},
		{"de", MsgStateOff, nil, "off"},
		{"en", "no_such_message", nil, "no_such_message"},
		{"en", MsgDailyClaimed, map[string]interface{}{"Total": 50, "Streak": 1, "StreakBonus": 0},
			"🎁 +50 XP daily bonus! Streak: 1 days."},
	}
	for _, tt := range tests {
		if got := l.Get(tt.lang, tt.id, tt.data); got != tt.want {
			t.Errorf("Get(%s, %s) = %q, want %q", tt.lang, tt.id, got, tt.want)
		}
	}

	if langs := l.Languages(); len(langs) != 2 {
		t.Errorf("Languages = %v", langs)
	}
}

func TestLocalizerUnknownLanguageFile(t *testing.T) {
	if _, err := NewLocalizer(&config.I18nConfig{DefaultLanguage: "en", Languages: []string{"en", "xx"}}); err == nil {
		t.Error("expected error for missing catalog")
	}
}
