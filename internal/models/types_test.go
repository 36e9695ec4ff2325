package models

import "testing"

func TestFeatureOn(t *testing.T) {
	cs := &ChatSettings{EnabledFeatures: map[string]bool{
		FeatureAutoMute:     false,
		FeatureRankSystem:   true,
		FeatureDailyRewards: false,
	}}

	tests := []struct {
		feature string
		want    bool
	}{
		{FeatureAutoMute, false},
		{FeatureRankSystem, true},
		{FeatureDailyRewards, false},
		{FeatureGreetUsers, true},
		{"not_a_feature", true},
	}
	for _, tt := range tests {
		if got := cs.FeatureOn(tt.feature); got != tt.want {
			t.Errorf("FeatureOn(%q) = %v, want %v", tt.feature, got, tt.want)
		}
	}
}

func TestFeatureOnNilMap(t *testing.T) {
	var cs ChatSettings
	if !cs.FeatureOn(FeatureWelcomeMessage) {
		t.Error("unconfigured chat reported a feature off")
	}
}

func TestDefaultChatSettingsEnablesEveryFeature(t *testing.T) {
	cs := DefaultChatSettings(-100)
	for _, name := range DefaultFeatures() {
		if !cs.FeatureOn(name) {
			t.Errorf("default settings disable %s", name)
		}
	}
	if clone := cs.Clone(); !clone.FeatureOn(FeatureRankSystem) {
		t.Error("clone lost the enabled features")
	}
}
