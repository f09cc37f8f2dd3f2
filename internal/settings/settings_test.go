package settings

import (
	"errors"
	"testing"
)

func TestNormalizeHandle(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"@UZHD_kinolari", "@UZHD_kinolari", false},
		{"  Tarjimaj_kinolar ", "@Tarjimaj_kinolar", false},
		{"@@double", "", true},
		{"", "", true},
		{"@", "", true},
		{"abc", "", true},
		{"1kinolar", "", true},
		{"kino-lar", "", true},
		{"t.me/kinolar", "", true},
	}
	for _, tc := range tests {
		got, err := NormalizeHandle(tc.raw)
		if (err != nil) != tc.wantErr {
			t.Errorf("NormalizeHandle(%q) err=%v, wantErr=%v", tc.raw, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeHandle(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestSettingsNormalizeDeduplicates(t *testing.T) {
	in := Settings{
		TargetChannel:  "UZHD_kinolari",
		SourceChannels: []string{"@Gobliddintarjima", "gobliddintarjima", " @tarjimaq_kinolar ", "@Gobliddintarjima"},
	}

	got, err := in.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TargetChannel != "@UZHD_kinolari" {
		t.Fatalf("unexpected target: %s", got.TargetChannel)
	}
	want := []string{"@Gobliddintarjima", "@tarjimaq_kinolar"}
	if len(got.SourceChannels) != len(want) {
		t.Fatalf("unexpected sources: %v", got.SourceChannels)
	}
	for i := range want {
		if got.SourceChannels[i] != want[i] {
			t.Fatalf("source %d: got %s, want %s", i, got.SourceChannels[i], want[i])
		}
	}
}

func TestSettingsNormalizeRejects(t *testing.T) {
	tests := []struct {
		name string
		in   Settings
	}{
		{"blank target", Settings{TargetChannel: " "}},
		{"bad source", Settings{TargetChannel: "@UZHD_kinolari", SourceChannels: []string{"ok_channel", "no"}}},
		{"target as source", Settings{TargetChannel: "@UZHD_kinolari", SourceChannels: []string{"uzhd_kinolari"}}},
	}
	for _, tc := range tests {
		if _, err := tc.in.Normalize(); !errors.Is(err, ErrInvalidSettings) {
			t.Errorf("%s: expected ErrInvalidSettings, got %v", tc.name, err)
		}
	}
}

func TestDefaultsAreValid(t *testing.T) {
	defaults := Defaults()
	normalized, err := defaults.Normalize()
	if err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if len(normalized.SourceChannels) != len(defaults.SourceChannels) {
		t.Fatalf("defaults should contain no duplicates")
	}
	if !defaults.AutomationEnabled || !defaults.AutoCopy || !defaults.SkipDuplicates || defaults.WatermarkRemoval {
		t.Fatalf("unexpected default toggles: %+v", defaults)
	}
}
