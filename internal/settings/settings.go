// Package settings keeps the channel automation settings shown on the dashboard.
package settings

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrInvalidSettings marks settings that fail validation.
var ErrInvalidSettings = errors.New("invalid settings")

// DefaultTargetChannel is the channel posts are copied into until configured otherwise.
const DefaultTargetChannel = "@UZHD_kinolari"

// Telegram public usernames: 5-32 chars, letter first, letters/digits/underscore.
var channelHandlePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{4,31}$`)

// Settings is the persisted automation configuration.
type Settings struct {
	TargetChannel     string    `json:"target_channel"`
	SourceChannels    []string  `json:"source_channels"`
	AutomationEnabled bool      `json:"automation_enabled"`
	AutoCopy          bool      `json:"auto_copy"`
	SkipDuplicates    bool      `json:"skip_duplicates"`
	WatermarkRemoval  bool      `json:"watermark_removal"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Defaults returns the settings used before anything is saved.
func Defaults() Settings {
	return Settings{
		TargetChannel: DefaultTargetChannel,
		SourceChannels: []string{
			"@Gobliddintarjima",
			"@goblidin_tarjima_kinolar",
			"@Tarjimaj_kinolar",
			"@Kinolar_Tarjimai",
			"@tarjimaq_kinolar",
		},
		AutomationEnabled: true,
		AutoCopy:          true,
		SkipDuplicates:    true,
		WatermarkRemoval:  false,
	}
}

// Normalize trims and validates every handle, prefixes "@", and drops
// case-insensitive duplicates from SourceChannels while keeping first-seen order.
func (s Settings) Normalize() (Settings, error) {
	target, err := NormalizeHandle(s.TargetChannel)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: target_channel: %w", ErrInvalidSettings, err)
	}
	s.TargetChannel = target

	seen := make(map[string]struct{}, len(s.SourceChannels))
	sources := make([]string, 0, len(s.SourceChannels))
	for i, raw := range s.SourceChannels {
		handle, err := NormalizeHandle(raw)
		if err != nil {
			return Settings{}, fmt.Errorf("%w: source_channels[%d]: %w", ErrInvalidSettings, i, err)
		}
		key := strings.ToLower(handle)
		if key == strings.ToLower(target) {
			return Settings{}, fmt.Errorf("%w: source_channels[%d]: %s is the target channel", ErrInvalidSettings, i, handle)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		sources = append(sources, handle)
	}
	s.SourceChannels = sources
	return s, nil
}

// NormalizeHandle accepts "@name" or "name" and returns "@name".
func NormalizeHandle(raw string) (string, error) {
	name := strings.TrimPrefix(strings.TrimSpace(raw), "@")
	if name == "" {
		return "", errors.New("channel handle is empty")
	}
	if !channelHandlePattern.MatchString(name) {
		return "", fmt.Errorf("invalid channel handle %q", raw)
	}
	return "@" + name, nil
}
