package config

import "strings"

// UIConfig holds terminal rendering configuration.
type UIConfig struct {
	// DarkMode forces the dark or light palette; nil detects from the terminal.
	DarkMode *bool `yaml:"dark_mode,omitempty" json:"dark_mode,omitempty"`

	// SideBySide makes `diff` render two columns by default.
	SideBySide bool `yaml:"side_by_side" json:"side_by_side"`

	// Width caps rendered output; 0 uses the terminal width.
	Width int `yaml:"width,omitempty" json:"width,omitempty"`

	// GlamourStyle names the markdown style used by `show` (auto, dark, light, notty).
	GlamourStyle string `yaml:"glamour_style" json:"glamour_style"`
}

// DefaultUIConfig returns sensible UI defaults.
func DefaultUIConfig() UIConfig {
	return UIConfig{
		SideBySide:   false,
		GlamourStyle: "auto",
	}
}

// parseBool accepts the usual spellings for env toggles.
func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
