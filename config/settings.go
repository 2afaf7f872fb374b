package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Settings are the operator-tunable run settings exposed through the control
// API. A copy is taken at the start of every run.
type Settings struct {
	Platforms       map[string]bool    `json:"platforms"`
	ZipCode         string             `json:"zip_code"`
	Distance        int                `json:"distance"`
	CheckInterval   int                `json:"check_interval"`
	Thresholds      map[string]float64 `json:"thresholds"`
	AIDetection     bool               `json:"ai_detection"`
	DescriptionScan bool               `json:"description_scan"`
}

// DefaultSettings returns the settings used when no settings file exists
func DefaultSettings(cfg Config) Settings {
	return Settings{
		Platforms: map[string]bool{
			"craigslist": true,
			"offerup":    true,
			"mercari":    true,
		},
		ZipCode:         cfg.ZipCode,
		Distance:        25,
		CheckInterval:   int(cfg.CheckInterval.Minutes()),
		Thresholds:      map[string]float64{},
		AIDetection:     cfg.VisionAPIKey != "",
		DescriptionScan: true,
	}
}

// Clone returns a deep copy so a run never observes concurrent edits
func (s Settings) Clone() Settings {
	out := s
	out.Platforms = make(map[string]bool, len(s.Platforms))
	for k, v := range s.Platforms {
		out.Platforms[k] = v
	}
	out.Thresholds = make(map[string]float64, len(s.Thresholds))
	for k, v := range s.Thresholds {
		out.Thresholds[k] = v
	}
	return out
}

// PlatformEnabled reports whether a platform is switched on. Unknown
// platforms are enabled.
func (s Settings) PlatformEnabled(name string) bool {
	enabled, ok := s.Platforms[name]
	return !ok || enabled
}

// LoadSettings reads settings from path on top of defaults. A missing file is
// not an error.
func LoadSettings(path string, defaults Settings) (Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaults, nil
	}
	if err != nil {
		return defaults, fmt.Errorf("read settings %q: %w", path, err)
	}
	s := defaults.Clone()
	if err := json.Unmarshal(data, &s); err != nil {
		return defaults, fmt.Errorf("decode settings %q: %w", path, err)
	}
	return s, nil
}

// SaveSettings writes settings as indented JSON
func SaveSettings(path string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write settings %q: %w", path, err)
	}
	return nil
}
