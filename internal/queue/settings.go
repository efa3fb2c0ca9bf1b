package queue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Settings are the owner-supplied knobs recorded with a submission. All
// fields are optional; zero values defer to configuration.
type Settings struct {
	// Style requests a specific deck style instead of letting optimization
	// choose one.
	Style string `json:"style,omitempty"`
	// TokenBudget overrides the per-chunk token budget for this job.
	TokenBudget int `json:"token_budget,omitempty"`
	// MaxAttempts overrides the per-stage attempt ceiling for this job.
	MaxAttempts int `json:"max_attempts,omitempty"`
}

// ParseSettings decodes submission settings. Unknown keys are rejected so a
// typo fails the submission instead of silently doing nothing.
func ParseSettings(raw string) (Settings, error) {
	var settings Settings
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return settings, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&settings); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if settings.TokenBudget < 0 {
		return Settings{}, fmt.Errorf("settings: token_budget must not be negative")
	}
	if settings.MaxAttempts < 0 {
		return Settings{}, fmt.Errorf("settings: max_attempts must not be negative")
	}
	settings.Style = strings.ToLower(strings.TrimSpace(settings.Style))
	return settings, nil
}

// ParseSettings returns the job's decoded settings.
func (j *Job) ParseSettings() (Settings, error) {
	return ParseSettings(j.SettingsJSON)
}
