// Package settings persists the runtime options consumed by the alert and
// report components.
package settings

import (
	"context"
	"encoding/json"
	"strings"
)

// DefaultUnits is used when no unit vocabulary is configured.
var DefaultUnits = []string{"kg", "pcs", "ltr", "box", "pack"}

// Settings is the runtime configuration.
type Settings struct {
	AlertsEnabled bool     `json:"alerts_enabled"`
	AlertEmail    string   `json:"alert_email"`
	Units         []string `json:"units_list"`
}

// Provider exposes the current settings to other components.
type Provider interface {
	Current(ctx context.Context) (Settings, error)
}

// Static is a fixed Provider.
type Static Settings

// Current implements Provider.
func (s Static) Current(context.Context) (Settings, error) {
	return Settings(s), nil
}

// Defaults returns the settings used when nothing is stored.
func Defaults(fallbackEmail string) Settings {
	return Settings{
		AlertsEnabled: true,
		AlertEmail:    fallbackEmail,
		Units:         append([]string(nil), DefaultUnits...),
	}
}

// UnitsInput decodes either a JSON list or a comma separated string.
type UnitsInput []string

// UnmarshalJSON implements json.Unmarshaler.
func (u *UnitsInput) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*u = list
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = strings.Split(raw, ",")
	return nil
}

// SaveInput is the payload accepted by Save.
type SaveInput struct {
	AlertsEnabled bool       `json:"alerts_enabled"`
	AlertEmail    string     `json:"alert_email"`
	Units         UnitsInput `json:"units_list"`
}

// NormalizeUnits trims, drops blanks and removes duplicates keeping order.
// An empty result falls back to DefaultUnits.
func NormalizeUnits(units []string) []string {
	seen := make(map[string]struct{}, len(units))
	out := make([]string, 0, len(units))
	for _, u := range units {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultUnits...)
	}
	return out
}
