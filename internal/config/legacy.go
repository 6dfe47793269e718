package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// legacyFile is the calendarid.json layout used by the old per-backend
// scripts:
//
//	{"calendarId": [{"id": "...", "URL": "..."}],
//	 "exchange":   [{"email": "...", "URL": "..."}]}
type legacyFile struct {
	CalendarID []struct {
		ID  string `yaml:"id"`
		URL string `yaml:"URL"`
	} `yaml:"calendarId"`
	Exchange []struct {
		Email string `yaml:"email"`
		URL   string `yaml:"URL"`
	} `yaml:"exchange"`
}

func isLegacy(top map[string]yaml.Node) bool {
	if _, ok := top["calendarId"]; ok {
		return true
	}
	ex, ok := top["exchange"]
	return ok && ex.Kind == yaml.SequenceNode
}

// parseLegacy maps the first Google calendar ID, every calendar URL (as ICS
// subscriptions) and the first Exchange mailbox onto a Config.
func parseLegacy(data []byte) (*Config, error) {
	var lf legacyFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("legacy calendarid layout: %w", err)
	}

	cfg := &Config{}
	for i, c := range lf.CalendarID {
		if i == 0 && c.ID != "" {
			cfg.Google.CalendarID = c.ID
		}
		if c.URL != "" {
			id := c.ID
			if id == "" {
				id = fmt.Sprintf("ics-%d", i+1)
			}
			cfg.ICS = append(cfg.ICS, ICSConfig{ID: id, URL: c.URL})
		}
	}
	if len(lf.Exchange) > 0 {
		cfg.Exchange.Email = lf.Exchange[0].Email
		cfg.Exchange.URL = lf.Exchange[0].URL
	}

	cfg.Normalize()
	return cfg, nil
}
