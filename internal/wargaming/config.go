package wargaming

import (
	"fmt"
	"time"
)

// DefaultApplicationID is the public demo application id accepted by the API
const DefaultApplicationID = "demo"

var realmHosts = map[string]string{
	"na":   "https://api.worldoftanks.com/wot",
	"eu":   "https://api.worldoftanks.eu/wot",
	"asia": "https://api.worldoftanks.asia/wot",
}

// Config holds gateway connection settings
type Config struct {
	ApplicationID string        `toml:"application_id"`
	Realm         string        `toml:"realm"`
	Language      string        `toml:"language"`
	BaseURL       string        `toml:"base_url"` // overrides Realm when set
	Timeout       time.Duration `toml:"timeout"`
	PageLimit     int           `toml:"page_limit"`
}

// DefaultConfig returns gateway defaults for the North American realm
func DefaultConfig() Config {
	return Config{
		ApplicationID: DefaultApplicationID,
		Realm:         "na",
		Language:      "en",
		Timeout:       10 * time.Second,
		PageLimit:     100,
	}
}

// Validate checks the gateway configuration
func (c Config) Validate() error {
	if c.ApplicationID == "" {
		return fmt.Errorf("wargaming application_id must be specified")
	}
	if c.BaseURL == "" {
		if _, ok := realmHosts[c.Realm]; !ok {
			return fmt.Errorf("unsupported wargaming realm: %s (must be na, eu, or asia)", c.Realm)
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("wargaming timeout must be positive, got %v", c.Timeout)
	}
	if c.PageLimit <= 0 || c.PageLimit > 100 {
		return fmt.Errorf("wargaming page_limit must be between 1 and 100, got %d", c.PageLimit)
	}
	return nil
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return realmHosts[c.Realm]
}
