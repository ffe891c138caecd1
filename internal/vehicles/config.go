package vehicles

import "fmt"

// requiredFields are the reference fields every Vehicle row is built from
var requiredFields = []string{"name", "type", "nation", "tier"}

// Config defines how reference data is fetched and translated
type Config struct {
	// Encyclopedia fields requested from the gateway
	Fields []string `toml:"fields"`

	// Vendor code overrides applied on top of the default category tables
	TypeMap   map[string]string `toml:"type_map"`
	NationMap map[string]string `toml:"nation_map"`

	// Parallel snapshot appends used by AddAllVehicleStats
	StatsConcurrency int `toml:"stats_concurrency"`
}

// DefaultConfig returns the default field list and no table overrides
func DefaultConfig() Config {
	return Config{
		Fields:           append([]string(nil), requiredFields...),
		StatsConcurrency: 4,
	}
}

// Validate checks the sync configuration
func (c Config) Validate() error {
	have := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		have[f] = true
	}
	for _, f := range requiredFields {
		if !have[f] {
			return fmt.Errorf("sync fields must include %q, got %v", f, c.Fields)
		}
	}

	if c.StatsConcurrency <= 0 {
		return fmt.Errorf("sync stats_concurrency must be positive, got %d", c.StatsConcurrency)
	}

	return nil
}
