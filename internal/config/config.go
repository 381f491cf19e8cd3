package config

import "time"

// Config holds runtime settings for the PaperKeep CLI.
//
// Fields:
//   - DatabasePath: filesystem path of the local SQLite database.
//   - AttachmentDir: directory downloaded attachment files land in.
//   - SyncInterval: how often a background sync cycle is started.
//   - MaxParallelOps: upper bound on concurrent remote operations per cycle.
//   - EntitlementTTL: how long a fetched subscription status is cached.
//
// Units: SyncInterval and EntitlementTTL are time.Duration values.
type Config struct {
	DatabasePath   string
	AttachmentDir  string
	SyncInterval   time.Duration
	MaxParallelOps int
	EntitlementTTL time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "paperkeep.db"
	c.AttachmentDir = "attachments"
	c.SyncInterval = 30 * time.Second
	c.MaxParallelOps = 3
	c.EntitlementTTL = 5 * time.Minute
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
