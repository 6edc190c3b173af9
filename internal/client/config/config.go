package config

import "time"

// Config holds runtime settings for the commissioning client.
//
// Fields:
//   - ServerEndpointAddr: host:port of the document server gRPC endpoint.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - DatabasePath: SQLite file of the local store.
//   - AutosaveInterval: quiet period before staged edits are committed.
//   - PullDebounceInterval: quiet period before a live-sync pull runs.
//   - DriftTolerance: how much newer a remote timestamp must be to win.
//   - TokenFile: optional file with an access token used at startup.
type Config struct {
	ServerEndpointAddr   string
	OnlineCheckInterval  time.Duration
	DatabasePath         string
	AutosaveInterval     time.Duration
	PullDebounceInterval time.Duration
	DriftTolerance       time.Duration
	TokenFile            string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.DatabasePath = "commissionsync.db"
	c.AutosaveInterval = 350 * time.Millisecond
	c.PullDebounceInterval = 400 * time.Millisecond
	c.DriftTolerance = 250 * time.Millisecond
	c.TokenFile = ""
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
