package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/commissionsync/internal/flagx"
	"github.com/dmitrijs2005/commissionsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "350ms" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	ServerEndpointAddr   string         `json:"server_endpoint_addr"`
	OnlineCheckInterval  timex.Duration `json:"online_check_interval"`
	DatabasePath         string         `json:"database_path"`
	AutosaveInterval     timex.Duration `json:"autosave_interval"`
	PullDebounceInterval timex.Duration `json:"pull_debounce_interval"`
	DriftTolerance       timex.Duration `json:"drift_tolerance"`
	TokenFile            string         `json:"token_file"`
}

// parseJson overlays Config with values loaded from a JSON file. Keys that
// are absent from the file leave the current value alone.
//
// The file path comes from the -c or -config flag; without it nothing is
// loaded. Read and unmarshal errors panic.
func parseJson(cfg *Config) {
	// Resolve file path from flags.
	jsonConfigFile := flagx.ConfigFile(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setDuration(&cfg.AutosaveInterval, jc.AutosaveInterval)
	setDuration(&cfg.PullDebounceInterval, jc.PullDebounceInterval)
	setDuration(&cfg.DriftTolerance, jc.DriftTolerance)
	setString(&cfg.TokenFile, jc.TokenFile)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = time.Duration(v.Duration)
	}
}
