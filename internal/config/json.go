package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/akaplins/paperkeep/internal/flagx"
	"github.com/akaplins/paperkeep/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "30s"
// or as integer nanoseconds.
type JsonConfig struct {
	DatabasePath   string         `json:"database_path"`
	AttachmentDir  string         `json:"attachment_dir"`
	SyncInterval   timex.Duration `json:"sync_interval"`
	MaxParallelOps int            `json:"max_parallel_ops"`
	EntitlementTTL timex.Duration `json:"entitlement_ttl"`
}

// parseJson overlays cfg with values loaded from a JSON file. The file path
// comes from the -c/-config flags via flagx.JsonConfigFlags; with no path set
// nothing is loaded. Read and unmarshal errors panic, matching the
// fail-early behavior of startup configuration.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
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

	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.AttachmentDir != "" {
		cfg.AttachmentDir = jc.AttachmentDir
	}
	if jc.SyncInterval.Duration != 0 {
		cfg.SyncInterval = time.Duration(jc.SyncInterval.Duration)
	}
	if jc.MaxParallelOps != 0 {
		cfg.MaxParallelOps = jc.MaxParallelOps
	}
	if jc.EntitlementTTL.Duration != 0 {
		cfg.EntitlementTTL = time.Duration(jc.EntitlementTTL.Duration)
	}
}
