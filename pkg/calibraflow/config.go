package calibraflow

import (
	"github.com/ghalamif/CalibraFlow/internal/adapters/opcua"
	"github.com/ghalamif/CalibraFlow/internal/adapters/remote"
	"github.com/ghalamif/CalibraFlow/internal/app/config"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// SyncPolicy tunes cadence, history capacity and scheduling thresholds.
	SyncPolicy = ports.SyncPolicy
	// Thresholds are the absolute drift percentages that trigger scheduling.
	Thresholds = ports.Thresholds
	// ArchivePolicy controls journal/queue thresholds of the reading archive.
	ArchivePolicy = ports.ArchivePolicy
	// RemoteConfig points the runtime at the calibration platform API.
	RemoteConfig = remote.Config
	// ArchiveConfig configures the Postgres reading archive.
	ArchiveConfig = config.ArchiveConfig
	// OPCUAConfig holds connection + node details for live values.
	OPCUAConfig = opcua.Config
	// OPCUANodeConfig maps a sensor to an OPC UA node.
	OPCUANodeConfig = opcua.NodeConfig
	// HTTPConfig configures the query API.
	HTTPConfig = config.HTTPConfig
	// LogConfig configures the zap logger.
	LogConfig = config.LogConfig
)

// LoadConfig loads YAML from disk and applies CALIBRA_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig runs against the local platform with simulation only.
func DefaultConfig() *Config {
	return config.Default()
}
