// Package config loads optional TOML configuration files for the
// dedicated server and probe client, layered underneath the CLI flags and
// positional arguments spec.md §6 mandates (those always win). Grounded
// on xendarboh-katzenpost's mailproxy.toml convention for where a
// node/peer's tunables live, using BurntSushi/toml for the decode itself.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/opd-ai/skirmish/pkg/network"
)

// ServerFile is the on-disk shape of a server TOML config file. Every
// field is optional; zero values mean "use the flag/positional default".
type ServerFile struct {
	Address           string `toml:"address"`
	MaxPlayers        int    `toml:"max_players"`
	TickRate          int    `toml:"tick_rate"`
	ProtocolVersion   uint32 `toml:"protocol_version"`
	MapName           string `toml:"map_name"`
	ClientTimeoutSecs int    `toml:"client_timeout_secs"`
	DeltaCompression  *bool  `toml:"delta_compression"`
	MetricsAddress    string `toml:"metrics_address"`
}

// ClientFile is the on-disk shape of a client TOML config file.
type ClientFile struct {
	ProtocolVersion  uint32  `toml:"protocol_version"`
	TickRate         int     `toml:"tick_rate"`
	MaxPacketsPerSec int     `toml:"max_packets_per_sec"`
	AutoNudge        float64 `toml:"auto_nudge"`
	TimeNudge        int     `toml:"time_nudge"`
}

// LoadServerConfig decodes path into a network.ServerConfig seeded from
// network.DefaultServerConfig. A missing or empty path is not an error —
// callers pass "" when -config was not given — it just returns the
// defaults unchanged.
func LoadServerConfig(path string) (network.ServerConfig, error) {
	cfg := network.DefaultServerConfig()
	if path == "" {
		return cfg, nil
	}
	var file ServerFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return cfg, fmt.Errorf("config: decode %q: %w", path, err)
	}
	if file.Address != "" {
		cfg.Address = file.Address
	}
	if file.MaxPlayers > 0 {
		cfg.MaxPlayers = file.MaxPlayers
	}
	if file.TickRate > 0 {
		cfg.TickRate = file.TickRate
	}
	if file.ProtocolVersion > 0 {
		cfg.ProtocolVersion = file.ProtocolVersion
	}
	if file.MapName != "" {
		cfg.MapName = file.MapName
	}
	if file.ClientTimeoutSecs > 0 {
		cfg.ClientTimeout = time.Duration(file.ClientTimeoutSecs) * time.Second
	}
	if file.DeltaCompression != nil {
		cfg.DeltaCompression = *file.DeltaCompression
	}
	return cfg, nil
}

// LoadClientConfig decodes path into a network.ClientConfig seeded from
// network.DefaultClientConfig, with the same empty-path-is-fine contract
// as LoadServerConfig.
func LoadClientConfig(path string) (network.ClientConfig, error) {
	cfg := network.DefaultClientConfig()
	if path == "" {
		return cfg, nil
	}
	var file ClientFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return cfg, fmt.Errorf("config: decode %q: %w", path, err)
	}
	if file.ProtocolVersion > 0 {
		cfg.ProtocolVersion = file.ProtocolVersion
	}
	if file.TickRate > 0 {
		cfg.TickRate = file.TickRate
	}
	if file.MaxPacketsPerSec > 0 {
		cfg.MaxPacketsPerSec = file.MaxPacketsPerSec
	}
	if file.AutoNudge != 0 {
		cfg.AutoNudge = file.AutoNudge
	}
	if file.TimeNudge != 0 {
		cfg.TimeNudge = file.TimeNudge
	}
	return cfg, nil
}

// MetricsAddress reads just the metrics_address key from a server TOML
// file, for cmd/server's -metrics-addr default when no flag is given. A
// missing path or key returns "".
func MetricsAddress(path string) string {
	if path == "" {
		return ""
	}
	var file ServerFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return ""
	}
	return file.MetricsAddress
}
