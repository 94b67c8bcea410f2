// Package vcconfig loads the optional vanillachat configuration file.
//
// The file is entirely optional: both binaries run with sane defaults if it
// is absent. Command-line flags and positional arguments always override
// whatever the file sets.
package vcconfig

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

const (
	// DefaultPort is the TCP port the chat client connects to or listens
	// on, and the port the daemon's TCP listener binds, absent overrides.
	DefaultPort = 9567

	// SocketPath is the well-known rendezvous socket the daemon listens
	// on and the client dials to request a handed-off connection.
	SocketPath = "/tmp/vanillachatd.socket"

	// DefaultSweepIntervalMS is how often the daemon's main loop sleeps
	// between accept/drain/sweep passes.
	DefaultSweepIntervalMS = 20

	// configFileName is looked up under ~/.config/vanillachat/.
	configFileName = "config.hcl"
)

// Config holds the tunable knobs a user may set in config.hcl.
type Config struct {
	ListenPort      int    // TCP port for inbound connections.
	SocketPath      string // Rendezvous socket path.
	SweepIntervalMS int    // Daemon main loop sleep, in milliseconds.
	NotifyEnabled   bool   // Whether the daemon raises desktop notifications.
	DisplayName     string // Overrides the hostname-derived display name.
}

// Default returns the configuration used when no file is present or a field
// is left unset in the file.
func Default() Config {
	return Config{
		ListenPort:      DefaultPort,
		SocketPath:      SocketPath,
		SweepIntervalMS: DefaultSweepIntervalMS,
		NotifyEnabled:   true,
	}
}

// hclConfig mirrors the on-disk HCL shape; every field is optional so a
// partial file only overrides what it names.
type hclConfig struct {
	ListenPort      *int    `hcl:"listen_port,optional"`
	SocketPath      *string `hcl:"socket_path,optional"`
	SweepIntervalMS *int    `hcl:"sweep_interval_ms,optional"`
	NotifyEnabled   *bool   `hcl:"notify_enabled,optional"`
	DisplayName     *string `hcl:"display_name,optional"`
}

// Path returns the default config file location, honoring $HOME.
func Path() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "vanillachat", configFileName)
}

// Load reads and merges the config file at path over the defaults. A
// missing file is not an error: Load returns Default() unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	var parsed hclConfig
	if err := hclsimple.DecodeFile(path, nil, &parsed); err != nil {
		return cfg, err
	}

	if parsed.ListenPort != nil {
		cfg.ListenPort = *parsed.ListenPort
	}
	if parsed.SocketPath != nil {
		cfg.SocketPath = *parsed.SocketPath
	}
	if parsed.SweepIntervalMS != nil {
		cfg.SweepIntervalMS = *parsed.SweepIntervalMS
	}
	if parsed.NotifyEnabled != nil {
		cfg.NotifyEnabled = *parsed.NotifyEnabled
	}
	if parsed.DisplayName != nil {
		cfg.DisplayName = *parsed.DisplayName
	}
	return cfg, nil
}
