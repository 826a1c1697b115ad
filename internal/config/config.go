// Package config holds the session configuration shared by the host daemon
// and embedding applications.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// SyncMode selects how aggressively local strokes are pushed to peers.
type SyncMode string

const (
	SyncRealtime  SyncMode = "realtime"  // every stroke point as it happens
	SyncPerStroke SyncMode = "stroke"    // on stroke completion
	SyncInterval  SyncMode = "interval"  // batched at a fixed interval
	SyncManual    SyncMode = "manual"    // only on explicit request
)

func (m SyncMode) Valid() bool {
	switch m {
	case SyncRealtime, SyncPerStroke, SyncInterval, SyncManual:
		return true
	}
	return false
}

// Session is the full DrawNet session configuration.
type Session struct {
	SessionName string
	SessionCode string
	DisplayName string

	Port     int
	MaxPeers int  // 0 = unlimited
	Announce bool // publish the session on the LAN

	SyncMode     SyncMode
	SyncInterval time.Duration

	DefaultPermission string
	ShareCursor       bool
	ShareTool         bool

	ChunkSize int
}

// Network timing defaults from the original protocol.
const (
	DefaultPort     = 34567
	PortRange       = 8 // fallback ports DefaultPort+1 .. DefaultPort+PortRange
	PingInterval    = 5 * time.Second
	CursorInterval  = 50 * time.Millisecond
	PeerTimeout     = 30 * time.Second
	DiscoveryWindow = 10 * time.Second
)

func DefaultSession() Session {
	return Session{
		SessionName:       "Untitled session",
		DisplayName:       "anonymous",
		Port:              DefaultPort,
		MaxPeers:          0,
		Announce:          false,
		SyncMode:          SyncRealtime,
		SyncInterval:      2 * time.Second,
		DefaultPermission: "draw",
		ShareCursor:       true,
		ShareTool:         true,
		ChunkSize:         32 * 1024,
	}
}

// rawSession is the file shape. Durations are strings ("2s", "500ms").
type rawSession struct {
	SessionName       *string `toml:"session_name"`
	SessionCode       *string `toml:"session_code"`
	DisplayName       *string `toml:"display_name"`
	Port              *int    `toml:"port"`
	MaxPeers          *int    `toml:"max_peers"`
	Announce          *bool   `toml:"announce"`
	SyncMode          *string `toml:"sync_mode"`
	SyncInterval      *string `toml:"sync_interval"`
	DefaultPermission *string `toml:"default_permission"`
	ShareCursor       *bool   `toml:"share_cursor"`
	ShareTool         *bool   `toml:"share_tool"`
	ChunkSize         *int    `toml:"chunk_size"`
}

// Load reads a TOML session config, applying defaults for absent fields.
func Load(path string) (Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Session{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	return Parse(data)
}

// Parse decodes TOML bytes over the defaults.
func Parse(data []byte) (Session, error) {
	cfg := DefaultSession()

	var raw rawSession
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Session{}, fmt.Errorf("config parse failed: %w", err)
	}

	if raw.SessionName != nil {
		cfg.SessionName = strings.TrimSpace(*raw.SessionName)
	}
	if raw.SessionCode != nil {
		cfg.SessionCode = strings.TrimSpace(*raw.SessionCode)
	}
	if raw.DisplayName != nil {
		cfg.DisplayName = strings.TrimSpace(*raw.DisplayName)
	}
	if raw.Port != nil {
		cfg.Port = *raw.Port
	}
	if raw.MaxPeers != nil {
		cfg.MaxPeers = *raw.MaxPeers
	}
	if raw.Announce != nil {
		cfg.Announce = *raw.Announce
	}
	if raw.SyncMode != nil {
		cfg.SyncMode = SyncMode(strings.TrimSpace(*raw.SyncMode))
	}
	if raw.SyncInterval != nil {
		d, err := time.ParseDuration(strings.TrimSpace(*raw.SyncInterval))
		if err != nil {
			return Session{}, fmt.Errorf("config: parse sync_interval: %w", err)
		}
		cfg.SyncInterval = d
	}
	if raw.DefaultPermission != nil {
		cfg.DefaultPermission = strings.TrimSpace(*raw.DefaultPermission)
	}
	if raw.ShareCursor != nil {
		cfg.ShareCursor = *raw.ShareCursor
	}
	if raw.ShareTool != nil {
		cfg.ShareTool = *raw.ShareTool
	}
	if raw.ChunkSize != nil {
		cfg.ChunkSize = *raw.ChunkSize
	}

	if err := cfg.Validate(); err != nil {
		return Session{}, err
	}
	return cfg, nil
}

func (s Session) Validate() error {
	if strings.TrimSpace(s.SessionName) == "" {
		return fmt.Errorf("config: session_name is required")
	}
	if strings.TrimSpace(s.DisplayName) == "" {
		return fmt.Errorf("config: display_name is required")
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", s.Port)
	}
	if s.MaxPeers < 0 {
		return fmt.Errorf("config: max_peers must not be negative")
	}
	if !s.SyncMode.Valid() {
		return fmt.Errorf("config: unknown sync_mode %q", s.SyncMode)
	}
	if s.SyncMode == SyncInterval && s.SyncInterval <= 0 {
		return fmt.Errorf("config: sync_interval required for interval mode")
	}
	if s.ChunkSize <= 0 || s.ChunkSize > 48*1024 {
		return fmt.Errorf("config: chunk_size %d out of range", s.ChunkSize)
	}
	switch s.DefaultPermission {
	case "view", "draw", "edit", "admin":
	default:
		return fmt.Errorf("config: unknown default_permission %q", s.DefaultPermission)
	}
	return nil
}
