package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// daemonConfig is drawnetd's own configuration: the admin API surface and
// where to find the session config and optional canvas file. Session
// parameters themselves live in the session config file.
type daemonConfig struct {
	AdminAddr    string
	AdminToken   string
	AdminOrigins []string
	SessionFile  string
	CanvasFile   string
}

func defaultDaemonConfig() daemonConfig {
	return daemonConfig{
		AdminAddr:    "127.0.0.1:9090",
		AdminOrigins: []string{"http://localhost:3000"},
		SessionFile:  "session.toml",
	}
}

type fileConfig struct {
	AdminAddr    string   `toml:"admin_addr"`
	AdminToken   string   `toml:"admin_token"`
	AdminOrigins []string `toml:"admin_origins"`
	SessionFile  string   `toml:"session_file"`
	CanvasFile   string   `toml:"canvas_file"`
}

func loadDaemonConfig(path string) (daemonConfig, error) {
	cfg := defaultDaemonConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return daemonConfig{}, fmt.Errorf("load drawnetd config: %w", err)
	}

	if meta.IsDefined("admin_addr") {
		addr := strings.TrimSpace(raw.AdminAddr)
		if addr != "" {
			cfg.AdminAddr = addr
		}
	}

	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}

	if meta.IsDefined("admin_origins") {
		cfg.AdminOrigins = normalizeOrigins(raw.AdminOrigins)
	}

	if meta.IsDefined("session_file") {
		cfg.SessionFile = strings.TrimSpace(raw.SessionFile)
	}

	if meta.IsDefined("canvas_file") {
		cfg.CanvasFile = strings.TrimSpace(raw.CanvasFile)
	}

	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
