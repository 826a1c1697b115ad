// Package discovery publishes and browses DrawNet sessions on the local
// network over mDNS.
package discovery

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog/log"
)

const (
	serviceType = "_drawnet._tcp"
	domain      = "local."

	// MaxResults caps a browse so a noisy network cannot grow the result
	// set without bound.
	MaxResults = 32
)

// Found is one discovered session.
type Found struct {
	Name  string
	Code  string
	Host  string
	Port  int
	Peers int
}

// Addr returns the dialable host:port of the discovered session.
func (f Found) Addr() string {
	return fmt.Sprintf("%s:%d", f.Host, f.Port)
}

// Announcer keeps one published session record alive until Shutdown.
type Announcer struct {
	server *zeroconf.Server
}

// Announce publishes a hosted session. The TXT record carries the join code
// and display metadata so browsers can list sessions without connecting.
func Announce(sessionName, code string, port, peers int) (*Announcer, error) {
	instance := strings.ReplaceAll(sessionName, ".", "_")
	txt := []string{
		"code=" + code,
		"name=" + sessionName,
		"peers=" + strconv.Itoa(peers),
	}
	server, err := zeroconf.Register(instance, serviceType, domain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: announce: %w", err)
	}
	log.Info().Str("session", sessionName).Int("port", port).Msg("session announced on LAN")
	return &Announcer{server: server}, nil
}

func (a *Announcer) Shutdown() {
	a.server.Shutdown()
}

// Browse scans the local network for sessions until the window elapses or
// ctx is cancelled, whichever comes first.
func Browse(ctx context.Context, window time.Duration) ([]Found, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, MaxResults)
	if err := resolver.Browse(ctx, serviceType, domain, entries); err != nil {
		return nil, fmt.Errorf("discovery: browse: %w", err)
	}

	var found []Found
	for entry := range entries {
		if len(found) >= MaxResults {
			cancel()
			continue
		}
		f := fromEntry(entry)
		if f.Host == "" {
			continue
		}
		found = append(found, f)
	}
	return found, nil
}

func fromEntry(entry *zeroconf.ServiceEntry) Found {
	f := Found{
		Name: entry.Instance,
		Port: entry.Port,
	}
	if len(entry.AddrIPv4) > 0 {
		f.Host = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		f.Host = entry.AddrIPv6[0].String()
	}
	for _, txt := range entry.Text {
		key, value, ok := strings.Cut(txt, "=")
		if !ok {
			continue
		}
		switch key {
		case "code":
			f.Code = value
		case "name":
			f.Name = value
		case "peers":
			if n, err := strconv.Atoi(value); err == nil {
				f.Peers = n
			}
		}
	}
	return f
}
