// drawnetd hosts a headless DrawNet session: it owns the listening socket,
// admits peers, relays painting traffic, and serves a small admin API with
// prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/inkwell-paint/drawnet/internal/config"
	"github.com/inkwell-paint/drawnet/internal/logging"
	"github.com/inkwell-paint/drawnet/internal/peer"
	"github.com/inkwell-paint/drawnet/internal/session"
)

func main() {
	configPath := flag.String("config", "drawnetd.toml", "drawnetd config file")
	flag.Parse()

	logging.ConfigureRuntime("drawnetd")

	if err := run(*configPath); err != nil {
		log.Error().Err(err).Msg("drawnetd exited")
		os.Exit(1)
	}
}

func run(configPath string) error {
	daemon, err := loadDaemonConfig(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(daemon.SessionFile)
	if err != nil {
		return err
	}

	// A headless host serves whatever canvas it was pointed at; joiners
	// with an empty file get an empty canvas.
	store := newCanvasStore(daemon.CanvasFile)

	sess := session.New(cfg, nil, session.Events{
		PeerJoined: func(p peer.Peer) {
			log.Info().Uint32("id", p.ID).Str("name", p.Name).Msg("peer joined")
		},
		PeerLeft: func(p peer.Peer) {
			log.Info().Uint32("id", p.ID).Str("name", p.Name).Msg("peer left")
		},
		Chat: func(_ uint32, name, msg string) {
			log.Info().Str("from", name).Str("message", msg).Msg("chat")
		},
	}, store.Snapshot)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sess.Host(ctx); err != nil {
		return err
	}
	defer sess.Leave()

	admin := newAdminServer(daemon, sess)
	go func() {
		log.Info().Str("addr", daemon.AdminAddr).Msg("admin API listening")
		if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("admin API failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = admin.Shutdown(shutdownCtx)
	return nil
}

// canvasStore serves the canvas blob handed to new joiners. The daemon never
// paints, so the blob only changes when the backing file is re-read.
type canvasStore struct {
	mu   sync.Mutex
	path string
	blob []byte
	read bool
}

func newCanvasStore(path string) *canvasStore {
	return &canvasStore{path: path}
}

func (c *canvasStore) Snapshot() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path == "" {
		return nil, nil
	}
	if !c.read {
		blob, err := os.ReadFile(c.path)
		if err != nil {
			return nil, err
		}
		c.blob = blob
		c.read = true
		log.Info().Str("path", c.path).Int("bytes", len(blob)).Msg("canvas loaded")
	}
	return c.blob, nil
}
