// drawnet-join is a terminal DrawNet participant: it discovers or joins a
// session, prints what happens on the wire, and sends stdin lines as chat.
// Useful for poking at a running drawnetd without a painting frontend.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/inkwell-paint/drawnet/internal/config"
	"github.com/inkwell-paint/drawnet/internal/logging"
	"github.com/inkwell-paint/drawnet/internal/peer"
	"github.com/inkwell-paint/drawnet/internal/session"
)

func main() {
	addr := flag.String("addr", "", "host address (host:port); empty scans the LAN")
	name := flag.String("name", "guest", "display name")
	code := flag.String("code", "", "session code")
	flag.Parse()

	logging.ConfigureRuntime("drawnet-join")

	if err := run(*addr, *name, *code); err != nil {
		fmt.Fprintf(os.Stderr, "drawnet-join: %v\n", err)
		os.Exit(1)
	}
}

func run(addr, name, code string) error {
	cfg := config.DefaultSession()
	cfg.DisplayName = name
	cfg.SessionCode = code

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New(cfg, nil, printerEvents(), nil)

	if addr == "" {
		found, err := sess.Discover(ctx)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return fmt.Errorf("no sessions found on the local network")
		}
		for i, f := range found {
			fmt.Printf("%2d. %s at %s (%d peers)\n", i+1, f.Name, f.Addr(), f.Peers)
		}
		addr = found[0].Addr()
		fmt.Printf("joining %s\n", addr)
	}

	if err := sess.Join(ctx, addr); err != nil {
		return err
	}
	defer sess.Leave()

	// stdin lines become chat; EOF leaves cleanly.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("leaving session")
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Println("leaving session")
				return nil
			}
			msg := strings.TrimSpace(line)
			if msg == "" {
				continue
			}
			if err := sess.SendChat(msg); err != nil {
				return err
			}
		}
	}
}

func printerEvents() session.Events {
	return session.Events{
		StatusChanged: func(_ session.State, status string) {
			fmt.Println("*", status)
		},
		PeerJoined: func(p peer.Peer) {
			fmt.Printf("* %s joined\n", p.Name)
		},
		PeerLeft: func(p peer.Peer) {
			fmt.Printf("* %s left\n", p.Name)
		},
		Chat: func(_ uint32, name, msg string) {
			fmt.Printf("<%s> %s\n", name, msg)
		},
		CanvasReceived: func(data []byte) {
			fmt.Printf("* canvas received (%d bytes)\n", len(data))
		},
		Kicked: func(reason string) {
			log.Warn().Str("reason", reason).Msg("kicked")
			fmt.Printf("* kicked: %s\n", reason)
		},
	}
}
