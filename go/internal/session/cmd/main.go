// Command watch follows one auction from a terminal. It runs a session
// synchronizer against the gateway, treats WebSocket events as refresh hints
// and renders the spectator view state with a local countdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gavelhq/gavel/go/internal/models"
	"github.com/gavelhq/gavel/go/internal/session"
	"github.com/gavelhq/gavel/go/internal/spectate"
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8080", "gateway base URL")
		auctionID = flag.String("auction", "", "auction ID to follow")
		role      = flag.String("role", "spectator", "session role: bidder, organizer or spectator")
	)
	flag.Parse()
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	id, err := uuid.Parse(*auctionID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "a valid -auction ID is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	view := spectate.NewViewState(clock, 0)

	syncer := session.NewSynchronizer(
		session.NewHTTPStateFetcher(*baseURL),
		clock,
		id,
		session.Role(*role),
		func(snap *models.Snapshot) { view.Apply(snap) },
	)

	go hintFromWebSocket(ctx, *baseURL, id, syncer)
	go func() {
		if err := syncer.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("synchronizer stopped")
		}
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case <-ticker.C:
			render(view, syncer)
		}
	}
}

// hintFromWebSocket keeps a WebSocket open to the gateway and nudges the
// synchronizer on every event. The payload is never inspected; the poll loop
// covers dropped connections.
func hintFromWebSocket(ctx context.Context, baseURL string, auctionID uuid.UUID, syncer *session.Synchronizer) {
	wsURL := strings.Replace(baseURL, "http", "ws", 1) +
		"/ws/auction?auction_id=" + auctionID.String()

	for ctx.Err() == nil {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket dial failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
			syncer.Hint()
		}
		conn.Close()
	}
}

func render(view *spectate.ViewState, syncer *session.Synchronizer) {
	state := view.Tick()
	line := string(state)

	snap := syncer.Snapshot()
	switch {
	case state == spectate.StateSoldCelebration:
		if sale := view.Celebration(); sale != nil {
			line = fmt.Sprintf("SOLD  %s to %s for %.0f", sale.PlayerName, sale.TeamName, sale.Amount)
		}
	case state == spectate.StatePlayerUp && snap != nil && snap.Round != nil:
		line = fmt.Sprintf("UP    %s", snap.Round.PlayerName)
		if hb := snap.Round.HighestBid; hb != nil {
			line += fmt.Sprintf("  high %.0f (%s)", hb.Amount, hb.TeamName)
		}
		if remaining, ok := syncer.Countdown(); ok {
			line += fmt.Sprintf("  %ds", remaining)
		}
	case snap != nil:
		line = fmt.Sprintf("%-5s %d/%d sold", state, snap.SoldCount, snap.QueueLength)
	}

	fmt.Printf("\r\033[K%s", line)
}
