package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/gavelhq/gavel/go/internal/auction"
	"github.com/gavelhq/gavel/go/internal/auction/gateway"
)

func setupServer(cfg *Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	services.Gateway.RegisterRoutes(mux)
	registerSetupRoutes(mux, services.AuctionApp)
	setupHealthCheck(mux)

	handler := gateway.NewCORS(cfg.Gateway.AllowedOrigins).Handler(mux)

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.port()),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

// registerSetupRoutes exposes the pre-LIVE setup surface: creating auctions,
// registering teams and adding players to the pool.
func registerSetupRoutes(mux *http.ServeMux, app *auction.App) {
	mux.HandleFunc("/api/auctions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req auction.CreateAuctionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		created, err := app.CreateAuction(r.Context(), req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(created); err != nil {
			log.Error().Err(err).Msg("failed to encode create auction response")
		}
	})

	mux.HandleFunc("/api/setup/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		// Paths: /api/setup/{auction_id}/teams and /api/setup/{auction_id}/players
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/setup/"), "/")
		if len(parts) != 2 {
			http.NotFound(w, r)
			return
		}
		auctionID, err := uuid.Parse(parts[0])
		if err != nil {
			http.Error(w, "Invalid auction ID", http.StatusBadRequest)
			return
		}

		switch parts[1] {
		case "teams":
			var req auction.RegisterTeamRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
			req.AuctionID = auctionID
			team, err := app.RegisterTeam(r.Context(), req)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			writeCreated(w, team)
		case "players":
			var req auction.AddPlayerRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
			req.AuctionID = auctionID
			player, err := app.AddPlayer(r.Context(), req)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			writeCreated(w, player)
		default:
			http.NotFound(w, r)
		}
	})
}

func writeCreated(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
