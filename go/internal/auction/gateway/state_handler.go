package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gavelhq/gavel/go/internal/models"
)

// StateProvider interface defines methods for retrieving auction state
type StateProvider interface {
	GetAuctionState(ctx context.Context, auctionID uuid.UUID) (*models.Snapshot, error)
}

// StateHandler handles HTTP requests for auction state
type StateHandler struct {
	stateProvider StateProvider
}

// NewStateHandler creates a new state handler
func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{
		stateProvider: provider,
	}
}

// HandleGetAuctionState handles GET /api/auctions/{id}/state. The snapshot
// is the single source of truth clients re-fetch after every push hint, so
// it always carries the full round, ledger and sale history view.
func (h *StateHandler) HandleGetAuctionState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	auctionID, ok := auctionIDFromPath(r.URL.Path, "state")
	if !ok {
		http.Error(w, "Invalid auction ID", http.StatusBadRequest)
		return
	}

	state, err := h.stateProvider.GetAuctionState(r.Context(), auctionID)
	if err != nil {
		log.Error().Err(err).Str("auction_id", auctionID.String()).Msg("failed to get auction state")
		http.Error(w, "Failed to get auction state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		log.Error().Err(err).Msg("failed to encode auction state response")
	}
}

// auctionIDFromPath extracts the auction ID from paths like
// /api/auctions/{id}/{action} where action may span two segments
// ("rounds/open").
func auctionIDFromPath(path, action string) (uuid.UUID, bool) {
	const prefix = "/api/auctions/"
	if !strings.HasPrefix(path, prefix) {
		return uuid.Nil, false
	}
	rest := strings.TrimPrefix(path, prefix)
	suffix := "/" + action
	if !strings.HasSuffix(rest, suffix) {
		return uuid.Nil, false
	}
	idStr := strings.TrimSuffix(rest, suffix)
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
