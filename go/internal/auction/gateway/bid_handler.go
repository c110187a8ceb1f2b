package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gavelhq/gavel/go/internal/auction/engine"
	"github.com/gavelhq/gavel/go/internal/models"
)

// EngineAPI is the live-auction surface the gateway drives.
type EngineAPI interface {
	StartAuction(ctx context.Context, auctionID uuid.UUID) error
	OpenRound(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Round, error)
	OpenNextRound(ctx context.Context, auctionID uuid.UUID) (*models.Round, error)
	SubmitBid(ctx context.Context, auctionID uuid.UUID, req engine.SubmitBidRequest) (engine.SubmitBidResult, error)
	CloseRound(ctx context.Context, auctionID, roundID uuid.UUID) (*engine.Outcome, error)
	Pass(ctx context.Context, auctionID, roundID, teamID uuid.UUID) error
	DeferItem(ctx context.Context, auctionID, playerID uuid.UUID) error
}

// TeamResolver maps an authenticated captain to their team. Bid identity is
// always resolved server-side; the client never names its own team.
type TeamResolver interface {
	ResolveTeam(ctx context.Context, auctionID, captainID uuid.UUID) (*models.Team, error)
}

// BidHandler handles the live-auction HTTP actions: bids, passes and the
// organizer round controls.
type BidHandler struct {
	engine EngineAPI
	teams  TeamResolver
}

// NewBidHandler creates a new bid handler
func NewBidHandler(eng EngineAPI, teams TeamResolver) *BidHandler {
	return &BidHandler{engine: eng, teams: teams}
}

const captainHeader = "X-Captain-ID"

type submitBidBody struct {
	RoundID uuid.UUID `json:"round_id"`
	Amount  float64   `json:"amount"`
}

type submitBidResponse struct {
	Accepted       bool            `json:"accepted"`
	Reason         string          `json:"reason,omitempty"`
	CurrentHighest *models.BidView `json:"current_highest,omitempty"`
}

// HandleSubmitBid handles POST /api/auctions/{id}/bids. A rejected bid is a
// 200 with accepted=false and a reason code; only transport or identity
// failures are HTTP errors.
func (h *BidHandler) HandleSubmitBid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	auctionID, ok := auctionIDFromPath(r.URL.Path, "bids")
	if !ok {
		http.Error(w, "Invalid auction ID", http.StatusBadRequest)
		return
	}
	team, ok := h.resolveTeam(w, r, auctionID)
	if !ok {
		return
	}

	var body submitBidBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.engine.SubmitBid(r.Context(), auctionID, engine.SubmitBidRequest{
		RoundID: body.RoundID,
		TeamID:  team.ID,
		Amount:  body.Amount,
	})
	if err != nil {
		writeEngineError(w, err, auctionID)
		return
	}

	writeJSON(w, submitBidResponse{
		Accepted:       result.Accepted,
		Reason:         result.Reason,
		CurrentHighest: result.CurrentHighest,
	})
}

// HandleStartAuction handles POST /api/auctions/{id}/start
func (h *BidHandler) HandleStartAuction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	auctionID, ok := auctionIDFromPath(r.URL.Path, "start")
	if !ok {
		http.Error(w, "Invalid auction ID", http.StatusBadRequest)
		return
	}
	if err := h.engine.StartAuction(r.Context(), auctionID); err != nil {
		writeEngineError(w, err, auctionID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type openRoundBody struct {
	PlayerID *uuid.UUID `json:"player_id,omitempty"`
}

// HandleOpenRound handles POST /api/auctions/{id}/rounds/open. With no
// player_id in the body it opens whatever the queue produces next.
func (h *BidHandler) HandleOpenRound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	auctionID, ok := auctionIDFromPath(r.URL.Path, "rounds/open")
	if !ok {
		http.Error(w, "Invalid auction ID", http.StatusBadRequest)
		return
	}

	var body openRoundBody
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	var (
		round *models.Round
		err   error
	)
	if body.PlayerID != nil {
		round, err = h.engine.OpenRound(r.Context(), auctionID, *body.PlayerID)
	} else {
		round, err = h.engine.OpenNextRound(r.Context(), auctionID)
	}
	if err != nil {
		writeEngineError(w, err, auctionID)
		return
	}
	writeJSON(w, round)
}

type closeRoundBody struct {
	RoundID uuid.UUID `json:"round_id"`
}

// HandleCloseRound handles POST /api/auctions/{id}/rounds/close
func (h *BidHandler) HandleCloseRound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	auctionID, ok := auctionIDFromPath(r.URL.Path, "rounds/close")
	if !ok {
		http.Error(w, "Invalid auction ID", http.StatusBadRequest)
		return
	}
	var body closeRoundBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	outcome, err := h.engine.CloseRound(r.Context(), auctionID, body.RoundID)
	if err != nil {
		writeEngineError(w, err, auctionID)
		return
	}
	writeJSON(w, outcome)
}

type passBody struct {
	RoundID uuid.UUID `json:"round_id"`
}

// HandlePass handles POST /api/auctions/{id}/pass
func (h *BidHandler) HandlePass(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	auctionID, ok := auctionIDFromPath(r.URL.Path, "pass")
	if !ok {
		http.Error(w, "Invalid auction ID", http.StatusBadRequest)
		return
	}
	team, ok := h.resolveTeam(w, r, auctionID)
	if !ok {
		return
	}
	var body passBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.engine.Pass(r.Context(), auctionID, body.RoundID, team.ID); err != nil {
		writeEngineError(w, err, auctionID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type deferBody struct {
	PlayerID uuid.UUID `json:"player_id"`
}

// HandleDeferItem handles POST /api/auctions/{id}/defer
func (h *BidHandler) HandleDeferItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	auctionID, ok := auctionIDFromPath(r.URL.Path, "defer")
	if !ok {
		http.Error(w, "Invalid auction ID", http.StatusBadRequest)
		return
	}
	var body deferBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.engine.DeferItem(r.Context(), auctionID, body.PlayerID); err != nil {
		writeEngineError(w, err, auctionID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BidHandler) resolveTeam(w http.ResponseWriter, r *http.Request, auctionID uuid.UUID) (*models.Team, bool) {
	captainID, err := uuid.Parse(r.Header.Get(captainHeader))
	if err != nil {
		http.Error(w, captainHeader+" header is required", http.StatusUnauthorized)
		return nil, false
	}
	team, err := h.teams.ResolveTeam(r.Context(), auctionID, captainID)
	if err != nil {
		log.Warn().
			Str("auction_id", auctionID.String()).
			Str("captain_id", captainID.String()).
			Msg("captain has no team in this auction")
		http.Error(w, "No team for this captain", http.StatusForbidden)
		return nil, false
	}
	return team, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// writeEngineError maps engine errors onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error, auctionID uuid.UUID) {
	switch {
	case errors.Is(err, engine.ErrConcurrentRound),
		errors.Is(err, engine.ErrAuctionNotLive),
		errors.Is(err, engine.ErrRoundNotClosed),
		errors.Is(err, engine.ErrItemInOpenRound):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrRoundNotFound),
		errors.Is(err, engine.ErrItemNotAvailable),
		errors.Is(err, engine.ErrQueueExhausted):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrUnknownTeam):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		log.Error().Err(err).Str("auction_id", auctionID.String()).Msg("engine operation failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
