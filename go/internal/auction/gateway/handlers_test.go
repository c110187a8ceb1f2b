package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gavelhq/gavel/go/internal/auction/engine"
	"github.com/gavelhq/gavel/go/internal/models"
)

type fakeProvider struct {
	snap *models.Snapshot
	err  error
}

func (p *fakeProvider) GetAuctionState(_ context.Context, _ uuid.UUID) (*models.Snapshot, error) {
	return p.snap, p.err
}

type fakeEngine struct {
	submitted []engine.SubmitBidRequest
	result    engine.SubmitBidResult
	err       error
	closed    []uuid.UUID
}

func (e *fakeEngine) StartAuction(_ context.Context, _ uuid.UUID) error { return e.err }

func (e *fakeEngine) OpenRound(_ context.Context, _, playerID uuid.UUID) (*models.Round, error) {
	if e.err != nil {
		return nil, e.err
	}
	return &models.Round{ID: uuid.New(), PlayerID: playerID, Status: models.RoundStatusOpen}, nil
}

func (e *fakeEngine) OpenNextRound(_ context.Context, _ uuid.UUID) (*models.Round, error) {
	if e.err != nil {
		return nil, e.err
	}
	return &models.Round{ID: uuid.New(), Status: models.RoundStatusOpen}, nil
}

func (e *fakeEngine) SubmitBid(_ context.Context, _ uuid.UUID, req engine.SubmitBidRequest) (engine.SubmitBidResult, error) {
	if e.err != nil {
		return engine.SubmitBidResult{}, e.err
	}
	e.submitted = append(e.submitted, req)
	return e.result, nil
}

func (e *fakeEngine) CloseRound(_ context.Context, _, roundID uuid.UUID) (*engine.Outcome, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.closed = append(e.closed, roundID)
	return &engine.Outcome{RoundID: roundID, Status: models.RoundStatusSold}, nil
}

func (e *fakeEngine) Pass(_ context.Context, _, _, _ uuid.UUID) error { return e.err }

func (e *fakeEngine) DeferItem(_ context.Context, _, _ uuid.UUID) error { return e.err }

type fakeResolver struct {
	team *models.Team
	err  error
}

func (r *fakeResolver) ResolveTeam(_ context.Context, _, _ uuid.UUID) (*models.Team, error) {
	return r.team, r.err
}

func newTestService(provider StateProvider, eng EngineAPI, teams TeamResolver) *Service {
	return &Service{
		stateHandler: NewStateHandler(provider),
		bidHandler:   NewBidHandler(eng, teams),
	}
}

func TestHandleGetAuctionState(t *testing.T) {
	auctionID := uuid.New()
	remaining := 42
	provider := &fakeProvider{
		snap: &models.Snapshot{
			AuctionID:  auctionID,
			Status:     models.AuctionStatusLive,
			Currency:   "USD",
			ServerTime: time.Now(),
			Round: &models.RoundView{
				RoundID:          uuid.New(),
				Status:           models.RoundStatusOpen,
				TimeRemainingSec: &remaining,
			},
			QueueLength: 10,
		},
	}
	svc := newTestService(provider, &fakeEngine{}, &fakeResolver{})

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/auctions/%s/state", auctionID), nil)
	rec := httptest.NewRecorder()
	svc.dispatchAuctionRoute(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap models.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.AuctionID != auctionID || snap.Status != models.AuctionStatusLive {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Round == nil || snap.Round.TimeRemainingSec == nil || *snap.Round.TimeRemainingSec != 42 {
		t.Error("round countdown missing from snapshot")
	}
}

func TestHandleGetAuctionState_BadID(t *testing.T) {
	svc := newTestService(&fakeProvider{}, &fakeEngine{}, &fakeResolver{})

	req := httptest.NewRequest(http.MethodGet, "/api/auctions/not-a-uuid/state", nil)
	rec := httptest.NewRecorder()
	svc.dispatchAuctionRoute(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleSubmitBid(t *testing.T) {
	auctionID := uuid.New()
	roundID := uuid.New()
	teamID := uuid.New()
	captainID := uuid.New()

	eng := &fakeEngine{
		result: engine.SubmitBidResult{
			Accepted: true,
			CurrentHighest: &models.BidView{
				TeamID: teamID,
				Amount: 50,
			},
		},
	}
	resolver := &fakeResolver{team: &models.Team{ID: teamID, AuctionID: auctionID}}
	svc := newTestService(&fakeProvider{}, eng, resolver)

	body, _ := json.Marshal(map[string]interface{}{"round_id": roundID, "amount": 50})
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/auctions/%s/bids", auctionID), bytes.NewReader(body))
	req.Header.Set(captainHeader, captainID.String())
	rec := httptest.NewRecorder()
	svc.dispatchAuctionRoute(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(eng.submitted) != 1 {
		t.Fatalf("submitted %d bids, want 1", len(eng.submitted))
	}
	if eng.submitted[0].TeamID != teamID {
		t.Error("team identity must come from the resolver, not the client")
	}

	var resp submitBidResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Accepted {
		t.Error("response should report acceptance")
	}
}

func TestHandleSubmitBid_MissingCaptain(t *testing.T) {
	svc := newTestService(&fakeProvider{}, &fakeEngine{}, &fakeResolver{})

	body := bytes.NewReader([]byte(`{"amount": 10}`))
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/auctions/%s/bids", uuid.New()), body)
	rec := httptest.NewRecorder()
	svc.dispatchAuctionRoute(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHandleSubmitBid_UnknownCaptain(t *testing.T) {
	svc := newTestService(&fakeProvider{}, &fakeEngine{}, &fakeResolver{err: errors.New("no team")})

	body := bytes.NewReader([]byte(`{"amount": 10}`))
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/auctions/%s/bids", uuid.New()), body)
	req.Header.Set(captainHeader, uuid.New().String())
	rec := httptest.NewRecorder()
	svc.dispatchAuctionRoute(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestHandleCloseRound_ConflictMapping(t *testing.T) {
	svc := newTestService(&fakeProvider{}, &fakeEngine{err: engine.ErrConcurrentRound}, &fakeResolver{})

	body := bytes.NewReader([]byte(fmt.Sprintf(`{"round_id":%q}`, uuid.New())))
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/auctions/%s/rounds/close", uuid.New()), body)
	rec := httptest.NewRecorder()
	svc.dispatchAuctionRoute(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestDispatch_UnknownAction(t *testing.T) {
	svc := newTestService(&fakeProvider{}, &fakeEngine{}, &fakeResolver{})

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/auctions/%s/unknown", uuid.New()), nil)
	rec := httptest.NewRecorder()
	svc.dispatchAuctionRoute(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAuctionIDFromPath(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		path   string
		action string
		want   bool
	}{
		{fmt.Sprintf("/api/auctions/%s/state", id), "state", true},
		{fmt.Sprintf("/api/auctions/%s/rounds/open", id), "rounds/open", true},
		{"/api/auctions//state", "state", false},
		{"/api/auctions/bogus/state", "state", false},
		{fmt.Sprintf("/other/%s/state", id), "state", false},
	}
	for _, tt := range tests {
		got, ok := auctionIDFromPath(tt.path, tt.action)
		if ok != tt.want {
			t.Errorf("auctionIDFromPath(%q, %q) ok = %v, want %v", tt.path, tt.action, ok, tt.want)
		}
		if ok && got != id {
			t.Errorf("auctionIDFromPath(%q) = %s, want %s", tt.path, got, id)
		}
	}
}
