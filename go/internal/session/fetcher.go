package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gavelhq/gavel/go/internal/models"
)

// HTTPStateFetcher fetches snapshots from the gateway's state endpoint.
type HTTPStateFetcher struct {
	baseURL string
	client  *http.Client
}

func NewHTTPStateFetcher(baseURL string) *HTTPStateFetcher {
	return &HTTPStateFetcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (f *HTTPStateFetcher) FetchState(ctx context.Context, auctionID uuid.UUID) (*models.Snapshot, error) {
	url := fmt.Sprintf("%s/api/auctions/%s/state", f.baseURL, auctionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build state request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("state endpoint returned %d", resp.StatusCode)
	}

	var snap models.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}
