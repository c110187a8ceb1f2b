package gateway

import (
	"encoding/json"
	"time"

	"github.com/gavelhq/gavel/go/internal/auction/events"
)

// AuctionEvent is the wire format pushed to WebSocket clients. Events are
// invalidation hints: clients re-fetch the full state endpoint instead of
// applying the payload as a delta.
type AuctionEvent struct {
	ID        string          `json:"id"`         // Event UUID
	AuctionID string          `json:"auction_id"` // Auction UUID
	Type      EventType       `json:"type"`       // Event type
	Timestamp time.Time       `json:"timestamp"`  // Event creation time
	Data      json.RawMessage `json:"data"`       // Event-specific payload
}

// EventType represents the type of auction event
type EventType string

const (
	EventTypeAuctionState EventType = EventType(events.KindAuctionState)
	EventTypeBidUpdate    EventType = EventType(events.KindBidUpdate)
)

// ParseEventPayload parses event data into the appropriate payload struct
func ParseEventPayload(event *AuctionEvent) (interface{}, error) {
	switch event.Type {
	case EventTypeAuctionState:
		var payload events.AuctionStatePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeBidUpdate:
		var payload events.BidUpdatePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
