package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/gavelhq/gavel/go/internal/models"
)

// Role tunes how aggressively a session keeps itself in sync. Bidders poll
// fastest since a stale highest-bid view costs them money; spectators can lag
// a little.
type Role string

const (
	RoleBidder    Role = "bidder"
	RoleOrganizer Role = "organizer"
	RoleSpectator Role = "spectator"
)

// PollInterval returns the role's baseline poll cadence. Push hints trigger
// refreshes in between polls; the poll is the safety net for missed hints.
func (r Role) PollInterval() time.Duration {
	switch r {
	case RoleBidder:
		return 2 * time.Second
	case RoleOrganizer:
		return 3 * time.Second
	default:
		return 5 * time.Second
	}
}

// StateFetcher retrieves the authoritative auction snapshot.
type StateFetcher interface {
	FetchState(ctx context.Context, auctionID uuid.UUID) (*models.Snapshot, error)
}

// Synchronizer keeps one client session converged on the server state. All
// state changes flow through full snapshot fetches: push events are treated
// as invalidation hints only and nothing is ever mutated optimistically.
type Synchronizer struct {
	fetcher   StateFetcher
	clock     clockwork.Clock
	auctionID uuid.UUID
	role      Role

	hintCh chan struct{}

	mu        sync.RWMutex
	snapshot  *models.Snapshot
	fetchedAt time.Time
	onUpdate  func(*models.Snapshot)
}

// NewSynchronizer creates a synchronizer for one session. onUpdate, if
// non-nil, is invoked with every newly applied snapshot.
func NewSynchronizer(fetcher StateFetcher, clock clockwork.Clock, auctionID uuid.UUID, role Role, onUpdate func(*models.Snapshot)) *Synchronizer {
	return &Synchronizer{
		fetcher:   fetcher,
		clock:     clock,
		auctionID: auctionID,
		role:      role,
		hintCh:    make(chan struct{}, 1),
		onUpdate:  onUpdate,
	}
}

// Run fetches the full state immediately, then keeps refreshing on the
// role's poll cadence and on push hints until ctx is cancelled.
func (s *Synchronizer) Run(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		log.Warn().Err(err).Str("auction_id", s.auctionID.String()).Msg("initial state fetch failed")
	}

	ticker := s.clock.NewTicker(s.role.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if err := s.Refresh(ctx); err != nil {
				log.Warn().Err(err).Str("auction_id", s.auctionID.String()).Msg("poll refresh failed")
			}
		case <-s.hintCh:
			if err := s.Refresh(ctx); err != nil {
				log.Warn().Err(err).Str("auction_id", s.auctionID.String()).Msg("hint refresh failed")
			}
		}
	}
}

// Hint signals that the server state changed. Hints coalesce: a burst of
// events causes at most one queued refresh.
func (s *Synchronizer) Hint() {
	select {
	case s.hintCh <- struct{}{}:
	default:
	}
}

// Refresh fetches and applies a fresh snapshot. Callers invoke it directly
// after their own successful submission so their view reflects the accepted
// bid without waiting for the push round trip.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	snap, err := s.fetcher.FetchState(ctx, s.auctionID)
	if err != nil {
		return fmt.Errorf("failed to fetch auction state: %w", err)
	}
	s.apply(snap)
	return nil
}

// apply installs a snapshot unless it is older than the one already held.
// Out-of-order responses from overlapping fetches must not rewind the view.
func (s *Synchronizer) apply(snap *models.Snapshot) {
	s.mu.Lock()
	if s.snapshot != nil && snap.ServerTime.Before(s.snapshot.ServerTime) {
		s.mu.Unlock()
		log.Debug().
			Str("auction_id", s.auctionID.String()).
			Time("stale", snap.ServerTime).
			Time("current", s.snapshot.ServerTime).
			Msg("discarding stale snapshot")
		return
	}
	s.snapshot = snap
	s.fetchedAt = s.clock.Now()
	cb := s.onUpdate
	s.mu.Unlock()

	if cb != nil {
		cb(snap)
	}
}

// Snapshot returns the last applied snapshot, or nil before the first fetch.
func (s *Synchronizer) Snapshot() *models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Countdown returns the presentation countdown in whole seconds. It ticks
// down locally between fetches and clamps at zero; zero display never
// implies the round is closed, only the server decides that. The second
// return is false when no countdown applies (no round, or an untimed one),
// in which case the timer display stays inert.
func (s *Synchronizer) Countdown() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil || s.snapshot.Round == nil || s.snapshot.Round.TimeRemainingSec == nil {
		return 0, false
	}
	elapsed := int(s.clock.Since(s.fetchedAt).Seconds())
	remaining := *s.snapshot.Round.TimeRemainingSec - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}
