package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// Service is the auction gateway: WebSocket push, JetStream event fan-out and
// the HTTP action/state API.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer
	stateHandler      *StateHandler
	bidHandler        *BidHandler
}

// Config holds configuration for the auction gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
	AllowedOrigins   []string
}

// DefaultConfig returns default configuration for the auction gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
	}
}

// NewService creates a new auction gateway service
func NewService(config Config, stateProvider StateProvider, eng EngineAPI, teams TeamResolver) (*Service, error) {
	connectionManager := NewConnectionManager(config.ConnectionConfig)
	wsHandler := NewWebSocketHandler(connectionManager)

	eventConsumer, err := NewEventConsumer(connectionManager, config.JetStreamConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         wsHandler,
		eventConsumer:     eventConsumer,
		stateHandler:      NewStateHandler(stateProvider),
		bidHandler:        NewBidHandler(eng, teams),
	}, nil
}

// Start begins the gateway service
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting auction gateway service")

	go s.connectionManager.Start(ctx)

	go func() {
		if err := s.eventConsumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("event consumer failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("auction gateway service shutting down")
	return s.Stop()
}

// Stop gracefully shuts down the gateway service
func (s *Service) Stop() error {
	if err := s.eventConsumer.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop event consumer")
	}
	log.Info().Msg("auction gateway service stopped")
	return nil
}

// RegisterRoutes registers the gateway's HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	mux.HandleFunc("/api/auctions/", s.dispatchAuctionRoute)
	log.Info().Msg("auction gateway routes registered")
}

// dispatchAuctionRoute routes /api/auctions/{id}/{action} to the matching
// handler by action suffix.
func (s *Service) dispatchAuctionRoute(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/state"):
		s.stateHandler.HandleGetAuctionState(w, r)
	case strings.HasSuffix(path, "/bids"):
		s.bidHandler.HandleSubmitBid(w, r)
	case strings.HasSuffix(path, "/start"):
		s.bidHandler.HandleStartAuction(w, r)
	case strings.HasSuffix(path, "/rounds/open"):
		s.bidHandler.HandleOpenRound(w, r)
	case strings.HasSuffix(path, "/rounds/close"):
		s.bidHandler.HandleCloseRound(w, r)
	case strings.HasSuffix(path, "/pass"):
		s.bidHandler.HandlePass(w, r)
	case strings.HasSuffix(path, "/defer"):
		s.bidHandler.HandleDeferItem(w, r)
	default:
		http.NotFound(w, r)
	}
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	stats["service"] = "auction_gateway"
	stats["status"] = "running"
	return stats
}
