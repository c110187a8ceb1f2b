package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/gavelhq/gavel/go/internal/auction"
	"github.com/gavelhq/gavel/go/internal/auction/engine"
	"github.com/gavelhq/gavel/go/internal/auction/gateway"
	"github.com/gavelhq/gavel/go/internal/auction/outbox"
	"github.com/gavelhq/gavel/go/internal/dbconfig"
	"github.com/gavelhq/gavel/go/internal/models"
)

// Services wires the repository, engine, outbox pipeline and gateway
// together.
type Services struct {
	AuctionRepo *auction.Repository
	AuctionApp  *auction.App
	Engine      *engine.Engine
	OutboxRepo  *outbox.Repository
	Publisher   *outbox.NATSPublisher
	Listener    *outbox.Listener
	Gateway     *gateway.Service
}

func setupServices(cfg *Config, pool *pgxpool.Pool, dbCfg dbconfig.Config) (*Services, error) {
	auctionRepo := auction.NewRepository(pool)
	auctionApp := auction.NewApp(auctionRepo)
	outboxRepo := outbox.NewRepository(pool)

	eng := engine.NewEngine(auctionRepo, outboxRepo, clockwork.NewRealClock())

	pubCfg := outbox.DefaultNATSPublisherConfig()
	pubCfg.URL = cfg.natsURL()
	if cfg.NATS.SubjectPrefix != "" {
		pubCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
	}
	publisher, err := outbox.NewNATSPublisher(pubCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	listenerCfg := outbox.DefaultListenerConfig()
	listenerCfg.DatabaseURL = dbCfg.DSN()
	listenerCfg.FallbackInterval = cfg.outboxFallback()
	if cfg.Outbox.BatchSize > 0 {
		listenerCfg.BatchSize = int32(cfg.Outbox.BatchSize)
	}
	listener, err := outbox.NewListener(outboxRepo, publisher, listenerCfg)
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("failed to create outbox listener: %w", err)
	}

	gwCfg := gateway.DefaultConfig()
	gwCfg.JetStreamConfig.URL = cfg.natsURL()
	if cfg.NATS.StreamName != "" {
		gwCfg.JetStreamConfig.StreamName = cfg.NATS.StreamName
	}
	gwCfg.AllowedOrigins = cfg.Gateway.AllowedOrigins

	gw, err := gateway.NewService(gwCfg, &engineStateProvider{eng: eng}, eng, auctionApp)
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	return &Services{
		AuctionRepo: auctionRepo,
		AuctionApp:  auctionApp,
		Engine:      eng,
		OutboxRepo:  outboxRepo,
		Publisher:   publisher,
		Listener:    listener,
		Gateway:     gw,
	}, nil
}

// engineStateProvider adapts the engine's snapshot call to the gateway's
// state interface.
type engineStateProvider struct {
	eng *engine.Engine
}

func (p *engineStateProvider) GetAuctionState(ctx context.Context, auctionID uuid.UUID) (*models.Snapshot, error) {
	return p.eng.Snapshot(ctx, auctionID)
}
