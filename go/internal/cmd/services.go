package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mattiabrun/fantalega/go/internal/auction"
	"github.com/mattiabrun/fantalega/go/internal/auction/gateway"
	"github.com/mattiabrun/fantalega/go/internal/auction/orchestrator"
	"github.com/mattiabrun/fantalega/go/internal/auction/outbox"
	"github.com/mattiabrun/fantalega/go/internal/dbconfig"
	"github.com/mattiabrun/fantalega/go/internal/membership"
)

// Services wires the repository → app → gateway chain plus the background
// workers (outbox relay, expiry scheduler, event consumer).
type Services struct {
	Auction    *auction.App
	Membership *membership.App
	Gateway    *gateway.Service
	WebSocket  *gateway.WebSocketHandler

	connectionManager *gateway.ConnectionManager
	eventConsumer     *gateway.EventConsumer
	outboxListener    *outbox.Listener
	orchestrator      *orchestrator.Orchestrator

	nc *nats.Conn
}

func setupServices(ctx context.Context, pool *pgxpool.Pool, dbCfg dbconfig.Config, cfg *Config) (*Services, error) {
	auctionRepo := auction.NewRepository(pool)
	if err := auctionRepo.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	membershipRepo := membership.NewRepository(pool)
	membershipApp := membership.NewApp(membershipRepo)

	auctionApp := auction.NewApp(auctionRepo, clockwork.NewRealClock())

	// NATS: the outbox publishes committed events, the gateway consumes them
	natsURL := getEnv("NATS_URL", nats.DefaultURL)
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	publisher, err := outbox.NewJetStreamPublisher(ctx, nc, cfg.Market.OutboxStream, cfg.Market.SubjectPrefix)
	if err != nil {
		nc.Close()
		return nil, err
	}

	outboxRepo := outbox.NewRepository(pool)
	listenerCfg := outbox.DefaultListenerConfig(dbCfg.DSN())
	outboxListener, err := outbox.NewListener(outboxRepo, publisher, listenerCfg)
	if err != nil {
		nc.Close()
		return nil, err
	}

	// gateway: presence flips the member's connected flag
	connectionManager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig(),
		func(ctx context.Context, memberID uuid.UUID, connected bool) {
			if err := membershipApp.SetConnected(ctx, memberID, connected); err != nil {
				log.Error().Err(err).Msg("failed to update member presence")
			}
		})

	consumerCfg := gateway.DefaultJetStreamConsumerConfig()
	consumerCfg.URL = natsURL
	consumerCfg.StreamName = cfg.Market.OutboxStream
	consumerCfg.SubjectFilter = cfg.Market.SubjectPrefix + ".>"
	eventConsumer, err := gateway.NewEventConsumer(connectionManager, consumerCfg)
	if err != nil {
		nc.Close()
		return nil, err
	}

	orch := orchestrator.New(auctionApp, clockwork.NewRealClock(), 10)
	auctionApp.SetDeadlineNotifier(orch.Wake)

	roleSeq, err := cfg.roleSequence()
	if err != nil {
		nc.Close()
		return nil, err
	}
	defaults := gateway.SessionDefaults{
		TimerSeconds: cfg.Market.TimerSeconds,
		RoleSequence: roleSeq,
	}

	return &Services{
		Auction:           auctionApp,
		Membership:        membershipApp,
		Gateway:           gateway.NewService(auctionApp, defaults),
		WebSocket:         gateway.NewWebSocketHandler(connectionManager),
		connectionManager: connectionManager,
		eventConsumer:     eventConsumer,
		outboxListener:    outboxListener,
		orchestrator:      orch,
		nc:                nc,
	}, nil
}

// startWorkers launches the background loops. Each returns on ctx cancel.
func (s *Services) startWorkers(ctx context.Context) {
	go s.connectionManager.Start(ctx)
	go func() {
		if err := s.eventConsumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("event consumer stopped")
		}
	}()
	go func() {
		if err := s.outboxListener.Start(ctx); err != nil {
			log.Error().Err(err).Msg("outbox listener stopped")
		}
	}()
	go func() {
		if err := s.orchestrator.Run(ctx); err != nil {
			log.Error().Err(err).Msg("expiry scheduler stopped")
		}
	}()
}

// Close releases external connections after the workers have stopped.
func (s *Services) Close() {
	s.eventConsumer.Close()
	s.nc.Close()
}
