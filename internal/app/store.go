package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gadgetcloud/gc-backend/internal/core/ports"
	"github.com/gadgetcloud/gc-backend/internal/core/service"
	mongostore "github.com/gadgetcloud/gc-backend/internal/infrastructure/db/mongo"
	"github.com/gadgetcloud/gc-backend/internal/infrastructure/queue"
	"github.com/gadgetcloud/gc-backend/internal/pkg/config"
)

// Store bundles the MongoDB-backed repositories and the running audit
// pipeline shared by the API server and the operator commands.
type Store struct {
	client     *mongo.Client
	db         *mongo.Database
	dispatcher *queue.Dispatcher
	cancel     context.CancelFunc

	Users ports.UserRepository
	Audit ports.AuditService
}

// OpenStore connects to MongoDB, ensures indexes and starts the audit
// dispatcher. Callers must Close the store.
func OpenStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Store, error) {
	client, db, err := mongostore.Connect(ctx, mongostore.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		return nil, err
	}

	users := mongostore.NewUserRepository(db)
	audits := mongostore.NewAuditRepository(db)
	if err := mongostore.EnsureIndexes(ctx, users, audits); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	dispatcher := queue.NewDispatcher(audits, log.With().Str("component", "audit_dispatcher").Logger(), queue.Options{
		Workers:     cfg.Audit.Workers,
		MaxAttempts: cfg.Audit.MaxAttempts,
	})
	runCtx, cancel := context.WithCancel(context.Background())
	dispatcher.Start(runCtx)

	return &Store{
		client:     client,
		db:         db,
		dispatcher: dispatcher,
		cancel:     cancel,
		Users:      users,
		Audit:      service.NewAuditService(audits, dispatcher, log),
	}, nil
}

// Ping checks the MongoDB connection for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close drains pending audit entries, then disconnects. If ctx expires
// first, in-flight retries are abandoned.
func (s *Store) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.dispatcher.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.cancel()
		<-done
	}
	s.cancel()

	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongo disconnect: %w", err)
	}
	return nil
}
