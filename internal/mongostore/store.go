// Package mongostore holds the MongoDB client the service has always
// configured from MONGO_URI. No route reads from it: the catalog is compiled
// in. It exists so the connection can be monitored, optionally included in
// readiness, and closed cleanly on shutdown.
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/keithlinneman/dsa-learning-api/internal/log"
	"github.com/keithlinneman/dsa-learning-api/internal/xerrors"
)

const (
	DefaultDatabase   = "dsa_database"
	DefaultCollection = "modules"

	serverSelectionTimeout = 5 * time.Second
	pingTimeout            = 2 * time.Second
)

// ErrDisabled is returned by Ping when no URI was configured.
var ErrDisabled = errors.New("mongostore: disabled (no uri configured)")

type Options struct {
	URI        string
	Database   string
	Collection string
	Logger     log.Logger
	// OnPoolEvent receives the driver's connection pool event types
	// (ConnectionCreated, ConnectionClosed, ...).
	OnPoolEvent func(eventType string)
}

type Store struct {
	client     *mongo.Client
	database   string
	collection string
	logger     log.Logger
}

// Open builds the client. The driver connects lazily, so a reachable server
// is not required here; an empty URI yields a disabled Store.
func Open(ctx context.Context, opts Options) (*Store, error) {
	L := opts.Logger
	if L == nil {
		L = log.Nop()
	}
	s := &Store{
		database:   opts.Database,
		collection: opts.Collection,
		logger:     L,
	}
	if s.database == "" {
		s.database = DefaultDatabase
	}
	if s.collection == "" {
		s.collection = DefaultCollection
	}
	if opts.URI == "" {
		return s, nil
	}

	co := options.Client().
		ApplyURI(opts.URI).
		SetServerSelectionTimeout(serverSelectionTimeout).
		SetAppName("dsa-learning-api")
	if opts.OnPoolEvent != nil {
		co.SetPoolMonitor(&event.PoolMonitor{
			Event: func(e *event.PoolEvent) { opts.OnPoolEvent(e.Type) },
		})
	}

	client, err := mongo.Connect(ctx, co)
	if err != nil {
		// driver errors may quote the uri, which can carry credentials
		return nil, xerrors.New("mongostore: invalid client configuration")
	}
	s.client = client
	L.Info(ctx, "mongo client configured", "db.namespace", s.database, "db.collection.name", s.collection)
	return s, nil
}

// Enabled reports whether a client was configured.
func (s *Store) Enabled() bool { return s != nil && s.client != nil }

func (s *Store) Database() string { return s.database }

func (s *Store) CollectionName() string { return s.collection }

// Collection returns the configured collection handle, or nil when disabled.
func (s *Store) Collection() *mongo.Collection {
	if !s.Enabled() {
		return nil
	}
	return s.client.Database(s.database).Collection(s.collection)
}

// Ping checks the primary is reachable. It satisfies health.Probe's Check
// signature so it can be folded into readiness.
func (s *Store) Ping(ctx context.Context) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return xerrors.Wrap(err, "mongo ping")
	}
	return nil
}

// Disconnect closes the client. It is a no-op when disabled.
func (s *Store) Disconnect(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return xerrors.Wrap(err, "mongo disconnect")
	}
	s.logger.Info(ctx, "mongo client disconnected")
	return nil
}
