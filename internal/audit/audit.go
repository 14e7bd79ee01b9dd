package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/config"
)

// Entry is one purchase-order audit record.
type Entry struct {
	ID          string         `bson:"_id,omitempty" json:"id,omitempty"`
	Action      string         `bson:"action" json:"action"`
	OrderID     string         `bson:"order_id" json:"order_id"`
	OrderNumber string         `bson:"order_number" json:"order_number"`
	Site        string         `bson:"site" json:"site"`
	ActorID     string         `bson:"actor_id,omitempty" json:"actor_id,omitempty"`
	Data        map[string]any `bson:"data,omitempty" json:"data,omitempty"`
	OccurredAt  time.Time      `bson:"occurred_at" json:"occurred_at"`
	RecordedAt  time.Time      `bson:"recorded_at" json:"recorded_at"`
}

// Store persists and reads audit entries. Record is idempotent for entries
// carrying an ID: writing the same ID twice keeps the first entry.
type Store interface {
	Record(ctx context.Context, entry *Entry) error
	ForOrder(ctx context.Context, orderID string, limit int64) ([]*Entry, error)
}

// Module provides the audit store to the Fx graph.
var Module = fx.Provide(NewStore)

// NewStore builds the configured audit store (mongo or noop).
func NewStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.Audit.Driver {
	case "noop":
		logger.Info("audit disabled; using in-memory store")
		return NewMemoryStore(), nil
	case "mongo":
		return newMongoStore(lc, cfg.Audit, logger)
	default:
		return nil, fmt.Errorf("unsupported audit driver: %s", cfg.Audit.Driver)
	}
}

type mongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	now        func() time.Time
}

func newMongoStore(lc fx.Lifecycle, cfg config.Audit, logger *zap.Logger) (Store, error) {
	store := &mongoStore{now: func() time.Time { return time.Now().UTC() }}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
			if err != nil {
				return fmt.Errorf("connect mongo: %w", err)
			}
			if err := client.Ping(ctx, readpref.Primary()); err != nil {
				_ = client.Disconnect(ctx)
				return fmt.Errorf("ping mongo: %w", err)
			}
			store.client = client
			store.collection = client.Database(cfg.Database).Collection(cfg.Collection)
			logger.Info("audit store connected",
				zap.String("database", cfg.Database),
				zap.String("collection", cfg.Collection),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if store.client == nil {
				return nil
			}
			logger.Info("closing audit store")
			return store.client.Disconnect(ctx)
		},
	})

	return store, nil
}

func (m *mongoStore) Record(ctx context.Context, entry *Entry) error {
	entry.RecordedAt = m.now()
	_, err := m.collection.InsertOne(ctx, entry)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (m *mongoStore) ForOrder(ctx context.Context, orderID string, limit int64) ([]*Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := m.collection.Find(ctx, bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := make([]*Entry, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// MemoryStore keeps audit entries in process. It backs the disabled driver
// and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries []*Entry
	ids     map[string]struct{}
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ids: make(map[string]struct{})}
}

func (s *MemoryStore) Record(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID != "" {
		if _, seen := s.ids[entry.ID]; seen {
			return nil
		}
		s.ids[entry.ID] = struct{}{}
	}
	cp := *entry
	cp.RecordedAt = time.Now().UTC()
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *MemoryStore) ForOrder(_ context.Context, orderID string, limit int64) ([]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Entry, 0)
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].OrderID != orderID {
			continue
		}
		cp := *s.entries[i]
		out = append(out, &cp)
		if limit > 0 && int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}
