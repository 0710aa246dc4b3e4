package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gadgetcloud/gc-backend/internal/core/domain"
	"github.com/gadgetcloud/gc-backend/internal/core/ports"
)

const collectionAuditLogs = "audit_logs"

// AuditRepository is the append-only audit_logs collection. It exposes no
// update or delete path.
type AuditRepository struct {
	col *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{col: db.Collection(collectionAuditLogs)}
}

var _ ports.AuditRepository = (*AuditRepository)(nil)

type auditDocument struct {
	ID        string            `bson:"_id"`
	EventType string            `bson:"event_type"`
	ActorID   string            `bson:"actor_id"`
	TargetID  string            `bson:"target_id"`
	Reason    string            `bson:"reason,omitempty"`
	Timestamp time.Time         `bson:"timestamp"`
	Metadata  map[string]string `bson:"metadata,omitempty"`
}

func (d auditDocument) toDomain() *domain.AuditLogEntry {
	return &domain.AuditLogEntry{
		ID:        d.ID,
		EventType: domain.AuditEventType(d.EventType),
		ActorID:   d.ActorID,
		TargetID:  d.TargetID,
		Reason:    d.Reason,
		Timestamp: d.Timestamp.UTC(),
		Metadata:  d.Metadata,
	}
}

func (r *AuditRepository) Append(ctx context.Context, e *domain.AuditLogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := auditDocument{
		ID:        e.ID,
		EventType: string(e.EventType),
		ActorID:   e.ActorID,
		TargetID:  e.TargetID,
		Reason:    e.Reason,
		Timestamp: e.Timestamp.UTC(),
		Metadata:  e.Metadata,
	}

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAuditLogExists
		}
		return wrapErr("insert audit log", err)
	}
	return nil
}

func (r *AuditRepository) FindByID(ctx context.Context, id string) (*domain.AuditLogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc auditDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAuditLogNotFound
		}
		return nil, wrapErr("find audit log", err)
	}
	return doc.toDomain(), nil
}

// Find returns entries newest first. Ids are ULIDs, so _id breaks timestamp
// ties in creation order.
func (r *AuditRepository) Find(ctx context.Context, f ports.AuditFilter) ([]*domain.AuditLogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(f.Offset))
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := r.col.Find(ctx, auditFilter(f), opts)
	if err != nil {
		return nil, wrapErr("find audit logs", err)
	}
	defer cur.Close(ctx)

	var docs []auditDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrapErr("decode audit logs", err)
	}

	entries := make([]*domain.AuditLogEntry, len(docs))
	for i, d := range docs {
		entries[i] = d.toDomain()
	}
	return entries, nil
}

func (r *AuditRepository) Count(ctx context.Context, f ports.AuditFilter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.col.CountDocuments(ctx, auditFilter(f))
	if err != nil {
		return 0, wrapErr("count audit logs", err)
	}
	return n, nil
}

func auditFilter(f ports.AuditFilter) bson.M {
	filter := bson.M{}
	if f.EventType != "" {
		filter["event_type"] = string(f.EventType)
	}
	if f.ActorID != "" {
		filter["actor_id"] = f.ActorID
	}
	if f.TargetID != "" {
		filter["target_id"] = f.TargetID
	}
	if f.UserID != "" {
		filter["$or"] = bson.A{
			bson.M{"actor_id": f.UserID},
			bson.M{"target_id": f.UserID},
		}
	}
	return filter
}

func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "event_type", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "actor_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "target_id", Value: 1}, {Key: "timestamp", Value: -1}}},
	}

	if _, err := r.col.Indexes().CreateMany(ctx, indexes); err != nil {
		return wrapErr("create audit indexes", err)
	}
	return nil
}
