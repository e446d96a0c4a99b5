// Package mongo serves the canonical role and the coordinator ledgers from MongoDB.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports"
	"go.trai.ch/zerr"
)

// Collection names.
const (
	EntitiesCollection    = "entities"
	DeadLettersCollection = "dead_letters"
	DiscrepancyCollection = "discrepancies"
	MarkersCollection     = "store_markers"
	DefaultDatabase       = "concord"
	connectTimeout        = 10 * time.Second
)

var _ ports.CanonicalStore = (*Canonical)(nil)

// Canonical is the authoritative entity store. It owns the client shared
// by the ledgers opened from it.
type Canonical struct {
	client *driver.Client
	db     *driver.Database
	coll   *driver.Collection
}

// Open connects to the deployment described by cfg and prepares indexes.
func Open(ctx context.Context, cfg domain.StoreConfig) (*Canonical, error) {
	opts := options.Client().ApplyURI(cfg.DSN)
	if cfg.Username != "" {
		opts.SetAuth(options.Credential{Username: cfg.Username, Password: cfg.Password})
	}

	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := driver.Connect(cctx, opts)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "connect to mongo"), "dsn", cfg.DSN)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, zerr.With(zerr.Wrap(err, "ping mongo"), "dsn", cfg.DSN)
	}

	name := cfg.Database
	if name == "" {
		name = DefaultDatabase
	}
	c := &Canonical{client: client, db: client.Database(name)}
	c.coll = c.db.Collection(EntitiesCollection)

	if err := c.ensureIndexes(cctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return c, nil
}

func (c *Canonical) ensureIndexes(ctx context.Context) error {
	_, err := c.db.Collection(DeadLettersCollection).Indexes().CreateOne(ctx, driver.IndexModel{
		Keys:    bson.D{{Key: "failed_at", Value: 1}},
		Options: options.Index().SetName("failed_at"),
	})
	if err != nil {
		return zerr.Wrap(err, "create dead letter index")
	}
	return nil
}

// Load returns the current entity for key.
func (c *Canonical) Load(ctx context.Context, key domain.Key) (domain.Entity, error) {
	var doc entityDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": key.String()}).Decode(&doc)
	switch {
	case errors.Is(err, driver.ErrNoDocuments):
		return domain.Entity{}, zerr.With(zerr.Wrap(domain.ErrNotFound, "load entity"), "key", key.String())
	case err != nil:
		return domain.Entity{}, classify("load", err)
	}
	return doc.entity(), nil
}

// Commit inserts a new entity when prev is zero and otherwise replaces the
// document only while its version still equals prev.
func (c *Canonical) Commit(ctx context.Context, e domain.Entity, prev domain.Version) error {
	doc := toEntityDoc(e)
	conflict := zerr.With(zerr.Wrap(domain.ErrVersionConflict, "commit entity"), "key", doc.ID)

	if prev == 0 {
		_, err := c.coll.InsertOne(ctx, doc)
		switch {
		case driver.IsDuplicateKeyError(err):
			return conflict
		case err != nil:
			return classify("commit", err)
		}
		return nil
	}

	res, err := c.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID, "version": int64(prev)}, doc)
	if err != nil {
		return classify("commit", err)
	}
	if res.MatchedCount == 0 {
		return conflict
	}
	return nil
}

// Scan returns up to limit entities ordered by key after the given key.
func (c *Canonical) Scan(ctx context.Context, after domain.Key, limit int) ([]domain.Entity, error) {
	filter := bson.M{}
	if after != (domain.Key{}) {
		filter["_id"] = bson.M{"$gt": after.String()}
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, classify("scan", err)
	}
	var docs []entityDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify("scan", err)
	}

	out := make([]domain.Entity, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.entity())
	}
	return out, nil
}

// Markers returns the version marker store backed by the same database.
func (c *Canonical) Markers() *Markers {
	return &Markers{coll: c.db.Collection(MarkersCollection)}
}

// DeadLetters returns the dead-letter log backed by the same database.
func (c *Canonical) DeadLetters() *DeadLetters {
	return &DeadLetters{coll: c.db.Collection(DeadLettersCollection)}
}

// Discrepancies returns the discrepancy log backed by the same database.
func (c *Canonical) Discrepancies() *Discrepancies {
	return &Discrepancies{coll: c.db.Collection(DiscrepancyCollection)}
}

// Close disconnects the client.
func (c *Canonical) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// classify maps a driver error onto the store error classes.
func classify(op string, err error) error {
	var (
		cmdErr   driver.CommandError
		writeErr driver.WriteException
	)
	switch {
	case driver.IsNetworkError(err), driver.IsTimeout(err),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return domain.Transient(domain.RoleCanonical, op, err)
	case errors.As(err, &cmdErr), errors.As(err, &writeErr):
		return domain.Permanent(domain.RoleCanonical, op, err)
	default:
		return domain.Transient(domain.RoleCanonical, op, err)
	}
}
