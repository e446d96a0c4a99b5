package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports"
)

var (
	_ ports.MarkerStore    = (*Markers)(nil)
	_ ports.DeadLetterLog  = (*DeadLetters)(nil)
	_ ports.DiscrepancyLog = (*Discrepancies)(nil)
)

// Markers stores acknowledged versions as {_id, version} documents.
type Markers struct {
	coll *driver.Collection
}

// Seen returns the acknowledged version for key and role.
func (m *Markers) Seen(ctx context.Context, key domain.Key, role domain.StoreRole) (domain.Version, error) {
	var doc struct {
		Version int64 `bson:"version"`
	}
	err := m.coll.FindOne(ctx, bson.M{"_id": discrepancyID(key, role)}).Decode(&doc)
	switch {
	case errors.Is(err, driver.ErrNoDocuments):
		return 0, nil
	case err != nil:
		return 0, classify("seen", err)
	}
	return domain.Version(doc.Version), nil
}

// Mark raises the acknowledged version with $max, so lower versions are ignored.
func (m *Markers) Mark(ctx context.Context, key domain.Key, role domain.StoreRole, v domain.Version) error {
	_, err := m.coll.UpdateOne(ctx,
		bson.M{"_id": discrepancyID(key, role)},
		bson.M{"$max": bson.M{"version": int64(v)}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return classify("mark", err)
	}
	return nil
}

// DeadLetters persists terminally failed propagation tasks.
type DeadLetters struct {
	coll *driver.Collection
}

// Append records dl.
func (d *DeadLetters) Append(ctx context.Context, dl domain.DeadLetter) error {
	if _, err := d.coll.InsertOne(ctx, toDeadLetterDoc(dl)); err != nil {
		return classify("append dead letter", err)
	}
	return nil
}

// List returns all entries in failure order.
func (d *DeadLetters) List(ctx context.Context) ([]domain.DeadLetter, error) {
	cur, err := d.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "failed_at", Value: 1}}))
	if err != nil {
		return nil, classify("list dead letters", err)
	}
	var docs []deadLetterDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify("list dead letters", err)
	}

	out := make([]domain.DeadLetter, 0, len(docs))
	for _, doc := range docs {
		dl, err := doc.deadLetter()
		if err != nil {
			return nil, err
		}
		out = append(out, dl)
	}
	return out, nil
}

// Remove deletes the entry with the given id.
func (d *DeadLetters) Remove(ctx context.Context, id string) error {
	if _, err := d.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return classify("remove dead letter", err)
	}
	return nil
}

// Discrepancies persists detected divergence, one document per key and role.
type Discrepancies struct {
	coll *driver.Collection
}

// Upsert records disc.
func (d *Discrepancies) Upsert(ctx context.Context, disc domain.Discrepancy) error {
	doc := toDiscrepancyDoc(disc)
	_, err := d.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return classify("upsert discrepancy", err)
	}
	return nil
}

// Get returns the entry for key and role.
func (d *Discrepancies) Get(ctx context.Context, key domain.Key, role domain.StoreRole) (domain.Discrepancy, bool, error) {
	var doc discrepancyDoc
	err := d.coll.FindOne(ctx, bson.M{"_id": discrepancyID(key, role)}).Decode(&doc)
	switch {
	case errors.Is(err, driver.ErrNoDocuments):
		return domain.Discrepancy{}, false, nil
	case err != nil:
		return domain.Discrepancy{}, false, classify("get discrepancy", err)
	}
	disc, err := doc.discrepancy()
	if err != nil {
		return domain.Discrepancy{}, false, err
	}
	return disc, true, nil
}

// Resolve removes the entry for key and role.
func (d *Discrepancies) Resolve(ctx context.Context, key domain.Key, role domain.StoreRole) error {
	if _, err := d.coll.DeleteOne(ctx, bson.M{"_id": discrepancyID(key, role)}); err != nil {
		return classify("resolve discrepancy", err)
	}
	return nil
}

// List returns all entries ordered by key and role.
func (d *Discrepancies) List(ctx context.Context) ([]domain.Discrepancy, error) {
	cur, err := d.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, classify("list discrepancies", err)
	}
	var docs []discrepancyDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify("list discrepancies", err)
	}

	out := make([]domain.Discrepancy, 0, len(docs))
	for _, doc := range docs {
		disc, err := doc.discrepancy()
		if err != nil {
			return nil, err
		}
		out = append(out, disc)
	}
	return out, nil
}
