package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/audit"
)

// entry fields by orderable name
var auditSortFields = map[string]string{
	audit.OrderCreatedAt: "createdAt",
	audit.OrderAction:    "action",
}

var auditGroupFields = map[audit.GroupBy]string{
	audit.GroupByAction: "$action",
	audit.GroupByTarget: "$targetKind",
}

type auditRepository struct {
	coll *mongo.Collection
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *mongo.Database) *auditRepository {
	return &auditRepository{coll: db.Collection(collAudit)}
}

func (repo auditRepository) CreateEntry(ctx context.Context, e audit.Entry) error {
	_, err := repo.coll.InsertOne(ctx, e)
	return errors.Wrap(err, "inserting audit entry")
}

func (repo auditRepository) GetEntry(ctx context.Context, id string) (e audit.Entry, err error) {
	err = repo.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return e, audit.ErrNotFound
	}
	return e, errors.Wrap(err, "finding audit entry")
}

func entryFilter(f audit.Filter) bson.M {
	filter := bson.M{}
	if f.Action != "" {
		filter["action"] = f.Action
	}
	if f.TargetKind != "" {
		filter["targetKind"] = f.TargetKind
	}
	if f.ActorID != "" {
		filter["actorId"] = f.ActorID
	}
	created := bson.M{}
	if !f.Since.IsZero() {
		created["$gte"] = f.Since
	}
	if !f.Until.IsZero() {
		created["$lt"] = f.Until
	}
	if len(created) > 0 {
		filter["createdAt"] = created
	}
	return filter
}

func (repo auditRepository) QueryEntries(ctx context.Context, f audit.Filter, p core.Page) ([]audit.Entry, int, error) {
	filter := entryFilter(f)
	total, err := repo.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting audit entries")
	}

	field, ok := auditSortFields[f.Ordering.Field]
	if !ok {
		field = "createdAt"
	}
	direction := -1
	if f.Ordering.Ascending {
		direction = 1
	}
	sort := bson.D{{Key: field, Value: direction}}
	if field != "createdAt" {
		sort = append(sort, bson.E{Key: "createdAt", Value: direction})
	}
	sort = append(sort, bson.E{Key: "_id", Value: 1})
	opts := options.Find().
		SetSort(sort).
		SetSkip(int64(p.Offset())).
		SetLimit(int64(p.Size))

	cur, err := repo.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, errors.Wrap(err, "finding audit entries")
	}
	entries := make([]audit.Entry, 0, p.Size)
	if err = cur.All(ctx, &entries); err != nil {
		return nil, 0, errors.Wrap(err, "decoding audit entries")
	}
	return entries, int(total), nil
}

func (repo auditRepository) CountEntries(ctx context.Context, since time.Time) (int, error) {
	n, err := repo.coll.CountDocuments(ctx, entryFilter(audit.Filter{Since: since}))
	return int(n), errors.Wrap(err, "counting audit entries")
}

// CountBy groups server side, most frequent first.
func (repo auditRepository) CountBy(ctx context.Context, field audit.GroupBy) ([]audit.Count, error) {
	key, ok := auditGroupFields[field]
	if !ok {
		return nil, errors.Errorf("cannot group audit entries by %q", field)
	}
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": key, "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	cur, err := repo.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "aggregating audit entries")
	}
	counts := make([]audit.Count, 0)
	if err = cur.All(ctx, &counts); err != nil {
		return nil, errors.Wrap(err, "decoding audit counts")
	}
	return counts, nil
}

func (repo auditRepository) DeleteEntriesBefore(ctx context.Context, before time.Time) (int, error) {
	res, err := repo.coll.DeleteMany(ctx, bson.M{"createdAt": bson.M{"$lt": before}})
	if err != nil {
		return 0, errors.Wrap(err, "deleting audit entries")
	}
	return int(res.DeletedCount), nil
}
