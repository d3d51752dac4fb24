package mongorepos

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/daftari/core/notice"
)

type noticeRepository struct {
	coll *mongo.Collection
}

var _ notice.Repository = (*noticeRepository)(nil) // interface compliance check

func NewNoticeRepository(db *mongo.Database) *noticeRepository {
	return &noticeRepository{coll: db.Collection(collNotices)}
}

var newestFirst = options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})

func (repo noticeRepository) CreateNotice(ctx context.Context, n notice.Notice) (notice.Notice, error) {
	n.ReadBy = nonNil(n.ReadBy)
	if _, err := repo.coll.InsertOne(ctx, n); err != nil {
		return notice.Notice{}, errors.Wrap(err, "inserting notice")
	}
	return n, nil
}

func (repo noticeRepository) GetNotice(ctx context.Context, id string) (n notice.Notice, err error) {
	err = repo.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return n, notice.ErrNotFound
	}
	return n, errors.Wrap(err, "finding notice")
}

func (repo noticeRepository) find(ctx context.Context, filter interface{}) ([]notice.Notice, error) {
	cur, err := repo.coll.Find(ctx, filter, newestFirst)
	if err != nil {
		return nil, errors.Wrap(err, "finding notices")
	}
	notices := make([]notice.Notice, 0)
	if err = cur.All(ctx, &notices); err != nil {
		return nil, errors.Wrap(err, "decoding notices")
	}
	return notices, nil
}

func (repo noticeRepository) QueryVisible(ctx context.Context, courseIDs []string) ([]notice.Notice, error) {
	return repo.find(ctx, bson.M{"$or": bson.A{
		bson.M{"scope": notice.ScopeEveryone},
		bson.M{"scope": notice.ScopeCourse, "courseId": bson.M{"$in": nonNil(courseIDs)}},
	}})
}

func (repo noticeRepository) QueryByAuthor(ctx context.Context, authorID string) ([]notice.Notice, error) {
	return repo.find(ctx, bson.M{"authorId": authorID})
}

func (repo noticeRepository) MarkRead(ctx context.Context, id, readerID string) error {
	res, err := repo.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$addToSet": bson.M{"readBy": readerID}})
	if err != nil {
		return errors.Wrap(err, "marking notice read")
	}
	if res.MatchedCount == 0 {
		return notice.ErrNotFound
	}
	return nil
}

// MarkReadMany is one UpdateMany; notices already read by readerID are not counted.
func (repo noticeRepository) MarkReadMany(ctx context.Context, ids []string, readerID string) (int, error) {
	res, err := repo.coll.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": nonNil(ids)}, "readBy": bson.M{"$ne": readerID}},
		bson.M{"$addToSet": bson.M{"readBy": readerID}},
	)
	if err != nil {
		return 0, errors.Wrap(err, "marking notices read")
	}
	return int(res.ModifiedCount), nil
}

func (repo noticeRepository) DeleteNotice(ctx context.Context, id string) error {
	res, err := repo.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "deleting notice")
	}
	if res.DeletedCount == 0 {
		return notice.ErrNotFound
	}
	return nil
}

func (repo noticeRepository) DeleteByCourse(ctx context.Context, courseID string) (int, error) {
	res, err := repo.coll.DeleteMany(ctx, bson.M{"scope": notice.ScopeCourse, "courseId": courseID})
	if err != nil {
		return 0, errors.Wrap(err, "deleting course notices")
	}
	return int(res.DeletedCount), nil
}

func (repo noticeRepository) RemoveReader(ctx context.Context, readerID string) error {
	_, err := repo.coll.UpdateMany(ctx, bson.M{"readBy": readerID}, bson.M{"$pull": bson.M{"readBy": readerID}})
	return errors.Wrap(err, "removing reader")
}
