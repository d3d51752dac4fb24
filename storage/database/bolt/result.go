package boltdb

import (
	"context"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/trezcool/daftari/core/result"
)

type resultRepository struct {
	db *DB
}

var _ result.Repository = (*resultRepository)(nil) // interface compliance check

func NewResultRepository(db *DB) *resultRepository {
	return &resultRepository{db: db}
}

func (repo resultRepository) CreateResult(_ context.Context, f result.Fact) (result.Fact, error) {
	err := repo.db.update(func(tx *bbolt.Tx) error {
		if err := claim(tx, bktResultsByKey, f.Key(), f.ID, result.ErrAlreadyRecorded); err != nil {
			return err
		}
		return put(tx, bktResults, f.ID, f)
	})
	if err != nil {
		return result.Fact{}, err
	}
	return f, nil
}

func (repo resultRepository) GetResult(_ context.Context, id string) (f result.Fact, err error) {
	err = repo.db.view(func(tx *bbolt.Tx) error {
		f, err = get[result.Fact](tx, bktResults, id, result.ErrNotFound)
		return err
	})
	return f, err
}

// UpdateResult stores the scores and derived values; the key of a result is immutable.
func (repo resultRepository) UpdateResult(_ context.Context, f result.Fact) (result.Fact, error) {
	err := repo.db.update(func(tx *bbolt.Tx) error {
		stored, err := get[result.Fact](tx, bktResults, f.ID, result.ErrNotFound)
		if err != nil {
			return err
		}
		stored.Internal, stored.External = f.Internal, f.External
		stored.Total, stored.Grade = f.Total, f.Grade
		stored.UpdatedAt = f.UpdatedAt
		f = stored
		return put(tx, bktResults, f.ID, f)
	})
	if err != nil {
		return result.Fact{}, err
	}
	return f, nil
}

func (repo resultRepository) DeleteResult(_ context.Context, id string) error {
	return repo.db.update(func(tx *bbolt.Tx) error {
		f, err := get[result.Fact](tx, bktResults, id, result.ErrNotFound)
		if err != nil {
			return err
		}
		if err = release(tx, bktResultsByKey, f.Key()); err != nil {
			return err
		}
		return del(tx, bktResults, id)
	})
}

func (repo resultRepository) QueryResults(_ context.Context, f result.Filter) (facts []result.Fact, err error) {
	err = repo.db.view(func(tx *bbolt.Tx) error {
		facts, err = scan(tx, bktResults, f.Match)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(facts, func(i, j int) bool {
		if facts[i].Term != facts[j].Term {
			return facts[i].Term < facts[j].Term
		}
		if facts[i].CourseID != facts[j].CourseID {
			return facts[i].CourseID < facts[j].CourseID
		}
		return facts[i].EnrolleeID < facts[j].EnrolleeID
	})
	return facts, nil
}

func (repo resultRepository) DeleteByEnrollee(_ context.Context, enrolleeID string) (int, error) {
	return repo.deleteWhere(func(f result.Fact) bool { return f.EnrolleeID == enrolleeID })
}

func (repo resultRepository) DeleteByCourse(_ context.Context, courseID string) (int, error) {
	return repo.deleteWhere(func(f result.Fact) bool { return f.CourseID == courseID })
}

func (repo resultRepository) deleteWhere(match func(result.Fact) bool) (n int, err error) {
	err = repo.db.update(func(tx *bbolt.Tx) error {
		deleted, err := deleteWhere(tx, bktResults, func(f result.Fact) string { return f.ID }, match)
		if err != nil {
			return err
		}
		for _, f := range deleted {
			if err = release(tx, bktResultsByKey, f.Key()); err != nil {
				return err
			}
		}
		n = len(deleted)
		return nil
	})
	return n, err
}
