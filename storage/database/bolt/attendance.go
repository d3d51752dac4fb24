package boltdb

import (
	"context"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/trezcool/daftari/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo attendanceRepository) CreateFact(_ context.Context, f attendance.Fact) (attendance.Fact, error) {
	err := repo.db.update(func(tx *bbolt.Tx) error {
		if err := claim(tx, bktAttendanceByKey, f.Key(), f.ID, attendance.ErrAlreadyMarked); err != nil {
			return err
		}
		return put(tx, bktAttendance, f.ID, f)
	})
	if err != nil {
		return attendance.Fact{}, err
	}
	return f, nil
}

// UpsertFact runs in one write transaction, so concurrent upserts of a key serialize.
func (repo attendanceRepository) UpsertFact(_ context.Context, f attendance.Fact) (attendance.Fact, error) {
	err := repo.db.update(func(tx *bbolt.Tx) error {
		if id := lookup(tx, bktAttendanceByKey, f.Key()); id != "" {
			stored, err := get[attendance.Fact](tx, bktAttendance, id, attendance.ErrNotFound)
			if err != nil {
				return err
			}
			stored.Status = f.Status
			stored.MarkedBy = f.MarkedBy
			stored.UpdatedAt = f.UpdatedAt
			f = stored
			return put(tx, bktAttendance, f.ID, f)
		}
		if err := claim(tx, bktAttendanceByKey, f.Key(), f.ID, attendance.ErrAlreadyMarked); err != nil {
			return err
		}
		return put(tx, bktAttendance, f.ID, f)
	})
	if err != nil {
		return attendance.Fact{}, err
	}
	return f, nil
}

func (repo attendanceRepository) GetFact(_ context.Context, id string) (f attendance.Fact, err error) {
	err = repo.db.view(func(tx *bbolt.Tx) error {
		f, err = get[attendance.Fact](tx, bktAttendance, id, attendance.ErrNotFound)
		return err
	})
	return f, err
}

// UpdateFact only changes the status and marker; the key of a fact is immutable.
func (repo attendanceRepository) UpdateFact(_ context.Context, f attendance.Fact) (attendance.Fact, error) {
	err := repo.db.update(func(tx *bbolt.Tx) error {
		stored, err := get[attendance.Fact](tx, bktAttendance, f.ID, attendance.ErrNotFound)
		if err != nil {
			return err
		}
		stored.Status = f.Status
		stored.MarkedBy = f.MarkedBy
		stored.UpdatedAt = f.UpdatedAt
		f = stored
		return put(tx, bktAttendance, f.ID, f)
	})
	if err != nil {
		return attendance.Fact{}, err
	}
	return f, nil
}

func (repo attendanceRepository) DeleteFact(_ context.Context, id string) error {
	return repo.db.update(func(tx *bbolt.Tx) error {
		f, err := get[attendance.Fact](tx, bktAttendance, id, attendance.ErrNotFound)
		if err != nil {
			return err
		}
		if err = release(tx, bktAttendanceByKey, f.Key()); err != nil {
			return err
		}
		return del(tx, bktAttendance, id)
	})
}

func (repo attendanceRepository) QueryFacts(_ context.Context, f attendance.Filter) (facts []attendance.Fact, err error) {
	err = repo.db.view(func(tx *bbolt.Tx) error {
		facts, err = scan(tx, bktAttendance, f.Match)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(facts, func(i, j int) bool {
		if !facts[i].Date.Equal(facts[j].Date) {
			return facts[i].Date.Before(facts[j].Date)
		}
		if facts[i].CourseID != facts[j].CourseID {
			return facts[i].CourseID < facts[j].CourseID
		}
		return facts[i].EnrolleeID < facts[j].EnrolleeID
	})
	return facts, nil
}

func (repo attendanceRepository) DeleteByEnrollee(_ context.Context, enrolleeID string) (int, error) {
	return repo.deleteWhere(func(f attendance.Fact) bool { return f.EnrolleeID == enrolleeID })
}

func (repo attendanceRepository) DeleteByCourse(_ context.Context, courseID string) (int, error) {
	return repo.deleteWhere(func(f attendance.Fact) bool { return f.CourseID == courseID })
}

func (repo attendanceRepository) deleteWhere(match func(attendance.Fact) bool) (n int, err error) {
	err = repo.db.update(func(tx *bbolt.Tx) error {
		deleted, err := deleteWhere(tx, bktAttendance, func(f attendance.Fact) string { return f.ID }, match)
		if err != nil {
			return err
		}
		for _, f := range deleted {
			if err = release(tx, bktAttendanceByKey, f.Key()); err != nil {
				return err
			}
		}
		n = len(deleted)
		return nil
	})
	return n, err
}
