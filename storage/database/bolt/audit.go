package boltdb

import (
	"context"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/audit"
)

type auditRepository struct {
	db *DB
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *DB) *auditRepository {
	return &auditRepository{db: db}
}

func (repo auditRepository) CreateEntry(_ context.Context, e audit.Entry) error {
	return repo.db.update(func(tx *bbolt.Tx) error {
		return put(tx, bktAudit, e.ID, e)
	})
}

func (repo auditRepository) GetEntry(_ context.Context, id string) (e audit.Entry, err error) {
	err = repo.db.view(func(tx *bbolt.Tx) error {
		e, err = get[audit.Entry](tx, bktAudit, id, audit.ErrNotFound)
		return err
	})
	return e, err
}

func (repo auditRepository) QueryEntries(_ context.Context, f audit.Filter, p core.Page) ([]audit.Entry, int, error) {
	var entries []audit.Entry
	err := repo.db.view(func(tx *bbolt.Tx) (err error) {
		entries, err = scan(tx, bktAudit, f.Match)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	sortEntries(entries, f.Ordering)
	total := len(entries)
	start := p.Offset()
	if start >= total {
		return []audit.Entry{}, total, nil
	}
	end := start + p.Size
	if end > total {
		end = total
	}
	return entries[start:end], total, nil
}

func sortEntries(entries []audit.Entry, ord core.DBOrdering) {
	less := func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) }
	if ord.Field == audit.OrderAction {
		less = func(i, j int) bool {
			if entries[i].Action != entries[j].Action {
				return entries[i].Action < entries[j].Action
			}
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
	}
	if ord.Ascending {
		sort.SliceStable(entries, less)
		return
	}
	sort.SliceStable(entries, func(i, j int) bool { return less(j, i) })
}

func (repo auditRepository) CountEntries(_ context.Context, since time.Time) (n int, err error) {
	err = repo.db.view(func(tx *bbolt.Tx) error {
		entries, err := scan(tx, bktAudit, func(e audit.Entry) bool { return !e.CreatedAt.Before(since) })
		n = len(entries)
		return err
	})
	return n, err
}

func (repo auditRepository) CountBy(_ context.Context, field audit.GroupBy) ([]audit.Count, error) {
	var entries []audit.Entry
	err := repo.db.view(func(tx *bbolt.Tx) (err error) {
		entries, err = scan[audit.Entry](tx, bktAudit, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, e := range entries {
		key := string(e.Action)
		if field == audit.GroupByTarget {
			key = string(e.TargetKind)
		}
		counts[key]++
	}
	out := make([]audit.Count, 0, len(counts))
	for key, n := range counts {
		out = append(out, audit.Count{Key: key, Count: n})
	}
	return out, nil
}

func (repo auditRepository) DeleteEntriesBefore(_ context.Context, before time.Time) (n int, err error) {
	err = repo.db.update(func(tx *bbolt.Tx) error {
		deleted, err := deleteWhere(tx, bktAudit, func(e audit.Entry) string { return e.ID },
			func(e audit.Entry) bool { return e.CreatedAt.Before(before) })
		n = len(deleted)
		return err
	})
	return n, err
}
