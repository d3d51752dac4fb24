package audit

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
)

var ErrNotFound = core.NewNotFoundError("audit entry not found")

type Repository interface {
	CreateEntry(ctx context.Context, e Entry) error
	GetEntry(ctx context.Context, id string) (Entry, error)
	// QueryEntries returns one page of matching entries and the total number of matches.
	QueryEntries(ctx context.Context, f Filter, p core.Page) ([]Entry, int, error)
	// CountEntries counts entries created at or after since; a zero since counts everything.
	CountEntries(ctx context.Context, since time.Time) (int, error)
	CountBy(ctx context.Context, field GroupBy) ([]Count, error)
	DeleteEntriesBefore(ctx context.Context, before time.Time) (int, error)
}

// Service serves the audit trail to administrators.
type Service struct {
	repo     Repository
	guard    *access.Guard
	recorder Recorder
}

func NewService(repo Repository, guard *access.Guard, recorder Recorder) *Service {
	return &Service{repo: repo, guard: guard, recorder: recorder}
}

func (svc *Service) List(ctx context.Context, caller access.Caller, f Filter, p core.Page) (EntryPage, error) {
	if err := svc.guard.Authorize(ctx, caller, access.Administer, access.Target{}); err != nil {
		return EntryPage{}, err
	}
	if err := f.clean(); err != nil {
		return EntryPage{}, err
	}
	p = p.Normalize()

	entries, total, err := svc.repo.QueryEntries(ctx, f, p)
	if err != nil {
		return EntryPage{}, errors.Wrap(err, "querying audit entries")
	}
	if entries == nil {
		entries = []Entry{}
	}
	return EntryPage{
		Entries:    entries,
		Total:      total,
		Page:       p.Number,
		Limit:      p.Size,
		TotalPages: p.TotalPages(total),
	}, nil
}

func (svc *Service) Get(ctx context.Context, caller access.Caller, id string) (Entry, error) {
	if err := svc.guard.Authorize(ctx, caller, access.Administer, access.Target{}); err != nil {
		return Entry{}, access.Conceal(err, ErrNotFound)
	}
	return svc.repo.GetEntry(ctx, id)
}

// Stats aggregates the trail for dashboards. Counts are sorted by count, highest first.
func (svc *Service) Stats(ctx context.Context, caller access.Caller) (Stats, error) {
	if err := svc.guard.Authorize(ctx, caller, access.Administer, access.Target{}); err != nil {
		return Stats{}, err
	}

	var (
		stats Stats
		err   error
	)
	if stats.Total, err = svc.repo.CountEntries(ctx, time.Time{}); err != nil {
		return Stats{}, errors.Wrap(err, "counting audit entries")
	}
	since := NowFunc().UTC().Add(-24 * time.Hour)
	if stats.Last24Hours, err = svc.repo.CountEntries(ctx, since); err != nil {
		return Stats{}, errors.Wrap(err, "counting recent audit entries")
	}
	if stats.ByAction, err = svc.repo.CountBy(ctx, GroupByAction); err != nil {
		return Stats{}, errors.Wrap(err, "counting audit entries by action")
	}
	if stats.ByTarget, err = svc.repo.CountBy(ctx, GroupByTarget); err != nil {
		return Stats{}, errors.Wrap(err, "counting audit entries by target")
	}
	sortCounts(stats.ByAction)
	sortCounts(stats.ByTarget)
	return stats, nil
}

// Prune deletes entries created before the given time.
func (svc *Service) Prune(ctx context.Context, caller access.Caller, before time.Time) (int, error) {
	if err := svc.guard.Authorize(ctx, caller, access.Administer, access.Target{}); err != nil {
		return 0, err
	}
	n, err := svc.repo.DeleteEntriesBefore(ctx, before)
	if err != nil {
		return 0, errors.Wrap(err, "pruning audit entries")
	}
	svc.recorder.Record(NewEntry(caller, ActionPruneAudit, TargetAudit, "", "pruned audit trail", Details{
		"before":  before,
		"deleted": n,
	}))
	return n, nil
}

func sortCounts(counts []Count) {
	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Key < counts[j].Key
	})
}
