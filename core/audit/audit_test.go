package audit

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
)

type logRecord struct {
	level, msg string
}

type loggerMock struct {
	mu      sync.Mutex
	records []logRecord
}

func (l *loggerMock) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, logRecord{level, msg})
}

func (l *loggerMock) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int
	for _, r := range l.records {
		if r.level == level {
			n++
		}
	}
	return n
}

func (l *loggerMock) Debug(msg string, _ ...interface{}) { l.log("debug", msg) }
func (l *loggerMock) Info(msg string, _ ...interface{})  { l.log("info", msg) }
func (l *loggerMock) Warn(msg string, _ ...interface{})  { l.log("warn", msg) }
func (l *loggerMock) Error(msg string, _ ...interface{}) { l.log("error", msg) }
func (l *loggerMock) Fatal(msg string, _ ...interface{}) { l.log("fatal", msg) }

type memRepo struct {
	mu      sync.Mutex
	entries []Entry
	fail    error
	block   chan struct{}
}

func (r *memRepo) CreateEntry(_ context.Context, e Entry) error {
	if r.block != nil {
		<-r.block
	}
	if r.fail != nil {
		return r.fail
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *memRepo) GetEntry(_ context.Context, id string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}

func (r *memRepo) QueryEntries(_ context.Context, f Filter, p core.Page) ([]Entry, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []Entry
	for _, e := range r.entries {
		if f.Match(e) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	start := p.Offset()
	if start > total {
		start = total
	}
	end := start + p.Size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *memRepo) CountEntries(_ context.Context, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, e := range r.entries {
		if !e.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) CountBy(_ context.Context, field GroupBy) ([]Count, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, e := range r.entries {
		if field == GroupByAction {
			counts[string(e.Action)]++
		} else {
			counts[string(e.TargetKind)]++
		}
	}
	res := make([]Count, 0, len(counts))
	for k, n := range counts {
		res = append(res, Count{Key: k, Count: n})
	}
	return res, nil
}

func (r *memRepo) DeleteEntriesBefore(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	var n int
	for _, e := range r.entries {
		if e.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return n, nil
}

func (r *memRepo) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

var admin = access.Caller{PersonID: "p-admin", Role: access.RoleAdmin, Origin: "10.0.0.1"}

func TestAsyncRecorder_Record(t *testing.T) {
	repo := new(memRepo)
	logger := new(loggerMock)
	rec := NewAsyncRecorder(repo, logger, RecorderOptions{Workers: 2, QueueSize: 16})

	for i := 0; i < 10; i++ {
		rec.Record(NewEntry(admin, ActionAddMarks, TargetResult, "r1", "added marks", nil))
	}
	require.NoError(t, rec.Close(context.Background()))

	assert.Equal(t, 10, repo.len())
	assert.Equal(t, 0, logger.count("error"))

	// closed recorders drop entries without panicking
	rec.Record(NewEntry(admin, ActionAddMarks, TargetResult, "r2", "late", nil))
	assert.Equal(t, 10, repo.len())
	assert.Equal(t, 1, logger.count("warn"))
}

func TestAsyncRecorder_FailuresAreSwallowed(t *testing.T) {
	repo := &memRepo{fail: errors.New("storage down")}
	logger := new(loggerMock)
	rec := NewAsyncRecorder(repo, logger, RecorderOptions{})

	rec.Record(NewEntry(admin, ActionAddMarks, TargetResult, "r1", "added marks", nil))
	require.NoError(t, rec.Close(context.Background()))

	assert.Equal(t, 0, repo.len())
	assert.Equal(t, 1, logger.count("error"))
}

func TestAsyncRecorder_NeverBlocks(t *testing.T) {
	repo := &memRepo{block: make(chan struct{})}
	logger := new(loggerMock)
	rec := NewAsyncRecorder(repo, logger, RecorderOptions{Workers: 1, QueueSize: 1})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			rec.Record(NewEntry(admin, ActionSendNotice, TargetNotice, "n1", "sent", nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record() blocked on a stalled store")
	}
	assert.GreaterOrEqual(t, logger.count("warn"), 3) // 1 in flight, 1 queued, the rest dropped

	close(repo.block)
	require.NoError(t, rec.Close(context.Background()))
}

func TestService_ListAndStats(t *testing.T) {
	repo := new(memRepo)
	logger := new(loggerMock)
	svc := NewService(repo, access.NewGuard(nil, nil), NewSyncRecorder(repo, logger))
	ctx := context.Background()

	now := time.Date(2026, 2, 27, 12, 0, 0, 0, time.UTC)
	NowFunc = func() time.Time { return now }
	defer func() { NowFunc = time.Now }()

	rec := NewSyncRecorder(repo, logger)
	old := NewEntry(admin, ActionCreateCourse, TargetCourse, "c1", "created course", nil)
	old.CreatedAt = now.Add(-48 * time.Hour)
	rec.Record(old)
	for i := 0; i < 3; i++ {
		rec.Record(NewEntry(admin, ActionAddMarks, TargetResult, "r1", "added marks", nil))
	}
	rec.Record(NewEntry(admin, ActionMarkAttendance, TargetAttendance, "a1", "marked", nil))

	t.Run("forbidden for non admins", func(t *testing.T) {
		ins := access.Caller{PersonID: "p-ins", Role: access.RoleInstructor}
		_, err := svc.List(ctx, ins, Filter{}, core.Page{})
		assert.True(t, core.IsForbidden(err))
		_, err = svc.Stats(ctx, ins)
		assert.True(t, core.IsForbidden(err))
		_, err = svc.Get(ctx, ins, old.ID)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("paged listing", func(t *testing.T) {
		page, err := svc.List(ctx, admin, Filter{}, core.Page{Number: 1, Size: 2})
		require.NoError(t, err)
		assert.Equal(t, 5, page.Total)
		assert.Equal(t, 3, page.TotalPages)
		assert.Len(t, page.Entries, 2)

		page, err = svc.List(ctx, admin, Filter{}, core.Page{})
		require.NoError(t, err)
		assert.Equal(t, core.DefaultPageSize, page.Limit)
		assert.Equal(t, 1, page.Page)
	})

	t.Run("filtered listing", func(t *testing.T) {
		page, err := svc.List(ctx, admin, Filter{Action: ActionAddMarks}, core.Page{})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)

		page, err = svc.List(ctx, admin, Filter{TargetKind: TargetCourse, ActorID: admin.PersonID}, core.Page{})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)

		_, err = svc.List(ctx, admin, Filter{Action: "HACK"}, core.Page{})
		assert.True(t, core.IsValidation(err))
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := svc.Stats(ctx, admin)
		require.NoError(t, err)
		assert.Equal(t, 5, stats.Total)
		assert.Equal(t, 4, stats.Last24Hours)
		require.NotEmpty(t, stats.ByAction)
		assert.Equal(t, Count{Key: string(ActionAddMarks), Count: 3}, stats.ByAction[0])
		assert.Equal(t, Count{Key: string(TargetResult), Count: 3}, stats.ByTarget[0])
	})

	t.Run("prune", func(t *testing.T) {
		n, err := svc.Prune(ctx, admin, now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		page, err := svc.List(ctx, admin, Filter{Action: ActionPruneAudit}, core.Page{})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)
	})
}
