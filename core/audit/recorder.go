package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/daftari/core"
)

var NowFunc = time.Now // mockable

// Recorder takes audit entries without ever failing or blocking its caller.
type Recorder interface {
	Record(e Entry)
}

type RecorderOptions struct {
	Workers      int
	QueueSize    int
	WriteTimeout time.Duration
}

// AsyncRecorder writes entries from a bounded queue on background workers.
// A full queue drops the entry; write failures are logged and swallowed.
type AsyncRecorder struct {
	repo    Repository
	logger  core.Logger
	timeout time.Duration

	mu      sync.RWMutex
	stopped bool
	queue   chan Entry
	wg      sync.WaitGroup
	once    sync.Once
}

var _ Recorder = (*AsyncRecorder)(nil)

func NewAsyncRecorder(repo Repository, logger core.Logger, opts RecorderOptions) *AsyncRecorder {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 256
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	r := &AsyncRecorder{
		repo:    repo,
		logger:  logger,
		timeout: opts.WriteTimeout,
		queue:   make(chan Entry, opts.QueueSize),
	}
	r.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go r.work()
	}
	return r
}

func (r *AsyncRecorder) Record(e Entry) {
	e = prepare(e)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		r.logger.Warn("audit recorder stopped, entry dropped", describe(e))
		return
	}
	select {
	case r.queue <- e:
	default:
		r.logger.Warn("audit queue full, entry dropped", describe(e))
	}
}

// Close stops taking entries and waits for the queued ones to be written, or for ctx to be done.
func (r *AsyncRecorder) Close(ctx context.Context) error {
	r.once.Do(func() {
		r.mu.Lock()
		r.stopped = true
		close(r.queue)
		r.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *AsyncRecorder) work() {
	defer r.wg.Done()
	for e := range r.queue {
		write(r.repo, r.logger, r.timeout, e)
	}
}

// SyncRecorder writes entries inline, still swallowing failures. Used by tools and tests.
type SyncRecorder struct {
	repo    Repository
	logger  core.Logger
	timeout time.Duration
}

var _ Recorder = (*SyncRecorder)(nil)

func NewSyncRecorder(repo Repository, logger core.Logger) *SyncRecorder {
	return &SyncRecorder{repo: repo, logger: logger, timeout: 5 * time.Second}
}

func (r *SyncRecorder) Record(e Entry) {
	write(r.repo, r.logger, r.timeout, prepare(e))
}

func prepare(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = NowFunc().UTC()
	}
	return e
}

// write runs detached from any request: the caller's context may already be canceled.
func write(repo Repository, logger core.Logger, timeout time.Duration, e Entry) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("audit write panicked", fmt.Errorf("%v", p), describe(e))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := repo.CreateEntry(ctx, e); err != nil {
		logger.Error("writing audit entry", err, describe(e))
	}
}

func describe(e Entry) map[string]interface{} {
	return map[string]interface{}{
		"action":      e.Action,
		"actor_id":    e.ActorID,
		"target_kind": e.TargetKind,
		"target_id":   e.TargetID,
	}
}

// Discard drops every entry.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(Entry) {}
