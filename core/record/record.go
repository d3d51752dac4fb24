// Package record holds the vocabulary shared by the fact stores: conflict policies and bulk results.
package record

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/trezcool/daftari/core"
)

// Policy decides what happens when a fact already exists for a key.
type Policy int

const (
	// Reject fails the write with a ConflictError.
	Reject Policy = iota
	// Upsert overwrites the stored fact, last write wins.
	Upsert
)

func (p Policy) String() string {
	if p == Upsert {
		return "upsert"
	}
	return "reject"
}

// Key joins the parts of a uniqueness key: "enrollee|course|2026-02-27".
func Key(parts ...string) string {
	return strings.Join(parts, "|")
}

// KeyError is the failure of one key of a bulk write.
type KeyError struct {
	Key   string `json:"key"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
	Err   error  `json:"-"`
}

// BulkResult is the terminal state of a bulk write: some keys may have failed while others were applied.
type BulkResult struct {
	Applied int        `json:"applied"`
	Failed  []KeyError `json:"failed,omitempty"`
}

func (r BulkResult) OK() bool {
	return len(r.Failed) == 0
}

func (r BulkResult) String() string {
	return fmt.Sprintf("%d of %d applied", r.Applied, r.Applied+len(r.Failed))
}

// DefaultWorkers bounds the per-key fan-out of ApplyBulk.
const DefaultWorkers = 8

// ApplyBulk runs fn for every key with at most workers calls in flight.
// Keys are independent: a failing key never stops the others, and failures are reported in input order.
func ApplyBulk(ctx context.Context, workers int, keys []string, fn func(ctx context.Context, i int) error) BulkResult {
	if workers < 1 {
		workers = DefaultWorkers
	}
	errs := make([]error, len(keys))

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range keys {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			errs[i] = fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()

	var res BulkResult
	for i, err := range errs {
		if err == nil {
			res.Applied++
			continue
		}
		res.Failed = append(res.Failed, NewKeyError(keys[i], err))
	}
	return res
}

func NewKeyError(key string, err error) KeyError {
	return KeyError{Key: key, Kind: core.Kind(err), Error: err.Error(), Err: err}
}

// Merge adds failures detected before the writes (e.g. validation) to r.
func (r BulkResult) Merge(failed ...KeyError) BulkResult {
	r.Failed = append(r.Failed, failed...)
	return r
}
