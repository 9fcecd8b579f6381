package bulk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jotishBolds/sbte-import-service/internal/logger"
	"github.com/jotishBolds/sbte-import-service/pkg/errors"
)

// Options tune a batch run. BatchSize is both the chunk length and the
// concurrency bound: a chunk's operations all run at once and the next chunk
// starts only after the previous one settled. RetryDelay is a fixed wait
// between attempts; an item is tried RetryAttempts+1 times in total.
type Options struct {
	BatchSize       int
	ContinueOnError bool
	RetryAttempts   int
	RetryDelay      time.Duration
}

const defaultBatchSize = 20

// Operation processes one item; index is the item's position in the
// original slice.
type Operation[T, R any] func(ctx context.Context, item T, index int) (R, error)

// ItemError records one item that exhausted its retries.
type ItemError struct {
	Index int    `json:"id"`
	Error string `json:"error"`
}

// Result reports a batch run. Results and OK are indexed by original item
// position; OK marks which slots hold a real result.
type Result[R any] struct {
	Results   []R
	OK        []bool
	Processed int
	Failed    int
	Details   []ItemError
}

// Process drives op over items in sequential chunks, all items of a chunk
// concurrently. Item failures are retried with a fixed delay; an item that
// exhausts its retries is recorded once in Details. With ContinueOnError
// the run carries on past failed items, otherwise Process returns an error
// as soon as the failing chunk has settled.
func Process[T, R any](ctx context.Context, items []T, op Operation[T, R], opts Options) (*Result[R], error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	log := logger.Get()
	result := &Result[R]{
		Results: make([]R, len(items)),
		OK:      make([]bool, len(items)),
	}

	for start := 0; start < len(items); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		var mu sync.Mutex

		for i := start; i < end; i++ {
			wg.Add(1)
			go func(index int, item T) {
				defer wg.Done()

				res, err := runWithRetry(ctx, item, index, op, opts)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Failed++
					result.Details = append(result.Details, ItemError{
						Index: index,
						Error: err.Error(),
					})
					return
				}
				result.Results[index] = res
				result.OK[index] = true
				result.Processed++
			}(i, items[i])
		}

		wg.Wait()

		if result.Failed > 0 && !opts.ContinueOnError {
			first := result.Details[0]
			return result, fmt.Errorf("batch aborted at item %d: %s", first.Index, first.Error)
		}

		if err := ctx.Err(); err != nil {
			return result, err
		}

		log.Debug().
			Int("completed", end).
			Int("total", len(items)).
			Int("failed", result.Failed).
			Msg("Batch chunk settled")
	}

	return result, nil
}

func runWithRetry[T, R any](ctx context.Context, item T, index int, op Operation[T, R], opts Options) (R, error) {
	var lastErr error
	var zero R

	attempts := opts.RetryAttempts + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(opts.RetryDelay):
			}
		}

		res, err := op(ctx, item, index)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}

	return zero, lastErr
}

// InsertOptions extend Options with duplicate-key handling.
type InsertOptions struct {
	Options
	// IgnoreDuplicates treats a duplicate-key failure as success and keeps
	// the original item as the result.
	IgnoreDuplicates bool
	// UpdateOnDuplicate re-invokes the same insert function on a duplicate.
	// True upsert logic is the insert function's responsibility.
	UpdateOnDuplicate bool
}

// Insert runs insertFn over items with duplicate-tolerant semantics.
func Insert[T any](ctx context.Context, items []T, insertFn func(ctx context.Context, item T) (T, error), opts InsertOptions) (*Result[T], error) {
	op := func(ctx context.Context, item T, index int) (T, error) {
		res, err := insertFn(ctx, item)
		if err == nil {
			return res, nil
		}
		if errors.IsDuplicate(err) {
			if opts.IgnoreDuplicates {
				return item, nil
			}
			if opts.UpdateOnDuplicate {
				return insertFn(ctx, item)
			}
		}
		return res, err
	}
	return Process(ctx, items, op, opts.Options)
}

// UpdateOptions extend Options with an optional required-field pre-check.
// Fields extracts a field map from an item so the check can run over any
// item type.
type UpdateOptions[T any] struct {
	Options
	RequiredFields []string
	Fields         func(T) map[string]interface{}
}

// Update pre-validates required fields across every item, then runs
// updateFn with the usual batching discipline. A single missing field
// fails the whole call before any update is issued.
func Update[T any](ctx context.Context, items []T, updateFn func(ctx context.Context, item T) (T, error), opts UpdateOptions[T]) (*Result[T], error) {
	if len(opts.RequiredFields) > 0 && opts.Fields != nil {
		for i, item := range items {
			fields := opts.Fields(item)
			for _, name := range opts.RequiredFields {
				if v, ok := fields[name]; !ok || v == nil {
					return nil, errors.ValidationError{
						Field:   name,
						Value:   nil,
						Message: fmt.Sprintf("missing on item %d", i),
					}
				}
			}
		}
	}

	op := func(ctx context.Context, item T, index int) (T, error) {
		return updateFn(ctx, item)
	}
	return Process(ctx, items, op, opts.Options)
}

// Delete runs deleteFn over items with the usual batching discipline.
func Delete[T any](ctx context.Context, items []T, deleteFn func(ctx context.Context, item T) error, opts Options) (*Result[T], error) {
	op := func(ctx context.Context, item T, index int) (T, error) {
		return item, deleteFn(ctx, item)
	}
	return Process(ctx, items, op, opts)
}
