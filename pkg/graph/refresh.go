package graph

import (
	"context"
	"time"

	"github.com/minitru/bunnyAI/internal/util"
	"github.com/minitru/bunnyAI/pkg/analysis"
	"github.com/minitru/bunnyAI/pkg/common"
	"github.com/minitru/bunnyAI/pkg/logger"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

const DefaultRefreshTimeout = 10 * time.Minute

// Refresher runs forced regenerations one at a time, each bounded by a
// timeout that includes the wait for the worker. Concurrent requests for
// the same artifact share one run.
type Refresher struct {
	extractor *Extractor
	builder   *analysis.Builder
	timeout   time.Duration

	worker *semaphore.Weighted
	flight singleflight.Group
}

func NewRefresher(extractor *Extractor, builder *analysis.Builder, timeout time.Duration) *Refresher {
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	return &Refresher{
		extractor: extractor,
		builder:   builder,
		timeout:   timeout,
		worker:    semaphore.NewWeighted(1),
	}
}

// Refresh re-extracts the knowledge graph of bookID. An exhausted budget
// yields *common.TimeoutError.
func (r *Refresher) Refresh(ctx context.Context, bookID string) (common.KnowledgeGraph, error) {
	return util.Shared(ctx, &r.flight, "kg/"+bookID, func(ctx context.Context) (common.KnowledgeGraph, error) {
		return run(ctx, r, "refresh knowledge graph", func(ctx context.Context) (common.KnowledgeGraph, error) {
			return r.extractor.ExtractBook(ctx, bookID, true)
		})
	})
}

// RefreshAnalysis regenerates the book analysis of bookID.
func (r *Refresher) RefreshAnalysis(ctx context.Context, bookID string) (common.BookAnalysis, error) {
	return util.Shared(ctx, &r.flight, "analysis/"+bookID, func(ctx context.Context) (common.BookAnalysis, error) {
		return run(ctx, r, "refresh book analysis", func(ctx context.Context) (common.BookAnalysis, error) {
			return r.builder.Analyze(ctx, bookID, true)
		})
	})
}

func run[T any](ctx context.Context, r *Refresher, op string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	res, err := util.RunWithTimeout(ctx, op, r.timeout, func(ctx context.Context) (T, error) {
		var zero T
		if err := r.worker.Acquire(ctx, 1); err != nil {
			return zero, err
		}
		defer r.worker.Release(1)
		return fn(ctx)
	})
	if err != nil {
		logger.Warn("[Graph] refresh failed", "op", op, "duration", time.Since(start), "err", err)
		return res, err
	}
	logger.Info("[Graph] refresh finished", "op", op, "duration", time.Since(start))
	return res, nil
}
