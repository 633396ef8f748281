package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poyrazK/dnsdiff/internal/core/domain"
	"github.com/poyrazK/dnsdiff/internal/core/ports"
	"github.com/poyrazK/dnsdiff/internal/dns/equivalence"
	"github.com/poyrazK/dnsdiff/internal/dns/msgtext"
	"github.com/poyrazK/dnsdiff/internal/infrastructure/metrics"
	"golang.org/x/sync/errgroup"
)

// DefaultRetryDelay is the pause between a forced restart and the retry.
const DefaultRetryDelay = time.Second

// TestRun is everything needed to check one translated test.
type TestRun struct {
	TestID   string
	ZoneFile string
	Origin   string
	Queries  []domain.QueryEntry
	Targets  []ports.Target
}

// Recorder runs the queries of a test against every target and records the
// queries on which the targets disagree.
type Recorder struct {
	querier    ports.Querier
	logger     *slog.Logger
	retryDelay time.Duration
}

// NewRecorder creates a Recorder. A nil logger falls back to slog.Default().
func NewRecorder(q ports.Querier, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{querier: q, logger: logger, retryDelay: DefaultRetryDelay}
}

// SetRetryDelay overrides DefaultRetryDelay.
func (r *Recorder) SetRetryDelay(d time.Duration) {
	r.retryDelay = d
}

// RecordDifferences prepares every target, dispatches each query to all of
// them and groups the responses. With a single target the expected
// responses stored with each query take part as extra sources. The returned
// list is complete or, on error, nil.
func (r *Recorder) RecordDifferences(ctx context.Context, run TestRun) ([]domain.Difference, error) {
	if len(run.Queries) == 0 {
		return nil, domain.ErrNoQueries
	}

	if err := r.prepare(ctx, run, run.Targets, false); err != nil {
		return nil, err
	}

	var diffs []domain.Difference
	for _, entry := range run.Queries {
		observations, err := r.dispatch(ctx, run, entry.Query)
		if err != nil {
			return nil, err
		}
		if len(run.Targets) == 1 {
			expected, err := expectedObservations(entry)
			if err != nil {
				return nil, fmt.Errorf("expected response for %s: %w", entry.Query.Key(), err)
			}
			observations = append(observations, expected...)
		}

		groups := equivalence.Group(observations)
		if len(groups) > 1 {
			diffs = append(diffs, domain.Difference{Query: entry.Query, Groups: groups})
		}
	}
	return diffs, nil
}

// prepare is the preparation barrier: one worker per target, all joined
// before returning. Driver failures are logged and surface later as
// missing responses.
func (r *Recorder) prepare(ctx context.Context, run TestRun, targets []ports.Target, force bool) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range targets {
		g.Go(func() error {
			metrics.ActiveWorkers.Inc()
			defer metrics.ActiveWorkers.Dec()
			r.ensure(gctx, run, t, force)
			return gctx.Err()
		})
	}
	return g.Wait()
}

func (r *Recorder) ensure(ctx context.Context, run TestRun, t ports.Target, force bool) {
	err := t.Driver.EnsureServing(ctx, ports.ServeRequest{
		ZoneFile:     run.ZoneFile,
		Origin:       run.Origin,
		Container:    t.Container,
		Port:         t.Port,
		ForceRestart: force,
	})
	if err != nil {
		r.logger.Warn("server not prepared", "implementation", t.Name, "test", run.TestID, "error", err)
	}
}

// dispatch is the dispatch barrier for one query. Each worker writes only
// its own slot.
func (r *Recorder) dispatch(ctx context.Context, run TestRun, q domain.Query) ([]domain.Observation, error) {
	observations := make([]domain.Observation, len(run.Targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range run.Targets {
		g.Go(func() error {
			metrics.ActiveWorkers.Inc()
			defer metrics.ActiveWorkers.Dec()

			resp := r.querier.Dispatch(gctx, t.Name, t.Port, q)
			if !resp.IsMessage() {
				resp = r.retry(gctx, run, t, q)
			}
			observations[i] = domain.Observation{Source: t.Name, Response: resp}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return observations, nil
}

// retry restarts the target's server once and asks again.
func (r *Recorder) retry(ctx context.Context, run TestRun, t ports.Target, q domain.Query) domain.ObservedResponse {
	r.ensure(ctx, run, t, true)
	metrics.ServerRestarts.WithLabelValues(t.Name).Inc()
	r.logger.Info("restarted server", "implementation", t.Name, "test", run.TestID)

	select {
	case <-ctx.Done():
		return domain.NoResponse()
	case <-time.After(r.retryDelay):
	}
	return r.querier.Dispatch(ctx, t.Name, t.Port, q)
}

func expectedObservations(entry domain.QueryEntry) ([]domain.Observation, error) {
	out := make([]domain.Observation, 0, len(entry.ExpectedResponses))
	for _, exp := range entry.ExpectedResponses {
		msg, err := msgtext.Parse(exp.Response)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Observation{Source: exp.Servers, Response: domain.MessageResponse(msg)})
	}
	return out, nil
}
