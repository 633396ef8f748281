package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/poyrazK/dnsdiff/internal/core/domain"
	"github.com/poyrazK/dnsdiff/internal/core/ports"
	"github.com/poyrazK/dnsdiff/internal/dns/master"
	"github.com/poyrazK/dnsdiff/internal/dns/translate"
	"github.com/poyrazK/dnsdiff/internal/infrastructure/metrics"
)

const (
	translateLogEvery = 1000
	runLogEvery       = 25
)

// dnameUnsupported lists implementations that cannot load zones with DNAME
// records. They sit out tests whose zone has one.
var dnameUnsupported = map[string]bool{
	"yadifa":   true,
	"trustdns": true,
	"maradns":  true,
}

// Summary reports what a corpus pass did. Skipped maps test ids to the
// reason they were dropped.
type Summary struct {
	Processed   int
	Differences int
	Skipped     map[string]string
}

func newSummary() *Summary {
	return &Summary{Skipped: map[string]string{}}
}

// SkippedIDs returns the skipped test ids in corpus order.
func (s *Summary) SkippedIDs() []string {
	ids := make([]string, 0, len(s.Skipped))
	for id := range s.Skipped {
		ids = append(ids, id)
	}
	SortTestIDs(ids)
	return ids
}

// CorpusConfig configures a CorpusService.
type CorpusConfig struct {
	RunID            int
	Targets          []ports.Target
	TranslateOptions []translate.Option
}

// CorpusService drives translation, difference runs and clustering over a
// whole corpus. Failures of a single test are logged and skipped.
type CorpusService struct {
	store    ports.CorpusStore
	repo     ports.DifferenceRepository
	coord    ports.Coordinator
	recorder *Recorder
	cfg      CorpusConfig
	logger   *slog.Logger
}

func NewCorpusService(store ports.CorpusStore, repo ports.DifferenceRepository, coord ports.Coordinator,
	recorder *Recorder, cfg CorpusConfig, logger *slog.Logger) *CorpusService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CorpusService{store: store, repo: repo, coord: coord, recorder: recorder, cfg: cfg, logger: logger}
}

// TranslateCorpus translates every abstract test and stores the artifacts.
func (s *CorpusService) TranslateCorpus(ctx context.Context) (*Summary, error) {
	ids, err := s.store.ListAbstractTests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list abstract tests: %w", err)
	}
	SortTestIDs(ids)

	sum := newSummary()
	start := time.Now()
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := s.translateOne(ctx, id); err != nil {
			s.skip(sum, id, err)
		} else {
			sum.Processed++
		}
		if (i+1)%translateLogEvery == 0 {
			s.logger.Info("translated batch", "done", i+1, "total", len(ids), "elapsed", time.Since(start).String())
		}
	}
	s.logErrors(sum)
	return sum, nil
}

func (s *CorpusService) translateOne(ctx context.Context, id string) error {
	tc, err := s.store.LoadAbstractTest(ctx, id)
	if err != nil {
		return err
	}
	tc.ID = id
	tr, err := translate.Translate(tc, s.cfg.TranslateOptions...)
	if err != nil {
		return err
	}
	return s.store.SaveTranslation(ctx, tr)
}

// RunCorpus checks the translated tests in [start, end) of the numerically
// sorted corpus. end <= 0 means up to the last test.
func (s *CorpusService) RunCorpus(ctx context.Context, start, end int) (*Summary, error) {
	release, err := s.coord.Acquire(ctx, s.cfg.RunID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release run lock", "run", s.cfg.RunID, "error", err)
		}
	}()

	ids, err := s.store.ListZones(ctx)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	SortTestIDs(ids)
	ids = window(ids, start, end)

	sum := newSummary()
	timer := time.Now()
	batch := time.Now()
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		s.logger.Info("checking test", "test", id)
		n, err := s.runOne(ctx, id)
		switch {
		case err == nil:
			sum.Processed++
			sum.Differences += n
		case ctx.Err() != nil:
			return sum, ctx.Err()
		default:
			s.skip(sum, id, err)
		}
		if (i+1)%runLogEvery == 0 {
			s.logger.Info("batch timing", "from", start+i+1-runLogEvery, "to", start+i+1, "elapsed", time.Since(batch).String())
			batch = time.Now()
		}
	}
	s.logger.Info("run finished", "tests", len(ids), "differences", sum.Differences, "elapsed", time.Since(timer).String())
	s.logErrors(sum)
	return sum, nil
}

func (s *CorpusService) runOne(ctx context.Context, id string) (int, error) {
	zoneFile := s.store.ZonePath(id)
	zone, err := master.InspectFile(zoneFile)
	if err != nil {
		return 0, err
	}

	targets := s.cfg.Targets
	if zone.HasDNAME {
		targets = make([]ports.Target, 0, len(s.cfg.Targets))
		for _, t := range s.cfg.Targets {
			if !dnameUnsupported[t.Name] {
				targets = append(targets, t)
			}
		}
	}
	if len(targets) == 0 {
		return 0, errors.New("no implementation supports the zone")
	}

	var queries []domain.QueryEntry
	if len(targets) == 1 {
		queries, err = s.store.LoadExpectedResponses(ctx, id)
	} else {
		queries, err = s.store.LoadQueries(ctx, id)
	}
	if err != nil {
		return 0, err
	}
	for _, q := range queries {
		if err := domain.ValidateQuery(q.Query); err != nil {
			return 0, err
		}
	}

	diffs, err := s.recorder.RecordDifferences(ctx, TestRun{
		TestID:   id,
		ZoneFile: zoneFile,
		Origin:   zone.Origin,
		Queries:  queries,
		Targets:  targets,
	})
	if err != nil {
		return 0, err
	}
	if len(diffs) == 0 {
		// clears the report of an earlier run
		if err := s.repo.SaveDifferences(ctx, id, nil); err != nil {
			return 0, fmt.Errorf("clear differences: %w", err)
		}
		return 0, nil
	}

	reports := make([]domain.DifferenceReport, 0, len(diffs))
	for _, d := range diffs {
		reports = append(reports, d.Report())
	}
	if err := s.repo.SaveDifferences(ctx, id, reports); err != nil {
		return 0, fmt.Errorf("save differences: %w", err)
	}
	metrics.DifferencesTotal.Add(float64(len(reports)))
	if err := s.coord.PublishDifferences(ctx, id, reports); err != nil {
		s.logger.Warn("failed to publish differences", "test", id, "error", err)
	}
	return len(reports), nil
}

// Clusters computes the fingerprint report of the recorded differences.
func (s *CorpusService) Clusters(ctx context.Context) (domain.ClusterReport, error) {
	corpus, err := s.repo.ListDifferences(ctx)
	if err != nil {
		return domain.ClusterReport{}, fmt.Errorf("list differences: %w", err)
	}
	tags, err := s.store.LoadModelTags(ctx)
	if err != nil {
		return domain.ClusterReport{}, fmt.Errorf("load model tags: %w", err)
	}
	return Cluster(corpus, tags)
}

// ClusterCorpus computes the fingerprint report and stores it.
func (s *CorpusService) ClusterCorpus(ctx context.Context) (domain.ClusterReport, error) {
	report, err := s.Clusters(ctx)
	if err != nil {
		return report, err
	}
	if err := s.store.SaveClusters(ctx, report); err != nil {
		return report, fmt.Errorf("save clusters: %w", err)
	}
	s.logger.Info("clustered differences", "fingerprints", len(report.Summary))
	return report, nil
}

func (s *CorpusService) skip(sum *Summary, id string, err error) {
	sum.Skipped[id] = err.Error()
	metrics.TestsSkipped.WithLabelValues(skipReason(err)).Inc()
	s.logger.Warn("skipping test", "test", id, "error", err)
}

func (s *CorpusService) logErrors(sum *Summary) {
	if len(sum.Skipped) == 0 {
		return
	}
	for _, id := range sum.SkippedIDs() {
		s.logger.Error("skipped", "test", id, "reason", sum.Skipped[id])
	}
	s.logger.Error("tests skipped", "count", len(sum.Skipped))
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyZone):
		return "empty_zone"
	case errors.Is(err, domain.ErrMissingSOA):
		return "missing_soa"
	case errors.Is(err, domain.ErrNoQueries):
		return "no_queries"
	case errors.Is(err, domain.ErrUnknownType), errors.Is(err, domain.ErrNameTooDeep), errors.Is(err, domain.ErrNoDNAME):
		return "translation"
	}
	return "error"
}

// SortTestIDs orders ids numerically; non-numeric ids follow in lexical
// order.
func SortTestIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return ids[i] < ids[j]
	})
}

func window(ids []string, start, end int) []string {
	if start < 0 {
		start = 0
	}
	if end <= 0 || end > len(ids) {
		end = len(ids)
	}
	if start >= end {
		return nil
	}
	return ids[start:end]
}
