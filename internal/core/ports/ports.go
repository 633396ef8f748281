package ports

import (
	"context"

	"github.com/poyrazK/dnsdiff/internal/core/domain"
)

// ServeRequest asks a driver to serve one zone file.
type ServeRequest struct {
	ZoneFile     string
	Origin       string
	Container    string
	Port         int
	ForceRestart bool
}

// ServerDriver keeps one implementation's server running. After
// EnsureServing returns nil the server answers queries for the zone on the
// requested host port.
type ServerDriver interface {
	EnsureServing(ctx context.Context, req ServeRequest) error
	Stop(ctx context.Context) error
}

// Target is one implementation under test, resolved once at startup.
type Target struct {
	Name      string
	Port      int
	Container string
	Driver    ServerDriver
}

type Querier interface {
	Dispatch(ctx context.Context, impl string, port int, q domain.Query) domain.ObservedResponse
}

type DifferenceRepository interface {
	SaveDifferences(ctx context.Context, testID string, diffs []domain.DifferenceReport) error
	GetDifferences(ctx context.Context, testID string) ([]domain.DifferenceReport, error)
	ListDifferences(ctx context.Context) ([]domain.TestDifferences, error)
	Ping(ctx context.Context) error
}

// CorpusStore gives access to the artifacts of one test corpus directory.
type CorpusStore interface {
	ListAbstractTests(ctx context.Context) ([]string, error)
	LoadAbstractTest(ctx context.Context, testID string) (*domain.TestCase, error)
	SaveTranslation(ctx context.Context, t *domain.Translation) error
	ListZones(ctx context.Context) ([]string, error)
	ZonePath(testID string) string
	LoadQueries(ctx context.Context, testID string) ([]domain.QueryEntry, error)
	LoadExpectedResponses(ctx context.Context, testID string) ([]domain.QueryEntry, error)
	LoadModelTags(ctx context.Context) (domain.ModelTags, error)
	SaveClusters(ctx context.Context, report domain.ClusterReport) error
}

// Coordinator serializes runs that share a run identifier across processes
// and announces recorded differences.
type Coordinator interface {
	Acquire(ctx context.Context, runID int) (release func(context.Context) error, err error)
	PublishDifferences(ctx context.Context, testID string, diffs []domain.DifferenceReport) error
	Ping(ctx context.Context) error
}
