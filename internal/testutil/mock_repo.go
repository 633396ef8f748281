package testutil

import (
	"context"

	"github.com/poyrazK/dnsdiff/internal/core/domain"
	"github.com/poyrazK/dnsdiff/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

type MockDifferenceRepo struct {
	mock.Mock
}

func (m *MockDifferenceRepo) SaveDifferences(ctx context.Context, testID string, diffs []domain.DifferenceReport) error {
	args := m.Called(testID, diffs)
	return args.Error(0)
}

func (m *MockDifferenceRepo) GetDifferences(ctx context.Context, testID string) ([]domain.DifferenceReport, error) {
	args := m.Called(testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DifferenceReport), args.Error(1)
}

func (m *MockDifferenceRepo) ListDifferences(ctx context.Context) ([]domain.TestDifferences, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TestDifferences), args.Error(1)
}

func (m *MockDifferenceRepo) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}

type MockCorpusStore struct {
	mock.Mock
}

func (m *MockCorpusStore) ListAbstractTests(ctx context.Context) ([]string, error) {
	args := m.Called()
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCorpusStore) LoadAbstractTest(ctx context.Context, testID string) (*domain.TestCase, error) {
	args := m.Called(testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TestCase), args.Error(1)
}

func (m *MockCorpusStore) SaveTranslation(ctx context.Context, t *domain.Translation) error {
	args := m.Called(t)
	return args.Error(0)
}

func (m *MockCorpusStore) ListZones(ctx context.Context) ([]string, error) {
	args := m.Called()
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCorpusStore) ZonePath(testID string) string {
	args := m.Called(testID)
	return args.String(0)
}

func (m *MockCorpusStore) LoadQueries(ctx context.Context, testID string) ([]domain.QueryEntry, error) {
	args := m.Called(testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.QueryEntry), args.Error(1)
}

func (m *MockCorpusStore) LoadExpectedResponses(ctx context.Context, testID string) ([]domain.QueryEntry, error) {
	args := m.Called(testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.QueryEntry), args.Error(1)
}

func (m *MockCorpusStore) LoadModelTags(ctx context.Context) (domain.ModelTags, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.ModelTags), args.Error(1)
}

func (m *MockCorpusStore) SaveClusters(ctx context.Context, report domain.ClusterReport) error {
	args := m.Called(report)
	return args.Error(0)
}

type MockCoordinator struct {
	mock.Mock
}

func (m *MockCoordinator) Acquire(ctx context.Context, runID int) (func(context.Context) error, error) {
	args := m.Called(runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func(context.Context) error), args.Error(1)
}

func (m *MockCoordinator) PublishDifferences(ctx context.Context, testID string, diffs []domain.DifferenceReport) error {
	args := m.Called(testID, diffs)
	return args.Error(0)
}

func (m *MockCoordinator) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}

type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) EnsureServing(ctx context.Context, req ports.ServeRequest) error {
	args := m.Called(req)
	return args.Error(0)
}

func (m *MockDriver) Stop(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}

type MockQuerier struct {
	mock.Mock
}

func (m *MockQuerier) Dispatch(ctx context.Context, impl string, port int, q domain.Query) domain.ObservedResponse {
	args := m.Called(impl, port, q)
	return args.Get(0).(domain.ObservedResponse)
}
