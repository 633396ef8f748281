package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/poyrazK/dnsdiff/internal/adapters/repository"
	"github.com/poyrazK/dnsdiff/internal/core/domain"
	"github.com/poyrazK/dnsdiff/internal/core/ports"
	"github.com/poyrazK/dnsdiff/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const soaLine = "campus.edu.\t500\tSOA\tns1.outside.edu. root.campus.edu. 3 6048 86400 2419200 6048\n"

func writeZone(t *testing.T, dir, id, body string) string {
	t.Helper()
	path := filepath.Join(dir, id+".txt")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestSortTestIDs(t *testing.T) {
	ids := []string{"10", "2", "b", "1", "a", "33"}
	SortTestIDs(ids)
	assert.Equal(t, []string{"1", "2", "10", "33", "a", "b"}, ids)
}

func TestWindow(t *testing.T) {
	ids := []string{"1", "2", "3", "4"}
	assert.Equal(t, []string{"2", "3"}, window(ids, 1, 3))
	assert.Equal(t, []string{"3", "4"}, window(ids, 2, 0))
	assert.Equal(t, ids, window(ids, -1, 99))
	assert.Nil(t, window(ids, 3, 2))
}

func TestTranslateCorpus(t *testing.T) {
	store := new(testutil.MockCorpusStore)
	good := &domain.TestCase{
		Zone: domain.AbstractZone{Records: []domain.AbstractRecord{
			{RType: domain.TypeSOA, RName: domain.AbstractName{Value: []int{2}}},
		}},
		Query: domain.AbstractQuery{QName: domain.AbstractName{Value: []int{2}}, QType: domain.TypeSOA},
	}
	empty := &domain.TestCase{
		Zone: domain.AbstractZone{Records: []domain.AbstractRecord{
			{RType: domain.TypeEmptyNonTerminal, RName: domain.AbstractName{Value: []int{2, 3}}},
		}},
	}
	store.On("ListAbstractTests").Return([]string{"2", "1", "3"}, nil)
	store.On("LoadAbstractTest", "1").Return(good, nil)
	store.On("LoadAbstractTest", "2").Return(empty, nil)
	store.On("LoadAbstractTest", "3").Return(nil, errors.New("bad json"))
	store.On("SaveTranslation", mock.MatchedBy(func(tr *domain.Translation) bool {
		return tr.TestID == "1" && len(tr.Zone.Lines) == 2
	})).Return(nil)

	svc := NewCorpusService(store, nil, nil, nil, CorpusConfig{}, nil)
	sum, err := svc.TranslateCorpus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, []string{"2", "3"}, sum.SkippedIDs())
	assert.Equal(t, "records are empty for 2", sum.Skipped["2"])
	store.AssertExpectations(t)
}

func TestRunCorpus(t *testing.T) {
	dir := t.TempDir()
	m := reply(t, "www.campus.edu. 300 IN A 1.1.1.1")
	other := reply(t, "www.campus.edu. 300 IN A 2.2.2.2")

	store := new(testutil.MockCorpusStore)
	repo := new(testutil.MockDifferenceRepo)
	coord := new(testutil.MockCoordinator)

	store.On("ListZones").Return([]string{"3", "1", "2", "4"}, nil)
	store.On("ZonePath", "1").Return(writeZone(t, dir, "1", soaLine+"www.campus.edu.\tA\t1.1.1.1\n"))
	store.On("ZonePath", "2").Return(writeZone(t, dir, "2", "www.campus.edu.\tA\t1.1.1.1\n"))
	store.On("ZonePath", "3").Return(writeZone(t, dir, "3", soaLine+"d.campus.edu.\tDNAME\tcampus.edu.\n"))
	store.On("LoadQueries", "1").Return([]domain.QueryEntry{wwwQuery}, nil)
	store.On("LoadQueries", "3").Return([]domain.QueryEntry{wwwQuery}, nil)

	coord.On("Acquire", 2).Return(testutil.NopRelease, nil)
	coord.On("PublishDifferences", "1", mock.Anything).Return(errors.New("redis down"))
	repo.On("SaveDifferences", "1", mock.MatchedBy(func(d []domain.DifferenceReport) bool {
		return len(d) == 1 && d[0].QueryName == "www.campus.edu." && len(d[0].Groups) == 2
	})).Return(nil)
	repo.On("SaveDifferences", "3", []domain.DifferenceReport(nil)).Return(nil)

	q := testutil.NewScriptedQuerier(map[string][]domain.ObservedResponse{
		"bind":   {domain.MessageResponse(m)},
		"nsd":    {domain.MessageResponse(m.Copy())},
		"yadifa": {domain.MessageResponse(other)},
	})
	drivers := map[string]*testutil.FakeDriver{}
	rec := newTestRecorder(q)

	svc := NewCorpusService(store, repo, coord, rec, CorpusConfig{RunID: 2, Targets: targets(drivers, "bind", "nsd", "yadifa")}, nil)
	sum, err := svc.RunCorpus(context.Background(), 0, 3)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Processed)
	assert.Equal(t, 1, sum.Differences)
	assert.Equal(t, []string{"2"}, sum.SkippedIDs())
	assert.Contains(t, sum.Skipped["2"], "SOA not found")

	// the DNAME zone leaves yadifa out
	var yadifaZones []string
	for _, r := range drivers["yadifa"].Requests {
		yadifaZones = append(yadifaZones, filepath.Base(r.ZoneFile))
	}
	assert.Equal(t, []string{"1.txt"}, yadifaZones)
	assert.Len(t, drivers["bind"].Requests, 2)

	store.AssertNotCalled(t, "ZonePath", "4")
	repo.AssertExpectations(t)
	coord.AssertExpectations(t)
}

func TestRunCorpus_SingleTargetUsesExpectedResponses(t *testing.T) {
	dir := t.TempDir()
	store := new(testutil.MockCorpusStore)
	coord := new(testutil.MockCoordinator)
	store.On("ListZones").Return([]string{"1"}, nil)
	store.On("ZonePath", "1").Return(writeZone(t, dir, "1", soaLine))
	store.On("LoadExpectedResponses", "1").Return(nil, errors.New("no ExpectedResponses directory"))
	coord.On("Acquire", 1).Return(testutil.NopRelease, nil)

	drivers := map[string]*testutil.FakeDriver{}
	svc := NewCorpusService(store, nil, coord, newTestRecorder(testutil.NewScriptedQuerier(nil)),
		CorpusConfig{RunID: 1, Targets: targets(drivers, "bind")}, nil)
	sum, err := svc.RunCorpus(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, sum.SkippedIDs())
	store.AssertNotCalled(t, "LoadQueries", "1")
}

func TestRunCorpus_Locked(t *testing.T) {
	coord := new(testutil.MockCoordinator)
	coord.On("Acquire", 1).Return(nil, domain.ErrLocked)
	svc := NewCorpusService(nil, nil, coord, nil, CorpusConfig{RunID: 1}, nil)
	_, err := svc.RunCorpus(context.Background(), 0, 0)
	assert.ErrorIs(t, err, domain.ErrLocked)
}

func TestRunCorpus_AllTargetsExcluded(t *testing.T) {
	dir := t.TempDir()
	store := new(testutil.MockCorpusStore)
	coord := new(testutil.MockCoordinator)
	store.On("ListZones").Return([]string{"5"}, nil)
	store.On("ZonePath", "5").Return(writeZone(t, dir, "5", soaLine+"d.campus.edu.\tDNAME\tcampus.edu.\n"))
	coord.On("Acquire", 1).Return(testutil.NopRelease, nil)

	drivers := map[string]*testutil.FakeDriver{}
	svc := NewCorpusService(store, nil, coord, newTestRecorder(testutil.NewScriptedQuerier(nil)),
		CorpusConfig{RunID: 1, Targets: targets(drivers, "maradns", "trustdns")}, nil)
	sum, err := svc.RunCorpus(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, sum.SkippedIDs())
}

func TestClusterCorpus(t *testing.T) {
	store := new(testutil.MockCorpusStore)
	repo := new(testutil.MockDifferenceRepo)
	repo.On("ListDifferences").Return([]domain.TestDifferences{
		{TestID: "1", Differences: []domain.DifferenceReport{diffReport("a.", "bind nsd ", "knot ")}},
		{TestID: "2", Differences: []domain.DifferenceReport{diffReport("b.", "bind nsd ", "knot ")}},
	}, nil)
	store.On("LoadModelTags").Return(domain.ModelTags{
		{Test: "1", Query: "a. A"}: "W1",
		{Test: "2", Query: "b. A"}: "W1",
	}, nil)
	store.On("SaveClusters", mock.MatchedBy(func(r domain.ClusterReport) bool {
		return len(r.Summary) == 1 && r.Details["W1"][0].Count == 2
	})).Return(nil)

	svc := NewCorpusService(store, repo, nil, nil, CorpusConfig{}, nil)
	report, err := svc.ClusterCorpus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"W1 2 {bind,nsd} {knot}"}, report.Summary)
	store.AssertExpectations(t)
}

func TestClusterCorpus_MixedTags(t *testing.T) {
	store := new(testutil.MockCorpusStore)
	repo := new(testutil.MockDifferenceRepo)
	repo.On("ListDifferences").Return([]domain.TestDifferences{
		{TestID: "1", Differences: []domain.DifferenceReport{diffReport("a.", "bind ", "knot ")}},
		{TestID: "2", Differences: []domain.DifferenceReport{diffReport("b.", "bind ", "knot ")}},
	}, nil)
	store.On("LoadModelTags").Return(domain.ModelTags{{Test: "1", Query: "a. A"}: "W1"}, nil)

	svc := NewCorpusService(store, repo, nil, nil, CorpusConfig{}, nil)
	_, err := svc.ClusterCorpus(context.Background())
	assert.ErrorIs(t, err, domain.ErrMixedTags)
	store.AssertNotCalled(t, "SaveClusters", mock.Anything)
}

var _ ports.CorpusStore = (*testutil.MockCorpusStore)(nil)

func TestRunCorpus_InvalidQuerySkipsTest(t *testing.T) {
	dir := t.TempDir()
	store := new(testutil.MockCorpusStore)
	coord := new(testutil.MockCoordinator)
	store.On("ListZones").Return([]string{"6"}, nil)
	store.On("ZonePath", "6").Return(writeZone(t, dir, "6", soaLine))
	store.On("LoadQueries", "6").Return([]domain.QueryEntry{{Query: domain.Query{Name: "www.campus.edu.", Type: "B"}}}, nil)
	coord.On("Acquire", 1).Return(testutil.NopRelease, nil)

	q := testutil.NewScriptedQuerier(nil)
	drivers := map[string]*testutil.FakeDriver{}
	svc := NewCorpusService(store, nil, coord, newTestRecorder(q),
		CorpusConfig{RunID: 1, Targets: targets(drivers, "bind", "nsd")}, nil)
	sum, err := svc.RunCorpus(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"6"}, sum.SkippedIDs())
	assert.Contains(t, sum.Skipped["6"], "query type")
	assert.Empty(t, drivers["bind"].Requests)
}

func TestRunCorpus_AgreementClearsEarlierReport(t *testing.T) {
	dir := t.TempDir()
	files := repository.NewFileStore(t.TempDir())
	stale := []domain.DifferenceReport{diffReport("www.campus.edu.", "bind ", "nsd ")}
	require.NoError(t, files.SaveDifferences(context.Background(), "1", stale))

	store := new(testutil.MockCorpusStore)
	coord := new(testutil.MockCoordinator)
	store.On("ListZones").Return([]string{"1"}, nil)
	store.On("ZonePath", "1").Return(writeZone(t, dir, "1", soaLine))
	store.On("LoadQueries", "1").Return([]domain.QueryEntry{wwwQuery}, nil)
	store.On("LoadModelTags").Return(domain.ModelTags{{Test: "1", Query: "www.campus.edu. A"}: "E1"}, nil)
	coord.On("Acquire", 1).Return(testutil.NopRelease, nil)

	m := reply(t, "www.campus.edu. 300 IN A 1.1.1.1")
	q := testutil.NewScriptedQuerier(map[string][]domain.ObservedResponse{
		"bind": {domain.MessageResponse(m)},
		"nsd":  {domain.MessageResponse(m.Copy())},
	})
	drivers := map[string]*testutil.FakeDriver{}
	svc := NewCorpusService(store, files, coord, newTestRecorder(q),
		CorpusConfig{RunID: 1, Targets: targets(drivers, "bind", "nsd")}, nil)

	sum, err := svc.RunCorpus(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 0, sum.Differences)

	got, err := files.GetDifferences(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, got)

	report, err := svc.Clusters(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Summary)
	coord.AssertNotCalled(t, "PublishDifferences", "1", mock.Anything)
}
