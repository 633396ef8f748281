package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/poyrazK/dnsdiff/internal/core/domain"
)

// Corpus directory layout.
const (
	AbstractTestsDir     = "ZenTests"
	ZoneFilesDir         = "ZoneFiles"
	QueriesDir           = "Queries"
	TestInfoDir          = "TestsTotalInfo"
	ExpectedResponsesDir = "ExpectedResponses"
	DifferencesDir       = "Differences"
	ClustersFile         = "Clusters.json"
)

// FileStore keeps a corpus as a directory tree. It implements both
// ports.CorpusStore and ports.DifferenceRepository.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) path(dir, testID, ext string) string {
	return filepath.Join(s.root, dir, testID+ext)
}

func (s *FileStore) ListAbstractTests(ctx context.Context) ([]string, error) {
	return s.listIDs(AbstractTestsDir, ".json")
}

func (s *FileStore) LoadAbstractTest(ctx context.Context, testID string) (*domain.TestCase, error) {
	var tc domain.TestCase
	if err := readJSON(s.path(AbstractTestsDir, testID, ".json"), &tc); err != nil {
		return nil, err
	}
	tc.ID = testID
	return &tc, nil
}

// SaveTranslation writes the zone file, the query document and the test
// information document of one test.
func (s *FileStore) SaveTranslation(ctx context.Context, t *domain.Translation) error {
	if err := writeFileAtomic(s.ZonePath(t.TestID), []byte(t.Zone.Text())); err != nil {
		return err
	}
	if err := writeJSON(s.path(QueriesDir, t.TestID, ".json"), t.QueryDocument()); err != nil {
		return err
	}
	return writeJSON(s.path(TestInfoDir, t.TestID, ".json"), t.Info())
}

func (s *FileStore) ListZones(ctx context.Context) ([]string, error) {
	return s.listIDs(ZoneFilesDir, ".txt")
}

func (s *FileStore) ZonePath(testID string) string {
	return s.path(ZoneFilesDir, testID, ".txt")
}

func (s *FileStore) LoadQueries(ctx context.Context, testID string) ([]domain.QueryEntry, error) {
	var entries []domain.QueryEntry
	if err := readJSON(s.path(QueriesDir, testID, ".json"), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *FileStore) LoadExpectedResponses(ctx context.Context, testID string) ([]domain.QueryEntry, error) {
	var entries []domain.QueryEntry
	if err := readJSON(s.path(ExpectedResponsesDir, testID, ".json"), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// LoadModelTags collects the ZenResponseTag of every query document. A
// corpus without query documents has no tags.
func (s *FileStore) LoadModelTags(ctx context.Context) (domain.ModelTags, error) {
	ids, err := s.listIDs(QueriesDir, ".json")
	if err != nil {
		return nil, err
	}
	tags := domain.ModelTags{}
	for _, id := range ids {
		entries, errLoad := s.LoadQueries(ctx, id)
		if errLoad != nil {
			return nil, errLoad
		}
		for _, e := range entries {
			if e.ZenResponseTag != "" {
				tags[domain.Occurrence{Test: id, Query: e.Query.Key()}] = e.ZenResponseTag
			}
		}
	}
	return tags, nil
}

func (s *FileStore) SaveClusters(ctx context.Context, report domain.ClusterReport) error {
	return writeJSON(filepath.Join(s.root, ClustersFile), report)
}

// SaveDifferences writes Differences/<id>.json. An empty list removes a
// previous report instead of writing an empty one.
func (s *FileStore) SaveDifferences(ctx context.Context, testID string, diffs []domain.DifferenceReport) error {
	path := s.path(DifferencesDir, testID, ".json")
	if len(diffs) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	return writeJSON(path, diffs)
}

func (s *FileStore) GetDifferences(ctx context.Context, testID string) ([]domain.DifferenceReport, error) {
	var diffs []domain.DifferenceReport
	err := readJSON(s.path(DifferencesDir, testID, ".json"), &diffs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return diffs, err
}

func (s *FileStore) ListDifferences(ctx context.Context) ([]domain.TestDifferences, error) {
	ids, err := s.listIDs(DifferencesDir, ".json")
	if err != nil {
		return nil, err
	}
	out := make([]domain.TestDifferences, 0, len(ids))
	for _, id := range ids {
		diffs, errGet := s.GetDifferences(ctx, id)
		if errGet != nil {
			return nil, errGet
		}
		out = append(out, domain.TestDifferences{TestID: id, Differences: diffs})
	}
	return out, nil
}

func (s *FileStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.root)
	}
	return nil
}

// listIDs returns the sorted base names of the files in dir with ext. A
// missing directory yields no ids.
func (s *FileStore) listIDs(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ext))
	}
	sort.Strings(ids)
	return ids, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if errJSON := json.Unmarshal(data, v); errJSON != nil {
		return fmt.Errorf("decode %s: %w", path, errJSON)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, append(data, '\n'))
}

// writeFileAtomic writes through a temporary file in the target directory
// so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, errWrite := tmp.Write(data); errWrite != nil {
		_ = tmp.Close()
		return errWrite
	}
	if errClose := tmp.Close(); errClose != nil {
		return errClose
	}
	if errChmod := os.Chmod(tmp.Name(), 0o644); errChmod != nil {
		return errChmod
	}
	return os.Rename(tmp.Name(), path)
}
