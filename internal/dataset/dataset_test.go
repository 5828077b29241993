package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/quid/internal/cache"
	"github.com/phobologic/quid/internal/config"
	"github.com/phobologic/quid/internal/logging"
	"github.com/phobologic/quid/internal/model"
	"github.com/phobologic/quid/internal/source"
)

func callLine(prog, seq, sub string) string {
	return fmt.Sprintf("%-8s%-3s%-10s", prog, seq, sub)
}

func fileLine(prog, seq, file, typ, num string) string {
	return fmt.Sprintf("%-8s%-3s%-10s%-10s%-10s", prog, seq, file, typ, num)
}

const (
	docsp  = "catalogs/DOCSP.TXT"
	docfic = "catalogs/DOCFIC.TXT"
)

// countingFetcher serves fixed content and counts Fetch calls per path.
type countingFetcher struct {
	mu      sync.Mutex
	content map[string]string
	fetched map[string]int
	err     error
}

func (f *countingFetcher) Fetch(_ context.Context, p string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetched == nil {
		f.fetched = map[string]int{}
	}
	f.fetched[p]++
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.content[p]
	if !ok {
		return nil, source.ErrNotFound
	}
	return []byte(data), nil
}

func (f *countingFetcher) count(p string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetched[p]
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Environments = map[string]config.Environment{
		"DEV": {DOCSP: docsp, DOCFIC: docfic},
	}
	return cfg
}

func sampleFetcher() *countingFetcher {
	return &countingFetcher{content: map[string]string{
		docsp: strings.Join([]string{
			callLine("PGMA", "001", "PGMB"),
			callLine("PGMA", "002", "PGMC"),
			callLine("PGMB", "001", "PGMD"),
		}, "\n"),
		docfic: strings.Join([]string{
			fileLine("PGMA", "001", "CUST", "I", "1"),
			fileLine("PGMD", "001", "OUT", "O", "2"),
		}, "\n"),
	}}
}

type recordingObserver struct {
	env   string
	calls int
	files int
	err   error
	n     int
}

func (o *recordingObserver) ObserveLoad(env string, calls, files int, _ time.Duration, err error) {
	o.env, o.calls, o.files, o.err = env, calls, files, err
	o.n++
}

func TestLoad(t *testing.T) {
	t.Parallel()

	store, err := cache.NewDirStore(t.TempDir(), logging.Discard())
	require.NoError(t, err)
	obs := &recordingObserver{}
	l := NewLoader(testConfig(), sampleFetcher(), store, Options{Logger: logging.Discard(), Observer: obs})

	ds, err := l.Load(context.Background(), "dev")
	require.NoError(t, err)
	require.NoError(t, ds.Validate())

	assert.Equal(t, "DEV", ds.Environment)
	assert.Len(t, ds.Calls, 3)
	assert.Len(t, ds.Files, 2)
	assert.False(t, ds.LoadedAt.IsZero())
	assert.Equal(t, []string{"PGMB", "PGMC"}, ds.Index.Calls("PGMA"))
	assert.Equal(t, []model.FileRef{{Name: "OUT", OpenType: "O"}}, ds.Index.Files("PGMD"))

	// Fetched catalogs land in the cache under their base names.
	assert.True(t, store.Has("DOCSP.TXT"))
	assert.True(t, store.Has("DOCFIC.TXT"))

	assert.Equal(t, 1, obs.n)
	assert.Equal(t, "DEV", obs.env)
	assert.Equal(t, 3, obs.calls)
	assert.Equal(t, 2, obs.files)
	assert.NoError(t, obs.err)
}

func TestLoadUsesCache(t *testing.T) {
	t.Parallel()

	store, err := cache.NewDirStore(t.TempDir(), logging.Discard())
	require.NoError(t, err)
	require.NoError(t, store.Save("DOCSP.TXT", []byte(callLine("CACHED", "001", "SUB"))))
	require.NoError(t, store.Save("DOCFIC.TXT", []byte(fileLine("CACHED", "001", "F", "I", "1"))))

	f := sampleFetcher()
	l := NewLoader(testConfig(), f, store, Options{UseCache: true, Logger: logging.Discard()})

	ds, err := l.Load(context.Background(), "DEV")
	require.NoError(t, err)
	assert.Equal(t, 0, f.count(docsp))
	assert.Equal(t, 0, f.count(docfic))
	assert.Equal(t, []string{"SUB"}, ds.Index.Calls("CACHED"))
}

func TestLoadIgnoresCacheWhenDisabled(t *testing.T) {
	t.Parallel()

	store, err := cache.NewDirStore(t.TempDir(), logging.Discard())
	require.NoError(t, err)
	require.NoError(t, store.Save("DOCSP.TXT", []byte(callLine("STALE", "001", "SUB"))))

	f := sampleFetcher()
	l := NewLoader(testConfig(), f, store, Options{Logger: logging.Discard()})

	ds, err := l.Load(context.Background(), "DEV")
	require.NoError(t, err)
	assert.Equal(t, 1, f.count(docsp))
	assert.False(t, ds.Index.HasProgram("STALE"))

	// The fresh download replaced the stale copy.
	data, err := store.Load("DOCSP.TXT")
	require.NoError(t, err)
	assert.Contains(t, string(data), "PGMA")
}

// brokenStore claims to hold every catalog but fails to read any.
type brokenStore struct {
	saved map[string][]byte
}

func (s *brokenStore) Has(string) bool { return true }
func (s *brokenStore) Load(name string) ([]byte, error) {
	return nil, fmt.Errorf("reading %s: corrupt entry", name)
}
func (s *brokenStore) Save(name string, data []byte) error {
	s.saved[name] = data
	return nil
}
func (s *brokenStore) Close() error { return nil }

func TestLoadFallsBackWhenCacheUnreadable(t *testing.T) {
	t.Parallel()

	store := &brokenStore{saved: map[string][]byte{}}
	f := sampleFetcher()
	l := NewLoader(testConfig(), f, store, Options{UseCache: true, Logger: logging.Discard()})

	ds, err := l.Load(context.Background(), "DEV")
	require.NoError(t, err)
	assert.Equal(t, 1, f.count(docsp))
	assert.Equal(t, 1, f.count(docfic))
	assert.Len(t, ds.Calls, 3)
	assert.Contains(t, store.saved, "DOCSP.TXT")
}

func TestLoadWithoutStore(t *testing.T) {
	t.Parallel()

	l := NewLoader(testConfig(), sampleFetcher(), nil, Options{UseCache: true, Logger: logging.Discard()})
	ds, err := l.Load(context.Background(), "DEV")
	require.NoError(t, err)
	assert.Len(t, ds.Files, 2)
}

func TestLoadFromLocalSource(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "catalogs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, docsp), []byte(callLine("ROOT", "001", "LEAF")+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, docfic), []byte(fileLine("LEAF", "001", "DATA", "IO", "1")+"\n"), 0o644))

	l := NewLoader(testConfig(), &source.Local{Root: root}, nil, Options{Logger: logging.Discard()})
	ds, err := l.Load(context.Background(), "DEV")
	require.NoError(t, err)
	assert.Equal(t, []string{"LEAF"}, ds.Index.Calls("ROOT"))
	assert.Equal(t, []model.FileRef{{Name: "DATA", OpenType: "IO"}}, ds.Index.Files("LEAF"))
}

func TestLoadUnknownEnvironment(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	f := sampleFetcher()
	l := NewLoader(testConfig(), f, nil, Options{Logger: logging.Discard(), Observer: obs})

	_, err := l.Load(context.Background(), "PROD")
	assert.ErrorIs(t, err, config.ErrUnknownEnvironment)
	assert.Equal(t, 0, f.count(docsp))
	assert.Equal(t, 1, obs.n)
	assert.Error(t, obs.err)
}

func TestLoadFetchError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	l := NewLoader(testConfig(), &countingFetcher{err: boom}, nil, Options{Logger: logging.Discard()})

	ds, err := l.Load(context.Background(), "DEV")
	assert.Nil(t, ds)
	assert.ErrorIs(t, err, boom)
}

func TestLoadMissingCatalog(t *testing.T) {
	t.Parallel()

	f := sampleFetcher()
	delete(f.content, docfic)
	l := NewLoader(testConfig(), f, nil, Options{Logger: logging.Discard()})

	_, err := l.Load(context.Background(), "DEV")
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrNotFound)
	assert.Contains(t, err.Error(), "DOCFIC")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	empty := &Dataset{}
	assert.ErrorIs(t, empty.Validate(), ErrNoCallData)
	assert.ErrorIs(t, empty.Validate(), ErrNoData)

	noFiles := &Dataset{Calls: []model.CallRecord{{Program: "A", Subprogram: "B"}}}
	assert.ErrorIs(t, noFiles.Validate(), ErrNoFileData)
	assert.ErrorIs(t, noFiles.Validate(), ErrNoData)

	full := &Dataset{
		Calls: []model.CallRecord{{Program: "A", Subprogram: "B"}},
		Files: []model.FileRecord{{Program: "A", File: "F", OpenType: "I"}},
	}
	assert.NoError(t, full.Validate())
}

func TestLoadEmptyCatalogs(t *testing.T) {
	t.Parallel()

	f := &countingFetcher{content: map[string]string{docsp: "\n\n", docfic: ""}}
	l := NewLoader(testConfig(), f, nil, Options{Logger: logging.Discard()})

	ds, err := l.Load(context.Background(), "DEV")
	require.NoError(t, err)
	assert.ErrorIs(t, ds.Validate(), ErrNoCallData)
}
