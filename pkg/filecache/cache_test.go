package filecache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/srand/jolt/grid/pkg/protocol"
	"github.com/srand/jolt/grid/pkg/registry"
	"github.com/srand/jolt/grid/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) GetFile(ctx context.Context, id string) (*protocol.FilePayload, error) {
	args := m.Called(ctx, id)
	payload, _ := args.Get(0).(*protocol.FilePayload)
	return payload, args.Error(1)
}

// Counts calls to a provider and optionally holds them until released.
type countingProvider struct {
	Provider
	calls atomic.Int64
	gate  chan struct{}
}

func (p *countingProvider) GetFile(ctx context.Context, id string) (*protocol.FilePayload, error) {
	p.calls.Add(1)
	if p.gate != nil {
		<-p.gate
	}
	return p.Provider.GetFile(ctx, id)
}

type CacheTest struct {
	suite.Suite
	sourceFs afero.Fs
	cacheFs  afero.Fs
	registry *registry.Registry
	provider *countingProvider
	cache    *Cache
}

func (s *CacheTest) SetupTest() {
	s.sourceFs = afero.NewMemMapFs()
	s.cacheFs = afero.NewMemMapFs()
	s.registry = registry.NewRegistry(s.sourceFs)
	s.provider = &countingProvider{Provider: NewLocalProvider(s.registry)}
	s.cache = NewCache(s.cacheFs, s.provider)
}

func (s *CacheTest) writeSource(path string, data []byte) {
	s.Require().NoError(s.sourceFs.MkdirAll(filepath.Dir(path), 0755))
	s.Require().NoError(afero.WriteFile(s.sourceFs, path, data, 0644))
}

func (s *CacheTest) current(id string) protocol.FileVersionId {
	payload, err := s.registry.GetFile(id)
	s.Require().NoError(err)
	return payload.VersionId()
}

func (s *CacheTest) readCached(entry *FileVersion) []byte {
	data, err := afero.ReadFile(s.cacheFs, entry.Path)
	s.Require().NoError(err)
	return data
}

func (s *CacheTest) TestFetchOncePerVersion() {
	ctx := context.Background()

	s.writeSource("/src/data.bin", []byte{0x0B})
	id, err := s.registry.RegisterFile("/src/data.bin")
	s.Require().NoError(err)
	v1 := s.current(id)

	for i := 0; i < 2; i++ {
		entry, err := s.cache.RequestFile(ctx, v1)
		s.Require().NoError(err)
		s.Equal(v1, entry.VersionId)
	}
	s.Equal(int64(1), s.provider.calls.Load())

	s.writeSource("/src/data.bin", []byte{0x0C})
	v2, err := s.registry.UpdateFile(id)
	s.Require().NoError(err)
	s.NotEqual(v1, v2)

	for i := 0; i < 2; i++ {
		entry, err := s.cache.RequestFile(ctx, v2)
		s.Require().NoError(err)
		s.Equal(v2, entry.VersionId)
		s.Equal([]byte{0x0C}, s.readCached(entry))
	}
	s.Equal(int64(2), s.provider.calls.Load())

	_, err = s.cache.RequestFile(ctx, v2)
	s.Require().NoError(err)
	s.Equal(int64(2), s.provider.calls.Load())

	stats := s.cache.Statistics()
	s.Equal(1, stats.Entries)
	s.Equal(int64(2), stats.Fetches)
	s.Equal(int64(3), stats.Hits)
	s.Equal(int64(0), stats.Failures)

	// Superseded revision is removed
	exists, err := afero.DirExists(s.cacheFs, versionDir(v1))
	s.Require().NoError(err)
	s.False(exists)
}

func (s *CacheTest) TestOutdatedVersionFetchedOnce() {
	ctx := context.Background()

	s.writeSource("/src/data.bin", []byte{0x0B})
	id, err := s.registry.RegisterFile("/src/data.bin")
	s.Require().NoError(err)
	v1 := s.current(id)

	s.writeSource("/src/data.bin", []byte{0x0C})
	v2, err := s.registry.UpdateFile(id)
	s.Require().NoError(err)

	for i := 0; i < 5; i++ {
		entry, err := s.cache.RequestFile(ctx, v1)
		s.Require().NoError(err)
		s.Equal(v2, entry.VersionId)
		s.Equal([]byte{0x0C}, s.readCached(entry))
	}
	s.Equal(int64(1), s.provider.calls.Load())

	// The current revision is what is cached already
	_, err = s.cache.RequestFile(ctx, v2)
	s.Require().NoError(err)
	s.Equal(int64(1), s.provider.calls.Load())
	s.Equal(int64(5), s.cache.Statistics().Hits)

	// A new revision supersedes the entry and what resolved to it
	s.writeSource("/src/data.bin", []byte{0x0D})
	v3, err := s.registry.UpdateFile(id)
	s.Require().NoError(err)

	entry, err := s.cache.RequestFile(ctx, v3)
	s.Require().NoError(err)
	s.Equal(v3, entry.VersionId)
	s.Equal(int64(2), s.provider.calls.Load())

	entry, err = s.cache.RequestFile(ctx, v1)
	s.Require().NoError(err)
	s.Equal(v3, entry.VersionId)
	s.Equal(int64(3), s.provider.calls.Load())
}

func (s *CacheTest) TestRoundTrip() {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i * 7)
	}

	id, err := s.registry.RegisterContent("blob", data)
	s.Require().NoError(err)

	entry, err := s.cache.RequestFile(context.Background(), s.current(id))
	s.Require().NoError(err)
	s.False(entry.Directory)
	s.Equal("blob", filepath.Base(entry.Path))
	s.Equal(data, s.readCached(entry))

	cached, ok := s.cache.Lookup(id)
	s.True(ok)
	s.Equal(entry, cached)
}

func (s *CacheTest) TestDirectory() {
	ctx := context.Background()

	s.writeSource("/src/lib/a.txt", []byte("a"))
	s.writeSource("/src/lib/sub/b.txt", []byte("b"))
	id, err := s.registry.RegisterFile("/src/lib")
	s.Require().NoError(err)

	entry, err := s.cache.RequestFile(ctx, s.current(id))
	s.Require().NoError(err)
	s.True(entry.Directory)

	data, err := afero.ReadFile(s.cacheFs, filepath.Join(entry.Path, "sub", "b.txt"))
	s.Require().NoError(err)
	s.Equal([]byte("b"), data)

	s.writeSource("/src/lib/c.txt", []byte("c"))
	v2, err := s.registry.UpdateFile(id)
	s.Require().NoError(err)

	entry, err = s.cache.RequestFile(ctx, v2)
	s.Require().NoError(err)

	data, err = afero.ReadFile(s.cacheFs, filepath.Join(entry.Path, "c.txt"))
	s.Require().NoError(err)
	s.Equal([]byte("c"), data)
	s.Equal(int64(2), s.provider.calls.Load())
}

func (s *CacheTest) TestUnknownResource() {
	_, err := s.cache.RequestFile(context.Background(), protocol.FileVersionId{Id: "unknown", Version: "v1"})
	s.True(errors.Is(err, utils.ErrTransferFailure))
	s.True(errors.Is(err, utils.ErrNotFound))

	_, ok := s.cache.Lookup("unknown")
	s.False(ok)
	s.Equal(int64(1), s.cache.Statistics().Failures)
}

func (s *CacheTest) TestEmptyId() {
	_, err := s.cache.RequestFile(context.Background(), protocol.FileVersionId{})
	s.True(errors.Is(err, utils.ErrBadRequest))
	s.Equal(int64(0), s.provider.calls.Load())
}

func (s *CacheTest) TestAnyVersion() {
	id, err := s.registry.RegisterContent("blob", []byte("x"))
	s.Require().NoError(err)

	entry, err := s.cache.RequestFile(context.Background(), protocol.FileVersionId{Id: id})
	s.Require().NoError(err)
	s.Equal(s.current(id), entry.VersionId)

	_, err = s.cache.RequestFile(context.Background(), protocol.FileVersionId{Id: id})
	s.Require().NoError(err)
	s.Equal(int64(1), s.provider.calls.Load())
}

func (s *CacheTest) TestConcurrentRequests() {
	id, err := s.registry.RegisterContent("blob", []byte("x"))
	s.Require().NoError(err)
	version := s.current(id)

	s.provider.gate = make(chan struct{})

	wg := sync.WaitGroup{}
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, err := s.cache.RequestFile(context.Background(), version)
			if err == nil && entry.VersionId != version {
				err = errors.New("wrong version")
			}
			errs <- err
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(s.provider.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}
	s.Equal(int64(1), s.provider.calls.Load())
}

func (s *CacheTest) TestIndependentResources() {
	a, _ := s.registry.RegisterContent("a", []byte("a"))
	b, _ := s.registry.RegisterContent("b", []byte("b"))

	entries, err := s.cache.RequestFiles(context.Background(), s.current(a), s.current(b))
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal([]byte("a"), s.readCached(entries[0]))
	s.Equal([]byte("b"), s.readCached(entries[1]))
	s.Equal(2, s.cache.Statistics().Entries)

	_, err = s.cache.RequestFiles(context.Background(), s.current(a), protocol.FileVersionId{Id: "unknown", Version: "v"})
	s.True(errors.Is(err, utils.ErrNotFound))
}

func (s *CacheTest) TestCancellation() {
	id, err := s.registry.RegisterContent("blob", []byte("x"))
	s.Require().NoError(err)
	version := s.current(id)

	s.provider.gate = make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = s.cache.RequestFile(ctx, version)
	s.True(errors.Is(err, utils.ErrCancelled))
	s.True(errors.Is(err, context.DeadlineExceeded))

	// The abandoned fetch completes for later callers
	close(s.provider.gate)

	entry, err := s.cache.RequestFile(context.Background(), version)
	s.Require().NoError(err)
	s.Equal(version, entry.VersionId)
	s.Equal(int64(1), s.provider.calls.Load())
}

func TestCache(t *testing.T) {
	suite.Run(t, new(CacheTest))
}

func TestFailedFetchKeepsEntry(t *testing.T) {
	fs := afero.NewMemMapFs()
	provider := &MockProvider{}
	cache := NewCache(fs, provider)

	v1 := protocol.NewFilePayload("res", "v1", "data.bin", false, []byte{0x0B})
	transportErr := errors.New("connection reset")
	provider.On("GetFile", mock.Anything, "res").Return(v1, nil).Once()
	provider.On("GetFile", mock.Anything, "res").Return(nil, transportErr).Once()

	entry, err := cache.RequestFile(context.Background(), v1.VersionId())
	require.NoError(t, err)

	_, err = cache.RequestFile(context.Background(), protocol.FileVersionId{Id: "res", Version: "v2"})
	assert.True(t, errors.Is(err, utils.ErrTransferFailure))
	assert.True(t, errors.Is(err, transportErr))

	cached, ok := cache.Lookup("res")
	require.True(t, ok)
	assert.Equal(t, entry, cached)

	data, err := afero.ReadFile(fs, cached.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0B}, data)

	assert.Equal(t, int64(1), cache.Statistics().Failures)
	provider.AssertExpectations(t)
}

func TestCorruptPayloadKeepsEntry(t *testing.T) {
	fs := afero.NewMemMapFs()
	provider := &MockProvider{}
	cache := NewCache(fs, provider)

	v1 := protocol.NewFilePayload("res", "v1", "data.bin", false, []byte{0x0B})
	corrupt := protocol.NewFilePayload("res", "v2", "data.bin", true, []byte("not zstd"))
	escape := protocol.NewFilePayload("res", "v3", "..", false, []byte{0x0C})
	provider.On("GetFile", mock.Anything, "res").Return(v1, nil).Once()
	provider.On("GetFile", mock.Anything, "res").Return(corrupt, nil).Once()
	provider.On("GetFile", mock.Anything, "res").Return(escape, nil).Once()

	entry, err := cache.RequestFile(context.Background(), v1.VersionId())
	require.NoError(t, err)

	_, err = cache.RequestFile(context.Background(), corrupt.VersionId())
	assert.True(t, errors.Is(err, utils.ErrTransferFailure))

	_, err = cache.RequestFile(context.Background(), escape.VersionId())
	assert.True(t, errors.Is(err, utils.ErrTransferFailure))
	assert.True(t, errors.Is(err, utils.ErrBadRequest))

	cached, ok := cache.Lookup("res")
	require.True(t, ok)
	assert.Equal(t, entry, cached)

	// Only the installed revision is left, no temporary output
	infos, err := afero.ReadDir(fs, "res")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "v1", infos[0].Name())

	provider.AssertExpectations(t)
}

func TestInstalledRevisionIsReused(t *testing.T) {
	fs := afero.NewMemMapFs()
	provider := &MockProvider{}
	cache := NewCache(fs, provider)

	v1 := protocol.NewFilePayload("res", "v1", "data.bin", false, []byte{0x0B})
	// Same revision, content must not be written again
	again := protocol.NewFilePayload("res", "v1", "data.bin", false, []byte{0x0C})
	provider.On("GetFile", mock.Anything, "res").Return(v1, nil).Once()
	provider.On("GetFile", mock.Anything, "res").Return(again, nil).Once()

	entry, err := cache.RequestFile(context.Background(), v1.VersionId())
	require.NoError(t, err)

	stale, err := cache.RequestFile(context.Background(), protocol.FileVersionId{Id: "res", Version: "v0"})
	require.NoError(t, err)
	assert.Same(t, entry, stale)

	data, err := afero.ReadFile(fs, entry.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0B}, data)

	infos, err := afero.ReadDir(fs, "res")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "v1", infos[0].Name())

	// v0 now resolves to the cached revision
	_, err = cache.RequestFile(context.Background(), protocol.FileVersionId{Id: "res", Version: "v0"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), cache.Statistics().Fetches)

	provider.AssertExpectations(t)
}

func TestMismatchedPayloadId(t *testing.T) {
	provider := &MockProvider{}
	cache := NewCache(afero.NewMemMapFs(), provider)

	provider.On("GetFile", mock.Anything, "res").Return(protocol.NewFilePayload("other", "v1", "f", false, nil), nil)

	_, err := cache.RequestFile(context.Background(), protocol.FileVersionId{Id: "res", Version: "v1"})
	assert.True(t, errors.Is(err, utils.ErrTransferFailure))

	_, ok := cache.Lookup("res")
	assert.False(t, ok)
}
