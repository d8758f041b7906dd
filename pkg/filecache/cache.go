package filecache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/srand/jolt/grid/pkg/log"
	"github.com/srand/jolt/grid/pkg/protocol"
	"github.com/srand/jolt/grid/pkg/utils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// A locally materialised revision of a resource.
type FileVersion struct {
	VersionId protocol.FileVersionId `json:"version_id"`
	// Path of the file or directory on the cache filesystem
	Path      string `json:"path"`
	Directory bool   `json:"directory"`
}

type CacheStats struct {
	// Number of resources in the cache
	Entries int `json:"entries"`

	// Requests served without a fetch
	Hits int64 `json:"hits"`

	// Requests to the provider
	Fetches int64 `json:"fetches"`

	// Failed fetches
	Failures int64 `json:"failures"`
}

// The cached revision of a resource together with the requested versions
// that resolved to it. A request naming a version the registry has
// already moved past resolves to the current revision, and is served
// from the cache from then on.
type cacheEntry struct {
	file     *FileVersion
	resolves map[string]struct{}
}

func newCacheEntry(file *FileVersion, requested string) *cacheEntry {
	entry := &cacheEntry{
		file:     file,
		resolves: map[string]struct{}{file.VersionId.Version: {}},
	}
	if requested != "" {
		entry.resolves[requested] = struct{}{}
	}
	return entry
}

// Must be called with the cache lock held.
func (e *cacheEntry) satisfiesNoLock(version string) bool {
	if version == "" {
		return true
	}
	_, ok := e.resolves[version]
	return ok
}

// Result of one fetch flight.
type flight struct {
	requested string
	entry     *FileVersion
}

// Cache of resource revisions fetched from a registry.
//
// Each resource has at most one cached revision. A request for a version
// not yet resolved to it asks the provider for the current revision and
// replaces the entry if that differs. Fetches are serialised per resource id while
// different resources are fetched independently.
type Cache struct {
	sync.RWMutex
	fs       utils.Fs
	provider Provider
	entries  map[string]*cacheEntry
	flights  singleflight.Group

	hits     atomic.Int64
	fetches  atomic.Int64
	failures atomic.Int64
}

func NewCache(fs utils.Fs, provider Provider) *Cache {
	return &Cache{
		fs:       fs,
		provider: provider,
		entries:  map[string]*cacheEntry{},
	}
}

// Returns the cached revision if it satisfies the requested version.
// An empty version accepts any cached revision.
func (c *Cache) lookupVersion(version protocol.FileVersionId) *FileVersion {
	c.RLock()
	defer c.RUnlock()

	entry, ok := c.entries[version.Id]
	if !ok || !entry.satisfiesNoLock(version.Version) {
		return nil
	}
	return entry.file
}

// Returns the cached revision if it is the revision the provider
// returned, and records that the requested version resolves to it.
func (c *Cache) resolveInstalled(requested string, current protocol.FileVersionId) *FileVersion {
	c.Lock()
	defer c.Unlock()

	entry, ok := c.entries[current.Id]
	if !ok || entry.file.VersionId != current {
		return nil
	}
	if requested != "" {
		entry.resolves[requested] = struct{}{}
	}
	return entry.file
}

// RequestFile returns a local copy of the requested resource revision,
// fetching it from the provider unless it is already cached.
//
// A failed fetch leaves the cache as it was. Cancelling ctx abandons the
// wait but not a fetch shared with other callers.
func (c *Cache) RequestFile(ctx context.Context, version protocol.FileVersionId) (*FileVersion, error) {
	if version.Id == "" {
		return nil, fmt.Errorf("%w: empty resource id", utils.ErrBadRequest)
	}

	for {
		if entry := c.lookupVersion(version); entry != nil {
			c.hits.Add(1)
			return entry, nil
		}

		ch := c.flights.DoChan(version.Id, func() (any, error) {
			return c.fetch(context.WithoutCancel(ctx), version)
		})

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", utils.ErrCancelled, ctx.Err())

		case result := <-ch:
			if result.Err != nil {
				return nil, result.Err
			}

			f := result.Val.(*flight)
			if f.requested == version.Version {
				return f.entry, nil
			}

			// Joined a flight for another revision, try again.
			log.Tracef("Flight for %s returned revision %s, retrying", version, f.entry.VersionId.Version)
		}
	}
}

// Fetches and installs a revision. Runs at most once at a time per id.
func (c *Cache) fetch(ctx context.Context, version protocol.FileVersionId) (*flight, error) {
	// Installed by a flight that completed while this one was being set up
	if entry := c.lookupVersion(version); entry != nil {
		return &flight{requested: version.Version, entry: entry}, nil
	}

	c.fetches.Add(1)
	log.Debugf("get - file - id: %s, version: %s", version.Id, version.Version)

	payload, err := c.provider.GetFile(ctx, version.Id)
	if err != nil {
		c.failures.Add(1)
		log.DebugError(err)
		return nil, fmt.Errorf("%w: %s: %w", utils.ErrTransferFailure, version, err)
	}

	if payload.Id != version.Id {
		c.failures.Add(1)
		return nil, fmt.Errorf("%w: requested %s, received %s", utils.ErrTransferFailure, version.Id, payload.Id)
	}

	if version.Version != "" && payload.Version != version.Version {
		log.Debugf("Requested %s, registry has revision %s", version, payload.Version)
	}

	// The registry's revision is already installed, keep the live copy
	if entry := c.resolveInstalled(version.Version, payload.VersionId()); entry != nil {
		log.Debugf("Revision %s already cached, requested %s", payload.VersionId(), version)
		return &flight{requested: version.Version, entry: entry}, nil
	}

	path, err := materialize(c.fs, payload)
	if err != nil {
		c.failures.Add(1)
		return nil, fmt.Errorf("%w: %s: %w", utils.ErrTransferFailure, version, err)
	}

	entry := &FileVersion{
		VersionId: payload.VersionId(),
		Path:      path,
		Directory: payload.Directory,
	}

	c.install(entry, version.Version)

	return &flight{requested: version.Version, entry: entry}, nil
}

// Replaces the entry of a resource and removes the superseded copy.
func (c *Cache) install(entry *FileVersion, requested string) {
	c.Lock()
	prev, ok := c.entries[entry.VersionId.Id]
	c.entries[entry.VersionId.Id] = newCacheEntry(entry, requested)
	c.Unlock()

	if !ok {
		log.Debugf("new - file - id: %s, version: %s", entry.VersionId.Id, entry.VersionId.Version)
		return
	}

	old := prev.file
	log.Debugf("upd - file - id: %s, version: %s -> %s", entry.VersionId.Id, old.VersionId.Version, entry.VersionId.Version)

	if old.VersionId.Version != entry.VersionId.Version {
		if err := c.fs.RemoveAll(versionDir(old.VersionId)); err != nil {
			log.Warn("Failed to remove superseded revision:", old.VersionId, err)
		}
	}
}

// RequestFiles requests several resources in parallel.
// The result is ordered like the request.
func (c *Cache) RequestFiles(ctx context.Context, versions ...protocol.FileVersionId) ([]*FileVersion, error) {
	result := make([]*FileVersion, len(versions))

	group, ctx := errgroup.WithContext(ctx)
	for i, version := range versions {
		group.Go(func() error {
			entry, err := c.RequestFile(ctx, version)
			if err != nil {
				return err
			}
			result[i] = entry
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// Lookup returns the cached revision of a resource, if any.
func (c *Cache) Lookup(id string) (*FileVersion, bool) {
	c.RLock()
	defer c.RUnlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return entry.file, true
}

func (c *Cache) Statistics() CacheStats {
	c.RLock()
	entries := len(c.entries)
	c.RUnlock()

	return CacheStats{
		Entries:  entries,
		Hits:     c.hits.Load(),
		Fetches:  c.fetches.Load(),
		Failures: c.failures.Load(),
	}
}
