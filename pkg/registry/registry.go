package registry

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/afero"
	"github.com/srand/jolt/grid/pkg/log"
	"github.com/srand/jolt/grid/pkg/protocol"
	"github.com/srand/jolt/grid/pkg/utils"
)

// Algorithm used to derive resource versions from their content.
const VersionAlgorithm = utils.Sha256Algorithm

// Summary of a registered resource.
type FileInfo struct {
	Id        string `json:"id"`
	Version   string `json:"version"`
	Name      string `json:"name"`
	Directory bool   `json:"directory"`
	// Size of the encoded content in bytes
	Size int `json:"size"`
	// Path on the registry filesystem, empty for uploaded content
	Source string `json:"source,omitempty"`
}

// One immutable revision of a resource.
type entry struct {
	source  string
	payload *protocol.FilePayload
}

func (e *entry) info() FileInfo {
	return FileInfo{
		Id:        e.payload.Id,
		Version:   e.payload.Version,
		Name:      e.payload.Name,
		Directory: e.payload.Directory,
		Size:      len(e.payload.Content),
		Source:    e.source,
	}
}

// The file registry maps resource ids to their current content.
//
// Entries are replaced, never modified, so a payload handed out by
// GetFile stays consistent while the resource is updated.
type Registry struct {
	sync.RWMutex
	fs      utils.Fs
	entries map[string]*entry
}

func NewRegistry(fs utils.Fs) *Registry {
	return &Registry{
		fs:      fs,
		entries: map[string]*entry{},
	}
}

func newId() string {
	return ulid.Make().String()
}

// Reads the file or directory at path into an encoded payload.
func (r *Registry) snapshot(id, path string) (*protocol.FilePayload, error) {
	info, err := r.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrNotFound, err)
	}

	name := filepath.Base(path)

	if info.IsDir() {
		archive := bytes.Buffer{}
		if err := utils.Tar(r.fs, path, &archive); err != nil {
			return nil, err
		}

		version, err := utils.HashBytes(VersionAlgorithm, archive.Bytes())
		if err != nil {
			return nil, err
		}

		compressed, err := utils.Compress(archive.Bytes())
		if err != nil {
			return nil, err
		}

		return protocol.NewFilePayload(id, version.Hex(), name, true, compressed), nil
	}

	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: not a regular file: %s", utils.ErrBadRequest, path)
	}

	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return nil, err
	}

	return contentPayload(id, name, data)
}

func contentPayload(id, name string, data []byte) (*protocol.FilePayload, error) {
	version, err := utils.HashBytes(VersionAlgorithm, data)
	if err != nil {
		return nil, err
	}
	return protocol.NewFilePayload(id, version.Hex(), name, false, data), nil
}

func (r *Registry) install(e *entry) {
	r.Lock()
	defer r.Unlock()

	log.Debugf("new - file - id: %s, name: %s, version: %s", e.payload.Id, e.payload.Name, e.payload.Version)
	r.entries[e.payload.Id] = e
}

// Replaces the entry of a resource that is still registered.
// Fails if the resource was unregistered while the update was prepared.
func (r *Registry) replace(e *entry) error {
	r.Lock()
	defer r.Unlock()

	old, ok := r.entries[e.payload.Id]
	if !ok {
		return fmt.Errorf("%w: file %s", utils.ErrNotFound, e.payload.Id)
	}

	if old.payload.Version != e.payload.Version {
		log.Debugf("upd - file - id: %s, version: %s", e.payload.Id, e.payload.Version)
	}

	r.entries[e.payload.Id] = e
	return nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.RLock()
	defer r.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: file %s", utils.ErrNotFound, id)
	}
	return e, nil
}

// RegisterFile registers the file or directory at path and returns its new id.
// The content is read immediately, later changes on disk are picked up by UpdateFile.
func (r *Registry) RegisterFile(path string) (string, error) {
	id := newId()

	payload, err := r.snapshot(id, path)
	if err != nil {
		return "", err
	}

	r.install(&entry{source: path, payload: payload})
	return id, nil
}

// RegisterContent registers an in-memory file and returns its new id.
func (r *Registry) RegisterContent(name string, data []byte) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: invalid file name: %q", utils.ErrBadRequest, name)
	}

	id := newId()

	payload, err := contentPayload(id, name, data)
	if err != nil {
		return "", err
	}

	r.install(&entry{payload: payload})
	return id, nil
}

// UpdateFile re-reads the source of a resource registered with RegisterFile.
// The version only changes if the content did.
func (r *Registry) UpdateFile(id string) (protocol.FileVersionId, error) {
	e, err := r.lookup(id)
	if err != nil {
		return protocol.FileVersionId{}, err
	}

	if e.source == "" {
		return protocol.FileVersionId{}, fmt.Errorf("%w: file %s has no source path", utils.ErrBadRequest, id)
	}

	payload, err := r.snapshot(id, e.source)
	if err != nil {
		return protocol.FileVersionId{}, err
	}

	if err := r.replace(&entry{source: e.source, payload: payload}); err != nil {
		return protocol.FileVersionId{}, err
	}
	return payload.VersionId(), nil
}

// UpdateContent replaces the content of a file resource.
// Resources backed by a source file have the new content written to it.
func (r *Registry) UpdateContent(id string, data []byte) (protocol.FileVersionId, error) {
	e, err := r.lookup(id)
	if err != nil {
		return protocol.FileVersionId{}, err
	}

	if e.payload.Directory {
		return protocol.FileVersionId{}, fmt.Errorf("%w: file %s is a directory", utils.ErrBadRequest, id)
	}

	if e.source != "" {
		if err := afero.WriteFile(r.fs, e.source, data, 0644); err != nil {
			return protocol.FileVersionId{}, err
		}
	}

	payload, err := contentPayload(id, e.payload.Name, data)
	if err != nil {
		return protocol.FileVersionId{}, err
	}

	if err := r.replace(&entry{source: e.source, payload: payload}); err != nil {
		return protocol.FileVersionId{}, err
	}
	return payload.VersionId(), nil
}

// GetFile returns the current revision of a resource.
func (r *Registry) GetFile(id string) (*protocol.FilePayload, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}

	payload := *e.payload
	return &payload, nil
}

// Unregister removes a resource. The source file, if any, is left in place.
func (r *Registry) Unregister(id string) error {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.entries[id]; !ok {
		return fmt.Errorf("%w: file %s", utils.ErrNotFound, id)
	}

	delete(r.entries, id)
	log.Debugf("del - file - id: %s", id)
	return nil
}

// List returns all registered resources ordered by id.
func (r *Registry) List() []FileInfo {
	r.RLock()
	defer r.RUnlock()

	files := make([]FileInfo, 0, len(r.entries))
	for _, e := range r.entries {
		files = append(files, e.info())
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Id < files[j].Id
	})

	return files
}
