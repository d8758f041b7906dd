package filecache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/srand/jolt/grid/pkg/log"
	"github.com/srand/jolt/grid/pkg/protocol"
	"github.com/srand/jolt/grid/pkg/utils"
)

// Directory holding all materialised revisions of a resource.
func resourceDir(id string) string {
	return filepath.Clean(id)
}

// Directory holding one materialised revision of a resource.
func versionDir(version protocol.FileVersionId) string {
	return filepath.Join(resourceDir(version.Id), version.Version)
}

func checkPathElement(kind, value string) error {
	if value == "" || value == "." || value == ".." || filepath.Base(value) != value {
		return fmt.Errorf("%w: invalid %s: %q", utils.ErrBadRequest, kind, value)
	}
	return nil
}

// Writes a payload to <id>/<version>/<name> and returns that path.
//
// The content is first written to a temporary directory which is then
// renamed into place, so a failure never leaves a partial revision behind.
func materialize(fs utils.Fs, payload *protocol.FilePayload) (string, error) {
	if err := payload.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrBadRequest, err)
	}
	for kind, value := range map[string]string{"id": payload.Id, "version": payload.Version, "name": payload.Name} {
		if err := checkPathElement(kind, value); err != nil {
			return "", err
		}
	}

	data, err := payload.Decode()
	if err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrBadRequest, err)
	}

	if err := fs.MkdirAll(resourceDir(payload.Id), 0755); err != nil {
		return "", err
	}

	tmpDir, err := afero.TempDir(fs, resourceDir(payload.Id), ".tmp-")
	if err != nil {
		return "", err
	}

	if err := writeContent(fs, payload, data, filepath.Join(tmpDir, payload.Name)); err != nil {
		fs.RemoveAll(tmpDir)
		return "", err
	}

	dir := versionDir(payload.VersionId())

	// Leftover from an earlier run. Never the installed revision, which
	// the cache reuses instead of fetching again.
	if err := fs.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
		fs.RemoveAll(tmpDir)
		return "", err
	}

	if err := fs.Rename(tmpDir, dir); err != nil {
		fs.RemoveAll(tmpDir)
		return "", err
	}

	path := filepath.Join(dir, payload.Name)
	log.Tracef("Materialised %s at %s (%s)", payload.VersionId(), path, utils.HumanByteSize(int64(len(data))))
	return path, nil
}

func writeContent(fs utils.Fs, payload *protocol.FilePayload, data []byte, path string) error {
	if !payload.Directory {
		return afero.WriteFile(fs, path, data, 0644)
	}

	archive, err := utils.Decompress(data)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrBadRequest, err)
	}

	return utils.Untar(fs, archive, path)
}
