package utils

import (
	"github.com/spf13/afero"
	"github.com/srand/jolt/grid/pkg/log"
)

// Dependency injection for Afero
type Fs afero.Fs

type File afero.File

// NewFs creates the storage filesystem for a configured path.
// The special path "memory" selects an in-memory filesystem,
// any other path is created if missing and used as the root
// of a base path filesystem.
func NewFs(path string) (Fs, error) {
	if path == "memory" {
		log.Info("Using in-memory data storage")
		return afero.NewMemMapFs(), nil
	}

	log.Info("Using disk data storage:", path)

	osfs := afero.NewOsFs()
	if err := osfs.MkdirAll(path, 0777); err != nil {
		return nil, err
	}

	return afero.NewBasePathFs(osfs, path), nil
}
