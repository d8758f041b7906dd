package filecache

import (
	"context"

	"github.com/srand/jolt/grid/pkg/protocol"
)

// In-process source of payloads, e.g. a *registry.Registry.
type FileSource interface {
	GetFile(id string) (*protocol.FilePayload, error)
}

// Reads payloads directly from a registry in the same process.
type LocalProvider struct {
	source FileSource
}

func NewLocalProvider(source FileSource) *LocalProvider {
	return &LocalProvider{source: source}
}

func (p *LocalProvider) GetFile(ctx context.Context, id string) (*protocol.FilePayload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.source.GetFile(id)
}
