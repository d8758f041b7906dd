package filecache

import (
	"context"

	"github.com/srand/jolt/grid/pkg/protocol"
)

// A Provider fetches the current revision of a resource from its registry.
type Provider interface {
	GetFile(ctx context.Context, id string) (*protocol.FilePayload, error)
}
