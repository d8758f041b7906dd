package filecache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/srand/jolt/grid/pkg/protocol"
	"github.com/srand/jolt/grid/pkg/utils"
)

// Fetches payloads from a remote registry's HTTP API.
type HttpProvider struct {
	baseUrl string
	client  *http.Client
}

// NewHttpProvider returns a provider for the registry at baseUrl,
// e.g. http://registry:8080. A nil client selects http.DefaultClient.
func NewHttpProvider(baseUrl string, client *http.Client) *HttpProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HttpProvider{
		baseUrl: strings.TrimSuffix(baseUrl, "/"),
		client:  client,
	}
}

func (p *HttpProvider) GetFile(ctx context.Context, id string) (*protocol.FilePayload, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseUrl+"/files/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	response, err := p.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		body := utils.HttpError{}
		if err := json.NewDecoder(response.Body).Decode(&body); err != nil || body.Message == "" {
			body.Message = response.Status
		}

		if sentinel := utils.FromHttpStatus(response.StatusCode); sentinel != nil {
			return nil, utils.RemoteError(sentinel, body.Message)
		}
		return nil, fmt.Errorf("registry: %s", body.Message)
	}

	payload := &protocol.FilePayload{}
	if err := json.NewDecoder(response.Body).Decode(payload); err != nil {
		return nil, err
	}

	return payload, nil
}
