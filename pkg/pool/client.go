package pool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/srand/jolt/grid/pkg/utils"
)

// Client of a dispatcher's HTTP API.
type HttpClient struct {
	baseUrl string
	client  *http.Client
}

// NewHttpClient returns a client for the dispatcher at baseUrl,
// e.g. http://dispatcher:8080. A nil client selects http.DefaultClient.
func NewHttpClient(baseUrl string, client *http.Client) *HttpClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HttpClient{
		baseUrl: strings.TrimSuffix(baseUrl, "/"),
		client:  client,
	}
}

func (c *HttpClient) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseUrl+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode >= 300 {
		httpErr := utils.HttpError{}
		if err := json.NewDecoder(response.Body).Decode(&httpErr); err != nil || httpErr.Message == "" {
			httpErr.Message = response.Status
		}
		if sentinel := utils.FromHttpStatus(response.StatusCode); sentinel != nil {
			return utils.RemoteError(sentinel, httpErr.Message)
		}
		return fmt.Errorf("dispatcher: %s", httpErr.Message)
	}

	if result == nil {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(result)
}

// Select leases a token matching the request.
func (c *HttpClient) Select(ctx context.Context, request SelectRequest) (*TokenInfo, error) {
	info := &TokenInfo{}
	if err := c.do(ctx, http.MethodPost, "/tokens/select", request, info); err != nil {
		return nil, err
	}
	return info, nil
}

// Return gives a leased token back to the pool.
func (c *HttpClient) Return(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/tokens/"+url.PathEscape(id)+"/return", nil, nil)
}

// Invalidate removes a token from the pool.
func (c *HttpClient) Invalidate(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tokens/"+url.PathEscape(id), nil, nil)
}

func (c *HttpClient) Tokens(ctx context.Context) ([]TokenInfo, error) {
	tokens := []TokenInfo{}
	if err := c.do(ctx, http.MethodGet, "/tokens", nil, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (c *HttpClient) Capacity(ctx context.Context, groupBy ...string) ([]TokenGroupCapacity, error) {
	query := url.Values{}
	for _, key := range groupBy {
		query.Add("group", key)
	}

	groups := []TokenGroupCapacity{}
	if err := c.do(ctx, http.MethodGet, "/capacity?"+query.Encode(), nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}
