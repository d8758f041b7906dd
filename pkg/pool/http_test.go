package pool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/srand/jolt/grid/pkg/identity"
	"github.com/srand/jolt/grid/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Pool, *httptest.Server) {
	p := NewPool()
	p.Register(identity.NewIdentity("linux", map[string]string{"node.os": "linux"}, nil))

	r := utils.NewEcho()
	NewHttpHandler(p, SelectDefaults{MatchTimeout: time.Second, NoMatchTimeout: 10 * time.Millisecond}, r)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return p, server
}

func postSelect(t *testing.T, server *httptest.Server, request SelectRequest) *http.Response {
	body, err := json.Marshal(request)
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/tokens/select", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHttpSelectAndReturn(t *testing.T) {
	p, server := newTestServer(t)

	resp := postSelect(t, server, SelectRequest{
		Interests: map[string]identity.Interest{"node.os": identity.NewExactInterest("linux")},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	info := TokenInfo{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, "linux", info.Identity)
	assert.Equal(t, TokenLeased, info.State)
	assert.Equal(t, int64(1), p.Statistics().Leased)

	resp, err := http.Post(server.URL+"/tokens/"+info.Id+"/return", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Second return is not a lease
	resp, err = http.Post(server.URL+"/tokens/"+info.Id+"/return", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHttpSelectTimeout(t *testing.T) {
	_, server := newTestServer(t)

	resp := postSelect(t, server, SelectRequest{
		Interests: map[string]identity.Interest{"node.os": identity.NewExactInterest("windows")},
	})
	assert.Equal(t, http.StatusRequestTimeout, resp.StatusCode)

	body := utils.HttpError{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Message, "Timeout")
}

func TestHttpSelectBadTimeout(t *testing.T) {
	_, server := newTestServer(t)

	resp := postSelect(t, server, SelectRequest{MatchTimeout: "soon"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHttpInvalidateAndCapacity(t *testing.T) {
	p, server := newTestServer(t)
	token := p.Register(identity.NewIdentity("windows", map[string]string{"node.os": "windows"}, nil))

	request, err := http.NewRequest(http.MethodDelete, server.URL+"/tokens/"+token.Id(), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.DefaultClient.Do(request)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(server.URL + "/capacity?group=node.os")
	require.NoError(t, err)
	defer resp.Body.Close()

	groups := []TokenGroupCapacity{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&groups))
	require.Len(t, groups, 1)
	assert.Equal(t, "linux", groups[0].Key["node.os"])
	assert.Equal(t, 1, groups[0].Capacity)
}

func TestHttpTokens(t *testing.T) {
	_, server := newTestServer(t)

	resp, err := http.Get(server.URL + "/tokens")
	require.NoError(t, err)
	defer resp.Body.Close()

	tokens := []TokenInfo{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tokens))
	require.Len(t, tokens, 1)
	assert.Equal(t, TokenFree, tokens[0].State)
	assert.Equal(t, "linux", tokens[0].Attributes["node.os"])
}

// A response writer whose connection is gone.
type brokenWriter struct {
	header http.Header
}

func (w *brokenWriter) Header() http.Header {
	return w.header
}

func (w *brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func (w *brokenWriter) WriteHeader(statusCode int) {}

func newSelectRequest(t *testing.T, ctx context.Context) *http.Request {
	body, err := json.Marshal(SelectRequest{})
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodPost, "/tokens/select", bytes.NewReader(body)).WithContext(ctx)
	request.Header.Set("Content-Type", "application/json")
	return request
}

func TestHttpSelectUndeliveredIsReturned(t *testing.T) {
	p := NewPool()
	p.Register(identity.NewIdentity("linux", map[string]string{"node.os": "linux"}, nil))

	r := utils.NewEcho()
	NewHttpHandler(p, SelectDefaults{MatchTimeout: time.Second, NoMatchTimeout: time.Second}, r)

	r.ServeHTTP(&brokenWriter{header: http.Header{}}, newSelectRequest(t, context.Background()))

	assert.Equal(t, int64(1), p.Statistics().Selections)
	assert.Equal(t, int64(0), p.Statistics().Leased)
	assert.Equal(t, int64(1), p.Statistics().Free)
}

func TestHttpSelectDisconnectedIsReturned(t *testing.T) {
	p := NewPool()
	p.Register(identity.NewIdentity("linux", map[string]string{"node.os": "linux"}, nil))

	r := utils.NewEcho()
	NewHttpHandler(p, SelectDefaults{MatchTimeout: time.Second, NoMatchTimeout: time.Second}, r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	recorder := httptest.NewRecorder()
	r.ServeHTTP(recorder, newSelectRequest(t, ctx))

	assert.NotEqual(t, http.StatusOK, recorder.Code)
	assert.Equal(t, int64(0), p.Statistics().Leased)
	assert.Equal(t, int64(1), p.Statistics().Free)
}
