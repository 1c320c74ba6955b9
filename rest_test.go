package mirror_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	mirror "github.com/WelcomerTeam/Mirror"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method string
	path   string
	header http.Header
	body   []byte
}

type restServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recordedRequest

	status   int
	response string
}

func newRESTServer(t *testing.T, status int, response string) *restServer {
	t.Helper()

	server := &restServer{status: status, response: response}

	server.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		server.mu.Lock()
		server.requests = append(server.requests, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			header: r.Header.Clone(),
			body:   body,
		})
		server.mu.Unlock()

		w.WriteHeader(server.status)
		_, _ = w.Write([]byte(server.response))
	}))

	t.Cleanup(server.Close)

	return server
}

func (s *restServer) Requests() []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]recordedRequest{}, s.requests...)
}

func (s *restServer) host(t *testing.T) url.URL {
	t.Helper()

	host, err := url.Parse(s.URL)
	require.NoError(t, err)

	return *host
}

func TestRESTSendMessage(t *testing.T) {
	t.Parallel()

	server := newRESTServer(t, http.StatusOK, `{"id":"150","channel_id":"10","content":"hi","nonce":"1234"}`)
	rest := mirror.NewHTTPRESTClient(nil, server.host(t), "token")

	message, err := rest.SendMessage(context.Background(), 10, "hi", "1234")
	require.NoError(t, err)

	assert.Equal(t, "150", message.ID.String())
	assert.Equal(t, "1234", message.Nonce)

	requests := server.Requests()
	require.Len(t, requests, 1)

	assert.Equal(t, http.MethodPost, requests[0].method)
	assert.Equal(t, "/api/v9/channels/10/messages", requests[0].path)
	assert.Equal(t, "token", requests[0].header.Get("Authorization"))
	assert.Equal(t, "application/json", requests[0].header.Get("Content-Type"))
	assert.Equal(t, mirror.UserAgent, requests[0].header.Get("User-Agent"))

	var body map[string]any

	require.NoError(t, jsoniter.Unmarshal(requests[0].body, &body))
	assert.Equal(t, map[string]any{"content": "hi", "nonce": "1234"}, body)
}

func TestRESTUnexpectedStatus(t *testing.T) {
	t.Parallel()

	server := newRESTServer(t, http.StatusTooManyRequests, `{"message":"You are being rate limited."}`)
	rest := mirror.NewHTTPRESTClient(nil, server.host(t), "token")

	_, err := rest.SendMessage(context.Background(), 10, "hi", "1234")
	assert.ErrorIs(t, err, mirror.ErrUnexpectedStatus)
	assert.ErrorContains(t, err, "429")

	err = rest.TrackEvent(context.Background(), "ready_received", nil)
	assert.ErrorIs(t, err, mirror.ErrUnexpectedStatus)
}

func TestRESTTrackEvent(t *testing.T) {
	t.Parallel()

	server := newRESTServer(t, http.StatusNoContent, "")
	rest := mirror.NewHTTPRESTClient(nil, server.host(t), "token")

	require.NoError(t, rest.TrackEvent(context.Background(), "ready_received", map[string]any{"guilds": 2}))

	requests := server.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "/api/v9/science", requests[0].path)
	assert.JSONEq(t, `{"events":[{"type":"ready_received","properties":{"guilds":2}}]}`, string(requests[0].body))
}

func TestProxyClientRewritesHost(t *testing.T) {
	t.Parallel()

	server := newRESTServer(t, http.StatusOK, `{}`)
	client := mirror.NewProxyClient(http.Client{}, server.host(t))

	for _, path := range []string{"/users/@me", "/api/v10/users/@me"} {
		resp, err := client.Get("https://discord.com" + path)
		require.NoError(t, err)
		resp.Body.Close()
	}

	requests := server.Requests()
	require.Len(t, requests, 2)

	assert.Equal(t, "/api/v9/users/@me", requests[0].path)
	assert.Equal(t, "/api/v10/users/@me", requests[1].path)
	assert.Equal(t, mirror.UserAgent, requests[0].header.Get("User-Agent"))
}
