package mirror

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/WelcomerTeam/Mirror/discord"
)

var UserAgent = fmt.Sprintf("Mirror/%s (https://github.com/WelcomerTeam/Mirror)", Version)

const DefaultAPIURL = "https://discord.com"

// HTTPRESTClient is a RESTClient that posts directly to the API, or through
// a proxy such as nirn when Host points at one.
type HTTPRESTClient struct {
	client *http.Client
	host   url.URL
	token  string
}

func NewHTTPRESTClient(client *http.Client, host url.URL, token string) *HTTPRESTClient {
	if client == nil {
		client = &http.Client{}
	}

	return &HTTPRESTClient{
		client: NewProxyClient(*client, host),
		host:   host,
		token:  token,
	}
}

// NewProxyClient creates an HTTP client that redirects all requests through
// host.
func NewProxyClient(client http.Client, host url.URL) *http.Client {
	if client.Transport == nil {
		client.Transport = http.DefaultTransport
	}

	client.Transport = &proxyTransport{
		host:      host,
		transport: client.Transport,
	}

	return &client
}

type proxyTransport struct {
	host      url.URL
	transport http.RoundTripper
}

func (t *proxyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	proxyReq := req.Clone(req.Context())

	proxyReq.URL.Host = t.host.Host
	proxyReq.URL.Scheme = t.host.Scheme
	proxyReq.Host = t.host.Host

	if !strings.HasPrefix(proxyReq.URL.Path, "/api") {
		proxyReq.URL.Path = "/api/v9" + proxyReq.URL.Path
	}

	proxyReq.Header.Set("User-Agent", UserAgent)

	resp, err := t.transport.RoundTrip(proxyReq)
	if err != nil {
		return nil, fmt.Errorf("failed to round trip: %w", err)
	}

	return resp, nil
}

type createMessage struct {
	Content string `json:"content"`
	Nonce   string `json:"nonce"`
}

func (r *HTTPRESTClient) SendMessage(ctx context.Context, channelID discord.Snowflake, content, nonce string) (*discord.Message, error) {
	var message discord.Message

	err := r.do(ctx, http.MethodPost, "/channels/"+channelID.String()+"/messages", createMessage{
		Content: content,
		Nonce:   nonce,
	}, &message)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

type trackEvent struct {
	Events []trackEventEntry `json:"events"`
}

type trackEventEntry struct {
	Properties map[string]any `json:"properties"`
	Type       string         `json:"type"`
}

func (r *HTTPRESTClient) TrackEvent(ctx context.Context, name string, properties map[string]any) error {
	return r.do(ctx, http.MethodPost, "/science", trackEvent{
		Events: []trackEventEntry{{Type: name, Properties: properties}},
	}, nil)
}

func (r *HTTPRESTClient) do(ctx context.Context, method, path string, body, response any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.host.String()+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", r.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to do request: %w", err)
	}

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s returned %d", ErrUnexpectedStatus, method, path, resp.StatusCode)
	}

	if response == nil || len(data) == 0 {
		return nil
	}

	if err = json.Unmarshal(data, response); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}
