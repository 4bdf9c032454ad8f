package particle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Cloud defines the calls the monitor makes against the Particle cloud.
// It is implemented by *Client and can be faked in tests.
type Cloud interface {
	Stream(ctx context.Context, deviceID string, h StreamHandler) error
	FetchDoorState(ctx context.Context, deviceID string) (DoorState, error)
	Ping(ctx context.Context) error
}

// Ensure Client implements Cloud at compile time.
var _ Cloud = (*Client)(nil)

// Client talks to the Particle cloud API.
type Client struct {
	baseURL   *url.URL
	token     string
	http      *http.Client
	stream    *http.Client
	userAgent string

	// streamIdle bounds the silence tolerated on an open event stream.
	streamIdle time.Duration
}

const (
	defaultBaseURL        = "https://api.particle.io"
	defaultUserAgent      = "ocupado/0.1"
	requestTimeout        = 10 * time.Second
	streamResponseTimeout = 15 * time.Second
	// The cloud sends a keepalive comment well inside this window.
	streamIdleTimeout     = 90 * time.Second
)

// NewClient builds a Client for baseURL authenticating with token.
func NewClient(baseURL, token string) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("access token is empty")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = streamResponseTimeout

	return &Client{
		baseURL: base,
		token:   strings.TrimSpace(token),
		http: &http.Client{
			Timeout: requestTimeout,
		},
		// Streams are long lived; Stream enforces its own idle deadline.
		stream:     &http.Client{Transport: transport},
		userAgent:  defaultUserAgent,
		streamIdle: streamIdleTimeout,
	}, nil
}

// FetchDoorState reads the door variable of one device.
func (c *Client) FetchDoorState(ctx context.Context, deviceID string) (DoorState, error) {
	if c == nil {
		return DoorState{}, fmt.Errorf("client is nil")
	}
	rel, err := devicePath(deviceID, DoorVariable)
	if err != nil {
		return DoorState{}, err
	}
	var payload variableResponse
	if err := c.doURL(ctx, http.MethodGet, rel, &payload); err != nil {
		return DoorState{}, err
	}
	return payload.doorState(), nil
}

// Ping checks that the API root answers at all. Any HTTP response, including
// an error status, counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	req, err := c.newRequest(ctx, http.MethodHead, &url.URL{Path: "/"})
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

func (c *Client) newRequest(ctx context.Context, method string, rel *url.URL) (*http.Request, error) {
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, dest any) error {
	req, err := c.newRequest(ctx, method, rel)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api %s returned status %d", rel.Path, resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func devicePath(deviceID string, elems ...string) (*url.URL, error) {
	id := strings.TrimSpace(deviceID)
	if id == "" || strings.ContainsAny(id, "/?#") {
		return nil, fmt.Errorf("invalid device id %q", deviceID)
	}
	parts := append([]string{"/v1/devices", id}, elems...)
	return &url.URL{Path: strings.Join(parts, "/")}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base_url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base_url %q has no host", raw)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
