package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/atotto/clipboard"
	"github.com/pkg/browser"

	"github.com/connect-button/connect/internal/button"
	"github.com/connect-button/connect/internal/connection"
)

// maxIconBytes caps icon downloads.
const maxIconBytes = 64 << 10

// HTTPClient makes REST calls to the Connect API.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
	log     *slog.Logger

	open func(string) error
	copy func(string) error
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:8090").
func NewHTTPClient(baseURL, token string, log *slog.Logger) *HTTPClient {
	if log == nil {
		log = slog.Default()
	}
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
		open:    browser.OpenURL,
		copy:    clipboard.WriteAll,
	}
}

// SetLauncher replaces the browser opener and the clipboard fallback used
// for authentication pages.
func (c *HTTPClient) SetLauncher(open, clip func(string) error) {
	if open != nil {
		c.open = open
	}
	if clip != nil {
		c.copy = clip
	}
}

// GetConnection fetches GET /api/connections/{id}.
func (c *HTTPClient) GetConnection(ctx context.Context, id string) (connection.Connection, error) {
	var out connection.Connection
	if err := c.do(ctx, http.MethodGet, "/api/connections/"+url.PathEscape(id), nil, &out); err != nil {
		return connection.Connection{}, err
	}
	return out, nil
}

// DisableConnection sends POST /api/connections/{id}/disable.
func (c *HTTPClient) DisableConnection(ctx context.Context, id string) (connection.Connection, error) {
	var out connection.Connection
	if err := c.do(ctx, http.MethodPost, "/api/connections/"+url.PathEscape(id)+"/disable", nil, &out); err != nil {
		return connection.Connection{}, err
	}
	return out, nil
}

// Connect starts authentication for conn and opens the returned page in
// the browser. When no browser can be launched the URL is copied to the
// clipboard instead. The outcome arrives later over the websocket.
func (c *HTTPClient) Connect(ctx context.Context, conn connection.Connection, email string, state button.State) error {
	var resp connectResponse
	body := connectRequest{Email: email, State: state.String()}
	if err := c.do(ctx, http.MethodPost, "/api/connections/"+url.PathEscape(conn.ID)+"/connect", body, &resp); err != nil {
		return err
	}
	if resp.AuthURL == "" {
		return connection.ErrorResponse{Kind: "bad_response", Message: "missing authentication url"}
	}
	if err := c.open(resp.AuthURL); err != nil {
		c.log.Warn("open browser", "error", err)
		if err := c.copy(resp.AuthURL); err != nil {
			return fmt.Errorf("open %s: %w", resp.AuthURL, err)
		}
		c.log.Info("authentication url copied to clipboard", "url", resp.AuthURL)
	}
	return nil
}

// Load fetches an icon. Relative URLs resolve against the base URL.
func (c *HTTPClient) Load(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := c.resolve(rawURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: %d", u, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxIconBytes))
}

func (c *HTTPClient) resolve(rawURL string) (string, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeError(method, path, resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// decodeError turns a non-2xx response into an ErrorResponse, keeping the
// raw body as the message when it is not one.
func decodeError(method, path string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e connection.ErrorResponse
	if json.Unmarshal(data, &e) == nil && e.Kind != "" {
		return e
	}
	return connection.ErrorResponse{
		Kind:    fmt.Sprintf("http_%d", resp.StatusCode),
		Message: fmt.Sprintf("%s %s: %s", method, path, bytes.TrimSpace(data)),
	}
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
