// Package swarm drives peer-distributed transfers through an aria2-style
// JSON-RPC daemon. The daemon owns the peer wire protocol; this package only
// speaks the RPC contract it needs: add, status, file selection, removal and
// async notifications.
package swarm

import (
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Client is a thin JSON-RPC client handle. It is cheap to create and carries
// no transfer state of its own.
type Client struct {
	baseURL *url.URL
	secret  string
	http    *http.Client
}

// NewClient builds a client for the given RPC endpoint.
func NewClient(rawURL, secret string, timeout time.Duration) (*Client, error) {
	if rawURL == "" {
		rawURL = "http://127.0.0.1:6800/jsonrpc"
	}
	baseURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// NewClientFromEnv builds a client from SWARM_RPC_URL, SWARM_RPC_SECRET and
// SWARM_TIMEOUT_MS.
func NewClientFromEnv() (*Client, error) {
	ms := 3000
	if v := os.Getenv("SWARM_TIMEOUT_MS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			ms = parsed
		}
	}
	return NewClient(os.Getenv("SWARM_RPC_URL"), os.Getenv("SWARM_RPC_SECRET"),
		time.Duration(ms)*time.Millisecond)
}

func (c *Client) BaseURL() *url.URL { return c.baseURL }
func (c *Client) Secret() string    { return c.secret }
func (c *Client) HTTP() *http.Client { return c.http }
