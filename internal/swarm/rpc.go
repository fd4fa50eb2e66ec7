package swarm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/seriarr/seriarr/internal/metrics"
)

// --- JSON-RPC wire types ---

type rpcReq struct {
	Jsonrpc string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	ID      string        `json:"id"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResp struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Call performs one JSON-RPC request against the daemon.
func (c *Client) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	timer := prometheus.NewTimer(metrics.SwarmRPCLatency.WithLabelValues(method))
	defer timer.ObserveDuration()
	body, _ := json.Marshal(rpcReq{Jsonrpc: "2.0", Method: method, ID: "seriarr", Params: params})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.SwarmRPCErrors.WithLabelValues(method).Inc()
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		metrics.SwarmRPCErrors.WithLabelValues(method).Inc()
		return nil, fmt.Errorf("swarm http %d: %s", resp.StatusCode, string(b))
	}
	b, _ := io.ReadAll(resp.Body)

	var rr rpcResp
	if err := json.Unmarshal(b, &rr); err != nil {
		metrics.SwarmRPCErrors.WithLabelValues(method).Inc()
		return nil, fmt.Errorf("swarm rpc decode: %w (%s)", err, string(b))
	}
	if rr.Error != nil {
		metrics.SwarmRPCErrors.WithLabelValues(method).Inc()
		return nil, fmt.Errorf("swarm rpc error %d: %s", rr.Error.Code, rr.Error.Message)
	}
	return rr.Result, nil
}

// tokenParam yields the secret parameter when configured; the daemon expects
// "token:<secret>" as the first positional param.
func (c *Client) tokenParam() []interface{} {
	if c.secret != "" {
		return []interface{}{"token:" + c.secret}
	}
	return nil
}

// isGIDNotFoundError detects when the daemon reports a missing GID, which
// Release treats as already-released.
func isGIDNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "gid not found") || strings.Contains(msg, "not found")
}
