// Package chain reads contract state over Ethereum JSON-RPC.
package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// ErrNoEndpoints is returned by a client configured without RPC URLs.
var ErrNoEndpoints = errors.New("no RPC endpoints configured")

// BlockLatest is the default block tag for reads.
const BlockLatest = "latest"

// Caller executes read-only contract calls.
type Caller interface {
	EthCall(ctx context.Context, to string, calldata []byte) ([]byte, error)
}

// EndpointError is the node's JSON-RPC error object, e.g. a reverted call.
type EndpointError struct {
	Endpoint string
	Code     int    `json:"code"`
	Message  string `json:"message"`
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("%s: rpc error %d: %s", e.Endpoint, e.Code, e.Message)
}

// StatusError is a non-200 HTTP response from an endpoint.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.Endpoint, e.StatusCode)
}

// RPCClient issues eth_call against an ordered list of endpoints. The first URL is primary;
// the others are tried in order when it fails.
type RPCClient struct {
	urls       []string
	blockTag   string
	httpClient *http.Client
	nextID     atomic.Int64
}

// RPCOption customizes an RPCClient.
type RPCOption func(*RPCClient)

// WithBlockTag pins reads to a block tag or hex block number instead of "latest".
func WithBlockTag(tag string) RPCOption {
	return func(c *RPCClient) {
		if tag != "" {
			c.blockTag = tag
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) RPCOption {
	return func(c *RPCClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewRPCClient creates a client for urls. Empty URLs are dropped.
func NewRPCClient(urls []string, opts ...RPCOption) *RPCClient {
	c := &RPCClient{
		blockTag:   BlockLatest,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			c.urls = append(c.urls, u)
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type callEnvelope struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type callReply struct {
	ID     int64          `json:"id"`
	Result *string        `json:"result"`
	Error  *EndpointError `json:"error"`
}

type callArgs struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

// EthCall runs calldata against contract to at the client's block tag. When every endpoint
// fails the returned error joins the per-endpoint failures, so errors.As finds a
// *EndpointError or *StatusError.
func (c *RPCClient) EthCall(ctx context.Context, to string, calldata []byte) ([]byte, error) {
	if len(c.urls) == 0 {
		return nil, ErrNoEndpoints
	}

	env := callEnvelope{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  "eth_call",
		Params:  []any{callArgs{To: to, Data: HexEncode(calldata)}, c.blockTag},
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding eth_call: %w", err)
	}

	var errs []error
	for _, url := range c.urls {
		out, err := c.post(ctx, url, env.ID, body)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("eth_call %s: all %d endpoints failed: %w", to, len(c.urls), errors.Join(errs...))
}

func (c *RPCClient) post(ctx context.Context, url string, id int64, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: building request: %w", url, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Endpoint: url, StatusCode: resp.StatusCode}
	}

	var reply callReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("%s: decoding reply: %w", url, err)
	}
	if reply.Error != nil {
		reply.Error.Endpoint = url
		return nil, reply.Error
	}
	if reply.ID != id {
		return nil, fmt.Errorf("%s: reply id %d does not match request %d", url, reply.ID, id)
	}
	if reply.Result == nil {
		return nil, fmt.Errorf("%s: reply has neither result nor error", url)
	}

	out, err := hex.DecodeString(strings.TrimPrefix(*reply.Result, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%s: decoding result hex: %w", url, err)
	}
	return out, nil
}
