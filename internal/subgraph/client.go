package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
)

// ErrNoEndpoint is returned when the client has no endpoint configured for a subgraph.
var ErrNoEndpoint = errors.New("subgraph endpoint not configured")

// Client queries the protocol and feeders subgraphs with retry on 429.
type Client struct {
	protocolURL string
	feedersURL  string
	httpClient  *http.Client
	maxRetries  int
	baseDelay   time.Duration
}

// NewClient creates a subgraph client. An empty feedersURL means the network has no feeders subgraph.
func NewClient(protocolURL, feedersURL string, maxRetries int, baseDelay time.Duration) *Client {
	return &Client{
		protocolURL: protocolURL,
		feedersURL:  feedersURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxRetries:  maxRetries,
		baseDelay:   baseDelay,
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

func accountVariables(account string) map[string]any {
	return map[string]any{
		"account":    strings.ToLower(account),
		"hasAccount": account != "",
	}
}

// Massets fetches every masset with the given account's savings positions.
func (c *Client) Massets(ctx context.Context, account string) (*MassetsResult, error) {
	if c.protocolURL == "" {
		return nil, ErrNoEndpoint
	}
	var result MassetsResult
	if err := c.query(ctx, c.protocolURL, massetsQuery, accountVariables(account), &result); err != nil {
		return nil, fmt.Errorf("querying massets: %w", err)
	}
	return &result, nil
}

// FeederPools fetches feeder pools, save vaults and boost bookkeeping. When the network has no
// feeders subgraph the empty result is returned.
func (c *Client) FeederPools(ctx context.Context, account string) (*FeederPoolsResult, error) {
	if c.feedersURL == "" {
		return EmptyFeederPools(), nil
	}
	var result FeederPoolsResult
	if err := c.query(ctx, c.feedersURL, feederPoolsQuery, accountVariables(account), &result); err != nil {
		return nil, fmt.Errorf("querying feeder pools: %w", err)
	}
	return &result, nil
}

// query POSTs a GraphQL request and decodes the data section into dest.
func (c *Client) query(ctx context.Context, url, query string, variables map[string]any, dest any) error {
	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	body, err := c.post(ctx, url, payload)
	if err != nil {
		return err
	}

	var resp graphQLResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("parsing JSON from %s: %w", url, err)
	}
	if len(resp.Errors) > 0 {
		msgs := lo.Map(resp.Errors, func(e graphQLError, _ int) string { return e.Message })
		return fmt.Errorf("graphql errors from %s: %s", url, strings.Join(msgs, "; "))
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return fmt.Errorf("empty data from %s", url)
	}
	if err := json.Unmarshal(resp.Data, dest); err != nil {
		return fmt.Errorf("decoding data from %s: %w", url, err)
	}
	return nil
}

// post performs a POST request with retry on 429.
func (c *Client) post(ctx context.Context, url string, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := range c.maxRetries + 1 {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("HTTP 429 at %s (attempt %d/%d)", url, attempt+1, c.maxRetries+1)
			if attempt < c.maxRetries {
				delay := c.baseDelay * time.Duration(1<<uint(attempt))
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
				continue
			}
			return nil, lastErr
		}

		return nil, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, url, string(body))
	}

	return nil, lastErr
}
