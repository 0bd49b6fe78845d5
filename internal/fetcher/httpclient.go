package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Shared HTTP plumbing for fetchers that talk to REST and GraphQL upstreams.
// The retryable client absorbs transient connection errors; HTTP status
// classification into retriable vs terminal happens here so individual
// fetchers only deal in FetchError.

// newRetryClient creates a new HTTP client with retry capabilities.
func newRetryClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.Logger = nil
	return c
}

// httpClient wraps the shared standard client with JSON helpers.
type httpClient struct {
	client *http.Client
}

func newHTTPClient() *httpClient {
	return &httpClient{client: newRetryClient().StandardClient()}
}

// statusErr maps an HTTP status to the retry classification: 5xx and 429 are
// retriable, other non-2xx are terminal.
func statusErr(kind Kind, url string, status int) error {
	err := fmt.Errorf("unexpected status %d from %s", status, url)
	if status >= 500 || status == http.StatusTooManyRequests {
		return retriable(kind, err)
	}
	return terminal(kind, err)
}

// getJSON fetches a URL and decodes the JSON body into out.
func (h *httpClient) getJSON(ctx context.Context, kind Kind, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return terminal(kind, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return retriable(kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusErr(kind, url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return terminal(kind, fmt.Errorf("decode %s: %w", url, err))
	}
	return nil
}

// getBody fetches a URL and returns the raw body (used by the scraper PoR).
func (h *httpClient) getBody(ctx context.Context, kind Kind, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, terminal(kind, err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, retriable(kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusErr(kind, url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, retriable(kind, err)
	}
	return body, nil
}

// graphqlQuery posts a GraphQL query and decodes data into out.
func (h *httpClient) graphqlQuery(ctx context.Context, kind Kind, url, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return terminal(kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return terminal(kind, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return retriable(kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusErr(kind, url, resp.StatusCode)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return terminal(kind, fmt.Errorf("decode graphql response: %w", err))
	}
	if len(envelope.Errors) > 0 {
		return terminal(kind, fmt.Errorf("graphql error: %s", envelope.Errors[0].Message))
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return terminal(kind, fmt.Errorf("decode graphql data: %w", err))
	}
	return nil
}
