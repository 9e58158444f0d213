// Package backend is the client for the store's transaction API. The API has
// two endpoint generations; this package always tries the Lv1 endpoint first
// and falls back to the legacy one on 404, reconciling both wire schemas into
// the canonical domain types.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	productsV1Path     = "/api/v1/products"
	productsLegacyPath = "/products"
	purchaseV1Path     = "/api/v1/purchase"
	purchaseLegacyPath = "/purchase"
	historyPath        = "/purchase-history"

	// Read calls get 10s, writes 15s. Expiry cancels the in-flight request
	// and is reported as a timeout, distinct from an unreachable backend.
	readTimeout  = 10 * time.Second
	writeTimeout = 15 * time.Second
)

// Client talks to the backend API.
type Client struct {
	baseURL string
	http    *http.Client
	cache   ProductCache
	ttl     time.Duration
}

// NewClient builds a client for the given base URL. cache may be nil, in
// which case lookups always hit the network.
func NewClient(baseURL string, cache ProductCache, cacheTTL time.Duration) *Client {
	if cache == nil {
		cache = NoopProductCache{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		cache:   cache,
		ttl:     cacheTTL,
	}
}

// get issues a GET bounded by the read timeout.
func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	// The body must be fully read before the deadline; all callers decode
	// immediately, so tie cancellation to body close.
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// post issues a JSON POST bounded by the write timeout.
func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method string, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	return resp, nil
}

func classifyTransport(err error) *NetworkError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &NetworkError{Err: err, Timeout: true}
	}
	var timeouter interface{ Timeout() bool }
	if errors.As(err, &timeouter) && timeouter.Timeout() {
		return &NetworkError{Err: err, Timeout: true}
	}
	return &NetworkError{Err: err}
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// serverErrorFrom drains a failed reply into a ServerError, preferring the
// server's own detail text and falling back to a generic message.
func serverErrorFrom(resp *http.Response) *ServerError {
	detail := ""
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil && json.Unmarshal(raw, &payload) == nil {
		if payload.Detail != "" {
			detail = payload.Detail
		} else if payload.Error != "" {
			detail = payload.Error
		}
	}
	return &ServerError{Status: resp.StatusCode, Detail: detail}
}
