// internal/common/http/client.go

// Package http wraps the outbound HTTP client used for webhook callbacks and
// the messaging gateway. Deliveries are best-effort: the timeout here is the
// only thing standing between a slow endpoint and a stuck worker.
package http

import (
	"context"
	"net/http"
	"time"
)

type Client struct {
	httpClient *http.Client
}

// NewClient builds a client with a hard per-request deadline. Connections are
// pooled; webhook endpoints tend to repeat across jobs for the same tenant.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// DoWithContext binds the request to ctx so job cancellation aborts an
// in-flight delivery.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.httpClient.Do(req)
}
