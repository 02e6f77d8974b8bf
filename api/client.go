// Package api implements the HTTP client for the commerce backend
// collaborators: order creation, reward balance, reverse geocoding, and
// postal lookups. Request bodies are encoded with jx; attachments are sent
// as multipart form data.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gramkart/commerce-core/cart"
	"github.com/gramkart/commerce-core/pkg/ratelimit"
)

// Config holds the collaborator endpoint settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RateLimit caps outbound requests per path within RateWindow. Zero
	// disables local throttling.
	RateLimit  int
	RateWindow time.Duration
}

// ErrThrottled is returned when the local outbound rate limit denies a
// request before it is sent.
var ErrThrottled = errors.New("request throttled locally")

// Client talks to the commerce backend. It is safe for concurrent use.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	limiter *ratelimit.Limiter
}

// NewClient creates a Client with an OpenTelemetry-instrumented transport.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, errors.New("api base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var limiter *ratelimit.Limiter
	if cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		limiter = ratelimit.New(ratelimit.Config{Max: cfg.RateLimit, Window: window})
	}
	return &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: base,
		apiKey:  cfg.APIKey,
		limiter: limiter,
	}, nil
}

// Error is a non-2xx collaborator response. Detail carries the server's own
// message when it provided one.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("api error: status %d", e.Status)
}

// encoder is implemented by request payloads that shape their own jx body.
type encoder interface {
	encode(e *jx.Encoder)
}

// postJSON submits payload as application/json, or as multipart form data
// when an attachment is present.
func (c *Client) postJSON(ctx context.Context, path string, payload encoder, file *cart.Attachment) error {
	var e jx.Encoder
	payload.encode(&e)
	body := e.Bytes()

	var (
		req *http.Request
		err error
	)
	if file != nil {
		req, err = c.multipartRequest(ctx, path, body, file)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if req != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return errors.Wrap(err, "build request")
	}

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	return checkStatus(resp)
}

func (c *Client) multipartRequest(ctx context.Context, path string, payload []byte, file *cart.Attachment) (*http.Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("payload", string(payload)); err != nil {
		return nil, errors.Wrap(err, "write payload field")
	}
	part, err := w.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, errors.Wrap(err, "create file part")
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, errors.Wrap(err, "write file part")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

// getJSON fetches path and decodes the response body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}

	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if _, resetAt, allowed := c.limiter.Allow(req.URL.Path, time.Now()); !allowed {
			return nil, errors.Wrapf(ErrThrottled, "retry after %s", time.Until(resetAt).Round(time.Second))
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.New().String())
	if c.apiKey != "" {
		req.Header.Set("api_key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	return resp, nil
}

// checkStatus maps a non-2xx response to *Error, extracting the server's
// detail or message field when the body carries one.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &Error{Status: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return apiErr
	}
	var detail struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &detail); err == nil {
		switch {
		case detail.Detail != "":
			apiErr.Detail = detail.Detail
		case detail.Message != "":
			apiErr.Detail = detail.Message
		case detail.Error != "":
			apiErr.Detail = detail.Error
		}
	}
	return apiErr
}
