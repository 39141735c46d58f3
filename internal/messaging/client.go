// Package messaging is the typed client for the academy messaging API:
// messages, conversation threads, notifications and recipient directories.
//
// The client holds no state between calls. Every read is a fresh query and
// every mutation must be followed by a re-fetch to observe the new state.
// Nothing is retried and no timeout is imposed beyond the one configured on
// the supplied *http.Client.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/academy-platform/dashboard-messaging/internal/auth"
	"github.com/academy-platform/dashboard-messaging/pkg/logger"
	"github.com/academy-platform/dashboard-messaging/pkg/metrics"
)

const tracerName = "github.com/academy-platform/dashboard-messaging/internal/messaging"

// Client talks to the messaging endpoints under /api/messages.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sessions   auth.SessionProvider
	logger     *logger.Logger
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.logger = log
		}
	}
}

// NewClient creates a client for the API rooted at baseURL. sessions may be
// nil, in which case requests carry no Authorization header.
func NewClient(baseURL string, sessions auth.SessionProvider, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		sessions:   sessions,
		logger:     logger.NewNop(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call is one request description.
type call struct {
	name   string
	method string
	path   string
	query  url.Values
	body   any
}

// do executes c and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, req call, out any) error {
	ctx, span := c.tracer.Start(ctx, "messaging."+req.name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.method),
			attribute.String("http.route", req.path),
		),
	)
	defer span.End()

	start := time.Now()
	status, err := c.roundTrip(ctx, req, out)
	elapsed := time.Since(start)

	metrics.RecordClientCall(req.name, outcome(err), elapsed.Seconds())
	span.SetAttributes(attribute.Int("http.status_code", status))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("messaging request failed",
			zap.String("endpoint", req.name),
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Int("status", status),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return err
	}

	c.logger.Debug("messaging request completed",
		zap.String("endpoint", req.name),
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("status", status),
		zap.Duration("duration", elapsed),
	)
	return nil
}

func (c *Client) roundTrip(ctx context.Context, req call, out any) (int, error) {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return 0, fmt.Errorf("encode %s request: %w", req.name, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return 0, &NetworkError{Method: req.method, Path: req.path, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.sessions != nil {
		if cred, ok := c.sessions.Credential(ctx); ok && cred.Token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+cred.Token)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, &NetworkError{Method: req.method, Path: req.path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &NetworkError{Method: req.method, Path: req.path, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail := errorDetail(resp.StatusCode, data)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return resp.StatusCode, &AuthError{StatusCode: resp.StatusCode, Detail: detail, Method: req.method, Path: req.path}
		}
		return resp.StatusCode, &RequestError{StatusCode: resp.StatusCode, Detail: detail, Method: req.method, Path: req.path}
	}

	if out == nil {
		return resp.StatusCode, nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		if resp.StatusCode == http.StatusNoContent {
			return resp.StatusCode, nil
		}
		return resp.StatusCode, &DecodeError{Method: req.method, Path: req.path, Err: errors.New("empty response body")}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, &DecodeError{Method: req.method, Path: req.path, Err: err}
	}
	return resp.StatusCode, nil
}

func page(skip, limit int) (url.Values, error) {
	if skip < 0 {
		return nil, fmt.Errorf("%w: skip must not be negative", ErrInvalidArgument)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidArgument)
	}
	return url.Values{
		"skip":  []string{fmt.Sprint(skip)},
		"limit": []string{fmt.Sprint(limit)},
	}, nil
}

func requireID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s id is required", ErrInvalidArgument, kind)
	}
	return nil
}
