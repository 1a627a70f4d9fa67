package daemonapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gemstone-testapp/internal/model"
)

const (
	EndpointSystem    = "system"
	EndpointProcesses = "processes"

	DefaultBaseURL = "http://127.0.0.1:9876/api/v1"
	DefaultTimeout = 5 * time.Second

	maxBodyBytes = 4 << 20
)

// Observer is notified once per fetch with its outcome label.
type Observer interface {
	ObserveFetch(endpoint, outcome string, took time.Duration)
}

// Client talks to the daemon's REST API. Every call is a single attempt.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	observer   Observer
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) SetObserver(o Observer) {
	c.observer = o
}

// Fetch performs one GET of <base>/<endpoint> and checks the envelope's
// success flag. It logs and observes the outcome.
func (c *Client) Fetch(ctx context.Context, endpoint string) (model.Envelope, error) {
	start := time.Now()
	env, err := c.fetchEnvelope(ctx, endpoint)
	if err == nil && !env.Success {
		err = unsuccessful(endpoint, env)
	}
	c.finish(endpoint, start, err)
	return env, err
}

// System returns the daemon info payload. Null data yields an empty payload.
// Fields that fail to decode keep their zero value and are logged.
func (c *Client) System(ctx context.Context) (*model.SystemPayload, error) {
	env, err := c.Fetch(ctx, EndpointSystem)
	if err != nil {
		return nil, err
	}
	if !env.HasData() {
		return &model.SystemPayload{}, nil
	}
	p, dropped, err := decodeSystem(env.Data)
	if err != nil {
		return nil, c.decodeFailed(EndpointSystem, err)
	}
	if len(dropped) > 0 {
		c.logger.Warn("malformed fields in daemon payload, using defaults", "endpoint", EndpointSystem, "fields", dropped)
	}
	return p, nil
}

// Processes returns the managed process list in daemon order. The slice is
// never nil on success.
func (c *Client) Processes(ctx context.Context) ([]model.ProcessRecord, error) {
	env, err := c.Fetch(ctx, EndpointProcesses)
	if err != nil {
		return nil, err
	}
	procs := []model.ProcessRecord{}
	if !env.HasData() {
		return procs, nil
	}
	if err := json.Unmarshal(env.Data, &procs); err != nil {
		return nil, c.decodeFailed(EndpointProcesses, fmt.Errorf("decode data: %w", err))
	}
	if procs == nil {
		procs = []model.ProcessRecord{}
	}
	return procs, nil
}

func (c *Client) decodeFailed(endpoint string, err error) error {
	c.logger.Warn("unexpected data from daemon api", "endpoint", endpoint, "error", err)
	return &FetchError{Endpoint: endpoint, Err: err}
}

func (c *Client) fetchEnvelope(ctx context.Context, endpoint string) (model.Envelope, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+"/"+endpoint, nil)
	if err != nil {
		return model.Envelope{}, &FetchError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Envelope{}, &FetchError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return model.Envelope{}, &FetchError{Endpoint: endpoint, Err: fmt.Errorf("read body: %w", err)}
	}

	if trimmed := bytes.TrimSpace(body); len(trimmed) == 0 || trimmed[0] != '{' {
		return model.Envelope{}, &FetchError{Endpoint: endpoint, Err: fmt.Errorf("unexpected envelope (status %d): not a json object", resp.StatusCode)}
	}

	// Error statuses still carry an envelope; success decides.
	var env model.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return model.Envelope{}, &FetchError{Endpoint: endpoint, Err: fmt.Errorf("decode envelope (status %d): %w", resp.StatusCode, err)}
	}
	return env, nil
}

func (c *Client) finish(endpoint string, start time.Time, err error) {
	outcome := Outcome(err)
	switch outcome {
	case OutcomeError:
		c.logger.Warn("failed to fetch from daemon api", "endpoint", endpoint, "error", err)
	case OutcomeUnsuccessful:
		c.logger.Debug("daemon api returned unsuccessful envelope", "endpoint", endpoint, "error", err)
	}
	if c.observer != nil {
		c.observer.ObserveFetch(endpoint, outcome, time.Since(start))
	}
}
