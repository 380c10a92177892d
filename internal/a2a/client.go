package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"fleetmedic/internal/pipeline"
)

const forwardQueueSize = 256

// Client posts work to a downstream stage. Forwards are fire-and-forget: a
// buffered queue feeds a background sender, and when the queue is full the
// forward is dropped and counted rather than blocking record completion.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	queue   chan pipeline.ForwardRequest
	dropped atomic.Int64
	wg      sync.WaitGroup
	once    sync.Once
}

// NewClient creates a client for the stage at baseURL and starts its
// background sender.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		queue:      make(chan pipeline.ForwardRequest, forwardQueueSize),
	}
	c.wg.Add(1)
	go c.backgroundSender()
	return c
}

// Forward implements pipeline.Forwarder. It never blocks; on a full queue
// the request is dropped and counted.
func (c *Client) Forward(_ context.Context, req pipeline.ForwardRequest) {
	select {
	case c.queue <- req:
	default:
		n := c.dropped.Add(1)
		c.logger.Warn("forward queue full, dropping request",
			zap.String("device_id", req.DeviceID),
			zap.Int64("dropped_total", n))
	}
}

// Dropped returns how many forwards were discarded due to backpressure.
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops accepting forwards, drains the queue and waits for the
// sender to finish.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.queue)
	})
	c.wg.Wait()
	c.httpClient.CloseIdleConnections()
}

func (c *Client) backgroundSender() {
	defer c.wg.Done()
	for req := range c.queue {
		if err := c.postTask(req); err != nil {
			c.logger.Warn("forward delivery failed",
				zap.String("device_id", req.DeviceID),
				zap.String("target", c.baseURL),
				zap.Error(err))
		}
	}
}

func (c *Client) postTask(req pipeline.ForwardRequest) error {
	task := TaskRequest{
		AnomalyDetails: req.AnomalyDetails,
		DeviceID:       req.DeviceID,
		SchemaType:     req.SchemaType,
		Severity:       req.Severity,
		SourceContext:  req.SourceContext,
	}
	return c.post(context.Background(), "/a2a/task", task)
}

// Confirm posts a remediation confirmation to the stage.
func (c *Client) Confirm(ctx context.Context, conf Confirmation) error {
	return c.post(ctx, "/a2a/confirm", conf)
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("post %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

var _ pipeline.Forwarder = (*Client)(nil)
