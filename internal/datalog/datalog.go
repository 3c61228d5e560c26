// Package datalog posts door and motion samples to a remote data log. Posting
// is asynchronous: entries are queued and sent by a single worker, so a slow
// or unreachable log endpoint never holds up door processing.
package datalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/sweeney/door-monitor/internal/config"
	"github.com/sweeney/door-monitor/internal/logger"
)

// DefaultQueueSize is the number of entries buffered ahead of the worker.
const DefaultQueueSize = 64

// Entry is one data-log sample.
type Entry struct {
	DoorOpen bool
	Motion   bool
}

// Query returns the query-string fragment appended to the base URI.
func (e Entry) Query() string {
	return fmt.Sprintf("&door_status=%d&motion_detected=%d", btoi(e.DoorOpen), btoi(e.Motion))
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Client queues entries and sends them as HTTP GET requests.
type Client struct {
	ctx     context.Context
	baseURI string
	client  *http.Client
	size    int

	mu      sync.RWMutex
	closed  bool
	entries chan Entry
	done    chan struct{}

	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.client = &http.Client{Timeout: timeout, Transport: c.client.Transport}
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithQueueSize sets how many entries may wait for the worker.
func WithQueueSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.size = n
		}
	}
}

// New returns a Client posting to baseURI. An empty baseURI yields a disabled
// client whose Post is a no-op.
func New(baseURI string, opts ...Option) *Client {
	c := &Client{
		ctx:     logger.WithName(context.Background(), "datalog"),
		baseURI: baseURI,
		client:  &http.Client{Timeout: config.DefaultDataLogTimeout},
		size:    DefaultQueueSize,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if baseURI == "" {
		close(c.done)
		return c
	}

	c.entries = make(chan Entry, c.size)
	go c.run()
	return c
}

// Enabled reports whether entries are sent anywhere.
func (c *Client) Enabled() bool {
	return c.baseURI != ""
}

// Post queues e without blocking. When the queue is full or the client is
// closed the entry is dropped and logged.
func (c *Client) Post(e Entry) {
	if !c.Enabled() {
		logger.DebugKV(c.ctx, "Data log disabled", "entry", e.Query())
		return
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		c.drop(e, "closed")
		return
	}

	select {
	case c.entries <- e:
	default:
		c.drop(e, "queue full")
	}
}

// Close stops accepting entries and waits for queued ones to be sent.
func (c *Client) Close() {
	c.mu.Lock()
	if !c.closed && c.entries != nil {
		close(c.entries)
	}
	c.closed = true
	c.mu.Unlock()

	<-c.done
}

// Stats returns the number of entries sent, failed and dropped so far.
func (c *Client) Stats() (sent, failed, dropped int64) {
	return c.sent.Load(), c.failed.Load(), c.dropped.Load()
}

func (c *Client) drop(e Entry, reason string) {
	c.dropped.Add(1)
	metrics.GetOrCreateCounter(`door_datalog_dropped_total`).Inc()
	logger.WarnKV(c.ctx, "Dropping data log entry", "entry", e.Query(), "reason", reason)
}

func (c *Client) run() {
	defer close(c.done)

	for e := range c.entries {
		start := time.Now()
		err := c.send(e)
		metrics.GetOrCreateSummary(`door_datalog_post_duration_seconds`).UpdateDuration(start)

		if err != nil {
			c.failed.Add(1)
			metrics.GetOrCreateCounter(`door_datalog_failures_total`).Inc()
			logger.ErrorKV(c.ctx, "Data log post failed", "entry", e.Query(), "error", err)
			continue
		}
		c.sent.Add(1)
		metrics.GetOrCreateCounter(`door_datalog_posts_total`).Inc()
		logger.DebugKV(c.ctx, "Data log posted", "entry", e.Query())
	}
}

func (c *Client) send(e Entry) error {
	url := c.baseURI + e.Query()

	req, err := http.NewRequestWithContext(c.ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("get %s: status %d", url, resp.StatusCode)
	}
	return nil
}
