// Package httpconn implements the Http connector type: a cloud connector
// that flushes queued payloads to an HTTP endpoint as JSON batches.
package httpconn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/edgegate-io/edgegate/internal/connector"
)

// DefaultFlushInterval is used when the config omits flushInterval.
const DefaultFlushInterval = 5 * time.Second

// Connector posts buffered payloads to a configured URL. Config:
// url (required), headers (optional string mapping, may carry authorization),
// flushInterval (optional, milliseconds).
type Connector struct {
	*connector.Base

	client *http.Client

	mu          sync.Mutex
	url         string
	headers     map[string]string
	cancelFlush context.CancelFunc
}

// New constructs an inactive Http connector.
func New(id string) connector.Connector {
	c := &Connector{
		Base:   connector.New(id),
		client: &http.Client{Timeout: 30 * time.Second},
	}
	c.SetHooks(c.start, c.stop)
	return c
}

func (c *Connector) start(ctx context.Context, config map[string]any) (map[string]any, error) {
	url, ok := config["url"].(string)
	if !ok || url == "" {
		return nil, fmt.Errorf("%w: url is required", connector.ErrInvalidConfig)
	}

	headers := map[string]string{}
	if raw, ok := config["headers"].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}

	interval := DefaultFlushInterval
	if ms, ok := config["flushInterval"].(float64); ok && ms > 0 {
		interval = time.Duration(ms * float64(time.Millisecond))
	}

	c.mu.Lock()
	if c.cancelFlush != nil {
		c.cancelFlush()
	}
	flushCtx, cancel := context.WithCancel(context.Background())
	c.cancelFlush = cancel
	c.url = url
	c.headers = headers
	c.mu.Unlock()

	go c.flushLoop(flushCtx, interval)
	c.Logger().Info("HTTP connector started", "url", url, "flushInterval", interval)
	return map[string]any{"url": url}, nil
}

func (c *Connector) stop(ctx context.Context) (map[string]any, error) {
	c.mu.Lock()
	if c.cancelFlush != nil {
		c.cancelFlush()
		c.cancelFlush = nil
	}
	c.mu.Unlock()

	// Best-effort final flush of anything still queued.
	if err := c.flush(ctx); err != nil {
		c.Logger().Warn("Final flush failed", "error", err)
	}
	return map[string]any{}, nil
}

// AddLogData queues a log payload alongside the outbound data.
func (c *Connector) AddLogData(payload map[string]any) error {
	return c.AddData(payload, "na")
}

func (c *Connector) flushLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.flush(ctx); err != nil {
				c.Logger().Warn("Flush failed", "error", err)
			}
		}
	}
}

func (c *Connector) flush(ctx context.Context) error {
	batch := c.Drain()
	if len(batch) == 0 {
		return nil
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	c.mu.Lock()
	url := c.url
	headers := c.headers
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post batch: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	c.Logger().Debug("Flushed batch", "count", len(batch))
	return nil
}
