// internal/channel/stream.go
package channel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// StreamChannel – REST-релей с фоновым keepalive: соединение держится тёплым
// периодическими ping-запросами.
type StreamChannel struct {
	*RESTChannel

	pingURL  string
	interval time.Duration

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	pings    atomic.Uint64
	failures atomic.Uint64
}

func NewStreamChannel(desc Descriptor, httpClient *http.Client, logger *zap.Logger) (*StreamChannel, error) {
	if desc.PingInterval <= 0 {
		desc.PingInterval = DefaultPingInterval
	}
	rest := NewRESTChannel(desc, httpClient, logger)
	pingURL, err := buildPingURL(desc.Endpoint, desc.PingPath)
	if err != nil {
		return nil, err
	}
	return &StreamChannel{
		RESTChannel: rest,
		pingURL:     pingURL,
		interval:    desc.PingInterval,
	}, nil
}

// buildPingURL заменяет путь endpoint на pingPath, сохраняя query (ключ API).
func buildPingURL(endpoint, pingPath string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid stream endpoint: %w", err)
	}
	if pingPath != "" {
		u.Path = pingPath
	}
	return u.String(), nil
}

// Start запускает keepalive. Повторный вызов ничего не делает.
func (c *StreamChannel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.pingLoop(ctx)
	return nil
}

// Close останавливает keepalive и ждёт завершения горутины.
func (c *StreamChannel) Close() error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	return nil
}

func (c *StreamChannel) pingLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(ctx); err != nil {
				c.failures.Add(1)
				c.logger.Warn("Keepalive ping failed", zap.Error(err))
				continue
			}
			c.pings.Add(1)
		}
	}
}

func (c *StreamChannel) ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, c.desc.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(pingCtx, http.MethodGet, c.pingURL, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("ping http %d", resp.StatusCode)
	}
	return nil
}

// PingStats возвращает число успешных и неудачных ping.
func (c *StreamChannel) PingStats() (ok, failed uint64) {
	return c.pings.Load(), c.failures.Load()
}

var (
	_ Channel   = (*StreamChannel)(nil)
	_ Lifecycle = (*StreamChannel)(nil)
)
