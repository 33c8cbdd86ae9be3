// internal/channel/bundle.go
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/rovshanmuradov/solana-fanout/internal/txbuilder"
	"go.uber.org/zap"
)

const (
	bundleDialAttempts = 3
	bundleDialDelay    = 100 * time.Millisecond
	bundleWriteTimeout = 5 * time.Second
)

var (
	ErrStreamClosed = errors.New("bundle stream closed")
	ErrNotConnected = errors.New("bundle stream not connected")
)

type bundleRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type bundleError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type bundleResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *bundleError    `json:"error"`
}

// pendingBundle - запрос, записанный в конкретное соединение.
type pendingBundle struct {
	conn *websocket.Conn
	ch   chan bundleResponse
}

// BundleChannel передаёт список транзакций в постоянный websocket-стрим
// релея (JSON-RPC sendBundle) и ждёт идентификатор бандла.
type BundleChannel struct {
	base

	dialer    websocket.Dialer
	conn      *websocket.Conn
	connMu    sync.Mutex
	writeMu   sync.Mutex
	requestID atomic.Uint64

	pending   map[uint64]pendingBundle
	pendingMu sync.Mutex

	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewBundleChannel(desc Descriptor, logger *zap.Logger) *BundleChannel {
	return &BundleChannel{
		base:    newBase(desc, logger),
		dialer:  websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		pending: make(map[uint64]pendingBundle),
		done:    make(chan struct{}),
	}
}

// Start заранее устанавливает соединение, чтобы первая сделка не платила за dial.
func (c *BundleChannel) Start(ctx context.Context) error {
	_, err := c.connection(ctx)
	return err
}

// Close закрывает стрим и снимает всех ожидающих.
func (c *BundleChannel) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	c.failPending(nil)
	c.wg.Wait()
	return nil
}

// connection возвращает текущее соединение или подключается заново
// с экспоненциальной задержкой.
func (c *BundleChannel) connection(ctx context.Context) (*websocket.Conn, error) {
	if c.closed.Load() {
		return nil, ErrStreamClosed
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}

	header := http.Header{}
	if c.desc.AuthToken != "" {
		name := c.desc.AuthHeader
		if name == "" {
			name = "Authorization"
		}
		header.Set(name, c.desc.AuthToken)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = bundleDialDelay

	conn, err := backoff.Retry(ctx, func() (*websocket.Conn, error) {
		conn, _, err := c.dialer.DialContext(ctx, c.desc.Endpoint, header)
		if err != nil {
			return nil, fmt.Errorf("websocket dial: %w", err)
		}
		return conn, nil
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(bundleDialAttempts),
		backoff.WithNotify(func(err error, d time.Duration) {
			c.logger.Debug("Bundle stream dial failed, retrying",
				zap.Duration("backoff", d),
				zap.Error(err))
		}))
	if err != nil {
		return nil, err
	}

	c.conn = conn
	c.wg.Add(1)
	go c.readLoop(conn)
	c.logger.Info("Bundle stream connected", zap.String("endpoint", c.desc.Endpoint))
	return conn, nil
}

// readLoop раздаёт ответы ожидающим запросам по id. При ошибке чтения
// соединение сбрасывается, следующая отправка подключится заново.
func (c *BundleChannel) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.logger.Warn("Bundle stream read failed", zap.Error(err))
			}
			c.dropConnection(conn)
			c.failPending(conn)
			return
		}

		var resp bundleResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			c.logger.Debug("Skipping malformed bundle stream message", zap.Error(err))
			continue
		}

		c.pendingMu.Lock()
		req, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.pendingMu.Unlock()
		if ok {
			req.ch <- resp
		}
	}
}

func (c *BundleChannel) dropConnection(conn *websocket.Conn) {
	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.connMu.Unlock()
	_ = conn.Close()
}

// failPending снимает ожидающих на соединении conn; nil снимает всех.
// Запросы, уже записанные в новое соединение, не затрагиваются.
func (c *BundleChannel) failPending(conn *websocket.Conn) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, req := range c.pending {
		if conn != nil && req.conn != conn {
			continue
		}
		close(req.ch)
		delete(c.pending, id)
	}
}

func (c *BundleChannel) forget(id uint64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

func (c *BundleChannel) SendOne(ctx context.Context, tx *solana.Transaction) Outcome {
	return c.SendMany(ctx, []*solana.Transaction{tx})[0]
}

// SendMany отправляет все транзакции одним бандлом. Все исходы разделяют
// судьбу бандла.
func (c *BundleChannel) SendMany(ctx context.Context, txs []*solana.Transaction) []Outcome {
	start := time.Now()
	outcomes := make([]Outcome, len(txs))
	for i, tx := range txs {
		outcomes[i] = c.newOutcome(tx)
	}
	failAll := func(err *SubmissionError) []Outcome {
		for i := range outcomes {
			outcomes[i] = c.fail(outcomes[i], start, err)
		}
		return outcomes
	}
	if len(txs) == 0 {
		return outcomes
	}

	if err := c.wait(ctx); err != nil {
		return failAll(transportError(c.desc.Name, err))
	}

	encoded := make([]string, 0, len(txs))
	for _, tx := range txs {
		b64, err := txbuilder.Encode(tx)
		if err != nil {
			return failAll(newSubmissionError(ErrorRejected, c.desc.Name, err))
		}
		encoded = append(encoded, b64)
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.desc.Timeout)
	defer cancel()

	bundleID, err := c.sendBundle(sendCtx, encoded)
	if err != nil {
		return failAll(err)
	}

	for i := range outcomes {
		outcomes[i].BundleID = bundleID
		outcomes[i] = c.accept(outcomes[i], start)
	}
	return outcomes
}

func (c *BundleChannel) sendBundle(ctx context.Context, encoded []string) (string, *SubmissionError) {
	conn, err := c.connection(ctx)
	if err != nil {
		return "", transportError(c.desc.Name, err)
	}

	id := c.requestID.Add(1)
	respCh := make(chan bundleResponse, 1)
	c.pendingMu.Lock()
	c.pending[id] = pendingBundle{conn: conn, ch: respCh}
	c.pendingMu.Unlock()

	req := bundleRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "sendBundle",
		Params: []interface{}{
			encoded,
			map[string]string{"encoding": "base64"},
		},
	}

	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(bundleWriteTimeout))
	err = conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		c.dropConnection(conn)
		return "", transportError(c.desc.Name, fmt.Errorf("write bundle: %w", err))
	}

	select {
	case resp, ok := <-respCh:
		if !ok {
			return "", transportError(c.desc.Name, ErrNotConnected)
		}
		if resp.Error != nil {
			return "", newSubmissionError(ErrorRejected, c.desc.Name,
				fmt.Errorf("bundle rejected (%d): %s", resp.Error.Code, resp.Error.Message))
		}
		var bundleID string
		if err := json.Unmarshal(resp.Result, &bundleID); err != nil || bundleID == "" {
			return "", newSubmissionError(ErrorRejected, c.desc.Name,
				fmt.Errorf("unexpected bundle result: %s", truncate(resp.Result)))
		}
		return bundleID, nil
	case <-c.done:
		return "", transportError(c.desc.Name, ErrStreamClosed)
	case <-ctx.Done():
		c.forget(id)
		return "", transportError(c.desc.Name, ctx.Err())
	}
}

var (
	_ Channel   = (*BundleChannel)(nil)
	_ Lifecycle = (*BundleChannel)(nil)
)
