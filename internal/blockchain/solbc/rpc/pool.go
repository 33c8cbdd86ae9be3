// internal/blockchain/solbc/rpc/pool.go
package rpc

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// NewPool создает новый пул клиентов по списку адресов
func NewPool(urls []string, logger *zap.Logger) (*Pool, error) {
	if len(urls) == 0 {
		return nil, ErrNoEndpoints
	}
	clients := make([]*NodeClient, 0, len(urls))
	for _, url := range urls {
		clients = append(clients, NewNodeClient(url))
	}
	return &Pool{
		clients:    clients,
		logger:     logger.Named("rpc-pool"),
		currIndex:  -1,
		maxRetries: MaxRetries,
	}, nil
}

// SetMaxRetries задаёт число попыток ExecuteWithRetry; n <= 0 - одна попытка.
func (p *Pool) SetMaxRetries(n int) {
	if n <= 0 {
		n = 1
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.maxRetries = n
}

// SetObserver подключает наблюдателя задержек (метрики)
func (p *Pool) SetObserver(observer Observer) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.observer = observer
}

func (p *Pool) observe(client *NodeClient, method string, start time.Time, err error) {
	latency := time.Since(start)
	client.record(err == nil, latency)

	p.mutex.Lock()
	observer := p.observer
	p.mutex.Unlock()
	if observer != nil {
		observer(method, client.URL, latency, err)
	}
}

// Clients возвращает узлы пула
func (p *Pool) Clients() []*NodeClient {
	return p.clients
}

// GetNextClient возвращает следующий активный клиент из пула.
// Если все узлы помечены неактивными, они реактивируются: лучше повторить
// запрос к упавшему узлу, чем не отправить ничего.
func (p *Pool) GetNextClient() *NodeClient {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for i := 0; i < len(p.clients); i++ {
		p.currIndex = (p.currIndex + 1) % len(p.clients)
		if p.clients[p.currIndex].IsActive() {
			return p.clients[p.currIndex]
		}
	}

	p.logger.Warn("All RPC nodes inactive, reactivating")
	for _, c := range p.clients {
		c.SetActive(true)
	}
	p.currIndex = (p.currIndex + 1) % len(p.clients)
	return p.clients[p.currIndex]
}

// HasActiveClients проверяет наличие активных клиентов в пуле
func (p *Pool) HasActiveClients() bool {
	for _, client := range p.clients {
		if client.IsActive() {
			return true
		}
	}
	return false
}

// Execute выполняет операцию на одном узле без повторов
func (p *Pool) Execute(ctx context.Context, method string, operation func(context.Context, *NodeClient) error) error {
	client := p.GetNextClient()
	start := time.Now()
	err := operation(ctx, client)
	p.observe(client, method, start, err)
	if err != nil {
		return NewError(err, client.URL, method)
	}
	return nil
}

// ExecuteWithRetry выполняет операцию, переключаясь на следующий узел
// после каждой повторяемой ошибки
func (p *Pool) ExecuteWithRetry(ctx context.Context, method string, operation func(context.Context, *NodeClient) error) error {
	p.mutex.Lock()
	tries := p.maxRetries
	p.mutex.Unlock()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = RetryDelay
	policy.MaxInterval = RetryDelay * 10

	notify := func(err error, d time.Duration) {
		p.logger.Debug("RPC call failed, switching node",
			zap.String("method", method),
			zap.Duration("backoff", d),
			zap.Error(err))
	}

	op := func() (struct{}, error) {
		client := p.GetNextClient()
		start := time.Now()
		err := operation(ctx, client)
		p.observe(client, method, start, err)
		if err == nil {
			return struct{}{}, nil
		}

		wrapped := NewError(err, client.URL, method)
		if !IsRetryableError(err) {
			return struct{}{}, backoff.Permanent(wrapped)
		}
		client.SetActive(false)
		return struct{}{}, wrapped
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(tries)),
		backoff.WithNotify(notify))
	return err
}
