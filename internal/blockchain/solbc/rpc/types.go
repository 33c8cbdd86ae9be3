// internal/blockchain/solbc/rpc/types.go
package rpc

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

const (
	MaxRetries = 3
	RetryDelay = 200 * time.Millisecond
)

// NodeClient – один RPC-узел пула со своей статистикой.
type NodeClient struct {
	Client *rpc.Client
	URL    string

	inactive   atomic.Bool
	successes  atomic.Uint64
	failures   atomic.Uint64
	avgLatency atomic.Int64 // наносекунды, скользящее среднее
}

// NodeStats – снимок статистики узла
type NodeStats struct {
	Successes  uint64
	Failures   uint64
	AvgLatency time.Duration
}

// Pool представляет пул RPC клиентов с round-robin переключением
type Pool struct {
	clients    []*NodeClient
	logger     *zap.Logger
	currIndex  int
	maxRetries int
	mutex      sync.Mutex
	observer   Observer
}

// Observer получает длительность каждого RPC-вызова
type Observer func(method, endpoint string, latency time.Duration, err error)
