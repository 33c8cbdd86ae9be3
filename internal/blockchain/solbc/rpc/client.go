// internal/blockchain/solbc/rpc/client.go
package rpc

import (
	"time"

	solanarpc "github.com/gagliardetto/solana-go/rpc"
)

// NewNodeClient создает новый экземпляр NodeClient
func NewNodeClient(url string) *NodeClient {
	return &NodeClient{
		Client: solanarpc.New(url),
		URL:    url,
	}
}

// Stats возвращает текущую статистику узла
func (c *NodeClient) Stats() NodeStats {
	return NodeStats{
		Successes:  c.successes.Load(),
		Failures:   c.failures.Load(),
		AvgLatency: time.Duration(c.avgLatency.Load()),
	}
}

// SetActive устанавливает статус активности узла
func (c *NodeClient) SetActive(state bool) {
	c.inactive.Store(!state)
}

// IsActive возвращает текущий статус активности узла
func (c *NodeClient) IsActive() bool {
	return !c.inactive.Load()
}

// record учитывает результат вызова; задержка сглаживается как (old+new)/2.
func (c *NodeClient) record(success bool, latency time.Duration) {
	if success {
		c.successes.Add(1)
	} else {
		c.failures.Add(1)
	}
	for {
		old := c.avgLatency.Load()
		next := int64(latency)
		if old != 0 {
			next = (old + next) / 2
		}
		if c.avgLatency.CompareAndSwap(old, next) {
			return
		}
	}
}
