// internal/channel/factory.go
package channel

import (
	"fmt"
	"net/http"

	"github.com/rovshanmuradov/solana-fanout/internal/blockchain"
	"go.uber.org/zap"
)

// Deps – общие зависимости адаптеров
type Deps struct {
	Client     blockchain.Client
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// New создаёт адаптер по дескриптору.
func New(desc Descriptor, deps Deps) (Channel, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if desc.Name == "" {
		desc.Name = string(desc.Kind)
	}

	switch desc.Kind {
	case KindNode:
		if deps.Client == nil {
			return nil, fmt.Errorf("channel %s: ledger client is required", desc.Name)
		}
		return NewNodeChannel(desc, deps.Client, logger), nil
	case KindBundle:
		if desc.Endpoint == "" {
			return nil, fmt.Errorf("channel %s: endpoint is required", desc.Name)
		}
		return NewBundleChannel(desc, logger), nil
	case KindREST:
		if desc.Endpoint == "" {
			return nil, fmt.Errorf("channel %s: endpoint is required", desc.Name)
		}
		return NewRESTChannel(desc, deps.HTTPClient, logger), nil
	case KindStream:
		if desc.Endpoint == "" {
			return nil, fmt.Errorf("channel %s: endpoint is required", desc.Name)
		}
		ch, err := NewStreamChannel(desc, deps.HTTPClient, logger)
		if err != nil {
			return nil, err
		}
		return ch, nil
	default:
		return nil, fmt.Errorf("channel %s: %w: %q", desc.Name, ErrUnknownKind, desc.Kind)
	}
}

// NewAll создаёт адаптеры в порядке конфигурации.
func NewAll(descs []Descriptor, deps Deps) ([]Channel, error) {
	channels := make([]Channel, 0, len(descs))
	for _, desc := range descs {
		ch, err := New(desc, deps)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, nil
}
