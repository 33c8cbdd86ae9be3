// internal/protocol/types.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrInvalidParams - параметры сделки некорректны; проверяется до любого I/O.
	ErrInvalidParams = errors.New("invalid trade parameters")
	// ErrInsufficientBalance - на кошельке недостаточно SOL или токенов.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrPoolNotFound - пул или bonding curve не найдены либо закрыты.
	ErrPoolNotFound = errors.New("pool not found")
	// ErrUnknownProtocol - в реестре нет builder'а с таким именем.
	ErrUnknownProtocol = errors.New("unknown protocol")
)

// MaxSlippageBps - 100% в базисных пунктах.
const MaxSlippageBps = 10_000

// Direction - направление сделки.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// ParseDirection разбирает направление без учёта регистра.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case DirectionBuy, DirectionSell:
		return d, nil
	default:
		return "", fmt.Errorf("%w: unknown direction %q", ErrInvalidParams, s)
	}
}

// TradeIntent - бизнес-намерение, из которого протокол собирает инструкции.
// Amount - лампорты SOL для покупки и базовые единицы токена для продажи.
type TradeIntent struct {
	Protocol    string
	Direction   Direction
	Asset       solana.PublicKey
	Amount      uint64
	SlippageBps uint16
	Params      map[string]string
}

// Validate проверяет намерение без обращения к сети.
func (i TradeIntent) Validate() error {
	if i.Protocol == "" {
		return fmt.Errorf("%w: protocol is required", ErrInvalidParams)
	}
	if i.Direction != DirectionBuy && i.Direction != DirectionSell {
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidParams, i.Direction)
	}
	if i.Asset.IsZero() {
		return fmt.Errorf("%w: asset mint is required", ErrInvalidParams)
	}
	if i.Amount == 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidParams)
	}
	if i.SlippageBps > MaxSlippageBps {
		return fmt.Errorf("%w: slippage %d bps exceeds %d", ErrInvalidParams, i.SlippageBps, MaxSlippageBps)
	}
	return nil
}

// Builder собирает бизнес-инструкции сделки. Бюджет, tip и nonce
// добавляет сборщик транзакций, builder их не касается.
type Builder interface {
	Name() string
	BuildBuy(ctx context.Context, intent TradeIntent) ([]solana.Instruction, error)
	BuildSell(ctx context.Context, intent TradeIntent) ([]solana.Instruction, error)
}

// Build вызывает BuildBuy или BuildSell по направлению намерения.
func Build(ctx context.Context, b Builder, intent TradeIntent) ([]solana.Instruction, error) {
	switch intent.Direction {
	case DirectionBuy:
		return b.BuildBuy(ctx, intent)
	case DirectionSell:
		return b.BuildSell(ctx, intent)
	default:
		return nil, fmt.Errorf("%w: unknown direction %q", ErrInvalidParams, intent.Direction)
	}
}
