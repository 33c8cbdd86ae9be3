// =============================================
// File: internal/task/task.go
// =============================================
package task

import (
	"fmt"
	"math"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/solana-fanout/internal/protocol"
)

// LamportsPerSOL - лампортов в одном SOL.
const LamportsPerSOL = 1_000_000_000

// Параметры проскальзывания в процентах, как в файлах задач.
const (
	minSlippagePercent     = 0.5
	maxSlippagePercent     = 100.0
	defaultSlippagePercent = 1.0
)

// Row - строка файла задач в исходном виде.
type Row struct {
	TaskName        string            `yaml:"task_name"`
	Protocol        string            `yaml:"protocol"`
	Operation       string            `yaml:"operation"`
	TokenMint       string            `yaml:"token_mint"`
	AmountSol       float64           `yaml:"amount_sol"`    // покупка: SOL к оплате
	AmountTokens    uint64            `yaml:"amount_tokens"` // продажа: базовые единицы токена
	SlippagePercent float64           `yaml:"slippage_percent"`
	Params          map[string]string `yaml:"params"`
}

// Task - проверенная задача, готовая к исполнению.
type Task struct {
	ID       int
	TaskName string
	Intent   protocol.TradeIntent
}

// parseOperation принимает и старые имена операций (snipe, swap) как покупку.
func parseOperation(s string) (protocol.Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "snipe", "swap":
		return protocol.DirectionBuy, nil
	case "sell":
		return protocol.DirectionSell, nil
	default:
		return "", fmt.Errorf("unsupported operation: %q", s)
	}
}

func clamp(val, min, max, def float64) float64 {
	if val < min || val > max {
		return def
	}
	return val
}

// Intent превращает строку в торговое намерение.
func (r Row) Intent() (protocol.TradeIntent, error) {
	if r.TaskName == "" || r.Protocol == "" || r.TokenMint == "" {
		return protocol.TradeIntent{}, fmt.Errorf("task_name, protocol and token_mint are required")
	}

	dir, err := parseOperation(r.Operation)
	if err != nil {
		return protocol.TradeIntent{}, err
	}

	mint, err := solana.PublicKeyFromBase58(r.TokenMint)
	if err != nil {
		return protocol.TradeIntent{}, fmt.Errorf("invalid token_mint: %w", err)
	}

	var amount uint64
	switch dir {
	case protocol.DirectionBuy:
		if r.AmountSol <= 0 || r.AmountSol*LamportsPerSOL > math.MaxUint64 {
			return protocol.TradeIntent{}, fmt.Errorf("invalid amount_sol %v", r.AmountSol)
		}
		amount = uint64(math.Round(r.AmountSol * LamportsPerSOL))
	case protocol.DirectionSell:
		amount = r.AmountTokens
	}
	if amount == 0 {
		return protocol.TradeIntent{}, fmt.Errorf("amount must be positive")
	}

	slippage := clamp(r.SlippagePercent, minSlippagePercent, maxSlippagePercent, defaultSlippagePercent)

	intent := protocol.TradeIntent{
		Protocol:    strings.ToLower(strings.TrimSpace(r.Protocol)),
		Direction:   dir,
		Asset:       mint,
		Amount:      amount,
		SlippageBps: uint16(math.Round(slippage * 100)),
		Params:      r.Params,
	}
	return intent, intent.Validate()
}
