// internal/trade/service.go
package trade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rovshanmuradov/solana-fanout/internal/dispatch"
	"github.com/rovshanmuradov/solana-fanout/internal/fee"
	"github.com/rovshanmuradov/solana-fanout/internal/logger"
	"github.com/rovshanmuradov/solana-fanout/internal/protocol"
	"github.com/rovshanmuradov/solana-fanout/internal/wallet"
	"go.uber.org/zap"
)

// Dispatcher - веерная отправка одной сделки. Precheck вызывается до сборки
// инструкций и не должен обращаться к сети.
type Dispatcher interface {
	Precheck() error
	Dispatch(ctx context.Context, req dispatch.Request) (*dispatch.Report, error)
}

// Service превращает торговое намерение в инструкции протокола и отправляет их по всем каналам.
type Service struct {
	registry   *protocol.Registry
	dispatcher Dispatcher
	payer      wallet.Signer
	fees       fee.Profile
	logger     *zap.Logger
}

// Config configuration for Service
type Config struct {
	Registry   *protocol.Registry
	Dispatcher Dispatcher
	Payer      wallet.Signer
	Fees       fee.Profile
	Logger     *zap.Logger
}

// NewService creates a new trade service
func NewService(cfg Config) (*Service, error) {
	if cfg.Registry == nil || cfg.Dispatcher == nil || cfg.Payer == nil {
		return nil, fmt.Errorf("trade: registry, dispatcher and payer are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		registry:   cfg.Registry,
		dispatcher: cfg.Dispatcher,
		payer:      cfg.Payer,
		fees:       cfg.Fees,
		logger:     cfg.Logger.Named("trade_service"),
	}, nil
}

// Execute собирает и отправляет одну сделку.
func (s *Service) Execute(ctx context.Context, intent protocol.TradeIntent) (*dispatch.Report, error) {
	log := logger.WithOperation(s.logger, "execute_trade").With(
		zap.String("protocol", intent.Protocol),
		zap.String("direction", string(intent.Direction)),
		zap.String("mint", intent.Asset.String()),
		zap.Uint64("amount", intent.Amount))

	if err := intent.Validate(); err != nil {
		return nil, err
	}

	builder, err := s.registry.Get(intent.Protocol)
	if err != nil {
		return nil, err
	}

	// израсходованный nonce отменяет сделку до чтений леджера в сборщике
	if err := s.dispatcher.Precheck(); err != nil {
		log.Warn("Trade aborted before build", zap.Error(err))
		return nil, err
	}

	start := time.Now()
	instructions, err := protocol.Build(ctx, builder, intent)
	if err != nil {
		log.Error("Failed to build protocol instructions", zap.Error(err))
		return nil, fmt.Errorf("build %s %s: %w", intent.Protocol, intent.Direction, err)
	}
	log.Debug("Protocol instructions built",
		zap.Int("instructions", len(instructions)),
		zap.Duration("elapsed", time.Since(start)))

	report, err := s.dispatcher.Dispatch(ctx, dispatch.Request{
		Payer:        s.payer,
		Instructions: instructions,
		Fees:         s.fees,
	})
	if err != nil {
		log.Error("Trade failed", zap.Error(err))
		return nil, err
	}

	log.Info("Trade executed",
		zap.String("winner", report.Winner.Channel),
		zap.String("signature", report.Winner.Signature.String()),
		zap.Stringer("status", report.Winner.Status),
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("channels", len(report.Outcomes)),
		zap.Duration("elapsed", time.Since(start)))
	return report, nil
}

// Result - итог одной сделки из пакета.
type Result struct {
	Intent protocol.TradeIntent
	Report *dispatch.Report
	Err    error
}

// ExecuteAll выполняет сделки последовательно: следующая сделка
// использует nonce, обновлённый после предыдущей. Отмена ctx прерывает пакет.
func (s *Service) ExecuteAll(ctx context.Context, intents []protocol.TradeIntent, pause time.Duration) []Result {
	results := make([]Result, 0, len(intents))
	for i, intent := range intents {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("Trade batch interrupted", zap.Int("remaining", len(intents)-i))
			break
		}
		if i > 0 && pause > 0 {
			select {
			case <-ctx.Done():
				continue
			case <-time.After(pause):
			}
		}

		report, err := s.Execute(ctx, intent)
		results = append(results, Result{Intent: intent, Report: report, Err: err})
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	s.logger.Info("Trade batch finished",
		zap.Int("total", len(intents)),
		zap.Int("executed", len(results)),
		zap.Int("failed", failed))
	return results
}

// IsAborted сообщает, что сделка остановлена до отправки в сеть.
func IsAborted(err error) bool {
	var agg *dispatch.AggregateError
	return err != nil && !errors.As(err, &agg)
}
