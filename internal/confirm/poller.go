// internal/confirm/poller.go
package confirm

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/solana-fanout/internal/blockchain"
	"go.uber.org/zap"
)

const (
	DefaultInterval = 500 * time.Millisecond
	DefaultTimeout  = 30 * time.Second
)

// ErrTransactionFailed возвращается в Result.Err, когда транзакция упала on-chain.
var ErrTransactionFailed = errors.New("transaction failed on-chain")

// Status – итоговое состояние ожидания подтверждения
type Status int

const (
	StatusPending Status = iota
	StatusConfirmed
	StatusFinalized
	StatusFailed
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusFinalized:
		return "finalized"
	case StatusFailed:
		return "failed"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Landed сообщает, попала ли транзакция в блок без ошибки.
func (s Status) Landed() bool {
	return s == StatusConfirmed || s == StatusFinalized
}

// Result – результат ожидания одной подписи
type Result struct {
	Status Status
	Slot   uint64
	Err    error
}

// StatusSource – минимальная часть ledger-клиента, нужная поллеру.
type StatusSource interface {
	Status(ctx context.Context, sig solana.Signature) (blockchain.SignatureStatus, error)
}

// Poller опрашивает статус подписи с фиксированным интервалом.
type Poller struct {
	source           StatusSource
	interval         time.Duration
	requireFinalized bool
	logger           *zap.Logger
}

// NewPoller создаёт поллер. interval <= 0 заменяется на DefaultInterval.
func NewPoller(source StatusSource, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		source:   source,
		interval: interval,
		logger:   logger.Named("confirm"),
	}
}

// RequireFinalized заставляет Await ждать finalized вместо confirmed.
func (p *Poller) RequireFinalized(v bool) *Poller {
	p.requireFinalized = v
	return p
}

// Await ждёт подтверждения до таймаута. Таймаут – это статус, а не ошибка:
// транзакция уже отправлена и ещё может попасть в блок. Таймаут ограничивает
// и сами запросы статуса.
func (p *Poller) Await(ctx context.Context, sig solana.Signature, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	last := Result{Status: StatusPending}
	expired := func() Result {
		if err := ctx.Err(); err != nil {
			last.Err = err
			return last
		}
		p.logger.Debug("Confirmation timeout",
			zap.String("signature", sig.String()),
			zap.Duration("timeout", timeout))
		return Result{Status: StatusTimeout, Slot: last.Slot}
	}

	for {
		select {
		case <-pollCtx.Done():
			return expired()
		case <-ticker.C:
		}

		status, err := p.source.Status(pollCtx, sig)
		if pollCtx.Err() != nil {
			return expired()
		}
		if err != nil {
			p.logger.Warn("Error getting signature status",
				zap.String("signature", sig.String()),
				zap.Error(err))
			continue
		}
		last.Slot = status.Slot

		switch status.Status {
		case blockchain.StatusFailed:
			p.logger.Debug("Transaction failed",
				zap.String("signature", sig.String()),
				zap.Any("err", status.Err))
			return Result{Status: StatusFailed, Slot: status.Slot, Err: ErrTransactionFailed}
		case blockchain.StatusFinalized:
			return Result{Status: StatusFinalized, Slot: status.Slot}
		case blockchain.StatusConfirmed:
			if !p.requireFinalized {
				return Result{Status: StatusConfirmed, Slot: status.Slot}
			}
		}
	}
}
