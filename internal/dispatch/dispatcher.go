// internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/solana-fanout/internal/blockchain"
	"github.com/rovshanmuradov/solana-fanout/internal/channel"
	"github.com/rovshanmuradov/solana-fanout/internal/confirm"
	"github.com/rovshanmuradov/solana-fanout/internal/fee"
	"github.com/rovshanmuradov/solana-fanout/internal/logger"
	"github.com/rovshanmuradov/solana-fanout/internal/lookup"
	"github.com/rovshanmuradov/solana-fanout/internal/metrics"
	"github.com/rovshanmuradov/solana-fanout/internal/nonce"
	"github.com/rovshanmuradov/solana-fanout/internal/txbuilder"
	"github.com/rovshanmuradov/solana-fanout/internal/wallet"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config – параметры веерной отправки
type Config struct {
	// Confirm включает опрос статуса после приёма каналом.
	Confirm        bool
	ConfirmTimeout time.Duration
	// LookupTables – таблицы, разрешаемые из кэша для каждой сделки.
	LookupTables []solana.PublicKey
}

// Deps – разделяемые сервисы. Nonces, Tables, Poller и Metrics необязательны.
type Deps struct {
	Client  blockchain.Client
	Nonces  *nonce.Manager
	Tables  *lookup.Cache
	Poller  *confirm.Poller
	Metrics *metrics.Collector
	Logger  *zap.Logger
}

// Request – одна логическая сделка
type Request struct {
	Payer        wallet.Signer
	Instructions []solana.Instruction
	Fees         fee.Profile
	// LookupTables переопределяет Config.LookupTables, если не пуст.
	LookupTables []solana.PublicKey
}

// Report – итог торгового вызова: по исходу на каждый канал в порядке конфигурации.
type Report struct {
	Outcomes  []channel.Outcome
	Winner    *channel.Outcome
	NonceUsed bool
	Blockhash solana.Hash
	Elapsed   time.Duration
}

// Succeeded возвращает число успешных каналов.
func (r *Report) Succeeded() int {
	n := 0
	for _, out := range r.Outcomes {
		if out.Success() {
			n++
		}
	}
	return n
}

// Dispatcher собирает вариант транзакции для каждого канала и отправляет
// все варианты параллельно: fire-all, join-all, any-success.
type Dispatcher struct {
	channels []channel.Channel
	client   blockchain.Client
	nonces   *nonce.Manager
	tables   *lookup.Cache
	poller   *confirm.Poller
	metrics  *metrics.Collector
	config   Config
	logger   *zap.Logger
}

func New(channels []channel.Channel, deps Deps, cfg Config) (*Dispatcher, error) {
	if len(channels) == 0 {
		return nil, ErrNoChannels
	}
	if deps.Client == nil {
		return nil, fmt.Errorf("dispatcher: ledger client is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = confirm.DefaultTimeout
	}
	return &Dispatcher{
		channels: channels,
		client:   deps.Client,
		nonces:   deps.Nonces,
		tables:   deps.Tables,
		poller:   deps.Poller,
		metrics:  deps.Metrics,
		config:   cfg,
		logger:   deps.Logger.Named("dispatcher"),
	}, nil
}

// Channels возвращает настроенные каналы в порядке конфигурации.
func (d *Dispatcher) Channels() []channel.Channel {
	return d.channels
}

// Dispatch выполняет один торговый вызов. Ошибка возвращается только
// до веерной отправки (nonce, сборка) или когда не удалось ни одному каналу.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	log := logger.WithOperation(d.logger, "dispatch")

	if req.Payer == nil {
		return nil, ErrNoPayer
	}
	if err := req.Fees.Validate(len(d.channels)); err != nil {
		d.metrics.RecordTrade("aborted", time.Since(start))
		return nil, err
	}

	snap, err := d.consumeNonce()
	if err != nil {
		log.Warn("Trade aborted before fan-out", zap.Error(err))
		d.metrics.RecordTrade("aborted", time.Since(start))
		return nil, err
	}

	report := &Report{NonceUsed: snap != nil}
	if snap == nil {
		report.Blockhash, err = d.client.LatestBlockhash(ctx)
		if err != nil {
			d.metrics.RecordTrade("aborted", time.Since(start))
			return nil, fmt.Errorf("fetch blockhash: %w", err)
		}
	} else {
		report.Blockhash = snap.Value
	}

	variants, err := d.buildVariants(req, snap, report.Blockhash)
	if err != nil {
		log.Error("Failed to build transaction variants", zap.Error(err))
		// ничего не отправлено: значение nonce в леджере не продвинется
		if snap != nil && d.nonces.Release(*snap) {
			d.metrics.RecordNonce("released")
			log.Debug("Durable nonce released", zap.String("value", snap.Value.String()))
		}
		d.metrics.RecordTrade("aborted", time.Since(start))
		return nil, err
	}

	log.Debug("Fanning out",
		zap.Int("channels", len(d.channels)),
		zap.Bool("nonce", report.NonceUsed),
		zap.String("blockhash", report.Blockhash.String()))

	report.Outcomes = d.fanOut(ctx, variants, log)
	report.Elapsed = time.Since(start)
	report.Winner = pickWinner(report.Outcomes)

	if report.Winner == nil {
		log.Error("All channels failed", zap.Duration("elapsed", report.Elapsed))
		d.metrics.RecordTrade("failed", report.Elapsed)
		return nil, &AggregateError{Outcomes: report.Outcomes}
	}

	log.Info("Trade dispatched",
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("channels", len(report.Outcomes)),
		zap.String("winner", report.Winner.Channel),
		zap.String("signature", report.Winner.Signature.String()),
		zap.Duration("elapsed", report.Elapsed))
	d.metrics.RecordTrade("success", report.Elapsed)
	return report, nil
}

// Precheck проверяет nonce, не расходуя его. Stale и NotReady прерывают сделку
// до сборки инструкций протокола, которая обращается к леджеру.
func (d *Dispatcher) Precheck() error {
	if d.nonces == nil {
		return nil
	}
	err := d.nonces.Check()
	if err == nil || errors.Is(err, nonce.ErrUnavailable) {
		return nil
	}
	d.metrics.RecordNonce(nonceResult(err))
	d.metrics.RecordTrade("aborted", 0)
	return err
}

// consumeNonce занимает nonce. Unavailable не ошибка: сборка пойдёт по blockhash.
func (d *Dispatcher) consumeNonce() (*nonce.Snapshot, error) {
	if d.nonces == nil {
		return nil, nil
	}
	snap, err := d.nonces.TryConsume()
	d.metrics.RecordNonce(nonceResult(err))
	switch {
	case err == nil:
		return &snap, nil
	case errors.Is(err, nonce.ErrUnavailable):
		return nil, nil
	default:
		return nil, err
	}
}

func nonceResult(err error) string {
	switch {
	case err == nil:
		return "consumed"
	case errors.Is(err, nonce.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, nonce.ErrStale):
		return "stale"
	default:
		return "not_ready"
	}
}

// buildVariants собирает варианты последовательно: solana.NewTransaction
// меняет разделяемые AccountMeta бизнес-инструкций.
func (d *Dispatcher) buildVariants(req Request, snap *nonce.Snapshot, blockhash solana.Hash) ([]*solana.Transaction, error) {
	tables := d.resolveTables(req)

	variants := make([]*solana.Transaction, len(d.channels))
	for i, ch := range d.channels {
		params := txbuilder.Params{
			Payer:        req.Payer,
			Fees:         req.Fees,
			Tier:         ch.Tier(),
			Instructions: req.Instructions,
			Nonce:        snap,
			Tables:       tables,
			Blockhash:    blockhash,
		}
		if ch.Tier() == fee.TierPriority {
			params.Tip = &fee.Tip{
				Account:  ch.TipAccount(),
				Lamports: req.Fees.TipFor(i),
			}
		}

		tx, err := txbuilder.Build(params)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", ch.Name(), err)
		}
		variants[i] = tx
	}
	return variants, nil
}

func (d *Dispatcher) resolveTables(req Request) map[solana.PublicKey]solana.PublicKeySlice {
	if d.tables == nil {
		return nil
	}
	tables := req.LookupTables
	if len(tables) == 0 {
		tables = d.config.LookupTables
	}
	if len(tables) == 0 {
		return nil
	}
	return d.tables.ResolveAll(tables)
}

// fanOut запускает по задаче на канал и ждёт все. Задачи не отменяют
// друг друга; ошибки собираются в исходы.
func (d *Dispatcher) fanOut(ctx context.Context, variants []*solana.Transaction, log *zap.Logger) []channel.Outcome {
	outcomes := make([]channel.Outcome, len(d.channels))

	var g errgroup.Group
	g.SetLimit(len(d.channels))
	for i, ch := range d.channels {
		g.Go(func() error {
			outcomes[i] = d.submit(ctx, ch, variants[i], log)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (d *Dispatcher) submit(ctx context.Context, ch channel.Channel, tx *solana.Transaction, log *zap.Logger) (out channel.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = channel.Outcome{
				Channel: ch.Name(),
				Kind:    ch.Kind(),
				Err:     fmt.Errorf("channel %s panicked: %v", ch.Name(), r),
			}
			log.Error("Channel task panicked", zap.String("channel", ch.Name()), zap.Any("panic", r))
		}
	}()

	out = ch.SendOne(ctx, tx)
	d.metrics.RecordSubmission(ch.Name(), submissionResult(out), out.Elapsed)

	if !out.Accepted || !d.config.Confirm || d.poller == nil {
		return out
	}

	res := d.poller.Await(ctx, out.Signature, d.config.ConfirmTimeout)
	out.Status = res.Status
	out.Slot = res.Slot
	if res.Status == confirm.StatusFailed {
		out.Err = &channel.SubmissionError{Kind: channel.ErrorRejected, Channel: ch.Name(), Err: res.Err}
	}
	d.metrics.RecordConfirmation(ch.Name(), res.Status.String())

	log.Debug("Confirmation finished",
		zap.String("channel", ch.Name()),
		zap.String("signature", out.Signature.String()),
		zap.Stringer("status", res.Status),
		zap.Uint64("slot", res.Slot))
	return out
}

func submissionResult(out channel.Outcome) string {
	if out.Accepted {
		return "accepted"
	}
	var subErr *channel.SubmissionError
	if errors.As(out.Err, &subErr) {
		return subErr.Kind.String()
	}
	return "error"
}

// pickWinner выбирает успешный исход: сначала попавший в блок, затем самый быстрый.
func pickWinner(outcomes []channel.Outcome) *channel.Outcome {
	var winner *channel.Outcome
	for i := range outcomes {
		out := &outcomes[i]
		if !out.Success() {
			continue
		}
		if winner == nil {
			winner = out
			continue
		}
		if out.Status.Landed() != winner.Status.Landed() {
			if out.Status.Landed() {
				winner = out
			}
			continue
		}
		if out.Elapsed < winner.Elapsed {
			winner = out
		}
	}
	if winner == nil {
		return nil
	}
	w := *winner
	return &w
}
