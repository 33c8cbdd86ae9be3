// internal/channel/channel.go
package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/solana-fanout/internal/confirm"
	"github.com/rovshanmuradov/solana-fanout/internal/fee"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Kind – тип канала доставки
type Kind string

const (
	KindNode   Kind = "node"
	KindBundle Kind = "bundle"
	KindREST   Kind = "rest"
	KindStream Kind = "stream"
)

// Tier возвращает ценовой уровень канала: обычная нода платит plain-ставку,
// релеи – priority-ставку и чаевые.
func (k Kind) Tier() fee.Tier {
	if k == KindNode {
		return fee.TierPlain
	}
	return fee.TierPriority
}

// Valid проверяет, что тип канала известен.
func (k Kind) Valid() bool {
	switch k {
	case KindNode, KindBundle, KindREST, KindStream:
		return true
	}
	return false
}

// Transport – способ доставки транзакции
type Transport string

const (
	TransportRPC    Transport = "rpc"
	TransportStream Transport = "stream"
	TransportREST   Transport = "rest"
)

// DefaultTransport возвращает транспорт по умолчанию для типа канала.
func DefaultTransport(k Kind) Transport {
	switch k {
	case KindNode:
		return TransportRPC
	case KindBundle:
		return TransportStream
	default:
		return TransportREST
	}
}

const (
	DefaultSendTimeout  = 5 * time.Second
	DefaultPingInterval = 30 * time.Second
	DefaultNodeRetries  = 3
)

// Descriptor описывает один настроенный канал. Неизменяем после старта.
type Descriptor struct {
	Name         string
	Kind         Kind
	Provider     string
	Endpoint     string
	AuthToken    string
	AuthHeader   string
	TipAccounts  []solana.PublicKey
	Transport    Transport
	Flags        map[string]bool
	RateLimit    float64
	PingInterval time.Duration
	PingPath     string
	MaxRetries   uint
	Timeout      time.Duration
}

// Channel – общий набор возможностей адаптера доставки.
type Channel interface {
	Name() string
	Kind() Kind
	Tier() fee.Tier
	TipAccount() solana.PublicKey
	SendOne(ctx context.Context, tx *solana.Transaction) Outcome
	SendMany(ctx context.Context, txs []*solana.Transaction) []Outcome
}

// Lifecycle реализуют каналы с фоновыми горутинами (стрим, keepalive).
type Lifecycle interface {
	Start(ctx context.Context) error
	Close() error
}

// Outcome – результат одной попытки отправки через канал
type Outcome struct {
	Channel   string
	Kind      Kind
	Signature solana.Signature
	Accepted  bool
	Status    confirm.Status
	Slot      uint64
	Elapsed   time.Duration
	Err       error
	BundleID  string
}

// Success: канал принял транзакцию и она не упала on-chain.
// Таймаут подтверждения успехом не отменяется.
func (o Outcome) Success() bool {
	return o.Accepted && o.Status != confirm.StatusFailed
}

// ErrorKind классифицирует ошибку отправки
type ErrorKind int

const (
	ErrorTransport ErrorKind = iota
	ErrorRejected
	ErrorTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorTransport:
		return "transport"
	case ErrorRejected:
		return "rejected"
	case ErrorTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

var (
	ErrTransport   = errors.New("transport failure")
	ErrRejected    = errors.New("rejected by channel")
	ErrTimeout     = errors.New("send timeout")
	ErrUnknownKind = errors.New("unknown channel kind")
)

// SubmissionError – ошибка отдельного канала. Не влияет на соседние каналы.
type SubmissionError struct {
	Kind    ErrorKind
	Channel string
	Err     error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("channel %s: %s: %v", e.Channel, e.Kind, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Is позволяет проверять вид ошибки через errors.Is(err, ErrTransport).
func (e *SubmissionError) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == ErrorTransport
	case ErrRejected:
		return e.Kind == ErrorRejected
	case ErrTimeout:
		return e.Kind == ErrorTimeout
	}
	return false
}

func newSubmissionError(kind ErrorKind, channel string, err error) *SubmissionError {
	return &SubmissionError{Kind: kind, Channel: channel, Err: err}
}

// transportError превращает сетевую ошибку в Transport или Timeout.
func transportError(channel string, err error) *SubmissionError {
	if errors.Is(err, context.DeadlineExceeded) {
		return newSubmissionError(ErrorTimeout, channel, err)
	}
	return newSubmissionError(ErrorTransport, channel, err)
}

// base – общая часть всех адаптеров: дескриптор, пул чаевых, лимитер и логгер.
type base struct {
	desc    Descriptor
	tips    *TipPool
	limiter *rate.Limiter
	logger  *zap.Logger
}

func newBase(desc Descriptor, logger *zap.Logger) base {
	if desc.Transport == "" {
		desc.Transport = DefaultTransport(desc.Kind)
	}
	if desc.Timeout <= 0 {
		desc.Timeout = DefaultSendTimeout
	}
	accounts := desc.TipAccounts
	if len(accounts) == 0 && desc.Kind != KindNode {
		accounts = DefaultTipAccounts(desc.Provider)
	}
	b := base{
		desc:   desc,
		tips:   NewTipPool(accounts),
		logger: logger.Named("channel").With(zap.String("channel", desc.Name), zap.String("kind", string(desc.Kind))),
	}
	if desc.RateLimit > 0 {
		burst := int(desc.RateLimit)
		if burst < 1 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(desc.RateLimit), burst)
	}
	return b
}

func (b *base) Name() string                 { return b.desc.Name }
func (b *base) Kind() Kind                   { return b.desc.Kind }
func (b *base) Tier() fee.Tier               { return b.desc.Kind.Tier() }
func (b *base) TipAccount() solana.PublicKey { return b.tips.Pick() }

// Descriptor возвращает копию дескриптора канала.
func (b *base) Descriptor() Descriptor { return b.desc }

// wait блокируется на лимитере не дольше контекста отправки.
func (b *base) wait(ctx context.Context) error {
	if b.limiter == nil {
		return nil
	}
	return b.limiter.Wait(ctx)
}

func (b *base) newOutcome(tx *solana.Transaction) Outcome {
	out := Outcome{Channel: b.desc.Name, Kind: b.desc.Kind}
	if tx != nil && len(tx.Signatures) > 0 {
		out.Signature = tx.Signatures[0]
	}
	return out
}

func (b *base) fail(out Outcome, start time.Time, err *SubmissionError) Outcome {
	out.Accepted = false
	out.Err = err
	out.Elapsed = time.Since(start)
	b.logger.Warn("Submission failed",
		zap.String("signature", out.Signature.String()),
		zap.Stringer("error_kind", err.Kind),
		zap.Duration("elapsed", out.Elapsed),
		zap.Error(err.Err))
	return out
}

func (b *base) accept(out Outcome, start time.Time) Outcome {
	out.Accepted = true
	out.Elapsed = time.Since(start)
	b.logger.Debug("Submission accepted",
		zap.String("signature", out.Signature.String()),
		zap.String("bundle_id", out.BundleID),
		zap.Duration("elapsed", out.Elapsed))
	return out
}
