// internal/fee/profile.go
package fee

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrInvalidTip возникает, когда для приоритетной отправки не задан tip.
	ErrInvalidTip = errors.New("invalid tip")
	// ErrTipListMismatch возникает, когда длина списка tip не совпадает с числом каналов.
	ErrTipListMismatch = errors.New("per-channel tip list length does not match channel count")
	// ErrInvalidProfile возникает при некорректных лимитах бюджета.
	ErrInvalidProfile = errors.New("invalid fee profile")
)

// Tier определяет ценовой уровень отправки.
type Tier int

const (
	// TierPlain - обычная нода, без tip.
	TierPlain Tier = iota
	// TierPriority - релей, tip-перевод в конце транзакции.
	TierPriority
)

func (t Tier) String() string {
	if t == TierPriority {
		return "priority"
	}
	return "plain"
}

// Profile задаёт цену и лимит compute units для обоих уровней и размер tip.
type Profile struct {
	PlainUnitPrice    uint64 // микролампорты за compute unit
	PlainUnitLimit    uint32
	PriorityUnitPrice uint64
	PriorityUnitLimit uint32
	TipLamports       uint64
	ChannelTips       []uint64 // опционально, по одному значению на канал
	DataSizeLimit     uint32
}

// Tip - получатель и размер чаевых для одного варианта транзакции.
type Tip struct {
	Account  solana.PublicKey
	Lamports uint64
}

// Validate проверяет согласованность профиля с числом настроенных каналов.
func (p Profile) Validate(channels int) error {
	if len(p.ChannelTips) != 0 && len(p.ChannelTips) != channels {
		return fmt.Errorf("%w: got %d tips for %d channels", ErrTipListMismatch, len(p.ChannelTips), channels)
	}
	return nil
}

// TipFor возвращает tip для канала с индексом i: значение из списка,
// если он задан, иначе базовый tip.
func (p Profile) TipFor(i int) uint64 {
	if len(p.ChannelTips) == 0 || i < 0 || i >= len(p.ChannelTips) {
		return p.TipLamports
	}
	return p.ChannelTips[i]
}

// Budget возвращает пару цена/лимит для уровня.
func (p Profile) Budget(tier Tier) (price uint64, limit uint32) {
	if tier == TierPriority {
		return p.PriorityUnitPrice, p.PriorityUnitLimit
	}
	return p.PlainUnitPrice, p.PlainUnitLimit
}
