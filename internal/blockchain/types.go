// internal/blockchain/types.go
package blockchain

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrAccountNotFound возвращается, когда запрошенный аккаунт отсутствует в леджере.
var ErrAccountNotFound = errors.New("account not found")

// TxStatus - статус подписи с точки зрения леджера.
type TxStatus int

const (
	StatusPending TxStatus = iota
	StatusConfirmed
	StatusFinalized
	StatusFailed
)

func (s TxStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusFinalized:
		return "finalized"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SubmitOptions определяет опции для отправки транзакций.
type SubmitOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
	MaxRetries          uint
}

// Account - сырые данные аккаунта.
type Account struct {
	Lamports uint64
	Owner    solana.PublicKey
	Data     []byte
}

// SignatureStatus - результат запроса статуса подписи.
type SignatureStatus struct {
	Status TxStatus
	Slot   uint64
	Err    interface{}
}

// Client определяет общий интерфейс для взаимодействия с блокчейном.
type Client interface {
	// Получить последний blockhash.
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	// Текущий слот.
	CurrentSlot(ctx context.Context) (uint64, error)
	// Получить аккаунт; ErrAccountNotFound если его нет.
	Account(ctx context.Context, pubkey solana.PublicKey) (*Account, error)
	// Отправить подписанную транзакцию.
	Submit(ctx context.Context, tx *solana.Transaction, opts SubmitOptions) (solana.Signature, error)
	// Статус подписи.
	Status(ctx context.Context, sig solana.Signature) (SignatureStatus, error)
}
