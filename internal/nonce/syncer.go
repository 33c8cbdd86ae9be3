// internal/nonce/syncer.go
package nonce

import (
	"context"
	"errors"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/rovshanmuradov/solana-fanout/internal/blockchain"
	"go.uber.org/zap"
)

// ErrNonceAccountInvalid - аккаунт не является инициализированным nonce-аккаунтом.
var ErrNonceAccountInvalid = errors.New("invalid nonce account")

const (
	nonceStateInitialized uint32 = 1
	DefaultSyncInterval          = 2 * time.Second
)

// Syncer периодически читает nonce-аккаунт из леджера и переводит менеджер
// из Consumed обратно в Ready, как только значение продвинулось.
type Syncer struct {
	client   blockchain.Client
	manager  *Manager
	interval time.Duration
	logger   *zap.Logger
}

// NewSyncer создаёт синхронизатор nonce.
func NewSyncer(client blockchain.Client, manager *Manager, interval time.Duration, logger *zap.Logger) *Syncer {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &Syncer{
		client:   client,
		manager:  manager,
		interval: interval,
		logger:   logger.Named("nonce-syncer"),
	}
}

// Sync выполняет одну синхронизацию.
func (s *Syncer) Sync(ctx context.Context) error {
	account, ok := s.manager.Account()
	if !ok {
		return ErrUnavailable
	}

	acc, err := s.client.Account(ctx, account)
	if err != nil {
		return fmt.Errorf("failed to fetch nonce account %s: %w", account, err)
	}

	value, authority, err := DecodeAccount(acc.Data)
	if err != nil {
		return err
	}

	if st := s.manager.State(); !st.Authority.IsZero() && !st.Authority.Equals(authority) {
		s.manager.Lock()
		return fmt.Errorf("%w: authority mismatch: configured %s, on-chain %s",
			ErrNonceAccountInvalid, st.Authority, authority)
	}

	if s.manager.Refresh(value) {
		s.logger.Debug("Nonce refreshed",
			zap.String("account", account.String()),
			zap.String("value", value.String()))
	}
	return nil
}

// Run синхронизирует nonce до отмены контекста. Ошибки только логируются.
func (s *Syncer) Run(ctx context.Context) {
	if err := s.Sync(ctx); err != nil {
		s.logger.Warn("Initial nonce sync failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn("Nonce sync failed", zap.Error(err))
			}
		}
	}
}

// DecodeAccount разбирает данные системного nonce-аккаунта.
func DecodeAccount(data []byte) (value solana.Hash, authority solana.PublicKey, err error) {
	var acc system.NonceAccount
	if err := bin.NewBinDecoder(data).Decode(&acc); err != nil {
		return solana.Hash{}, solana.PublicKey{}, fmt.Errorf("%w: %v", ErrNonceAccountInvalid, err)
	}
	if acc.State != nonceStateInitialized {
		return solana.Hash{}, solana.PublicKey{}, fmt.Errorf("%w: state %d", ErrNonceAccountInvalid, acc.State)
	}
	return solana.Hash(acc.Nonce), acc.AuthorizedPubkey, nil
}
