// internal/lookup/loader.go
package lookup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	alt "github.com/gagliardetto/solana-go/programs/address-lookup-table"
	"github.com/rovshanmuradov/solana-fanout/internal/blockchain"
	"go.uber.org/zap"
)

const DefaultRefreshInterval = 30 * time.Second

// Loader - путь сопровождения кеша: читает таблицы из леджера и обновляет Cache.
type Loader struct {
	client   blockchain.Client
	cache    *Cache
	tables   []solana.PublicKey
	interval time.Duration
	logger   *zap.Logger
}

// NewLoader создаёт загрузчик для списка таблиц.
func NewLoader(client blockchain.Client, cache *Cache, tables []solana.PublicKey, interval time.Duration, logger *zap.Logger) *Loader {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Loader{
		client:   client,
		cache:    cache,
		tables:   tables,
		interval: interval,
		logger:   logger.Named("lookup-loader"),
	}
}

// Load загружает одну таблицу. Деактивированная таблица замораживается.
func (l *Loader) Load(ctx context.Context, table solana.PublicKey) error {
	acc, err := l.client.Account(ctx, table)
	if err != nil {
		return fmt.Errorf("failed to fetch lookup table %s: %w", table, err)
	}

	state, err := alt.DecodeAddressLookupTableState(acc.Data)
	if err != nil {
		return fmt.Errorf("failed to decode lookup table %s: %w", table, err)
	}

	if err := l.cache.Update(table, state.Addresses); err != nil {
		if errors.Is(err, ErrFrozen) {
			return nil
		}
		return err
	}
	if !state.IsActive() {
		l.cache.MarkFrozen(table)
		l.logger.Info("Lookup table deactivated, entry frozen", zap.String("table", table.String()))
	}

	l.logger.Debug("Lookup table loaded",
		zap.String("table", table.String()),
		zap.Int("addresses", len(state.Addresses)))
	return nil
}

// LoadAll загружает все таблицы, возвращая объединённую ошибку.
func (l *Loader) LoadAll(ctx context.Context) error {
	var errs []error
	for _, table := range l.tables {
		if err := l.Load(ctx, table); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run периодически обновляет кеш до отмены контекста.
func (l *Loader) Run(ctx context.Context) {
	if len(l.tables) == 0 {
		return
	}
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.LoadAll(ctx); err != nil {
				l.logger.Warn("Lookup table refresh failed", zap.Error(err))
			}
		}
	}
}
