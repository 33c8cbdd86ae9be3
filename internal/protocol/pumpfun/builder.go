// =============================
// File: internal/protocol/pumpfun/builder.go
// =============================
package pumpfun

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/solana-fanout/internal/blockchain"
	"github.com/rovshanmuradov/solana-fanout/internal/protocol"
	"github.com/rovshanmuradov/solana-fanout/internal/wallet"
	"go.uber.org/zap"
)

// Name - имя протокола в реестре и в файлах задач.
const Name = "pumpfun"

// Builder собирает инструкции покупки и продажи на bonding curve Pump.fun.
type Builder struct {
	client blockchain.Client
	wallet *wallet.Wallet
	config Config
	logger *zap.Logger

	mu     sync.Mutex
	global *GlobalAccount
}

var _ protocol.Builder = (*Builder)(nil)

// NewBuilder создаёт builder; пустые адреса конфигурации заполняются mainnet-значениями.
func NewBuilder(client blockchain.Client, w *wallet.Wallet, cfg Config, logger *zap.Logger) (*Builder, error) {
	if client == nil {
		return nil, fmt.Errorf("pumpfun: ledger client is required")
	}
	if w == nil {
		return nil, fmt.Errorf("pumpfun: wallet is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	logger = logger.Named(Name)
	logger.Info("PumpFun configuration prepared",
		zap.String("program_id", cfg.ProgramID.String()),
		zap.String("global_account", cfg.Global.String()),
		zap.String("event_authority", cfg.EventAuthority.String()))

	return &Builder{client: client, wallet: w, config: cfg, logger: logger}, nil
}

func (b *Builder) Name() string { return Name }

// BuildBuy: Amount - лампорты, которые кошелёк готов потратить.
func (b *Builder) BuildBuy(ctx context.Context, intent protocol.TradeIntent) ([]solana.Instruction, error) {
	if err := validate(intent, protocol.DirectionBuy); err != nil {
		return nil, err
	}

	accounts, curve, global, err := b.prepare(ctx, intent.Asset)
	if err != nil {
		return nil, err
	}

	quote := QuoteBuy(curve, intent.Amount, global.FeeBasisPoints, uint64(intent.SlippageBps))
	if quote.TokensOut == 0 {
		return nil, fmt.Errorf("%w: amount %d lamports buys zero tokens", protocol.ErrInvalidParams, intent.Amount)
	}

	lamports, err := lamportBalance(ctx, b.client, b.wallet.PublicKey())
	if err != nil {
		return nil, err
	}
	if lamports < quote.MaxSolCost {
		return nil, fmt.Errorf("%w: wallet has %d lamports, trade needs up to %d",
			protocol.ErrInsufficientBalance, lamports, quote.MaxSolCost)
	}

	createATA, err := b.wallet.CreateATAIdempotentInstruction(intent.Asset)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("Calculated buy parameters",
		zap.String("mint", intent.Asset.String()),
		zap.Uint64("sol_amount_lamports", intent.Amount),
		zap.Uint64("tokens_out", quote.TokensOut),
		zap.Uint64("max_sol_cost", quote.MaxSolCost),
		zap.Uint64("virtual_token_reserves", curve.VirtualTokenReserves),
		zap.Uint64("virtual_sol_reserves", curve.VirtualSolReserves))

	return []solana.Instruction{
		createATA,
		buildBuyInstruction(accounts, quote.TokensOut, quote.MaxSolCost),
	}, nil
}

// BuildSell: Amount - базовые единицы токена.
func (b *Builder) BuildSell(ctx context.Context, intent protocol.TradeIntent) ([]solana.Instruction, error) {
	if err := validate(intent, protocol.DirectionSell); err != nil {
		return nil, err
	}

	accounts, curve, global, err := b.prepare(ctx, intent.Asset)
	if err != nil {
		return nil, err
	}

	balance, err := tokenBalance(ctx, b.client, accounts.AssociatedUser)
	if err != nil {
		return nil, err
	}
	if balance < intent.Amount {
		return nil, fmt.Errorf("%w: token balance %d, selling %d",
			protocol.ErrInsufficientBalance, balance, intent.Amount)
	}

	minSolOutput := QuoteSell(curve, intent.Amount, global.FeeBasisPoints, uint64(intent.SlippageBps))

	b.logger.Debug("Calculated sell parameters",
		zap.String("mint", intent.Asset.String()),
		zap.Uint64("token_amount", intent.Amount),
		zap.Uint64("min_sol_output_lamports", minSolOutput),
		zap.Uint64("virtual_token_reserves", curve.VirtualTokenReserves),
		zap.Uint64("virtual_sol_reserves", curve.VirtualSolReserves))

	return []solana.Instruction{
		buildSellInstruction(accounts, intent.Amount, minSolOutput),
	}, nil
}

func validate(intent protocol.TradeIntent, want protocol.Direction) error {
	if intent.Direction == "" {
		intent.Direction = want
	}
	if intent.Direction != want {
		return fmt.Errorf("%w: %s intent passed to %s builder", protocol.ErrInvalidParams, intent.Direction, want)
	}
	if intent.Protocol == "" {
		intent.Protocol = Name
	}
	return intent.Validate()
}

// prepare вычисляет адреса сделки и читает кривую и global-аккаунт.
func (b *Builder) prepare(ctx context.Context, mint solana.PublicKey) (tradeAccounts, *BondingCurve, *GlobalAccount, error) {
	curveAddr, associatedCurve, err := b.config.deriveBondingCurve(mint)
	if err != nil {
		return tradeAccounts{}, nil, nil, err
	}
	userATA, err := b.wallet.GetATA(mint)
	if err != nil {
		return tradeAccounts{}, nil, nil, fmt.Errorf("failed to get associated token account: %w", err)
	}

	global, err := b.globalAccount(ctx)
	if err != nil {
		return tradeAccounts{}, nil, nil, err
	}

	curve, err := fetchBondingCurve(ctx, b.client, curveAddr)
	if err != nil {
		return tradeAccounts{}, nil, nil, err
	}

	feeRecipient := b.config.FeeRecipient
	if feeRecipient.IsZero() {
		feeRecipient = global.FeeRecipient
	}

	return tradeAccounts{
		Global:                 b.config.Global,
		FeeRecipient:           feeRecipient,
		Mint:                   mint,
		BondingCurve:           curveAddr,
		AssociatedBondingCurve: associatedCurve,
		AssociatedUser:         userATA,
		User:                   b.wallet.PublicKey(),
		EventAuthority:         b.config.EventAuthority,
		Program:                b.config.ProgramID,
	}, curve, global, nil
}

// globalAccount читает global-аккаунт один раз; ошибка не кэшируется.
func (b *Builder) globalAccount(ctx context.Context) (*GlobalAccount, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.global != nil {
		return b.global, nil
	}
	global, err := fetchGlobalAccount(ctx, b.client, b.config)
	if err != nil {
		return nil, err
	}
	if global.FeeBasisPoints == 0 {
		global.FeeBasisPoints = DefaultFeeBasisPoints
	}
	b.global = global
	return global, nil
}
