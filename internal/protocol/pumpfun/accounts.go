// =============================
// File: internal/protocol/pumpfun/accounts.go
// =============================
package pumpfun

import (
	"context"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/rovshanmuradov/solana-fanout/internal/blockchain"
	"github.com/rovshanmuradov/solana-fanout/internal/protocol"
)

// Размеры аккаунтов без хвостовых полей, которые мы не читаем.
const (
	bondingCurveSize  = 8 + 5*8 + 1
	globalAccountSize = 8 + 1 + 32 + 32 + 5*8
)

// BondingCurve - состояние кривой токена.
type BondingCurve struct {
	Discriminator        [8]byte
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
}

// GlobalAccount represents the PumpFun global account data
type GlobalAccount struct {
	Discriminator               [8]byte
	Initialized                 bool
	Authority                   solana.PublicKey
	FeeRecipient                solana.PublicKey
	InitialVirtualTokenReserves uint64
	InitialVirtualSolReserves   uint64
	InitialRealTokenReserves    uint64
	TokenTotalSupply            uint64
	FeeBasisPoints              uint64
}

func decodeBondingCurve(data []byte) (*BondingCurve, error) {
	if len(data) < bondingCurveSize {
		return nil, fmt.Errorf("invalid bonding curve data: %d bytes", len(data))
	}
	var curve BondingCurve
	if err := bin.NewBorshDecoder(data).Decode(&curve); err != nil {
		return nil, fmt.Errorf("failed to decode bonding curve: %w", err)
	}
	return &curve, nil
}

func decodeGlobalAccount(data []byte) (*GlobalAccount, error) {
	if len(data) < globalAccountSize {
		return nil, fmt.Errorf("global account data too short: %d bytes", len(data))
	}
	var global GlobalAccount
	if err := bin.NewBorshDecoder(data).Decode(&global); err != nil {
		return nil, fmt.Errorf("failed to decode global account: %w", err)
	}
	return &global, nil
}

// fetchBondingCurve читает кривую; отсутствующая или завершённая кривая - ErrPoolNotFound.
func fetchBondingCurve(ctx context.Context, client blockchain.Client, address solana.PublicKey) (*BondingCurve, error) {
	acc, err := client.Account(ctx, address)
	if errors.Is(err, blockchain.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: bonding curve %s", protocol.ErrPoolNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bonding curve account: %w", err)
	}

	curve, err := decodeBondingCurve(acc.Data)
	if err != nil {
		return nil, err
	}
	if curve.Complete {
		return nil, fmt.Errorf("%w: bonding curve %s is complete", protocol.ErrPoolNotFound, address)
	}
	if curve.VirtualTokenReserves == 0 || curve.VirtualSolReserves == 0 {
		return nil, fmt.Errorf("%w: bonding curve %s has zero reserves", protocol.ErrPoolNotFound, address)
	}
	return curve, nil
}

func fetchGlobalAccount(ctx context.Context, client blockchain.Client, cfg Config) (*GlobalAccount, error) {
	acc, err := client.Account(ctx, cfg.Global)
	if err != nil {
		return nil, fmt.Errorf("failed to get global account: %w", err)
	}
	if !acc.Owner.Equals(cfg.ProgramID) {
		return nil, fmt.Errorf("global account has incorrect owner: expected %s, got %s", cfg.ProgramID, acc.Owner)
	}
	return decodeGlobalAccount(acc.Data)
}

// tokenBalance возвращает баланс SPL токен-аккаунта; отсутствующий аккаунт - ноль.
func tokenBalance(ctx context.Context, client blockchain.Client, ata solana.PublicKey) (uint64, error) {
	acc, err := client.Account(ctx, ata)
	if errors.Is(err, blockchain.ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get token account: %w", err)
	}

	var tokenAccount token.Account
	if err := bin.NewBinDecoder(acc.Data).Decode(&tokenAccount); err != nil {
		return 0, fmt.Errorf("failed to decode token account: %w", err)
	}
	return tokenAccount.Amount, nil
}

// lamportBalance возвращает баланс SOL кошелька; отсутствующий аккаунт - ноль.
func lamportBalance(ctx context.Context, client blockchain.Client, owner solana.PublicKey) (uint64, error) {
	acc, err := client.Account(ctx, owner)
	if errors.Is(err, blockchain.ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get wallet balance: %w", err)
	}
	return acc.Lamports, nil
}
