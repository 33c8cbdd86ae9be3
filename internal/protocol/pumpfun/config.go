// =============================
// File: internal/protocol/pumpfun/config.go
// =============================
package pumpfun

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Known PumpFun protocol addresses
var (
	// Program ID for Pump.fun protocol
	PumpFunProgramID = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

	// Event authority for the Pump.fun protocol
	PumpFunEventAuth = solana.MustPublicKeyFromBase58("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1")
)

// Дискриминаторы инструкций (первые 8 байт sha256("global:<name>")).
var (
	buyDiscriminator  = []byte{102, 6, 61, 18, 1, 218, 235, 234}
	sellDiscriminator = []byte{51, 230, 133, 164, 1, 127, 131, 173}
)

// DefaultFeeBasisPoints используется, пока global-аккаунт не прочитан.
const DefaultFeeBasisPoints = 100

// Config holds the protocol addresses used by the builder.
type Config struct {
	ProgramID      solana.PublicKey
	Global         solana.PublicKey
	EventAuthority solana.PublicKey
	// FeeRecipient переопределяет значение из global-аккаунта.
	FeeRecipient solana.PublicKey
}

// DefaultConfig returns mainnet addresses with the global PDA derived.
func DefaultConfig() (Config, error) {
	cfg := Config{
		ProgramID:      PumpFunProgramID,
		EventAuthority: PumpFunEventAuth,
	}
	return cfg.withDefaults()
}

func (cfg Config) withDefaults() (Config, error) {
	if cfg.ProgramID.IsZero() {
		cfg.ProgramID = PumpFunProgramID
	}
	if cfg.EventAuthority.IsZero() {
		cfg.EventAuthority = PumpFunEventAuth
	}
	if cfg.Global.IsZero() {
		global, _, err := solana.FindProgramAddress([][]byte{[]byte("global")}, cfg.ProgramID)
		if err != nil {
			return Config{}, fmt.Errorf("failed to derive global account: %w", err)
		}
		cfg.Global = global
	}
	return cfg, nil
}

// deriveBondingCurve вычисляет PDA bonding curve и её ассоциированный токен-аккаунт.
func (cfg Config) deriveBondingCurve(mint solana.PublicKey) (curve, associatedCurve solana.PublicKey, err error) {
	curve, _, err = solana.FindProgramAddress(
		[][]byte{[]byte("bonding-curve"), mint.Bytes()},
		cfg.ProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("failed to derive bonding curve: %w", err)
	}

	associatedCurve, _, err = solana.FindAssociatedTokenAddress(curve, mint)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("failed to derive associated bonding curve: %w", err)
	}
	return curve, associatedCurve, nil
}
