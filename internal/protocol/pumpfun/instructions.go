// ==============================================
// File: internal/protocol/pumpfun/instructions.go
// ==============================================
package pumpfun

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// tradeAccounts - адреса одной сделки в порядке, ожидаемом программой.
type tradeAccounts struct {
	Global                 solana.PublicKey
	FeeRecipient           solana.PublicKey
	Mint                   solana.PublicKey
	BondingCurve           solana.PublicKey
	AssociatedBondingCurve solana.PublicKey
	AssociatedUser         solana.PublicKey
	User                   solana.PublicKey
	EventAuthority         solana.PublicKey
	Program                solana.PublicKey
}

func encodeArgs(discriminator []byte, amount, limit uint64) []byte {
	data := make([]byte, len(discriminator)+16)
	copy(data, discriminator)
	binary.LittleEndian.PutUint64(data[len(discriminator):], amount)
	binary.LittleEndian.PutUint64(data[len(discriminator)+8:], limit)
	return data
}

// buildBuyInstruction: купить amount токенов, потратив не более maxSolCost лампортов.
func buildBuyInstruction(acc tradeAccounts, amount, maxSolCost uint64) solana.Instruction {
	return solana.NewInstruction(acc.Program, []*solana.AccountMeta{
		{PublicKey: acc.Global, IsSigner: false, IsWritable: false},
		{PublicKey: acc.FeeRecipient, IsSigner: false, IsWritable: true},
		{PublicKey: acc.Mint, IsSigner: false, IsWritable: false},
		{PublicKey: acc.BondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: acc.AssociatedBondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: acc.AssociatedUser, IsSigner: false, IsWritable: true},
		{PublicKey: acc.User, IsSigner: true, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SysVarRentPubkey, IsSigner: false, IsWritable: false},
		{PublicKey: acc.EventAuthority, IsSigner: false, IsWritable: false},
		{PublicKey: acc.Program, IsSigner: false, IsWritable: false},
	}, encodeArgs(buyDiscriminator, amount, maxSolCost))
}

// buildSellInstruction: продать amount токенов, получив не менее minSolOutput лампортов.
func buildSellInstruction(acc tradeAccounts, amount, minSolOutput uint64) solana.Instruction {
	return solana.NewInstruction(acc.Program, []*solana.AccountMeta{
		{PublicKey: acc.Global, IsSigner: false, IsWritable: false},
		{PublicKey: acc.FeeRecipient, IsSigner: false, IsWritable: true},
		{PublicKey: acc.Mint, IsSigner: false, IsWritable: false},
		{PublicKey: acc.BondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: acc.AssociatedBondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: acc.AssociatedUser, IsSigner: false, IsWritable: true},
		{PublicKey: acc.User, IsSigner: true, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SPLAssociatedTokenAccountProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: acc.EventAuthority, IsSigner: false, IsWritable: false},
		{PublicKey: acc.Program, IsSigner: false, IsWritable: false},
	}, encodeArgs(sellDiscriminator, amount, minSolOutput))
}
