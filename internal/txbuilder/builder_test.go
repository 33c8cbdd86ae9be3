package txbuilder

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/solana-fanout/internal/blockchain/computebudget"
	"github.com/rovshanmuradov/solana-fanout/internal/fee"
	"github.com/rovshanmuradov/solana-fanout/internal/lookup"
	"github.com/rovshanmuradov/solana-fanout/internal/nonce"
	"github.com/rovshanmuradov/solana-fanout/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProgram = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

func newPayer(t *testing.T) *wallet.Wallet {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return wallet.FromPrivateKey(key)
}

func profile() fee.Profile {
	return fee.Profile{
		PlainUnitPrice:    1_000,
		PlainUnitLimit:    200_000,
		PriorityUnitPrice: 10_000,
		PriorityUnitLimit: 250_000,
		TipLamports:       100_000,
		DataSizeLimit:     computebudget.DefaultDataSizeLimit,
	}
}

func businessInstructions(payer solana.PublicKey, extra ...solana.PublicKey) []solana.Instruction {
	accounts := []*solana.AccountMeta{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
	}
	for _, key := range extra {
		accounts = append(accounts, &solana.AccountMeta{PublicKey: key, IsWritable: true})
	}
	return []solana.Instruction{
		solana.NewInstruction(testProgram, accounts, []byte{1, 2, 3}),
		solana.NewInstruction(testProgram, accounts, []byte{4, 5, 6}),
	}
}

func programIDs(t *testing.T, tx *solana.Transaction) []solana.PublicKey {
	t.Helper()
	out := make([]solana.PublicKey, 0, len(tx.Message.Instructions))
	for _, ix := range tx.Message.Instructions {
		require.Less(t, int(ix.ProgramIDIndex), len(tx.Message.AccountKeys))
		out = append(out, tx.Message.AccountKeys[ix.ProgramIDIndex])
	}
	return out
}

func TestBuildPlainOrdering(t *testing.T) {
	payer := newPayer(t)
	tx, err := Build(Params{
		Payer:        payer,
		Fees:         profile(),
		Tier:         fee.TierPlain,
		Instructions: businessInstructions(payer.PublicKey()),
		Blockhash:    solana.Hash{9},
	})
	require.NoError(t, err)

	ids := programIDs(t, tx)
	require.Len(t, ids, 5)
	for i := 0; i < 3; i++ {
		assert.Equal(t, computebudget.ProgramID, ids[i])
	}
	assert.Equal(t, testProgram, ids[3])
	assert.Equal(t, testProgram, ids[4])
	assert.Equal(t, []byte{1, 2, 3}, []byte(tx.Message.Instructions[3].Data))
	assert.Equal(t, solana.Hash{9}, tx.Message.RecentBlockhash)
	assert.Equal(t, payer.PublicKey(), tx.Message.AccountKeys[0])
	assert.NoError(t, tx.VerifySignatures())
}

func TestBuildPriorityTipIsLast(t *testing.T) {
	payer := newPayer(t)
	tipAccount := solana.NewWallet().PublicKey()
	tx, err := Build(Params{
		Payer:        payer,
		Fees:         profile(),
		Tier:         fee.TierPriority,
		Tip:          &fee.Tip{Account: tipAccount, Lamports: 500_000},
		Instructions: businessInstructions(payer.PublicKey()),
		Blockhash:    solana.Hash{9},
	})
	require.NoError(t, err)

	ids := programIDs(t, tx)
	require.Len(t, ids, 6)
	assert.Equal(t, solana.SystemProgramID, ids[5])
	assert.Contains(t, tx.Message.AccountKeys, tipAccount)
}

func TestBuildNonceAdvanceFirst(t *testing.T) {
	payer := newPayer(t)
	snap := nonce.Snapshot{
		Account:   solana.NewWallet().PublicKey(),
		Authority: payer.PublicKey(),
		Value:     solana.Hash{42},
	}
	tx, err := Build(Params{
		Payer:        payer,
		Fees:         profile(),
		Tier:         fee.TierPriority,
		Tip:          &fee.Tip{Account: solana.NewWallet().PublicKey(), Lamports: 1},
		Instructions: businessInstructions(payer.PublicKey()),
		Nonce:        &snap,
		Blockhash:    solana.Hash{9},
	})
	require.NoError(t, err)

	ids := programIDs(t, tx)
	assert.Equal(t, solana.SystemProgramID, ids[0])
	// AdvanceNonceAccount = 4 (u32 LE)
	assert.Equal(t, []byte{4, 0, 0, 0}, []byte(tx.Message.Instructions[0].Data))
	assert.Equal(t, snap.Value, tx.Message.RecentBlockhash)
	assert.Equal(t, computebudget.ProgramID, ids[1])
}

func TestBuildNonceWithoutBlockhash(t *testing.T) {
	payer := newPayer(t)
	snap := nonce.Snapshot{Account: solana.NewWallet().PublicKey(), Authority: payer.PublicKey(), Value: solana.Hash{1}}
	_, err := Build(Params{
		Payer:        payer,
		Fees:         profile(),
		Instructions: businessInstructions(payer.PublicKey()),
		Nonce:        &snap,
	})
	assert.NoError(t, err)
}

func TestBuildRejectsForeignSigner(t *testing.T) {
	payer := newPayer(t)
	other := solana.NewWallet().PublicKey()
	ix := solana.NewInstruction(testProgram, []*solana.AccountMeta{
		{PublicKey: payer.PublicKey(), IsSigner: true, IsWritable: true},
		{PublicKey: other, IsSigner: true},
	}, []byte{1})

	_, err := Build(Params{
		Payer:        payer,
		Fees:         profile(),
		Instructions: []solana.Instruction{ix},
		Blockhash:    solana.Hash{1},
	})
	require.ErrorIs(t, err, ErrUnauthorizedSigner)
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "signers", be.Op)
}

func TestBuildRejectsForeignNonceAuthority(t *testing.T) {
	payer := newPayer(t)
	snap := nonce.Snapshot{Account: solana.NewWallet().PublicKey(), Authority: solana.NewWallet().PublicKey(), Value: solana.Hash{1}}
	_, err := Build(Params{
		Payer:        payer,
		Fees:         profile(),
		Instructions: businessInstructions(payer.PublicKey()),
		Nonce:        &snap,
	})
	assert.ErrorIs(t, err, ErrUnauthorizedSigner)
}

func TestBuildMissingBlockhash(t *testing.T) {
	payer := newPayer(t)
	_, err := Build(Params{Payer: payer, Fees: profile(), Instructions: businessInstructions(payer.PublicKey())})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestBuildTooLarge(t *testing.T) {
	payer := newPayer(t)
	extra := make([]solana.PublicKey, 40)
	for i := range extra {
		extra[i] = solana.NewWallet().PublicKey()
	}
	_, err := Build(Params{
		Payer:        payer,
		Fees:         profile(),
		Instructions: businessInstructions(payer.PublicKey(), extra...),
		Blockhash:    solana.Hash{1},
	})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestBuildLookupCacheMissUsesFullKeys(t *testing.T) {
	payer := newPayer(t)
	extra := []solana.PublicKey{solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()}
	cache := lookup.NewCache()

	tx, err := Build(Params{
		Payer:        payer,
		Fees:         profile(),
		Instructions: businessInstructions(payer.PublicKey(), extra...),
		Tables:       cache.ResolveAll([]solana.PublicKey{solana.NewWallet().PublicKey()}),
		Blockhash:    solana.Hash{1},
	})
	require.NoError(t, err)
	assert.Empty(t, tx.Message.AddressTableLookups)
	for _, key := range extra {
		assert.Contains(t, tx.Message.AccountKeys, key)
	}
}

func TestBuildWithLookupTable(t *testing.T) {
	payer := newPayer(t)
	extra := make([]solana.PublicKey, 20)
	for i := range extra {
		extra[i] = solana.NewWallet().PublicKey()
	}
	table := solana.NewWallet().PublicKey()
	cache := lookup.NewCache()
	require.NoError(t, cache.Update(table, extra))

	tx, err := Build(Params{
		Payer:        payer,
		Fees:         profile(),
		Instructions: businessInstructions(payer.PublicKey(), extra...),
		Tables:       cache.ResolveAll([]solana.PublicKey{table}),
		Blockhash:    solana.Hash{1},
	})
	require.NoError(t, err)
	assert.Len(t, tx.Message.AddressTableLookups, 1)
	for _, key := range extra {
		assert.NotContains(t, tx.Message.AccountKeys, key)
	}

	encoded, err := Encode(tx)
	require.NoError(t, err)
	assert.NotEmpty(t, encoded)
}
