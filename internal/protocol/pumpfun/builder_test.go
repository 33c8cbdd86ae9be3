package pumpfun

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/rovshanmuradov/solana-fanout/internal/blockchain"
	"github.com/rovshanmuradov/solana-fanout/internal/blockchain/mocks"
	"github.com/rovshanmuradov/solana-fanout/internal/protocol"
	"github.com/rovshanmuradov/solana-fanout/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	virtualTokens = 1_073_000_000_000_000
	virtualSol    = 30_000_000_000
)

type fixture struct {
	client       *mocks.Client
	wallet       *wallet.Wallet
	builder      *Builder
	mint         solana.PublicKey
	curve        solana.PublicKey
	feeRecipient solana.PublicKey
}

func encodeBorsh(t *testing.T, v interface{}) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, bin.NewBorshEncoder(buf).Encode(v))
	return buf.Bytes()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	f := &fixture{
		client:       new(mocks.Client),
		wallet:       wallet.FromPrivateKey(key),
		mint:         solana.NewWallet().PublicKey(),
		feeRecipient: solana.NewWallet().PublicKey(),
	}
	f.builder, err = NewBuilder(f.client, f.wallet, Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	f.curve, _, err = f.builder.config.deriveBondingCurve(f.mint)
	require.NoError(t, err)
	return f
}

func (f *fixture) expectGlobal(t *testing.T, feeBps uint64) {
	data := encodeBorsh(t, GlobalAccount{Initialized: true, FeeRecipient: f.feeRecipient, FeeBasisPoints: feeBps})
	f.client.On("Account", mock.Anything, f.builder.config.Global).
		Return(&blockchain.Account{Owner: PumpFunProgramID, Data: data}, nil).Once()
}

func (f *fixture) expectCurve(t *testing.T, complete bool) {
	data := encodeBorsh(t, BondingCurve{
		VirtualTokenReserves: virtualTokens,
		VirtualSolReserves:   virtualSol,
		RealTokenReserves:    793_000_000_000_000,
		TokenTotalSupply:     1_000_000_000_000_000,
		Complete:             complete,
	})
	f.client.On("Account", mock.Anything, f.curve).
		Return(&blockchain.Account{Owner: PumpFunProgramID, Data: data}, nil)
}

func (f *fixture) expectLamports(lamports uint64) {
	f.client.On("Account", mock.Anything, f.wallet.PublicKey()).
		Return(&blockchain.Account{Lamports: lamports}, nil)
}

func (f *fixture) expectTokens(t *testing.T, amount uint64) {
	ata, err := f.wallet.GetATA(f.mint)
	require.NoError(t, err)
	buf := new(bytes.Buffer)
	require.NoError(t, bin.NewBinEncoder(buf).Encode(token.Account{Mint: f.mint, Owner: f.wallet.PublicKey(), Amount: amount}))
	f.client.On("Account", mock.Anything, ata).Return(&blockchain.Account{Data: buf.Bytes()}, nil)
}

func (f *fixture) intent(dir protocol.Direction, amount uint64) protocol.TradeIntent {
	return protocol.TradeIntent{Protocol: Name, Direction: dir, Asset: f.mint, Amount: amount, SlippageBps: 500}
}

func instructionArgs(t *testing.T, ix solana.Instruction) (disc []byte, amount, limit uint64) {
	t.Helper()
	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 24)
	return data[:8], binary.LittleEndian.Uint64(data[8:16]), binary.LittleEndian.Uint64(data[16:24])
}

func TestBuildBuy(t *testing.T) {
	f := newFixture(t)
	f.expectGlobal(t, 100)
	f.expectCurve(t, false)
	f.expectLamports(5_000_000_000)

	ixs, err := f.builder.BuildBuy(context.Background(), f.intent(protocol.DirectionBuy, 1_000_000_000))
	require.NoError(t, err)
	require.Len(t, ixs, 2)

	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, ixs[0].ProgramID())

	buy := ixs[1]
	assert.Equal(t, PumpFunProgramID, buy.ProgramID())
	disc, amount, maxCost := instructionArgs(t, buy)
	assert.Equal(t, buyDiscriminator, disc)
	assert.Equal(t, QuoteBuy(&BondingCurve{VirtualTokenReserves: virtualTokens, VirtualSolReserves: virtualSol, RealTokenReserves: 793_000_000_000_000}, 1_000_000_000, 100, 500).TokensOut, amount)
	assert.Equal(t, uint64(1_050_000_000), maxCost)

	accounts := buy.Accounts()
	assert.Equal(t, f.feeRecipient, accounts[1].PublicKey)
	assert.Equal(t, f.curve, accounts[3].PublicKey)
	assert.True(t, accounts[6].IsSigner)
	assert.Equal(t, f.wallet.PublicKey(), accounts[6].PublicKey)
	f.client.AssertExpectations(t)
}

func TestBuildBuyZeroAmountMakesNoCalls(t *testing.T) {
	f := newFixture(t)
	_, err := f.builder.BuildBuy(context.Background(), f.intent(protocol.DirectionBuy, 0))
	assert.ErrorIs(t, err, protocol.ErrInvalidParams)

	_, err = f.builder.BuildSell(context.Background(), f.intent(protocol.DirectionSell, 0))
	assert.ErrorIs(t, err, protocol.ErrInvalidParams)
	f.client.AssertNotCalled(t, "Account", mock.Anything, mock.Anything)
}

func TestBuildBuyRejectsSellIntent(t *testing.T) {
	f := newFixture(t)
	_, err := f.builder.BuildBuy(context.Background(), f.intent(protocol.DirectionSell, 10))
	assert.ErrorIs(t, err, protocol.ErrInvalidParams)
}

func TestBuildBuyInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.expectGlobal(t, 100)
	f.expectCurve(t, false)
	f.expectLamports(1_000_000_000)

	_, err := f.builder.BuildBuy(context.Background(), f.intent(protocol.DirectionBuy, 1_000_000_000))
	assert.ErrorIs(t, err, protocol.ErrInsufficientBalance)
}

func TestBuildBuyMissingCurve(t *testing.T) {
	f := newFixture(t)
	f.expectGlobal(t, 100)
	f.client.On("Account", mock.Anything, f.curve).Return(nil, blockchain.ErrAccountNotFound)

	_, err := f.builder.BuildBuy(context.Background(), f.intent(protocol.DirectionBuy, 1_000))
	assert.ErrorIs(t, err, protocol.ErrPoolNotFound)
}

func TestBuildBuyCompleteCurve(t *testing.T) {
	f := newFixture(t)
	f.expectGlobal(t, 100)
	f.expectCurve(t, true)

	_, err := f.builder.BuildBuy(context.Background(), f.intent(protocol.DirectionBuy, 1_000))
	assert.ErrorIs(t, err, protocol.ErrPoolNotFound)
}

func TestBuildSell(t *testing.T) {
	f := newFixture(t)
	f.expectGlobal(t, 100)
	f.expectCurve(t, false)
	f.expectTokens(t, 2_000_000)

	ixs, err := f.builder.BuildSell(context.Background(), f.intent(protocol.DirectionSell, 1_000_000))
	require.NoError(t, err)
	require.Len(t, ixs, 1)

	disc, amount, minOut := instructionArgs(t, ixs[0])
	assert.Equal(t, sellDiscriminator, disc)
	assert.Equal(t, uint64(1_000_000), amount)
	assert.Equal(t, QuoteSell(&BondingCurve{VirtualTokenReserves: virtualTokens, VirtualSolReserves: virtualSol}, 1_000_000, 100, 500), minOut)
	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, ixs[0].Accounts()[8].PublicKey)
}

func TestBuildSellInsufficientTokens(t *testing.T) {
	f := newFixture(t)
	f.expectGlobal(t, 100)
	f.expectCurve(t, false)
	ata, err := f.wallet.GetATA(f.mint)
	require.NoError(t, err)
	f.client.On("Account", mock.Anything, ata).Return(nil, blockchain.ErrAccountNotFound)

	_, err = f.builder.BuildSell(context.Background(), f.intent(protocol.DirectionSell, 1))
	assert.ErrorIs(t, err, protocol.ErrInsufficientBalance)
}

func TestGlobalAccountIsCached(t *testing.T) {
	f := newFixture(t)
	f.expectGlobal(t, 100)
	f.expectCurve(t, false)
	f.expectLamports(10_000_000_000)

	for i := 0; i < 3; i++ {
		_, err := f.builder.BuildBuy(context.Background(), f.intent(protocol.DirectionBuy, 1_000_000))
		require.NoError(t, err)
	}
	f.client.AssertNumberOfCalls(t, "Account", 1+3*2)
}

func TestGlobalAccountWrongOwner(t *testing.T) {
	f := newFixture(t)
	f.client.On("Account", mock.Anything, f.builder.config.Global).
		Return(&blockchain.Account{Owner: solana.SystemProgramID, Data: make([]byte, globalAccountSize)}, nil)

	_, err := f.builder.BuildBuy(context.Background(), f.intent(protocol.DirectionBuy, 1_000))
	assert.ErrorContains(t, err, "incorrect owner")
}

func TestGlobalAccountFetchErrorNotCached(t *testing.T) {
	f := newFixture(t)
	f.client.On("Account", mock.Anything, f.builder.config.Global).Return(nil, errors.New("timeout")).Once()
	_, err := f.builder.BuildBuy(context.Background(), f.intent(protocol.DirectionBuy, 1_000))
	assert.ErrorContains(t, err, "timeout")

	f.expectGlobal(t, 100)
	f.expectCurve(t, false)
	f.expectLamports(10_000_000_000)
	_, err = f.builder.BuildBuy(context.Background(), f.intent(protocol.DirectionBuy, 1_000_000))
	assert.NoError(t, err)
}

func TestDecodeBondingCurveTooShort(t *testing.T) {
	_, err := decodeBondingCurve(make([]byte, 10))
	assert.Error(t, err)
}

func TestQuotes(t *testing.T) {
	curve := &BondingCurve{VirtualTokenReserves: virtualTokens, VirtualSolReserves: virtualSol}

	q := QuoteBuy(curve, 1_000_000_000, 100, 500)
	assert.Equal(t, uint64(1_050_000_000), q.MaxSolCost)
	assert.Greater(t, q.TokensOut, uint64(0))
	assert.Less(t, q.TokensOut, uint64(virtualTokens))

	noFee := QuoteBuy(curve, 1_000_000_000, 0, 0)
	assert.Greater(t, noFee.TokensOut, q.TokensOut)

	capped := QuoteBuy(&BondingCurve{VirtualTokenReserves: virtualTokens, VirtualSolReserves: virtualSol, RealTokenReserves: 10}, 1_000_000_000, 0, 0)
	assert.Equal(t, uint64(10), capped.TokensOut)

	strict := QuoteSell(curve, 1_000_000_000, 100, 0)
	loose := QuoteSell(curve, 1_000_000_000, 100, 1_000)
	assert.Greater(t, strict, loose)
	assert.Zero(t, QuoteSell(curve, 1_000_000_000, 100, protocol.MaxSlippageBps))
}

func TestMulDiv(t *testing.T) {
	assert.Equal(t, uint64(1_000_000_000_000_000), mulDiv(1_000_000_000_000_000, 1_000_000_000, 1_000_000_000))
	assert.Equal(t, uint64(math.MaxUint64), mulDiv(math.MaxUint64, math.MaxUint64, 1))
	assert.Zero(t, mulDiv(1, 1, 0))
}
