package trade

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/solana-fanout/internal/blockchain/mocks"
	"github.com/rovshanmuradov/solana-fanout/internal/channel"
	"github.com/rovshanmuradov/solana-fanout/internal/dispatch"
	"github.com/rovshanmuradov/solana-fanout/internal/fee"
	"github.com/rovshanmuradov/solana-fanout/internal/nonce"
	"github.com/rovshanmuradov/solana-fanout/internal/protocol"
	"github.com/rovshanmuradov/solana-fanout/internal/protocol/pumpfun"
	"github.com/rovshanmuradov/solana-fanout/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockDispatcher struct {
	mock.Mock
	precheck error
}

func (m *mockDispatcher) Precheck() error { return m.precheck }

func (m *mockDispatcher) Dispatch(ctx context.Context, req dispatch.Request) (*dispatch.Report, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*dispatch.Report), args.Error(1)
	}
	return nil, args.Error(1)
}

type stubBuilder struct {
	err error
	ix  solana.Instruction
}

func (s *stubBuilder) Name() string { return "stub" }

func (s *stubBuilder) BuildBuy(context.Context, protocol.TradeIntent) ([]solana.Instruction, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []solana.Instruction{s.ix}, nil
}

func (s *stubBuilder) BuildSell(ctx context.Context, intent protocol.TradeIntent) ([]solana.Instruction, error) {
	return s.BuildBuy(ctx, intent)
}

func newService(t *testing.T, b protocol.Builder, d Dispatcher) (*Service, *wallet.Wallet) {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	payer := wallet.FromPrivateKey(key)

	registry := protocol.NewRegistry(zaptest.NewLogger(t))
	require.NoError(t, registry.Register(b))

	svc, err := NewService(Config{
		Registry:   registry,
		Dispatcher: d,
		Payer:      payer,
		Fees:       fee.Profile{TipLamports: 1_000},
		Logger:     zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return svc, payer
}

func buyIntent() protocol.TradeIntent {
	return protocol.TradeIntent{
		Protocol:  "stub",
		Direction: protocol.DirectionBuy,
		Asset:     solana.NewWallet().PublicKey(),
		Amount:    1_000_000,
	}
}

func successReport() *dispatch.Report {
	out := channel.Outcome{Channel: "node", Accepted: true}
	return &dispatch.Report{Outcomes: []channel.Outcome{out}, Winner: &out}
}

func TestExecuteDispatchesBuiltInstructions(t *testing.T) {
	ix := solana.NewInstruction(solana.MemoProgramID, nil, []byte("x"))
	d := new(mockDispatcher)
	svc, payer := newService(t, &stubBuilder{ix: ix}, d)

	d.On("Dispatch", mock.Anything, mock.MatchedBy(func(req dispatch.Request) bool {
		return req.Payer.PublicKey().Equals(payer.PublicKey()) &&
			len(req.Instructions) == 1 && req.Instructions[0] == ix &&
			req.Fees.TipLamports == 1_000
	})).Return(successReport(), nil).Once()

	report, err := svc.Execute(context.Background(), buyIntent())
	require.NoError(t, err)
	assert.Equal(t, "node", report.Winner.Channel)
	d.AssertExpectations(t)
}

func TestExecuteInvalidIntent(t *testing.T) {
	d := new(mockDispatcher)
	svc, _ := newService(t, &stubBuilder{}, d)

	intent := buyIntent()
	intent.Amount = 0
	_, err := svc.Execute(context.Background(), intent)
	assert.ErrorIs(t, err, protocol.ErrInvalidParams)

	intent = buyIntent()
	intent.Protocol = "raydium"
	_, err = svc.Execute(context.Background(), intent)
	assert.ErrorIs(t, err, protocol.ErrUnknownProtocol)
	d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestExecuteBuilderError(t *testing.T) {
	d := new(mockDispatcher)
	svc, _ := newService(t, &stubBuilder{err: protocol.ErrPoolNotFound}, d)

	_, err := svc.Execute(context.Background(), buyIntent())
	assert.ErrorIs(t, err, protocol.ErrPoolNotFound)
	assert.True(t, IsAborted(err))
	d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

// Сборщик Pump.fun читает леджер, поэтому израсходованный nonce должен
// остановить сделку раньше него.
func TestExecuteStaleNonceSkipsBuilder(t *testing.T) {
	client := new(mocks.Client)
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	payer := wallet.FromPrivateKey(key)

	nonces := nonce.NewManager()
	nonces.Configure(solana.NewWallet().PublicKey(), payer.PublicKey())
	require.True(t, nonces.Refresh(solana.Hash{3}))
	_, err = nonces.TryConsume()
	require.NoError(t, err)

	node := channel.NewNodeChannel(channel.Descriptor{Name: "rpc", Kind: channel.KindNode}, client, zaptest.NewLogger(t))
	d, err := dispatch.New([]channel.Channel{node}, dispatch.Deps{
		Client: client,
		Nonces: nonces,
		Logger: zaptest.NewLogger(t),
	}, dispatch.Config{})
	require.NoError(t, err)

	pf, err := pumpfun.NewBuilder(client, payer, pumpfun.Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	registry := protocol.NewRegistry(zaptest.NewLogger(t))
	require.NoError(t, registry.Register(pf))

	svc, err := NewService(Config{Registry: registry, Dispatcher: d, Payer: payer, Fees: fee.Profile{TipLamports: 1_000}})
	require.NoError(t, err)

	intent := buyIntent()
	intent.Protocol = pumpfun.Name
	_, err = svc.Execute(context.Background(), intent)
	assert.ErrorIs(t, err, nonce.ErrStale)
	assert.True(t, IsAborted(err))
	assert.Empty(t, client.Calls)
}

func TestExecutePrecheckStopsBeforeBuild(t *testing.T) {
	builder := &stubBuilder{err: errors.New("must not be called")}
	d := &mockDispatcher{precheck: nonce.ErrNotReady}
	svc, _ := newService(t, builder, d)

	_, err := svc.Execute(context.Background(), buyIntent())
	assert.ErrorIs(t, err, nonce.ErrNotReady)
	d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestExecuteAllContinuesAfterFailure(t *testing.T) {
	ix := solana.NewInstruction(solana.MemoProgramID, nil, []byte("x"))
	d := new(mockDispatcher)
	svc, _ := newService(t, &stubBuilder{ix: ix}, d)

	agg := &dispatch.AggregateError{Outcomes: []channel.Outcome{{Channel: "node", Err: errors.New("refused")}}}
	d.On("Dispatch", mock.Anything, mock.Anything).Return(nil, nonce.ErrStale).Once()
	d.On("Dispatch", mock.Anything, mock.Anything).Return(nil, agg).Once()
	d.On("Dispatch", mock.Anything, mock.Anything).Return(successReport(), nil).Once()

	results := svc.ExecuteAll(context.Background(), []protocol.TradeIntent{buyIntent(), buyIntent(), buyIntent()}, time.Millisecond)
	require.Len(t, results, 3)
	assert.ErrorIs(t, results[0].Err, nonce.ErrStale)
	assert.True(t, IsAborted(results[0].Err))
	assert.False(t, IsAborted(results[1].Err))
	assert.NoError(t, results[2].Err)
}

func TestExecuteAllStopsOnCancel(t *testing.T) {
	d := new(mockDispatcher)
	svc, _ := newService(t, &stubBuilder{}, d)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := svc.ExecuteAll(ctx, []protocol.TradeIntent{buyIntent(), buyIntent()}, 0)
	assert.Empty(t, results)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(Config{})
	assert.Error(t, err)
}
