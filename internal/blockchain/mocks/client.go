// internal/blockchain/mocks/client.go
package mocks

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/solana-fanout/internal/blockchain"
	"github.com/stretchr/testify/mock"
)

// Client is a testify mock of blockchain.Client.
type Client struct {
	mock.Mock
}

var _ blockchain.Client = (*Client)(nil)

func (m *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	args := m.Called(ctx)
	return args.Get(0).(solana.Hash), args.Error(1)
}

func (m *Client) CurrentSlot(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *Client) Account(ctx context.Context, pubkey solana.PublicKey) (*blockchain.Account, error) {
	args := m.Called(ctx, pubkey)
	if acc := args.Get(0); acc != nil {
		return acc.(*blockchain.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Client) Submit(ctx context.Context, tx *solana.Transaction, opts blockchain.SubmitOptions) (solana.Signature, error) {
	args := m.Called(ctx, tx, opts)
	if fn, ok := args.Get(0).(func(context.Context, *solana.Transaction, blockchain.SubmitOptions) solana.Signature); ok {
		return fn(ctx, tx, opts), args.Error(1)
	}
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *Client) Status(ctx context.Context, sig solana.Signature) (blockchain.SignatureStatus, error) {
	args := m.Called(ctx, sig)
	return args.Get(0).(blockchain.SignatureStatus), args.Error(1)
}
