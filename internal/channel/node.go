// internal/channel/node.go
package channel

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/rovshanmuradov/solana-fanout/internal/blockchain"
	"go.uber.org/zap"
)

// NodeChannel отправляет транзакцию обычным sendTransaction через ledger-клиент.
type NodeChannel struct {
	base
	client blockchain.Client
	opts   blockchain.SubmitOptions
}

func NewNodeChannel(desc Descriptor, client blockchain.Client, logger *zap.Logger) *NodeChannel {
	retries := desc.MaxRetries
	if retries == 0 {
		retries = DefaultNodeRetries
	}
	return &NodeChannel{
		base:   newBase(desc, logger),
		client: client,
		opts: blockchain.SubmitOptions{
			SkipPreflight:       true,
			PreflightCommitment: rpc.CommitmentConfirmed,
			MaxRetries:          retries,
		},
	}
}

func (c *NodeChannel) SendOne(ctx context.Context, tx *solana.Transaction) Outcome {
	start := time.Now()
	out := c.newOutcome(tx)
	if err := c.wait(ctx); err != nil {
		return c.fail(out, start, transportError(c.desc.Name, err))
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.desc.Timeout)
	defer cancel()

	sig, err := c.client.Submit(sendCtx, tx, c.opts)
	if err != nil {
		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) {
			return c.fail(out, start, newSubmissionError(ErrorRejected, c.desc.Name, err))
		}
		return c.fail(out, start, transportError(c.desc.Name, err))
	}
	if !sig.IsZero() {
		out.Signature = sig
	}
	return c.accept(out, start)
}

// SendMany отправляет транзакции по одной: у обычной ноды нет бандлов.
func (c *NodeChannel) SendMany(ctx context.Context, txs []*solana.Transaction) []Outcome {
	outcomes := make([]Outcome, 0, len(txs))
	for _, tx := range txs {
		outcomes = append(outcomes, c.SendOne(ctx, tx))
	}
	return outcomes
}

var _ Channel = (*NodeChannel)(nil)
