// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rovshanmuradov/solana-fanout/internal/blockchain"
	solrpc "github.com/rovshanmuradov/solana-fanout/internal/blockchain/solbc/rpc"
	"go.uber.org/zap"
)

// Client – тонкий адаптер для взаимодействия с блокчейном Solana через solana-go.
// Чтения переключаются между узлами пула, отправка выполняется ровно один раз.
type Client struct {
	pool       *solrpc.Pool
	commitment rpc.CommitmentType
	logger     *zap.Logger
}

// NewClient создаёт новый клиент, принимая список RPC URL и логгер через dependency injection.
func NewClient(rpcURLs []string, logger *zap.Logger) (*Client, error) {
	pool, err := solrpc.NewPool(rpcURLs, logger)
	if err != nil {
		return nil, err
	}
	return &Client{
		pool:       pool,
		commitment: rpc.CommitmentConfirmed,
		logger:     logger.Named("solbc-client"),
	}, nil
}

// ObserveRPC подключает наблюдателя задержек RPC-вызовов.
func (c *Client) ObserveRPC(observer solrpc.Observer) {
	c.pool.SetObserver(observer)
}

// SetRetries задаёт число попыток для чтений; отправка не повторяется.
func (c *Client) SetRetries(n int) {
	c.pool.SetMaxRetries(n)
}

// LatestBlockhash получает последний blockhash.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var hash solana.Hash
	err := c.pool.ExecuteWithRetry(ctx, "getLatestBlockhash", func(ctx context.Context, node *solrpc.NodeClient) error {
		result, err := node.Client.GetLatestBlockhash(ctx, c.commitment)
		if err != nil {
			return err
		}
		if result == nil || result.Value == nil {
			return fmt.Errorf("empty blockhash response")
		}
		hash = result.Value.Blockhash
		return nil
	})
	if err != nil {
		c.logger.Error("LatestBlockhash error", zap.Error(err))
		return solana.Hash{}, err
	}
	return hash, nil
}

// CurrentSlot возвращает текущий слот.
func (c *Client) CurrentSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	err := c.pool.ExecuteWithRetry(ctx, "getSlot", func(ctx context.Context, node *solrpc.NodeClient) error {
		var err error
		slot, err = node.Client.GetSlot(ctx, c.commitment)
		return err
	})
	if err != nil {
		c.logger.Error("CurrentSlot error", zap.Error(err))
		return 0, err
	}
	return slot, nil
}

// Account получает данные аккаунта в base64.
func (c *Client) Account(ctx context.Context, pubkey solana.PublicKey) (*blockchain.Account, error) {
	var out *blockchain.Account
	err := c.pool.ExecuteWithRetry(ctx, "getAccountInfo", func(ctx context.Context, node *solrpc.NodeClient) error {
		result, err := node.Client.GetAccountInfoWithOpts(ctx, pubkey, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: c.commitment,
		})
		if err != nil {
			return err
		}
		if result == nil || result.Value == nil {
			return rpc.ErrNotFound
		}
		out = &blockchain.Account{
			Lamports: result.Value.Lamports,
			Owner:    result.Value.Owner,
		}
		if result.Value.Data != nil {
			out.Data = result.Value.Data.GetBinary()
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", pubkey, blockchain.ErrAccountNotFound)
		}
		c.logger.Debug("Account error",
			zap.String("pubkey", pubkey.String()),
			zap.Error(err))
		return nil, err
	}
	return out, nil
}

// Submit отправляет транзакцию через sendTransaction. Повторы доверены узлу (maxRetries).
func (c *Client) Submit(ctx context.Context, tx *solana.Transaction, opts blockchain.SubmitOptions) (solana.Signature, error) {
	txOpts := rpc.TransactionOpts{
		Encoding:            solana.EncodingBase64,
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: opts.PreflightCommitment,
	}
	if opts.MaxRetries > 0 {
		maxRetries := opts.MaxRetries
		txOpts.MaxRetries = &maxRetries
	}

	var sig solana.Signature
	err := c.pool.Execute(ctx, "sendTransaction", func(ctx context.Context, node *solrpc.NodeClient) error {
		var err error
		sig, err = node.Client.SendTransactionWithOpts(ctx, tx, txOpts)
		return err
	})
	if err != nil {
		c.logger.Error("Submit error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// Status получает статус подписи.
func (c *Client) Status(ctx context.Context, sig solana.Signature) (blockchain.SignatureStatus, error) {
	var status blockchain.SignatureStatus
	err := c.pool.ExecuteWithRetry(ctx, "getSignatureStatuses", func(ctx context.Context, node *solrpc.NodeClient) error {
		result, err := node.Client.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			return err
		}
		status = convertStatus(result)
		return nil
	})
	if err != nil {
		return blockchain.SignatureStatus{}, err
	}
	return status, nil
}

func convertStatus(result *rpc.GetSignatureStatusesResult) blockchain.SignatureStatus {
	if result == nil || len(result.Value) == 0 || result.Value[0] == nil {
		return blockchain.SignatureStatus{Status: blockchain.StatusPending}
	}
	value := result.Value[0]
	out := blockchain.SignatureStatus{Slot: value.Slot, Err: value.Err}
	switch {
	case value.Err != nil:
		out.Status = blockchain.StatusFailed
	case value.ConfirmationStatus == rpc.ConfirmationStatusFinalized:
		out.Status = blockchain.StatusFinalized
	case value.ConfirmationStatus == rpc.ConfirmationStatusConfirmed:
		out.Status = blockchain.StatusConfirmed
	default:
		out.Status = blockchain.StatusPending
	}
	return out
}

// Гарантируем, что Client реализует интерфейс blockchain.Client.
var _ blockchain.Client = (*Client)(nil)
