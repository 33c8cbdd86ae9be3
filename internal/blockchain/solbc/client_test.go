package solbc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/solana-fanout/internal/blockchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// newRPCServer отвечает на JSON-RPC вызовы заготовленными результатами по имени метода.
func newRPCServer(t *testing.T, results map[string]interface{}, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, ok := results[req.Method]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]interface{}{"code": -32601, "message": "method not found"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, urls ...string) *Client {
	t.Helper()
	c, err := NewClient(urls, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	_, err := NewClient(nil, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestLatestBlockhashAndSlot(t *testing.T) {
	hash := solana.Hash{1, 2, 3}
	srv := newRPCServer(t, map[string]interface{}{
		"getLatestBlockhash": map[string]interface{}{
			"context": map[string]interface{}{"slot": 10},
			"value":   map[string]interface{}{"blockhash": hash.String(), "lastValidBlockHeight": 100},
		},
		"getSlot": 777,
	}, nil)
	c := newTestClient(t, srv.URL)

	got, err := c.LatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, hash, got)

	slot, err := c.CurrentSlot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(777), slot)
}

func TestAccount(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	data := []byte{9, 8, 7}
	srv := newRPCServer(t, map[string]interface{}{
		"getAccountInfo": map[string]interface{}{
			"context": map[string]interface{}{"slot": 10},
			"value": map[string]interface{}{
				"lamports":   1500,
				"owner":      owner.String(),
				"data":       []string{base64.StdEncoding.EncodeToString(data), "base64"},
				"executable": false,
				"rentEpoch":  0,
			},
		},
	}, nil)
	c := newTestClient(t, srv.URL)

	acc, err := c.Account(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), acc.Lamports)
	assert.Equal(t, owner, acc.Owner)
	assert.Equal(t, data, acc.Data)
}

func TestAccountNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := newRPCServer(t, map[string]interface{}{
		"getAccountInfo": map[string]interface{}{
			"context": map[string]interface{}{"slot": 10},
			"value":   nil,
		},
	}, &calls)
	c := newTestClient(t, srv.URL)

	_, err := c.Account(context.Background(), solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, blockchain.ErrAccountNotFound)
	assert.Equal(t, int32(1), calls.Load(), "not-found must not be retried")
}

func TestReadFailsOverToNextNode(t *testing.T) {
	var badCalls atomic.Int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		badCalls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(bad.Close)
	good := newRPCServer(t, map[string]interface{}{"getSlot": 5}, nil)

	c := newTestClient(t, bad.URL, good.URL)
	slot, err := c.CurrentSlot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(5), slot)
	assert.Equal(t, int32(1), badCalls.Load())
}

func TestSubmitIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(bad.Close)

	c := newTestClient(t, bad.URL, bad.URL)
	tx := signedTransaction(t)
	_, err := c.Submit(context.Background(), tx, blockchain.SubmitOptions{SkipPreflight: true, MaxRetries: 3})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSubmitAndStatus(t *testing.T) {
	tx := signedTransaction(t)
	sig := tx.Signatures[0]
	srv := newRPCServer(t, map[string]interface{}{
		"sendTransaction": sig.String(),
		"getSignatureStatuses": map[string]interface{}{
			"context": map[string]interface{}{"slot": 10},
			"value": []interface{}{
				map[string]interface{}{"slot": 9, "confirmations": nil, "err": nil, "confirmationStatus": "finalized"},
			},
		},
	}, nil)
	c := newTestClient(t, srv.URL)

	got, err := c.Submit(context.Background(), tx, blockchain.SubmitOptions{SkipPreflight: true, MaxRetries: 2})
	require.NoError(t, err)
	assert.Equal(t, sig, got)

	status, err := c.Status(context.Background(), sig)
	require.NoError(t, err)
	assert.Equal(t, blockchain.StatusFinalized, status.Status)
	assert.Equal(t, uint64(9), status.Slot)
}

func TestStatusPendingAndFailed(t *testing.T) {
	pending := newRPCServer(t, map[string]interface{}{
		"getSignatureStatuses": map[string]interface{}{
			"context": map[string]interface{}{"slot": 10},
			"value":   []interface{}{nil},
		},
	}, nil)
	status, err := newTestClient(t, pending.URL).Status(context.Background(), solana.Signature{1})
	require.NoError(t, err)
	assert.Equal(t, blockchain.StatusPending, status.Status)

	failed := newRPCServer(t, map[string]interface{}{
		"getSignatureStatuses": map[string]interface{}{
			"context": map[string]interface{}{"slot": 10},
			"value": []interface{}{
				map[string]interface{}{"slot": 9, "err": map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}, "confirmationStatus": "confirmed"},
			},
		},
	}, nil)
	status, err = newTestClient(t, failed.URL).Status(context.Background(), solana.Signature{1})
	require.NoError(t, err)
	assert.Equal(t, blockchain.StatusFailed, status.Status)
}

func signedTransaction(t *testing.T) *solana.Transaction {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	ix := solana.NewInstruction(solana.MemoProgramID, []*solana.AccountMeta{
		{PublicKey: key.PublicKey(), IsSigner: true, IsWritable: true},
	}, []byte("ping"))
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{1}, solana.TransactionPayer(key.PublicKey()))
	require.NoError(t, err)
	_, err = tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(key.PublicKey()) {
			return &key
		}
		return nil
	})
	require.NoError(t, err)
	return tx
}
