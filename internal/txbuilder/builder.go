// internal/txbuilder/builder.go
package txbuilder

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/rovshanmuradov/solana-fanout/internal/fee"
	"github.com/rovshanmuradov/solana-fanout/internal/nonce"
	"github.com/rovshanmuradov/solana-fanout/internal/wallet"
)

// MaxTransactionSize - предельный размер сериализованной транзакции (размер пакета).
const MaxTransactionSize = 1232

var (
	// ErrUnauthorizedSigner - инструкция требует подпись ключа, отличного от плательщика.
	ErrUnauthorizedSigner = errors.New("unauthorized signer")
	// ErrSerializationFailed - транзакцию не удалось собрать, подписать или сериализовать.
	ErrSerializationFailed = errors.New("transaction serialization failed")
)

// BuildError - ошибка сборки с указанием этапа.
type BuildError struct {
	Op  string
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s: %v", e.Op, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

func buildErr(op string, kind error, format string, args ...interface{}) error {
	return &BuildError{Op: op, Err: fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))}
}

// Params - входные данные одного варианта транзакции.
type Params struct {
	Payer        wallet.Signer
	Fees         fee.Profile
	Tier         fee.Tier
	Tip          *fee.Tip
	Instructions []solana.Instruction
	Nonce        *nonce.Snapshot
	Tables       map[solana.PublicKey]solana.PublicKeySlice
	Blockhash    solana.Hash
}

// Build собирает и подписывает один вариант транзакции. Порядок инструкций:
// advance nonce (если есть снимок), бюджет, бизнес-инструкции без изменений,
// tip последним для приоритетного уровня. Сетевых вызовов нет.
func Build(p Params) (*solana.Transaction, error) {
	if p.Payer == nil {
		return nil, buildErr("params", ErrSerializationFailed, "payer is required")
	}
	payer := p.Payer.PublicKey()

	blockhash := p.Blockhash
	instructions := make([]solana.Instruction, 0, len(p.Instructions)+5)
	if p.Nonce != nil {
		instructions = append(instructions, AdvanceNonce(*p.Nonce))
		blockhash = p.Nonce.Value
	}
	if blockhash.IsZero() {
		return nil, buildErr("params", ErrSerializationFailed, "missing recent blockhash")
	}

	feeInstructions, err := fee.Assemble(p.Fees, p.Tier, payer, p.Tip)
	if err != nil {
		return nil, &BuildError{Op: "fees", Err: err}
	}
	budget, tip := fee.Split(feeInstructions, p.Tier)
	instructions = append(instructions, budget...)
	instructions = append(instructions, p.Instructions...)
	instructions = append(instructions, tip...)

	if err := checkSigners(payer, instructions); err != nil {
		return nil, err
	}

	opts := []solana.TransactionOption{solana.TransactionPayer(payer)}
	if len(p.Tables) > 0 {
		opts = append(opts, solana.TransactionAddressTables(p.Tables))
	}

	tx, err := solana.NewTransaction(instructions, blockhash, opts...)
	if err != nil {
		return nil, buildErr("compile", ErrSerializationFailed, "%v", err)
	}
	if err := p.Payer.SignTransaction(tx); err != nil {
		return nil, buildErr("sign", ErrSerializationFailed, "%v", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, buildErr("marshal", ErrSerializationFailed, "%v", err)
	}
	if len(raw) > MaxTransactionSize {
		return nil, buildErr("marshal", ErrSerializationFailed, "transaction size %d exceeds %d bytes", len(raw), MaxTransactionSize)
	}
	return tx, nil
}

// AdvanceNonce - инструкция продвижения durable nonce, всегда первая в транзакции.
func AdvanceNonce(snap nonce.Snapshot) solana.Instruction {
	return system.NewAdvanceNonceAccountInstruction(
		snap.Account,
		solana.SysVarRecentBlockHashesPubkey,
		snap.Authority,
	).Build()
}

// checkSigners отклоняет любую инструкцию, требующую подпись не плательщика:
// на этом уровне доступен только ключ плательщика.
func checkSigners(payer solana.PublicKey, instructions []solana.Instruction) error {
	for i, ix := range instructions {
		for _, meta := range ix.Accounts() {
			if meta.IsSigner && !meta.PublicKey.Equals(payer) {
				return buildErr("signers", ErrUnauthorizedSigner,
					"instruction %d (program %s) requires signer %s", i, ix.ProgramID(), meta.PublicKey)
			}
		}
	}
	return nil
}

// Encode возвращает base64 представление транзакции для отправки по проводу.
func Encode(tx *solana.Transaction) (string, error) {
	out, err := tx.ToBase64()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return out, nil
}
