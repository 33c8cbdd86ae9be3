// internal/blockchain/computebudget/computebudget.go
package computebudget

import (
	"bytes"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	cb "github.com/gagliardetto/solana-go/programs/compute-budget"
)

var ProgramID = cb.ProgramID

const (
	RequestUnitsDeprecated         uint8 = 0
	RequestHeapFrame               uint8 = 1
	SetComputeUnitLimit            uint8 = 2
	SetComputeUnitPrice            uint8 = 3
	SetLoadedAccountsDataSizeLimit uint8 = 4
)

// Предопределенные значения
const (
	DefaultUnits         uint32 = 200_000
	MaxUnits             uint32 = 1_400_000
	DefaultDataSizeLimit uint32 = 256 * 1024
	MaxDataSizeLimit     uint32 = 64 * 1024 * 1024
)

// SetLoadedAccountsDataSizeLimitInstruction ограничивает суммарный объём данных
// загружаемых аккаунтов. В solana-go этой инструкции нет, поэтому она кодируется вручную.
type SetLoadedAccountsDataSizeLimitInstruction struct {
	Bytes uint32
}

// Build создает инструкцию для установки лимита данных аккаунтов
func (instr *SetLoadedAccountsDataSizeLimitInstruction) Build() (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, SetLoadedAccountsDataSizeLimit); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, instr.Bytes); err != nil {
		return nil, err
	}
	return solana.NewInstruction(
		ProgramID,
		[]*solana.AccountMeta{},
		buf.Bytes(),
	), nil
}

// UnitLimit создает инструкцию для установки лимита compute units
func UnitLimit(units uint32) solana.Instruction {
	return cb.NewSetComputeUnitLimitInstruction(units).Build()
}

// UnitPrice создает инструкцию для установки цены compute unit в микролампортах
func UnitPrice(microLamports uint64) solana.Instruction {
	return cb.NewSetComputeUnitPriceInstruction(microLamports).Build()
}

// DataSizeLimit создает инструкцию лимита данных аккаунтов
func DataSizeLimit(limit uint32) (solana.Instruction, error) {
	return (&SetLoadedAccountsDataSizeLimitInstruction{Bytes: limit}).Build()
}

// IsBudgetInstruction сообщает, адресована ли инструкция программе compute budget
func IsBudgetInstruction(ix solana.Instruction) bool {
	return ix.ProgramID().Equals(ProgramID)
}
