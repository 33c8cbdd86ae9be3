// internal/fee/assembler.go
package fee

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/rovshanmuradov/solana-fanout/internal/blockchain/computebudget"
)

// Assemble строит бюджетные инструкции в строгом порядке:
// лимит данных аккаунтов, цена CU, лимит CU и, только для TierPriority,
// завершающий перевод tip. Функция чистая и не выполняет I/O.
func Assemble(profile Profile, tier Tier, payer solana.PublicKey, tip *Tip) ([]solana.Instruction, error) {
	price, limit := profile.Budget(tier)
	if limit == 0 || limit > computebudget.MaxUnits {
		return nil, fmt.Errorf("%w: compute unit limit %d for %s tier", ErrInvalidProfile, limit, tier)
	}
	if profile.DataSizeLimit == 0 || profile.DataSizeLimit > computebudget.MaxDataSizeLimit {
		return nil, fmt.Errorf("%w: data size limit %d", ErrInvalidProfile, profile.DataSizeLimit)
	}
	if tier == TierPriority {
		if tip == nil || tip.Lamports == 0 {
			return nil, fmt.Errorf("%w: priority submission requires a positive tip", ErrInvalidTip)
		}
		if tip.Account.IsZero() {
			return nil, fmt.Errorf("%w: priority submission requires a tip account", ErrInvalidTip)
		}
	}

	dataLimit, err := computebudget.DataSizeLimit(profile.DataSizeLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to build data size limit instruction: %w", err)
	}

	instructions := make([]solana.Instruction, 0, 4)
	instructions = append(instructions,
		dataLimit,
		computebudget.UnitPrice(price),
		computebudget.UnitLimit(limit),
	)

	if tier == TierPriority {
		instructions = append(instructions, TipTransfer(payer, *tip))
	}
	return instructions, nil
}

// TipTransfer - системный перевод чаевых от плательщика на tip-аккаунт.
func TipTransfer(payer solana.PublicKey, tip Tip) solana.Instruction {
	return system.NewTransferInstruction(tip.Lamports, payer, tip.Account).Build()
}

// Split разделяет вывод Assemble на бюджетный префикс и tip-суффикс.
func Split(instructions []solana.Instruction, tier Tier) (budget []solana.Instruction, tip []solana.Instruction) {
	if tier == TierPriority && len(instructions) > 0 {
		return instructions[:len(instructions)-1], instructions[len(instructions)-1:]
	}
	return instructions, nil
}
