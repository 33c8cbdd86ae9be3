// =============================
// File: internal/protocol/pumpfun/curve.go
// =============================
package pumpfun

import (
	"math"
	"math/bits"
)

const bpsDenominator = 10_000

// mulDiv считает a*b/c без переполнения промежуточного произведения.
// Результат, не помещающийся в uint64, насыщается.
func mulDiv(a, b, c uint64) uint64 {
	if c == 0 {
		return 0
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, c)
	return q
}

// BuyQuote - расчёт покупки за solAmount лампортов.
type BuyQuote struct {
	TokensOut  uint64
	MaxSolCost uint64
}

// QuoteBuy: комиссия протокола удерживается сверх суммы, проходящей через кривую,
// проскальзывание увеличивает допустимую стоимость.
func QuoteBuy(curve *BondingCurve, solAmount uint64, feeBps, slippageBps uint64) BuyQuote {
	solIntoCurve := mulDiv(solAmount, bpsDenominator, bpsDenominator+feeBps)
	tokens := mulDiv(curve.VirtualTokenReserves, solIntoCurve, curve.VirtualSolReserves+solIntoCurve)
	if curve.RealTokenReserves > 0 && tokens > curve.RealTokenReserves {
		tokens = curve.RealTokenReserves
	}
	return BuyQuote{
		TokensOut:  tokens,
		MaxSolCost: mulDiv(solAmount, bpsDenominator+slippageBps, bpsDenominator),
	}
}

// QuoteSell возвращает минимальный выход SOL за tokenAmount после комиссии и проскальзывания.
func QuoteSell(curve *BondingCurve, tokenAmount uint64, feeBps, slippageBps uint64) uint64 {
	sol := mulDiv(tokenAmount, curve.VirtualSolReserves, curve.VirtualTokenReserves+tokenAmount)
	afterFee := mulDiv(sol, bpsDenominator-min(feeBps, bpsDenominator), bpsDenominator)
	return mulDiv(afterFee, bpsDenominator-min(slippageBps, bpsDenominator), bpsDenominator)
}
