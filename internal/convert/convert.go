package convert

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidPrice indicates a non-positive price mantissa.
	ErrInvalidPrice = errors.New("invalid price")
	// ErrArithmeticOverflow indicates a checked step would exceed uint64.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
)

// Price is fiat per whole coin encoded as Mantissa × 10^Exponent.
type Price struct {
	Mantissa int64
	Exponent int32
}

// Decimal renders the price for display and logging only.
func (p Price) Decimal() decimal.Decimal {
	return decimal.New(p.Mantissa, p.Exponent)
}

func (p Price) String() string {
	return p.Decimal().String()
}

// BaseUnits converts a whole fiat amount into base units of the coin.
//
// The result is floor(fiatAmount × baseUnitScale × 10^-Exponent / Mantissa).
// Fractional base units are always dropped, never rounded up, so the payer
// never sends more than the quoted value. Every multiplication is checked and
// fails with ErrArithmeticOverflow instead of wrapping.
func BaseUnits(fiatAmount uint64, price Price, baseUnitScale uint64) (uint64, error) {
	if price.Mantissa <= 0 {
		return 0, fmt.Errorf("%w: mantissa %d", ErrInvalidPrice, price.Mantissa)
	}
	if fiatAmount == 0 {
		return 0, nil
	}

	scaleFactor, err := Pow10(absExponent(price.Exponent))
	if err != nil {
		return 0, err
	}
	mantissa := uint64(price.Mantissa)

	if price.Exponent < 0 {
		numerator, err := mulChecked(baseUnitScale, scaleFactor, fiatAmount)
		if err != nil {
			return 0, err
		}
		return numerator / mantissa, nil
	}

	numerator, err := mulChecked(baseUnitScale, fiatAmount)
	if err != nil {
		return 0, err
	}
	denominator, err := mulChecked(mantissa, scaleFactor)
	if err != nil {
		return 0, err
	}
	return numerator / denominator, nil
}

// Pow10 returns 10^n, failing once the power no longer fits in uint64.
func Pow10(n uint64) (uint64, error) {
	result := uint64(1)
	for i := uint64(0); i < n; i++ {
		next, overflow := math.SafeMul(result, 10)
		if overflow {
			return 0, fmt.Errorf("%w: 10^%d", ErrArithmeticOverflow, n)
		}
		result = next
	}
	return result, nil
}

// Coins expresses a base-unit amount in whole coins for display.
func Coins(baseUnits, baseUnitScale uint64) decimal.Decimal {
	if baseUnitScale == 0 {
		return decimal.Zero
	}
	amount := decimal.NewFromBigInt(new(big.Int).SetUint64(baseUnits), 0)
	scale := decimal.NewFromBigInt(new(big.Int).SetUint64(baseUnitScale), 0)
	return amount.Div(scale)
}

func mulChecked(factors ...uint64) (uint64, error) {
	product := uint64(1)
	for _, factor := range factors {
		next, overflow := math.SafeMul(product, factor)
		if overflow {
			return 0, fmt.Errorf("%w: product exceeds uint64", ErrArithmeticOverflow)
		}
		product = next
	}
	return product, nil
}

func absExponent(exponent int32) uint64 {
	if exponent < 0 {
		return uint64(-int64(exponent))
	}
	return uint64(exponent)
}
