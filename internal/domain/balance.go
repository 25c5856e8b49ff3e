package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RaoPerTao is the number of base units (rao) in one display unit (tao).
const RaoPerTao = 1_000_000_000

// UnitUntagged marks a Balance that has not been attached to any subnet asset.
// Untagged balances mix freely with any unit.
const UnitUntagged = -1

// RootNetuid is the distinguished root subnet whose pool is a static 1:1 pool.
const RootNetuid = 0

// Balance is a fixed-point amount stored in rao. The optional unit tag records
// which subnet asset the amount denominates; arithmetic between two balances
// tagged with different units is a programming error and panics.
type Balance struct {
	Rao    int64
	Netuid int
}

// NewBalance builds an untagged balance from a raw rao amount.
func NewBalance(rao int64) Balance {
	return Balance{Rao: rao, Netuid: UnitUntagged}
}

// FromRao builds a balance in rao tagged with the given subnet unit.
func FromRao(rao int64, netuid int) Balance {
	return Balance{Rao: rao, Netuid: netuid}
}

// FromTao builds an untagged balance from a display-unit decimal amount.
func FromTao(tao decimal.Decimal) Balance {
	return Balance{Rao: tao.Mul(decimal.NewFromInt(RaoPerTao)).IntPart(), Netuid: UnitUntagged}
}

// WithUnit returns a copy of the balance tagged with the given subnet unit.
// The raw amount is unchanged.
func (b Balance) WithUnit(netuid int) Balance {
	return Balance{Rao: b.Rao, Netuid: netuid}
}

// Tao converts the raw amount to the display unit.
func (b Balance) Tao() decimal.Decimal {
	return decimal.New(b.Rao, 0).Div(decimal.NewFromInt(RaoPerTao))
}

func (b Balance) checkUnit(other Balance) {
	if b.Netuid != UnitUntagged && other.Netuid != UnitUntagged && b.Netuid != other.Netuid {
		panic(fmt.Sprintf("balance unit mismatch: netuid %d vs netuid %d", b.Netuid, other.Netuid))
	}
}

// unitOf picks the non-null unit tag of the two operands.
func (b Balance) unitOf(other Balance) int {
	if b.Netuid != UnitUntagged {
		return b.Netuid
	}
	return other.Netuid
}

// Add returns b + other. Panics when the operands carry different units.
func (b Balance) Add(other Balance) Balance {
	b.checkUnit(other)
	return Balance{Rao: b.Rao + other.Rao, Netuid: b.unitOf(other)}
}

// Sub returns b - other. Panics when the operands carry different units.
func (b Balance) Sub(other Balance) Balance {
	b.checkUnit(other)
	return Balance{Rao: b.Rao - other.Rao, Netuid: b.unitOf(other)}
}

// DivInt splits the balance evenly into n parts, flooring to whole rao.
func (b Balance) DivInt(n int64) Balance {
	return Balance{Rao: b.Rao / n, Netuid: b.Netuid}
}

// MulDecimal scales the raw amount by a decimal factor, flooring to whole rao.
func (b Balance) MulDecimal(factor decimal.Decimal) Balance {
	return Balance{Rao: decimal.New(b.Rao, 0).Mul(factor).IntPart(), Netuid: b.Netuid}
}

// Cmp compares raw amounts: -1 when b < other, 0 when equal, 1 when b > other.
// Panics when the operands carry different units.
func (b Balance) Cmp(other Balance) int {
	b.checkUnit(other)
	switch {
	case b.Rao < other.Rao:
		return -1
	case b.Rao > other.Rao:
		return 1
	default:
		return 0
	}
}

// GreaterThan reports whether b > other.
func (b Balance) GreaterThan(other Balance) bool { return b.Cmp(other) > 0 }

// LessThan reports whether b < other.
func (b Balance) LessThan(other Balance) bool { return b.Cmp(other) < 0 }

// Equal reports whether the raw amounts are equal.
func (b Balance) Equal(other Balance) bool { return b.Cmp(other) == 0 }

// IsZero reports whether the raw amount is zero.
func (b Balance) IsZero() bool { return b.Rao == 0 }

// IsNegative reports whether the raw amount is below zero.
func (b Balance) IsNegative() bool { return b.Rao < 0 }

// Symbol returns the display symbol of the balance's asset.
func (b Balance) Symbol() string {
	if b.Netuid == UnitUntagged || b.Netuid == RootNetuid {
		return "τ" // tau, the base asset
	}
	return fmt.Sprintf("α#%d", b.Netuid) // alpha of a specific subnet
}

// String renders the balance in display units with its asset symbol.
func (b Balance) String() string {
	return fmt.Sprintf("%s %s", b.Symbol(), b.Tao().StringFixed(4))
}
