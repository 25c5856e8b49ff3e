package domain

import (
	"github.com/shopspring/decimal"
)

// TradeDirection tells the price-tolerance helper which side of the pool the
// caller is on.
type TradeDirection int

const (
	// DirectionStake buys the subnet asset with the base asset.
	DirectionStake TradeDirection = iota
	// DirectionUnstake sells the subnet asset back into the base asset.
	DirectionUnstake
)

// SubnetPool is a read-only snapshot of one subnet's AMM state, taken at a
// single block height. All conversions are pure functions over the snapshot;
// it is never refreshed mid-batch.
type SubnetPool struct {
	Netuid    int
	TaoIn     Balance
	AlphaIn   Balance
	AlphaOut  Balance
	Price     Balance
	IsDynamic bool

	// constant product of the reserves, in the rao domain
	k decimal.Decimal
}

// NewSubnetPool builds a pool snapshot from its reserves. The root subnet is a
// static 1:1 pool with price pinned to 1; every other subnet prices the alpha
// asset at tao_in / alpha_in, or zero when the pool has no alpha reserve.
func NewSubnetPool(netuid int, taoIn, alphaIn, alphaOut Balance) SubnetPool {
	isDynamic := netuid != RootNetuid

	var price Balance
	switch {
	case !isDynamic:
		price = NewBalance(RaoPerTao)
	case alphaIn.Rao > 0:
		ratio := decimal.New(taoIn.Rao, 0).Div(decimal.New(alphaIn.Rao, 0))
		price = FromTao(ratio)
	default:
		price = NewBalance(0)
	}

	return SubnetPool{
		Netuid:    netuid,
		TaoIn:     taoIn.WithUnit(RootNetuid),
		AlphaIn:   alphaIn.WithUnit(netuid),
		AlphaOut:  alphaOut.WithUnit(netuid),
		Price:     price,
		IsDynamic: isDynamic,
		k:         decimal.New(taoIn.Rao, 0).Mul(decimal.New(alphaIn.Rao, 0)),
	}
}

// priceRatio is the spot price as a dimensionless decimal (tao per alpha).
func (p SubnetPool) priceRatio() decimal.Decimal {
	return p.Price.Tao()
}

// ToAlpha converts a base-asset amount to the subnet asset at the spot price,
// without slippage. Identity for the root pool.
func (p SubnetPool) ToAlpha(tao Balance) Balance {
	if !p.IsDynamic {
		return FromRao(tao.Rao, p.Netuid)
	}
	ratio := p.priceRatio()
	if ratio.IsZero() {
		return FromRao(0, p.Netuid)
	}
	return FromRao(decimal.New(tao.Rao, 0).Div(ratio).IntPart(), p.Netuid)
}

// ToTao converts a subnet-asset amount to the base asset at the spot price,
// without slippage. Identity for the root pool.
func (p SubnetPool) ToTao(alpha Balance) Balance {
	if !p.IsDynamic {
		return FromRao(alpha.Rao, RootNetuid)
	}
	return FromRao(decimal.New(alpha.Rao, 0).Mul(p.priceRatio()).IntPart(), RootNetuid)
}

// Slippage is the outcome of a slippage-adjusted conversion: the amount the
// caller actually receives, the shortfall against the ideal spot-price output,
// and that shortfall as a percentage of the ideal output.
type Slippage struct {
	Received Balance
	Slippage Balance
	Pct      decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// ToAlphaWithSlippage estimates how much alpha a staker receives for the given
// tao using the pool's constant-product curve. The stake fee is deducted from
// the input before it hits the curve; the ideal output is computed on the
// gross input. Returns ErrInsufficientForFee when the fee exceeds the amount.
func (p SubnetPool) ToAlphaWithSlippage(tao, fee Balance) (Slippage, error) {
	effective := tao.Sub(fee)
	if effective.IsNegative() {
		return Slippage{}, ErrInsufficientForFee
	}

	if !p.IsDynamic {
		// No curve on the root pool, the fee is the only deduction.
		pct := decimal.Zero
		if tao.Rao != 0 {
			pct = hundred.Mul(decimal.New(fee.Rao, 0)).Div(decimal.New(tao.Rao, 0))
		}
		return Slippage{
			Received: FromRao(effective.Rao, p.Netuid),
			Slippage: FromRao(0, p.Netuid),
			Pct:      pct,
		}, nil
	}

	newTaoIn := decimal.New(p.TaoIn.Rao+effective.Rao, 0)
	if newTaoIn.IsZero() {
		return Slippage{Received: FromRao(effective.Rao, p.Netuid), Slippage: FromRao(0, p.Netuid)}, nil
	}
	newAlphaIn := p.k.Div(newTaoIn)
	returned := FromRao(p.AlphaIn.Rao-newAlphaIn.IntPart(), p.Netuid)

	ideal := p.ToAlpha(tao)
	return p.slippageAgainst(ideal, returned), nil
}

// ToTaoWithSlippage estimates how much tao an unstaker receives for the given
// alpha. The stake fee is a base-asset deduction taken from the output.
// Returns ErrInsufficientForFee when the received amount would be negative.
func (p SubnetPool) ToTaoWithSlippage(alpha, fee Balance) (Slippage, error) {
	if !p.IsDynamic {
		received := FromRao(alpha.Rao-fee.Rao, RootNetuid)
		if received.IsNegative() {
			return Slippage{}, ErrInsufficientForFee
		}
		pct := decimal.Zero
		if alpha.Rao != 0 {
			pct = hundred.Mul(decimal.New(fee.Rao, 0)).Div(decimal.New(alpha.Rao, 0))
		}
		return Slippage{Received: received, Slippage: FromRao(0, RootNetuid), Pct: pct}, nil
	}

	newAlphaIn := decimal.New(p.AlphaIn.Rao+alpha.Rao, 0)
	newTaoReserve := p.k.Div(newAlphaIn)
	returned := FromRao(p.TaoIn.Rao-newTaoReserve.IntPart()-fee.Rao, RootNetuid)
	if returned.IsNegative() {
		return Slippage{}, ErrInsufficientForFee
	}

	ideal := p.ToTao(alpha)
	return p.slippageAgainst(ideal, returned), nil
}

func (p SubnetPool) slippageAgainst(ideal, returned Balance) Slippage {
	slip := FromRao(0, ideal.Netuid)
	if ideal.GreaterThan(returned) {
		slip = ideal.Sub(returned)
	}
	pct := decimal.Zero
	if ideal.Rao != 0 {
		pct = hundred.Mul(decimal.New(slip.Rao, 0)).Div(decimal.New(ideal.Rao, 0))
	}
	return Slippage{Received: returned, Slippage: slip, Pct: pct}
}

// PriceWithTolerance derives the worst acceptable price for a safe operation:
// spot * (1 + tolerance) when buying alpha, spot * (1 - tolerance) when
// selling. The root pool has no slippage to protect against, so its limit is
// pinned to the minimal non-zero price. Tolerance must be in [0, 1).
func (p SubnetPool) PriceWithTolerance(tolerance float64, direction TradeDirection) (Balance, error) {
	if tolerance < 0 || tolerance >= 1 {
		return Balance{}, ErrToleranceOutOfRange
	}
	if !p.IsDynamic {
		return NewBalance(1), nil
	}

	factor := decimal.NewFromFloat(1 + tolerance)
	if direction == DirectionUnstake {
		factor = decimal.NewFromFloat(1 - tolerance)
	}
	return NewBalance(decimal.New(p.Price.Rao, 0).Mul(factor).IntPart()), nil
}
