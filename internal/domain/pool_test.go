package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// testPool has 100 tao against 50 alpha, a spot price of 2 tao per alpha.
func testPool() SubnetPool {
	return NewSubnetPool(1,
		NewBalance(100_000_000_000),
		NewBalance(50_000_000_000),
		NewBalance(60_000_000_000))
}

func TestNewSubnetPoolPrice(t *testing.T) {
	pool := testPool()
	require.True(t, pool.IsDynamic)
	require.Equal(t, int64(2_000_000_000), pool.Price.Rao)

	root := NewSubnetPool(RootNetuid, NewBalance(0), NewBalance(0), NewBalance(0))
	require.False(t, root.IsDynamic)
	require.Equal(t, int64(RaoPerTao), root.Price.Rao, "root price is pinned to 1")

	empty := NewSubnetPool(2, NewBalance(100_000_000_000), NewBalance(0), NewBalance(0))
	require.Equal(t, int64(0), empty.Price.Rao)
	require.Equal(t, int64(0), empty.ToAlpha(FromRao(1_000_000_000, RootNetuid)).Rao)
}

func TestSpotConversionRoundTrip(t *testing.T) {
	pool := testPool()
	tao := FromRao(10_000_000_000, RootNetuid)

	alpha := pool.ToAlpha(tao)
	require.Equal(t, int64(5_000_000_000), alpha.Rao)
	require.Equal(t, 1, alpha.Netuid)

	back := pool.ToTao(alpha)
	require.Equal(t, tao.Rao, back.Rao)
	require.Equal(t, RootNetuid, back.Netuid)
}

func TestRootPoolConversionsAreIdentity(t *testing.T) {
	root := NewSubnetPool(RootNetuid, NewBalance(0), NewBalance(0), NewBalance(0))
	amount := FromRao(7_000_000_000, RootNetuid)

	require.Equal(t, amount.Rao, root.ToAlpha(amount).Rao)
	require.Equal(t, amount.Rao, root.ToTao(amount).Rao)

	slip, err := root.ToAlphaWithSlippage(amount, FromRao(0, RootNetuid))
	require.NoError(t, err)
	require.Equal(t, amount.Rao, slip.Received.Rao)
	require.True(t, slip.Slippage.IsZero(), "root pool never slips")
	require.True(t, slip.Pct.IsZero())
}

func TestToAlphaWithSlippage(t *testing.T) {
	pool := testPool()
	tao := FromRao(10_000_000_000, RootNetuid)

	slip, err := pool.ToAlphaWithSlippage(tao, FromRao(0, RootNetuid))
	require.NoError(t, err)

	// curve output: 50e9 - k/(100e9+10e9)
	require.Equal(t, int64(4_545_454_546), slip.Received.Rao)
	require.Equal(t, int64(454_545_454), slip.Slippage.Rao)
	require.Equal(t, "9.0909", slip.Pct.StringFixed(4))
	require.Equal(t, 1, slip.Received.Netuid)
}

func TestToTaoWithSlippage(t *testing.T) {
	pool := testPool()
	alpha := FromRao(5_000_000_000, 1)

	slip, err := pool.ToTaoWithSlippage(alpha, FromRao(0, RootNetuid))
	require.NoError(t, err)

	require.Equal(t, int64(9_090_909_091), slip.Received.Rao)
	require.Equal(t, int64(909_090_909), slip.Slippage.Rao)
	require.Equal(t, "9.0909", slip.Pct.StringFixed(4))
	require.Equal(t, RootNetuid, slip.Received.Netuid)
}

func TestSlippageGrowsWithTradeSize(t *testing.T) {
	pool := testPool()
	noFee := FromRao(0, RootNetuid)

	small, err := pool.ToAlphaWithSlippage(FromRao(1_000_000_000, RootNetuid), noFee)
	require.NoError(t, err)
	large, err := pool.ToAlphaWithSlippage(FromRao(50_000_000_000, RootNetuid), noFee)
	require.NoError(t, err)

	require.True(t, large.Pct.GreaterThan(small.Pct))
}

func TestStakeFeeReducesReceived(t *testing.T) {
	pool := testPool()
	tao := FromRao(10_000_000_000, RootNetuid)

	free, err := pool.ToAlphaWithSlippage(tao, FromRao(0, RootNetuid))
	require.NoError(t, err)
	paid, err := pool.ToAlphaWithSlippage(tao, FromRao(1_000_000_000, RootNetuid))
	require.NoError(t, err)

	require.True(t, paid.Received.LessThan(free.Received))
	require.True(t, paid.Pct.GreaterThan(free.Pct), "the fee counts against the ideal output")
}

func TestFeeExceedingAmountIsFatal(t *testing.T) {
	pool := testPool()

	_, err := pool.ToAlphaWithSlippage(FromRao(1_000_000_000, RootNetuid), FromRao(2_000_000_000, RootNetuid))
	require.ErrorIs(t, err, ErrInsufficientForFee)

	// unstake: the fee comes off the output tao
	_, err = pool.ToTaoWithSlippage(FromRao(1_000, 1), FromRao(50_000_000_000, RootNetuid))
	require.ErrorIs(t, err, ErrInsufficientForFee)
}

func TestPriceWithTolerance(t *testing.T) {
	pool := testPool()

	limit, err := pool.PriceWithTolerance(0.01, DirectionStake)
	require.NoError(t, err)
	require.Equal(t, int64(2_020_000_000), limit.Rao, "spot 2.0 with 1% headroom")

	limit, err = pool.PriceWithTolerance(0.01, DirectionUnstake)
	require.NoError(t, err)
	require.Equal(t, int64(1_980_000_000), limit.Rao)

	limit, err = pool.PriceWithTolerance(0, DirectionStake)
	require.NoError(t, err)
	require.Equal(t, pool.Price.Rao, limit.Rao, "zero tolerance accepts only the spot price")
}

func TestPriceWithToleranceMonotonic(t *testing.T) {
	pool := testPool()
	previous := int64(0)
	for _, tolerance := range []float64{0, 0.05, 0.25, 0.5, 0.99} {
		limit, err := pool.PriceWithTolerance(tolerance, DirectionStake)
		require.NoError(t, err)
		require.Greater(t, limit.Rao, previous)
		previous = limit.Rao
	}
}

func TestPriceWithToleranceRejectsOutOfRange(t *testing.T) {
	pool := testPool()
	for _, tolerance := range []float64{-0.1, 1, 1.5} {
		_, err := pool.PriceWithTolerance(tolerance, DirectionStake)
		require.ErrorIs(t, err, ErrToleranceOutOfRange)
	}
}

func TestRootPoolToleranceLimitIsMinimal(t *testing.T) {
	root := NewSubnetPool(RootNetuid, NewBalance(0), NewBalance(0), NewBalance(0))
	limit, err := root.PriceWithTolerance(0.05, DirectionStake)
	require.NoError(t, err)
	require.Equal(t, int64(1), limit.Rao)
}
