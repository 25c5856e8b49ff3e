package planner

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/substake/substake/internal/clients"
	"github.com/substake/substake/internal/domain"
)

const (
	testColdkey = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	testHotkey  = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
	testHotkey2 = "5FLSigC9HGRKVhB9FiEo4Y3koPsNmBmLJbpXg2mp1hXcS59Y"
)

type fakeChain struct {
	pools       map[int]domain.SubnetPool
	stakes      []domain.StakeInfo
	free        domain.Balance
	existential domain.Balance
	fee         domain.Balance
	feeErr      error
}

func (f *fakeChain) ChainHead(context.Context) (string, error) { return "0xhead", nil }

func (f *fakeChain) AllPools(context.Context, string) (map[int]domain.SubnetPool, error) {
	return f.pools, nil
}

func (f *fakeChain) StakesForColdkey(context.Context, string, string) ([]domain.StakeInfo, error) {
	return f.stakes, nil
}

func (f *fakeChain) FreeBalance(context.Context, string, string) (domain.Balance, error) {
	return f.free, nil
}

func (f *fakeChain) ExistentialDeposit(context.Context) (domain.Balance, error) {
	return f.existential, nil
}

func (f *fakeChain) StakeFee(context.Context, clients.FeeRequest) (domain.Balance, error) {
	return f.fee, f.feeErr
}

// newFakeChain has two dynamic subnets priced at 2.0 and 0.5 tao per alpha,
// a 10 tao wallet and a 1 tao existential deposit.
func newFakeChain() *fakeChain {
	pools := map[int]domain.SubnetPool{
		0: domain.NewSubnetPool(0, domain.NewBalance(0), domain.NewBalance(0), domain.NewBalance(0)),
		1: domain.NewSubnetPool(1, domain.NewBalance(100_000_000_000), domain.NewBalance(50_000_000_000), domain.NewBalance(60_000_000_000)),
		2: domain.NewSubnetPool(2, domain.NewBalance(50_000_000_000), domain.NewBalance(100_000_000_000), domain.NewBalance(10_000_000_000)),
	}
	return &fakeChain{
		pools:       pools,
		free:        domain.FromRao(10_000_000_000, domain.RootNetuid),
		existential: domain.FromRao(1_000_000_000, domain.RootNetuid),
		fee:         domain.FromRao(0, domain.RootNetuid),
	}
}

func newTestPlanner(t *testing.T, chain ChainReader) *Planner {
	p, err := New(chain, testColdkey, nil, zap.NewNop())
	require.NoError(t, err)
	return p
}

func amountOf(tao string) *decimal.Decimal {
	d := decimal.RequireFromString(tao)
	return &d
}

func TestNewRejectsInvalidColdkey(t *testing.T) {
	_, err := New(newFakeChain(), "not-an-address", nil, zap.NewNop())
	require.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestPlanRejectsToleranceOutOfRange(t *testing.T) {
	p := newTestPlanner(t, newFakeChain())

	for _, tolerance := range []float64{-0.1, 1, 2} {
		_, err := p.Plan(context.Background(), Intent{
			Kind:    domain.KindStake,
			Hotkeys: []string{testHotkey},
			Netuids: []int{1},
			Amount:  amountOf("1"),
			Safe:    &SafeParams{Tolerance: tolerance},
		})
		require.ErrorIs(t, err, domain.ErrToleranceOutOfRange)
	}
}

func TestPlanStakeAmountIsPerPair(t *testing.T) {
	p := newTestPlanner(t, newFakeChain())

	plan, err := p.Plan(context.Background(), Intent{
		Kind:    domain.KindStake,
		Hotkeys: []string{testHotkey},
		Netuids: []int{1, 2},
		Amount:  amountOf("2"),
	})
	require.NoError(t, err)
	require.Len(t, plan.Operations, 2)

	// the amount is not divided across pairs
	for _, op := range plan.Operations {
		require.Equal(t, int64(2_000_000_000), op.Amount.Rao)
		require.Equal(t, domain.RootNetuid, op.Amount.Netuid)
	}
}

func TestPlanStakeAllSplitsSpendableExactly(t *testing.T) {
	chain := newFakeChain()
	// odd spendable total: 9_000_000_001 rao across two pairs
	chain.free = domain.FromRao(10_000_000_001, domain.RootNetuid)
	p := newTestPlanner(t, chain)

	plan, err := p.Plan(context.Background(), Intent{
		Kind:    domain.KindStake,
		Hotkeys: []string{testHotkey},
		Netuids: []int{1, 2},
		All:     true,
	})
	require.NoError(t, err)
	require.Len(t, plan.Operations, 2)
	require.Empty(t, plan.Skipped)

	var total int64
	for _, op := range plan.Operations {
		total += op.Amount.Rao
	}
	spendable := chain.free.Rao - chain.existential.Rao
	require.Equal(t, spendable, total, "the parts must sum to the spendable balance exactly")
	require.Equal(t, int64(1), plan.Operations[0].Amount.Rao-plan.Operations[1].Amount.Rao,
		"the remainder lands on the first part")
}

func TestPlanStakeSkipsOnOverdraw(t *testing.T) {
	p := newTestPlanner(t, newFakeChain())

	// 6 tao per pair against a 10 tao wallet: the second pair overdraws
	plan, err := p.Plan(context.Background(), Intent{
		Kind:    domain.KindStake,
		Hotkeys: []string{testHotkey},
		Netuids: []int{1, 2},
		Amount:  amountOf("6"),
	})
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)
	require.Equal(t, 1, plan.Operations[0].OriginNetuid)
	require.Len(t, plan.Skipped, 1)
	require.Equal(t, 2, plan.Skipped[0].Pair.Netuid)
	require.Equal(t, domain.ErrInsufficientBalance.Error(), plan.Skipped[0].Reason)
}

func TestPlanStakeSkipsInvalidHotkey(t *testing.T) {
	p := newTestPlanner(t, newFakeChain())

	plan, err := p.Plan(context.Background(), Intent{
		Kind:    domain.KindStake,
		Hotkeys: []string{"bogus", testHotkey},
		Netuids: []int{1, 2},
		Amount:  amountOf("1"),
	})
	require.NoError(t, err)
	require.Len(t, plan.Operations, 2, "the valid hotkey still plans")
	require.Len(t, plan.Skipped, 2, "every pair of the invalid hotkey is skipped")
	for _, skip := range plan.Skipped {
		require.Equal(t, "bogus", skip.Pair.Hotkey)
	}
}

func TestPlanStakeAllWithoutHotkeysIsEmpty(t *testing.T) {
	p := newTestPlanner(t, newFakeChain())

	_, err := p.Plan(context.Background(), Intent{
		Kind: domain.KindStake,
		All:  true,
	})
	require.ErrorIs(t, err, domain.ErrEmptyPlan, "a hotkey-less intent plans nothing instead of dividing by zero")
}

func TestPlanStakeSkipsUnknownSubnet(t *testing.T) {
	p := newTestPlanner(t, newFakeChain())

	_, err := p.Plan(context.Background(), Intent{
		Kind:    domain.KindStake,
		Hotkeys: []string{testHotkey},
		Netuids: []int{42},
		Amount:  amountOf("1"),
	})
	require.ErrorIs(t, err, domain.ErrEmptyPlan)
}

func TestPlanStakeFeeExceedsAmount(t *testing.T) {
	chain := newFakeChain()
	chain.fee = domain.FromRao(2_000_000_000, domain.RootNetuid)
	p := newTestPlanner(t, chain)

	_, err := p.Plan(context.Background(), Intent{
		Kind:    domain.KindStake,
		Hotkeys: []string{testHotkey},
		Netuids: []int{1},
		Amount:  amountOf("1"),
	})
	require.ErrorIs(t, err, domain.ErrEmptyPlan, "a fee above the amount is fatal for the pair")
}

func TestPlanStakeSafeSetsPriceLimit(t *testing.T) {
	p := newTestPlanner(t, newFakeChain())

	plan, err := p.Plan(context.Background(), Intent{
		Kind:    domain.KindStake,
		Hotkeys: []string{testHotkey},
		Netuids: []int{1},
		Amount:  amountOf("1"),
		Safe:    &SafeParams{Tolerance: 0.01, AllowPartial: true},
	})
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)

	op := plan.Operations[0]
	require.True(t, op.Safe())
	require.Equal(t, int64(2_020_000_000), op.PriceLimit.Rao, "spot 2.0 with 1% tolerance")
	require.True(t, op.AllowPartial)
}

func TestPlanStakeRootPairStaysPlain(t *testing.T) {
	p := newTestPlanner(t, newFakeChain())

	plan, err := p.Plan(context.Background(), Intent{
		Kind:    domain.KindStake,
		Hotkeys: []string{testHotkey},
		Netuids: []int{0},
		Amount:  amountOf("1"),
		Safe:    &SafeParams{Tolerance: 0.05},
	})
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)
	require.False(t, plan.Operations[0].Safe(), "the root pool has no price to protect")
}

func TestPlanUnstakeAllUsesExactStake(t *testing.T) {
	chain := newFakeChain()
	chain.stakes = []domain.StakeInfo{{
		Hotkey:  testHotkey,
		Coldkey: testColdkey,
		Netuid:  1,
		Stake:   domain.FromRao(37_500_000_000, 1),
	}}
	p := newTestPlanner(t, chain)

	plan, err := p.Plan(context.Background(), Intent{
		Kind:    domain.KindUnstake,
		Hotkeys: []string{testHotkey},
		Netuids: []int{1},
		All:     true,
	})
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)
	require.Equal(t, int64(37_500_000_000), plan.Operations[0].Amount.Rao, "never rounded")
	require.Equal(t, 1, plan.Operations[0].Amount.Netuid)
}

func TestPlanUnstakeExcessAmountExcludesPair(t *testing.T) {
	chain := newFakeChain()
	chain.stakes = []domain.StakeInfo{{
		Hotkey:  testHotkey,
		Coldkey: testColdkey,
		Netuid:  1,
		Stake:   domain.FromRao(5_000_000_000, 1),
	}}
	p := newTestPlanner(t, chain)

	_, err := p.Plan(context.Background(), Intent{
		Kind:    domain.KindUnstake,
		Hotkeys: []string{testHotkey},
		Netuids: []int{1},
		Amount:  amountOf("6"),
	})
	require.ErrorIs(t, err, domain.ErrEmptyPlan, "excess requests exclude the pair instead of clamping")
}

func TestPlanUnstakeSkipsZeroStake(t *testing.T) {
	p := newTestPlanner(t, newFakeChain())

	_, err := p.Plan(context.Background(), Intent{
		Kind:    domain.KindUnstake,
		Hotkeys: []string{testHotkey},
		Netuids: []int{1},
		All:     true,
	})
	require.ErrorIs(t, err, domain.ErrEmptyPlan)
}

func TestPlanMove(t *testing.T) {
	chain := newFakeChain()
	chain.stakes = []domain.StakeInfo{{
		Hotkey:  testHotkey,
		Coldkey: testColdkey,
		Netuid:  1,
		Stake:   domain.FromRao(5_000_000_000, 1),
	}}
	p := newTestPlanner(t, chain)

	destination := 2
	plan, err := p.Plan(context.Background(), Intent{
		Kind:              domain.KindMove,
		Hotkeys:           []string{testHotkey},
		Netuids:           []int{1},
		All:               true,
		DestinationHotkey: testHotkey2,
		DestinationNetuid: &destination,
	})
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)

	op := plan.Operations[0]
	require.Equal(t, domain.KindMove, op.Kind)
	require.Equal(t, 1, op.OriginNetuid)
	require.Equal(t, 2, op.DestinationNetuid)
	require.Equal(t, testHotkey2, op.DestinationHotkey)
	require.Equal(t, int64(5_000_000_000), op.Amount.Rao)
}

func TestPlanMoveRequiresSingleOriginNetuid(t *testing.T) {
	p := newTestPlanner(t, newFakeChain())

	destination := 2
	_, err := p.Plan(context.Background(), Intent{
		Kind:              domain.KindMove,
		Hotkeys:           []string{testHotkey},
		Netuids:           []int{1, 2},
		All:               true,
		DestinationHotkey: testHotkey2,
		DestinationNetuid: &destination,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "exactly one origin netuid")
}

func TestPlanTransferRequiresDestinationColdkey(t *testing.T) {
	chain := newFakeChain()
	chain.stakes = []domain.StakeInfo{{
		Hotkey:  testHotkey,
		Coldkey: testColdkey,
		Netuid:  1,
		Stake:   domain.FromRao(5_000_000_000, 1),
	}}
	p := newTestPlanner(t, chain)

	destination := 2
	_, err := p.Plan(context.Background(), Intent{
		Kind:              domain.KindTransferOwnership,
		Hotkeys:           []string{testHotkey},
		Netuids:           []int{1},
		All:               true,
		DestinationNetuid: &destination,
	})
	require.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestPlanFeeEstimateFailureIsNotFatal(t *testing.T) {
	chain := newFakeChain()
	chain.feeErr = context.DeadlineExceeded
	p := newTestPlanner(t, chain)

	plan, err := p.Plan(context.Background(), Intent{
		Kind:    domain.KindStake,
		Hotkeys: []string{testHotkey},
		Netuids: []int{1},
		Amount:  amountOf("1"),
	})
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)
	require.True(t, plan.Operations[0].StakeFee.IsZero(), "a failed estimate plans with a zero fee")
}
