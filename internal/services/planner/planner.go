// Package planner turns high-level staking intent into a list of concrete,
// individually validated stake operations. Every check that can be done
// without submitting a transaction happens here; execution never re-plans.
package planner

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/substake/substake/internal/clients"
	"github.com/substake/substake/internal/domain"
)

// SafeParams enables price-protected submission for the planned operations.
type SafeParams struct {
	// Tolerance is the acceptable price movement fraction, in [0, 1).
	Tolerance float64
	// AllowPartial accepts a partially filled trade instead of a rejection
	// when the price moves past the limit.
	AllowPartial bool
}

// Intent is the caller's description of what to do. Amount nil with All unset
// means interactive: the planner prompts per pair.
type Intent struct {
	Kind    domain.OperationKind
	Hotkeys []string
	// Netuids lists target subnets; empty means every subnet.
	Netuids []int
	// Amount is a display-unit amount applied to every pair as-is. Callers
	// intending an aggregate cap must pre-divide.
	Amount *decimal.Decimal
	All    bool
	Safe   *SafeParams

	// Move, swap and transfer targets.
	DestinationHotkey  string
	DestinationNetuid  *int
	DestinationColdkey string
}

// AmountPrompter supplies per-pair amounts in interactive mode, bounded by the
// pair's available balance or stake.
type AmountPrompter interface {
	PromptAmount(pair domain.PairKey, available domain.Balance) (domain.Balance, error)
}

// Skip records a pair removed from the plan and why.
type Skip struct {
	Pair   domain.PairKey
	Reason string
}

// Plan is the planner's output: operations in insertion order plus the pairs
// that were rejected at plan time. The pool snapshot is carried along so
// display math reuses the exact prices the plan was built against.
type Plan struct {
	Operations     []domain.StakeOperation
	Skipped        []Skip
	Pools          map[int]domain.SubnetPool
	BlockHash      string
	MaxSlippagePct decimal.Decimal
}

// ChainReader is the read-only slice of the chain boundary the planner fans
// out over. All reads complete and reconcile into a plan before any write.
type ChainReader interface {
	ChainHead(ctx context.Context) (string, error)
	AllPools(ctx context.Context, blockHash string) (map[int]domain.SubnetPool, error)
	StakesForColdkey(ctx context.Context, coldkey, blockHash string) ([]domain.StakeInfo, error)
	FreeBalance(ctx context.Context, coldkey, blockHash string) (domain.Balance, error)
	ExistentialDeposit(ctx context.Context) (domain.Balance, error)
	StakeFee(ctx context.Context, req clients.FeeRequest) (domain.Balance, error)
}

// Planner builds plans against a single consistent chain snapshot.
type Planner struct {
	chain   ChainReader
	coldkey string
	prompt  AmountPrompter
	logger  *zap.Logger
}

// New creates a Planner for the given coldkey. The prompter may be nil; the
// planner then requires an explicit amount or All.
func New(chain ChainReader, coldkey string, prompt AmountPrompter, logger *zap.Logger) (*Planner, error) {
	if !domain.IsValidSS58(coldkey) {
		return nil, errors.Wrap(domain.ErrInvalidAddress, coldkey)
	}
	return &Planner{chain: chain, coldkey: coldkey, prompt: prompt, logger: logger}, nil
}

// snapshot is the result of the read-only planning fan-out: plain data,
// reconciled before any write begins.
type snapshot struct {
	blockHash   string
	pools       map[int]domain.SubnetPool
	stakes      map[string]map[int]domain.Balance
	freeBalance domain.Balance
	existential domain.Balance
}

func (p *Planner) fetchSnapshot(ctx context.Context) (*snapshot, error) {
	head, err := p.chain.ChainHead(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch chain head")
	}

	snap := &snapshot{blockHash: head}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.pools, err = p.chain.AllPools(gctx, head)
		return err
	})
	g.Go(func() error {
		infos, err := p.chain.StakesForColdkey(gctx, p.coldkey, head)
		if err != nil {
			return err
		}
		snap.stakes = make(map[string]map[int]domain.Balance)
		for _, info := range infos {
			if snap.stakes[info.Hotkey] == nil {
				snap.stakes[info.Hotkey] = make(map[int]domain.Balance)
			}
			snap.stakes[info.Hotkey][info.Netuid] = info.Stake
		}
		return nil
	})
	g.Go(func() error {
		var err error
		snap.freeBalance, err = p.chain.FreeBalance(gctx, p.coldkey, head)
		return err
	})
	g.Go(func() error {
		var err error
		snap.existential, err = p.chain.ExistentialDeposit(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "fetch planning snapshot")
	}
	return snap, nil
}

func (snap *snapshot) stakeFor(hotkey string, netuid int) domain.Balance {
	if byNetuid, ok := snap.stakes[hotkey]; ok {
		if stake, ok := byNetuid[netuid]; ok {
			return stake
		}
	}
	return domain.FromRao(0, netuid)
}

func (p *Planner) resolveNetuids(intent Intent, snap *snapshot) []int {
	if len(intent.Netuids) > 0 {
		return intent.Netuids
	}
	netuids := make([]int, 0, len(snap.pools))
	for netuid := range snap.pools {
		netuids = append(netuids, netuid)
	}
	sort.Ints(netuids)
	return netuids
}

// Plan resolves the intent into concrete operations. Pair-level validation
// failures remove the pair and are recorded; an entirely empty plan is
// ErrEmptyPlan. An out-of-range tolerance is a caller error and fails the
// whole plan.
func (p *Planner) Plan(ctx context.Context, intent Intent) (*Plan, error) {
	if intent.Safe != nil && (intent.Safe.Tolerance < 0 || intent.Safe.Tolerance >= 1) {
		return nil, domain.ErrToleranceOutOfRange
	}

	snap, err := p.fetchSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Pools: snap.pools, BlockHash: snap.blockHash}
	switch intent.Kind {
	case domain.KindStake:
		err = p.planStake(ctx, intent, snap, plan)
	case domain.KindUnstake:
		err = p.planUnstake(ctx, intent, snap, plan)
	case domain.KindMove, domain.KindSwap, domain.KindTransferOwnership:
		err = p.planMovement(ctx, intent, snap, plan)
	default:
		return nil, errors.Errorf("unsupported operation kind: %s", intent.Kind)
	}
	if err != nil {
		return nil, err
	}

	if len(plan.Operations) == 0 {
		return nil, domain.ErrEmptyPlan
	}
	return plan, nil
}

func (plan *Plan) skip(pair domain.PairKey, reason string) {
	plan.Skipped = append(plan.Skipped, Skip{Pair: pair, Reason: reason})
}

// splitEvenly divides total across n parts with no leftover: the first
// total%n parts carry one extra rao.
func splitEvenly(total domain.Balance, n int) []domain.Balance {
	base := total.Rao / int64(n)
	extra := total.Rao % int64(n)
	parts := make([]domain.Balance, n)
	for i := range parts {
		rao := base
		if int64(i) < extra {
			rao++
		}
		parts[i] = domain.FromRao(rao, total.Netuid)
	}
	return parts
}

func (p *Planner) planStake(ctx context.Context, intent Intent, snap *snapshot, plan *Plan) error {
	netuids := p.resolveNetuids(intent, snap)

	// "Stake all" splits the spendable balance evenly across the target
	// subnets, keeping the existential deposit in the wallet.
	var allParts []domain.Balance
	if pairs := len(netuids) * len(intent.Hotkeys); intent.All && pairs > 0 {
		spendable := snap.freeBalance.Sub(snap.existential)
		if spendable.IsNegative() {
			spendable = domain.FromRao(0, domain.RootNetuid)
		}
		allParts = splitEvenly(spendable, len(netuids)*len(intent.Hotkeys))
	}

	remaining := snap.freeBalance
	part := 0
	for _, hotkey := range intent.Hotkeys {
		if !domain.IsValidSS58(hotkey) {
			for _, netuid := range netuids {
				plan.skip(domain.PairKey{Hotkey: hotkey, Netuid: netuid}, "invalid hotkey address")
			}
			continue
		}

		for _, netuid := range netuids {
			pair := domain.PairKey{Hotkey: hotkey, Netuid: netuid}
			pool, ok := snap.pools[netuid]
			if !ok {
				plan.skip(pair, domain.ErrSubnetNotFound.Error())
				continue
			}

			var amount domain.Balance
			switch {
			case intent.Amount != nil:
				amount = domain.FromTao(*intent.Amount).WithUnit(domain.RootNetuid)
			case intent.All:
				amount = allParts[part]
				part++
			default:
				if p.prompt == nil {
					return errors.New("no amount given and no prompt available")
				}
				var err error
				amount, err = p.prompt.PromptAmount(pair, remaining)
				if err != nil {
					return errors.Wrap(err, "prompt stake amount")
				}
				amount = amount.WithUnit(domain.RootNetuid)
			}

			// The running tracker keeps successive pairs from collectively
			// overdrawing the wallet.
			if amount.GreaterThan(remaining) {
				p.logger.Warn("skipping pair: not enough balance",
					zap.String("hotkey", hotkey), zap.Int("netuid", netuid),
					zap.String("amount", amount.String()), zap.String("remaining", remaining.String()))
				plan.skip(pair, domain.ErrInsufficientBalance.Error())
				continue
			}

			fee := p.stakeFee(ctx, clients.FeeRequest{
				OriginColdkey:      p.coldkey,
				DestinationHotkey:  hotkey,
				DestinationNetuid:  netuid,
				DestinationColdkey: p.coldkey,
				Amount:             amount,
			})

			slip, err := pool.ToAlphaWithSlippage(amount, fee)
			if err != nil {
				plan.skip(pair, err.Error())
				continue
			}
			if slip.Pct.GreaterThan(plan.MaxSlippagePct) {
				plan.MaxSlippagePct = slip.Pct
			}

			op := domain.StakeOperation{
				Kind:         domain.KindStake,
				OriginNetuid: netuid,
				OriginHotkey: hotkey,
				Amount:       amount,
				CurrentStake: snap.stakeFor(hotkey, netuid),
				StakeFee:     fee,
			}
			if intent.Safe != nil {
				limit, err := pool.PriceWithTolerance(intent.Safe.Tolerance, domain.DirectionStake)
				if err != nil {
					return err
				}
				op.PriceLimit = &limit
				op.AllowPartial = intent.Safe.AllowPartial
			}

			remaining = remaining.Sub(amount)
			plan.Operations = append(plan.Operations, op)
		}
	}
	return nil
}

func (p *Planner) planUnstake(ctx context.Context, intent Intent, snap *snapshot, plan *Plan) error {
	netuids := p.resolveNetuids(intent, snap)

	for _, hotkey := range intent.Hotkeys {
		if !domain.IsValidSS58(hotkey) {
			for _, netuid := range netuids {
				plan.skip(domain.PairKey{Hotkey: hotkey, Netuid: netuid}, "invalid hotkey address")
			}
			continue
		}

		for _, netuid := range netuids {
			pair := domain.PairKey{Hotkey: hotkey, Netuid: netuid}
			pool, ok := snap.pools[netuid]
			if !ok {
				plan.skip(pair, domain.ErrSubnetNotFound.Error())
				continue
			}

			stake := snap.stakeFor(hotkey, netuid)
			if stake.IsZero() {
				plan.skip(pair, "no stake on pair")
				continue
			}

			var amount domain.Balance
			switch {
			case intent.Amount != nil:
				amount = domain.FromTao(*intent.Amount).WithUnit(netuid)
			case intent.All:
				// The exact current stake, never rounded.
				amount = stake
			default:
				if p.prompt == nil {
					return errors.New("no amount given and no prompt available")
				}
				var err error
				amount, err = p.prompt.PromptAmount(pair, stake)
				if err != nil {
					return errors.Wrap(err, "prompt unstake amount")
				}
				amount = amount.WithUnit(netuid)
			}

			// Excess requests exclude the pair; amounts are never clamped.
			if amount.GreaterThan(stake) {
				p.logger.Warn("skipping pair: not enough stake",
					zap.String("hotkey", hotkey), zap.Int("netuid", netuid),
					zap.String("amount", amount.String()), zap.String("stake", stake.String()))
				plan.skip(pair, domain.ErrInsufficientStake.Error())
				continue
			}

			fee := p.stakeFee(ctx, clients.FeeRequest{
				OriginHotkey:       hotkey,
				OriginNetuid:       netuid,
				OriginColdkey:      p.coldkey,
				DestinationColdkey: p.coldkey,
				Amount:             amount,
			})

			slip, err := pool.ToTaoWithSlippage(amount, fee)
			if err != nil {
				plan.skip(pair, err.Error())
				continue
			}
			if slip.Pct.GreaterThan(plan.MaxSlippagePct) {
				plan.MaxSlippagePct = slip.Pct
			}

			op := domain.StakeOperation{
				Kind:         domain.KindUnstake,
				OriginNetuid: netuid,
				OriginHotkey: hotkey,
				Amount:       amount,
				CurrentStake: stake,
				StakeFee:     fee,
			}
			if intent.Safe != nil {
				limit, err := pool.PriceWithTolerance(intent.Safe.Tolerance, domain.DirectionUnstake)
				if err != nil {
					return err
				}
				op.PriceLimit = &limit
				op.AllowPartial = intent.Safe.AllowPartial
			}

			plan.Operations = append(plan.Operations, op)
		}
	}
	return nil
}

// planMovement handles move, swap and transfer: one origin pair per hotkey,
// with an explicit destination.
func (p *Planner) planMovement(ctx context.Context, intent Intent, snap *snapshot, plan *Plan) error {
	if len(intent.Netuids) != 1 {
		return errors.Errorf("%s requires exactly one origin netuid", intent.Kind)
	}
	if intent.DestinationNetuid == nil {
		return errors.Errorf("%s requires a destination netuid", intent.Kind)
	}
	origin := intent.Netuids[0]
	destination := *intent.DestinationNetuid

	if _, ok := snap.pools[origin]; !ok {
		return errors.Wrapf(domain.ErrSubnetNotFound, "netuid %d", origin)
	}
	if _, ok := snap.pools[destination]; !ok {
		return errors.Wrapf(domain.ErrSubnetNotFound, "netuid %d", destination)
	}

	switch intent.Kind {
	case domain.KindMove:
		if !domain.IsValidSS58(intent.DestinationHotkey) {
			return errors.Wrap(domain.ErrInvalidAddress, "destination hotkey")
		}
	case domain.KindTransferOwnership:
		if !domain.IsValidSS58(intent.DestinationColdkey) {
			return errors.Wrap(domain.ErrInvalidAddress, "destination coldkey")
		}
	}

	for _, hotkey := range intent.Hotkeys {
		pair := domain.PairKey{Hotkey: hotkey, Netuid: origin}
		if !domain.IsValidSS58(hotkey) {
			plan.skip(pair, "invalid hotkey address")
			continue
		}

		stake := snap.stakeFor(hotkey, origin)
		if stake.IsZero() {
			plan.skip(pair, "no stake on pair")
			continue
		}

		var amount domain.Balance
		switch {
		case intent.Amount != nil:
			amount = domain.FromTao(*intent.Amount).WithUnit(origin)
		case intent.All:
			amount = stake
		default:
			if p.prompt == nil {
				return errors.New("no amount given and no prompt available")
			}
			var err error
			amount, err = p.prompt.PromptAmount(pair, stake)
			if err != nil {
				return errors.Wrap(err, "prompt amount")
			}
			amount = amount.WithUnit(origin)
		}

		if amount.GreaterThan(stake) {
			plan.skip(pair, domain.ErrInsufficientStake.Error())
			continue
		}

		destColdkey := p.coldkey
		if intent.Kind == domain.KindTransferOwnership {
			destColdkey = intent.DestinationColdkey
		}
		destHotkey := hotkey
		if intent.Kind == domain.KindMove {
			destHotkey = intent.DestinationHotkey
		}

		fee := p.stakeFee(ctx, clients.FeeRequest{
			OriginHotkey:       hotkey,
			OriginNetuid:       origin,
			OriginColdkey:      p.coldkey,
			DestinationHotkey:  destHotkey,
			DestinationNetuid:  destination,
			DestinationColdkey: destColdkey,
			Amount:             amount,
		})

		plan.Operations = append(plan.Operations, domain.StakeOperation{
			Kind:               intent.Kind,
			OriginNetuid:       origin,
			DestinationNetuid:  destination,
			OriginHotkey:       hotkey,
			DestinationHotkey:  destHotkey,
			DestinationColdkey: destColdkey,
			Amount:             amount,
			CurrentStake:       stake,
			StakeFee:           fee,
		})
	}
	return nil
}

// stakeFee fetches the marginal fee for display and slippage accounting. The
// fee never blocks planning: on a failed estimate the operation proceeds with
// a zero fee and the chain has the final word.
func (p *Planner) stakeFee(ctx context.Context, req clients.FeeRequest) domain.Balance {
	fee, err := p.chain.StakeFee(ctx, req)
	if err != nil {
		p.logger.Warn("stake fee estimate failed, proceeding without it", zap.Error(err))
		return domain.FromRao(0, domain.RootNetuid)
	}
	return fee
}
