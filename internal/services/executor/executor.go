// Package executor submits planned stake operations and classifies their
// outcomes. One operation in, one ExecutionResult out; it never retries and
// never re-plans.
package executor

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/substake/substake/internal/clients"
	"github.com/substake/substake/internal/domain"
)

// toleranceRejection is the substrate error text for "price moved past the
// limit while partial fills are disabled".
const toleranceRejection = "Custom error: 8"

const palletModule = "SubtensorModule"

// Chain is the slice of the chain boundary the executor needs: one write and
// the reads that verify its effect.
type Chain interface {
	Submit(ctx context.Context, call clients.Call, key clients.SigningKey, opts clients.SubmitOptions) (clients.Receipt, error)
	FreeBalance(ctx context.Context, coldkey, blockHash string) (domain.Balance, error)
	StakeForPair(ctx context.Context, coldkey, hotkey string, netuid int, blockHash string) (domain.Balance, error)
}

// Executor drives one operation through PLANNED -> SUBMITTED -> terminal.
type Executor struct {
	chain         Chain
	key           clients.SigningKey
	logger        *zap.Logger
	fireAndForget bool
}

// Option configures the executor.
type Option func(*Executor)

// WithFireAndForget reports success on broadcast without waiting for
// inclusion. Post-operation balance deltas are not verified in this mode.
func WithFireAndForget() Option {
	return func(e *Executor) {
		e.fireAndForget = true
	}
}

// New creates an executor signing with the given wallet key handle.
func New(chain Chain, key clients.SigningKey, logger *zap.Logger, opts ...Option) *Executor {
	e := &Executor{chain: chain, key: key, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// buildCall maps the operation onto the chain's call surface. Parameter names
// and units are the wire format and must not drift.
func buildCall(op domain.StakeOperation) clients.Call {
	switch op.Kind {
	case domain.KindStake:
		if op.Safe() {
			return clients.Call{Module: palletModule, Function: "add_stake_limit", Params: map[string]any{
				"hotkey":        op.OriginHotkey,
				"netuid":        op.OriginNetuid,
				"amount_staked": op.Amount.Rao,
				"limit_price":   op.PriceLimit.Rao,
				"allow_partial": op.AllowPartial,
			}}
		}
		return clients.Call{Module: palletModule, Function: "add_stake", Params: map[string]any{
			"hotkey":        op.OriginHotkey,
			"netuid":        op.OriginNetuid,
			"amount_staked": op.Amount.Rao,
		}}
	case domain.KindUnstake:
		if op.Safe() {
			return clients.Call{Module: palletModule, Function: "remove_stake_limit", Params: map[string]any{
				"hotkey":          op.OriginHotkey,
				"netuid":          op.OriginNetuid,
				"amount_unstaked": op.Amount.Rao,
				"limit_price":     op.PriceLimit.Rao,
				"allow_partial":   op.AllowPartial,
			}}
		}
		return clients.Call{Module: palletModule, Function: "remove_stake", Params: map[string]any{
			"hotkey":          op.OriginHotkey,
			"netuid":          op.OriginNetuid,
			"amount_unstaked": op.Amount.Rao,
		}}
	case domain.KindMove:
		return clients.Call{Module: palletModule, Function: "move_stake", Params: map[string]any{
			"origin_hotkey":      op.OriginHotkey,
			"origin_netuid":      op.OriginNetuid,
			"destination_hotkey": op.DestinationHotkey,
			"destination_netuid": op.DestinationNetuid,
			"alpha_amount":       op.Amount.Rao,
		}}
	case domain.KindSwap:
		return clients.Call{Module: palletModule, Function: "swap_stake", Params: map[string]any{
			"hotkey":             op.OriginHotkey,
			"origin_netuid":      op.OriginNetuid,
			"destination_netuid": op.DestinationNetuid,
			"alpha_amount":       op.Amount.Rao,
		}}
	default: // domain.KindTransferOwnership
		return clients.Call{Module: palletModule, Function: "transfer_stake", Params: map[string]any{
			"destination_coldkey": op.DestinationColdkey,
			"hotkey":              op.OriginHotkey,
			"origin_netuid":       op.OriginNetuid,
			"destination_netuid":  op.DestinationNetuid,
			"alpha_amount":        op.Amount.Rao,
		}}
	}
}

// isToleranceRejection matches the chain's tolerance rejection for safe
// operations with partial fills disabled.
func isToleranceRejection(op domain.StakeOperation, message string) bool {
	return op.Safe() && !op.AllowPartial && strings.Contains(message, toleranceRejection)
}

func toleranceResult(op domain.StakeOperation) domain.ExecutionResult {
	return domain.ExecutionResult{
		Operation: op,
		Status:    domain.StatusRejectedTolerance,
		Err: "price exceeded tolerance limit and partial staking is disabled; " +
			"either increase the tolerance or enable partial staking",
	}
}

// Execute submits exactly one planned operation and classifies the outcome.
// Errors are encoded in the result, never returned: the batch must go on.
func (e *Executor) Execute(ctx context.Context, op domain.StakeOperation) domain.ExecutionResult {
	before, beforeErr := e.observe(ctx, op, "")
	if beforeErr != nil {
		e.logger.Warn("pre-submission state read failed, delta will be unavailable", zap.Error(beforeErr))
	}

	receipt, err := e.chain.Submit(ctx, buildCall(op), e.key, clients.SubmitOptions{
		WaitForInclusion: !e.fireAndForget,
	})
	if err != nil {
		// A rejection at broadcast carries the chain error in the transport
		// error text; the tolerance code must not be mistaken for an unknown
		// outcome.
		if isToleranceRejection(op, err.Error()) {
			return toleranceResult(op)
		}
		e.logger.Error("submission failed before inclusion",
			zap.String("kind", op.Kind.String()), zap.Int("netuid", op.OriginNetuid), zap.Error(err))
		return domain.ExecutionResult{Operation: op, Status: domain.StatusTransportError, Err: err.Error()}
	}

	if e.fireAndForget {
		return domain.ExecutionResult{Operation: op, Status: domain.StatusIncludedSuccess}
	}

	if !receipt.Success {
		if isToleranceRejection(op, receipt.ErrorMessage) {
			return toleranceResult(op)
		}
		return domain.ExecutionResult{Operation: op, Status: domain.StatusIncludedFailure, Err: receipt.ErrorMessage}
	}

	result := domain.ExecutionResult{Operation: op, Status: domain.StatusIncludedSuccess}
	after, err := e.observe(ctx, op, "")
	if err != nil || beforeErr != nil {
		e.logger.Warn("post-inclusion state read failed, delta unavailable", zap.Error(err))
		return result
	}

	moved := e.delta(op, before, after)
	result.AmountMoved = &moved
	if op.AllowPartial && !moved.Equal(op.Amount) {
		result.PartialFill = true
	}

	e.logger.Info("operation included",
		zap.String("kind", op.Kind.String()),
		zap.String("hotkey", op.OriginHotkey),
		zap.Int("netuid", op.OriginNetuid),
		zap.String("requested", op.Amount.String()),
		zap.String("moved", moved.String()),
		zap.Bool("partial", result.PartialFill))
	return result
}

// accountState is the pair's observable balance and stake at one block.
type accountState struct {
	freeBalance domain.Balance
	stake       domain.Balance
}

func (e *Executor) observe(ctx context.Context, op domain.StakeOperation, blockHash string) (accountState, error) {
	var state accountState
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		state.freeBalance, err = e.chain.FreeBalance(gctx, e.key.Address(), blockHash)
		return err
	})
	g.Go(func() error {
		var err error
		state.stake, err = e.chain.StakeForPair(gctx, e.key.Address(), op.OriginHotkey, op.OriginNetuid, blockHash)
		return err
	})
	return state, g.Wait()
}

// delta computes the observed amount moved, in the unit of the requested
// amount.
func (e *Executor) delta(op domain.StakeOperation, before, after accountState) domain.Balance {
	switch op.Kind {
	case domain.KindStake:
		return domain.FromRao(before.freeBalance.Rao-after.freeBalance.Rao, domain.RootNetuid)
	case domain.KindUnstake:
		return domain.FromRao(before.stake.Rao-after.stake.Rao, op.OriginNetuid)
	default:
		// move, swap and transfer drain the origin stake
		return domain.FromRao(before.stake.Rao-after.stake.Rao, op.OriginNetuid)
	}
}
