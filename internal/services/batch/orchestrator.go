// Package batch drives a planned list of stake operations to completion.
// Operations execute strictly sequentially: every submission consumes the same
// account's next nonce, so concurrent writes would collide.
package batch

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/substake/substake/internal/domain"
	"github.com/substake/substake/pkg/clock"
)

// Executor submits one operation and classifies the outcome.
type Executor interface {
	Execute(ctx context.Context, op domain.StakeOperation) domain.ExecutionResult
}

// RateLimits reads the network's per-account transaction rate limit.
type RateLimits interface {
	TxRateLimit(ctx context.Context) (int64, error)
}

// Journal records execution results durably. Recording failures are logged,
// never fatal.
type Journal interface {
	Save(result domain.ExecutionResult) error
}

// Summary aggregates a completed batch.
type Summary struct {
	// Results maps each (hotkey, netuid) pair to its outcome.
	Results map[domain.PairKey]domain.ExecutionResult
	// Ordered preserves execution order for rendering.
	Ordered   []domain.ExecutionResult
	Succeeded int
	Failed    int
}

// AllFailed reports whether the batch ran operations and none succeeded.
func (s *Summary) AllFailed() bool {
	return len(s.Ordered) > 0 && s.Succeeded == 0
}

// Orchestrator executes a batch, waiting out the transaction rate limit
// between operations on the same account.
type Orchestrator struct {
	exec      Executor
	limits    RateLimits
	journal   Journal
	clock     clock.Clock
	blockTime time.Duration
	logger    *zap.Logger
}

// New creates an orchestrator. blockTime is a configured constant, not
// discovered from the chain. journal may be nil.
func New(exec Executor, limits RateLimits, journal Journal, clk clock.Clock, blockTime time.Duration, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		exec:      exec,
		limits:    limits,
		journal:   journal,
		clock:     clk,
		blockTime: blockTime,
		logger:    logger,
	}
}

// Run executes every operation in planner order. A failed operation is
// recorded and the batch moves on to the next one; nothing short-circuits.
// The returned error is non-nil only for an empty plan or a cancellation
// between operations.
func (o *Orchestrator) Run(ctx context.Context, ops []domain.StakeOperation) (*Summary, error) {
	if len(ops) == 0 {
		return nil, domain.ErrEmptyPlan
	}

	summary := &Summary{Results: make(map[domain.PairKey]domain.ExecutionResult, len(ops))}
	for i, op := range ops {
		// Cancellation applies between operations only; once submitted, the
		// engine always waits out the operation's outcome.
		if err := ctx.Err(); err != nil {
			return summary, errors.Wrap(err, "batch cancelled")
		}

		result := o.exec.Execute(ctx, op)
		summary.Results[op.Key()] = result
		summary.Ordered = append(summary.Ordered, result)
		if result.Success() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}

		if o.journal != nil {
			if err := o.journal.Save(result); err != nil {
				o.logger.Warn("failed to journal execution result", zap.Error(err))
			}
		}

		if result.Success() && i < len(ops)-1 {
			if err := o.waitRateLimit(ctx); err != nil {
				return summary, err
			}
		}
	}

	o.logger.Info("batch completed",
		zap.Int("operations", len(ops)),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// waitRateLimit sleeps out the network's rate limit before the next operation
// reuses the account's nonce sequence.
func (o *Orchestrator) waitRateLimit(ctx context.Context) error {
	blocks, err := o.limits.TxRateLimit(ctx)
	if err != nil {
		o.logger.Warn("failed to read tx rate limit, not waiting", zap.Error(err))
		return nil
	}
	if blocks <= 0 {
		return nil
	}

	wait := time.Duration(blocks) * o.blockTime
	o.logger.Info("waiting for tx rate limit", zap.Int64("blocks", blocks), zap.Duration("wait", wait))
	return errors.Wrap(o.clock.Sleep(ctx, wait), "rate limit wait")
}
