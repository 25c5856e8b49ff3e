package domain

import "fmt"

// OperationKind enumerates the stake-moving calls the engine can submit.
type OperationKind int

const (
	// KindStake converts base asset into subnet asset on one pair.
	KindStake OperationKind = iota
	// KindUnstake converts subnet asset back into base asset.
	KindUnstake
	// KindMove moves stake between hotkeys and/or subnets under one coldkey.
	KindMove
	// KindSwap moves stake between subnets on the same hotkey.
	KindSwap
	// KindTransferOwnership moves stake to another coldkey.
	KindTransferOwnership
)

// String returns the human-readable name of the operation kind.
func (k OperationKind) String() string {
	switch k {
	case KindStake:
		return "stake"
	case KindUnstake:
		return "unstake"
	case KindMove:
		return "move"
	case KindSwap:
		return "swap"
	case KindTransferOwnership:
		return "transfer"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// StakeInfo is a read-only view of an existing stake position, used to
// validate requested withdrawal and move amounts.
type StakeInfo struct {
	Hotkey       string
	Coldkey      string
	Netuid       int
	Stake        Balance
	IsRegistered bool
}

// StakeOperation is one concrete, individually validated operation produced by
// the planner. Built once per (hotkey, subnet) pair and consumed exactly once
// by the executor.
type StakeOperation struct {
	Kind               OperationKind
	OriginNetuid       int
	DestinationNetuid  int
	OriginHotkey       string
	DestinationHotkey  string
	DestinationColdkey string
	Amount             Balance
	CurrentStake       Balance
	StakeFee           Balance
	// PriceLimit is the worst acceptable price for safe mode; nil submits the
	// plain call variant.
	PriceLimit   *Balance
	AllowPartial bool
}

// Safe reports whether the operation should use the price-limited call
// variant. Root-pool operations never do: the root pool has no slippage.
func (op StakeOperation) Safe() bool {
	return op.PriceLimit != nil && op.OriginNetuid != RootNetuid
}

// PairKey identifies a (hotkey, netuid) pair inside a batch.
type PairKey struct {
	Hotkey string
	Netuid int
}

// Key returns the batch aggregation key of the operation.
func (op StakeOperation) Key() PairKey {
	return PairKey{Hotkey: op.OriginHotkey, Netuid: op.OriginNetuid}
}

// ExecutionStatus classifies the terminal state of one submitted operation.
type ExecutionStatus int

const (
	// StatusIncludedSuccess means the extrinsic landed and succeeded.
	StatusIncludedSuccess ExecutionStatus = iota
	// StatusIncludedFailure means the extrinsic landed and the chain rejected
	// it with an error other than the tolerance code.
	StatusIncludedFailure
	// StatusRejectedTolerance means the chain rejected the operation because
	// the price moved past the limit while partial fills were disabled. The
	// caller can raise the tolerance or enable partial fills and retry.
	StatusRejectedTolerance
	// StatusTransportError means the submission failed before an inclusion
	// outcome was known; on-chain state is indeterminate.
	StatusTransportError
)

// String returns the status name.
func (s ExecutionStatus) String() string {
	switch s {
	case StatusIncludedSuccess:
		return "success"
	case StatusIncludedFailure:
		return "failed"
	case StatusRejectedTolerance:
		return "rejected: tolerance exceeded"
	case StatusTransportError:
		return "transport error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ExecutionResult is the executor's verdict on one operation. Never mutated
// after creation.
type ExecutionResult struct {
	Operation StakeOperation
	Status    ExecutionStatus
	Err       string
	// AmountMoved is the observed post-inclusion delta; nil when the outcome
	// was not a successful inclusion or the caller fired and forgot.
	AmountMoved *Balance
	// PartialFill is set when partial fills were allowed and the observed
	// delta differs from the requested amount. Expected, not an error.
	PartialFill bool
}

// Success reports whether the operation landed and succeeded.
func (r ExecutionResult) Success() bool {
	return r.Status == StatusIncludedSuccess
}
