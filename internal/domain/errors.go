package domain

import "github.com/pkg/errors"

// Plan-time errors. These remove a single (hotkey, subnet) pair from the batch
// and never abort the whole command on their own.
var (
	// ErrToleranceOutOfRange is returned for a price tolerance outside [0, 1).
	ErrToleranceOutOfRange = errors.New("price tolerance must be in [0, 1)")

	// ErrInsufficientForFee is returned when the amount cannot cover the stake
	// fee, i.e. the received amount after the fee would be negative. Fatal for
	// the pair before any chain interaction.
	ErrInsufficientForFee = errors.New("amount does not cover the stake fee")

	// ErrInsufficientBalance is returned when the planned amount exceeds the
	// remaining wallet balance.
	ErrInsufficientBalance = errors.New("not enough balance for planned amount")

	// ErrInsufficientStake is returned when the planned amount exceeds the
	// pair's current stake.
	ErrInsufficientStake = errors.New("not enough stake for planned amount")

	// ErrInvalidAddress is returned for a malformed SS58 account address.
	ErrInvalidAddress = errors.New("invalid ss58 address")

	// ErrEmptyPlan is returned when every pair was skipped and there is
	// nothing to submit. The whole command is a hard failure in that case.
	ErrEmptyPlan = errors.New("no stake operations to perform")

	// ErrSubnetNotFound is returned when a target subnet has no pool snapshot.
	ErrSubnetNotFound = errors.New("subnet does not exist")

	// ErrAllOperationsFailed is returned when a batch ran to completion and not
	// a single operation succeeded. Distinct from ErrEmptyPlan: here operations
	// were planned and submitted.
	ErrAllOperationsFailed = errors.New("all operations failed")
)
