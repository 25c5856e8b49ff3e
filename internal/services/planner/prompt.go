package planner

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/substake/substake/internal/domain"
)

// HuhPrompter asks for per-pair amounts and batch confirmation in the
// terminal. Display only: it never makes decisions for the engine.
type HuhPrompter struct{}

// PromptAmount asks for an amount for one (hotkey, netuid) pair, bounded by
// the pair's available balance.
func (HuhPrompter) PromptAmount(pair domain.PairKey, available domain.Balance) (domain.Balance, error) {
	var input string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("Amount for hotkey %s on netuid %d (available: %s)", pair.Hotkey, pair.Netuid, available)).
				Value(&input).
				Validate(func(s string) error {
					amount, err := decimal.NewFromString(s)
					if err != nil {
						return errors.New("enter a decimal amount")
					}
					if amount.IsNegative() || amount.IsZero() {
						return errors.New("amount must be positive")
					}
					if domain.FromTao(amount).Rao > available.Rao {
						return errors.Errorf("amount exceeds available %s", available)
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return domain.Balance{}, errors.Wrap(err, "amount prompt")
	}

	amount, err := decimal.NewFromString(input)
	if err != nil {
		return domain.Balance{}, errors.Wrap(err, "parse amount")
	}
	return domain.FromTao(amount), nil
}

// Confirm asks whether to proceed with the rendered plan. Declining aborts the
// whole batch before anything is submitted.
func (HuhPrompter) Confirm(title string) (bool, error) {
	var proceed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Continue").
				Negative("Abort").
				Value(&proceed),
		),
	)
	if err := form.Run(); err != nil {
		return false, errors.Wrap(err, "confirmation prompt")
	}
	return proceed, nil
}
