// Package render turns already-computed plans and results into terminal
// output. It is display only and is never consulted for engine decisions.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/substake/substake/internal/domain"
	"github.com/substake/substake/internal/services/batch"
	"github.com/substake/substake/internal/services/planner"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			MarginBottom(1)

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"})
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#A0A0A0", Dark: "#626262"})

	cellStyle = lipgloss.NewStyle().PaddingRight(2)
)

// slippageWarnPct is the threshold above which the plan rendering warns about
// potential loss of funds.
var slippageWarnPct = decimal.NewFromInt(5)

func renderRow(cells ...string) string {
	var b strings.Builder
	for _, c := range cells {
		b.WriteString(cellStyle.Render(c))
	}
	return b.String()
}

// Plan renders the plan table with per-pair amounts, rates, fees, expected
// received amounts and slippage, plus safe-mode columns when enabled.
func Plan(plan *planner.Plan, safe *planner.SafeParams) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Planned stake operations"))
	b.WriteString("\n")

	header := []string{"Netuid", "Hotkey", "Kind", "Amount", "Rate", "Fee", "Received", "Slippage"}
	if safe != nil {
		header = append(header, "Limit price", "Partial")
	}
	b.WriteString(dimStyle.Render(renderRow(header...)))
	b.WriteString("\n")

	for _, op := range plan.Operations {
		pool := plan.Pools[op.OriginNetuid]

		var received domain.Balance
		var pct decimal.Decimal
		var slipErr error
		switch op.Kind {
		case domain.KindStake:
			slip, err := pool.ToAlphaWithSlippage(op.Amount, op.StakeFee)
			received, pct, slipErr = slip.Received, slip.Pct, err
		default:
			slip, err := pool.ToTaoWithSlippage(op.Amount, op.StakeFee)
			received, pct, slipErr = slip.Received, slip.Pct, err
		}

		receivedCell := received.String()
		slipCell := fmt.Sprintf("%s %%", pct.StringFixed(4))
		if slipErr != nil {
			receivedCell = failStyle.Render("n/a")
			slipCell = failStyle.Render(slipErr.Error())
		}

		row := []string{
			fmt.Sprintf("%d", op.OriginNetuid),
			shorten(op.OriginHotkey),
			op.Kind.String(),
			op.Amount.String(),
			fmt.Sprintf("%s τ/%s", pool.Price.Tao().StringFixed(4), op.Amount.Symbol()),
			op.StakeFee.String(),
			receivedCell,
			slipCell,
		}
		if safe != nil {
			limitCell := dimStyle.Render("plain")
			if op.Safe() {
				limitCell = op.PriceLimit.Tao().StringFixed(4)
			}
			row = append(row, limitCell, fmt.Sprintf("%t", op.AllowPartial))
		}
		b.WriteString(renderRow(row...))
		b.WriteString("\n")
	}

	for _, skip := range plan.Skipped {
		b.WriteString(dimStyle.Render(fmt.Sprintf("skipped netuid %d / %s: %s", skip.Pair.Netuid, shorten(skip.Pair.Hotkey), skip.Reason)))
		b.WriteString("\n")
	}

	if plan.MaxSlippagePct.GreaterThan(slippageWarnPct) {
		b.WriteString(warnStyle.Render(fmt.Sprintf(
			"WARNING: the slippage on one of your operations is high: %s %%, this may result in a loss of funds",
			plan.MaxSlippagePct.StringFixed(4))))
		b.WriteString("\n")
	}
	return b.String()
}

// Summary renders per-operation outcomes and the final success/failure count.
func Summary(summary *batch.Summary) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Execution results"))
	b.WriteString("\n")

	for _, result := range summary.Ordered {
		op := result.Operation
		line := fmt.Sprintf("netuid %d / %s %s %s: ", op.OriginNetuid, shorten(op.OriginHotkey), op.Kind, op.Amount)
		switch {
		case result.Success() && result.PartialFill:
			line += warnStyle.Render(fmt.Sprintf("partial fill, moved %s of %s", result.AmountMoved, op.Amount))
		case result.Success() && result.AmountMoved != nil:
			line += okStyle.Render(fmt.Sprintf("included, moved %s", result.AmountMoved))
		case result.Success():
			line += okStyle.Render("included")
		default:
			line += failStyle.Render(result.Status.String())
			if result.Err != "" {
				line += dimStyle.Render(" — " + result.Err)
			}
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("\n%d succeeded, %d failed\n", summary.Succeeded, summary.Failed))
	return b.String()
}

func shorten(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "…" + address[len(address)-4:]
}
