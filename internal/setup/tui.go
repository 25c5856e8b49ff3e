// Package setup provides the terminal configuration wizard.
package setup

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/substake/substake/config"
	"github.com/substake/substake/internal/domain"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)
)

// RunTUI launches the configuration wizard and writes the resulting YAML
// config to path.
func RunTUI(path string) error {
	cfg := config.Default()

	var (
		toleranceStr = strconv.FormatFloat(cfg.RateTolerance, 'f', -1, 64)
		blockTimeStr = cfg.BlockTime.String()
		confirm      bool
	)

	fmt.Println(headerStyle.Render("SUBSTAKE CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Safe staking, minus the guesswork.\n"))

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Chain RPC endpoint").
				Placeholder("http://127.0.0.1:9933").
				Value(&cfg.Endpoint).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("endpoint is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Coldkey address (SS58)").
				Value(&cfg.Coldkey).
				Validate(func(s string) error {
					if !domain.IsValidSS58(s) {
						return errors.New("not a valid ss58 address")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable safe staking by default?").
				Value(&cfg.SafeStaking),
			huh.NewInput().
				Title("Price tolerance fraction [0, 1)").
				Value(&toleranceStr).
				Validate(func(s string) error {
					t, err := strconv.ParseFloat(s, 64)
					if err != nil || t < 0 || t >= 1 {
						return errors.New("enter a number in [0, 1)")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Allow partial fills on safe operations?").
				Value(&cfg.AllowPartial),
			huh.NewInput().
				Title("Block time").
				Value(&blockTimeStr).
				Validate(func(s string) error {
					d, err := time.ParseDuration(s)
					if err != nil || d <= 0 {
						return errors.New("enter a positive duration, e.g. 12s")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Write config to %s?", path)).
				Value(&confirm),
		),
	)

	if err := form.Run(); err != nil {
		return errors.Wrap(err, "config wizard")
	}
	if !confirm {
		return errors.New("setup aborted")
	}

	cfg.RateTolerance, _ = strconv.ParseFloat(toleranceStr, 64)
	cfg.BlockTime, _ = time.ParseDuration(blockTimeStr)

	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Config written to " + path))
	return nil
}
