// Command substake plans and executes stake movement across subnets with
// optional price protection.
//
// Usage:
//
//	substake --setup
//	substake --config config.yaml --op stake --amount 10 --hotkeys <ss58> --netuids 1,2
//	substake --config config.yaml --op unstake --all --hotkeys <ss58> --safe --tolerance 0.05
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/substake/substake/config"
	"github.com/substake/substake/internal/clients"
	"github.com/substake/substake/internal/domain"
	"github.com/substake/substake/internal/render"
	"github.com/substake/substake/internal/services/batch"
	"github.com/substake/substake/internal/services/executor"
	"github.com/substake/substake/internal/services/planner"
	"github.com/substake/substake/internal/setup"
	"github.com/substake/substake/internal/storage/journal"
	"github.com/substake/substake/pkg/clock"
)

func main() {
	var (
		configPath  = flag.String("config", "config.yaml", "path to yaml config")
		runSetup    = flag.Bool("setup", false, "run the config wizard and exit")
		opName      = flag.String("op", "stake", "operation: stake, unstake, move, swap, transfer")
		amountFlag  = flag.String("amount", "", "display-unit amount applied to every pair")
		allFlag     = flag.Bool("all", false, "stake the whole balance / unstake the whole stake")
		hotkeysFlag = flag.String("hotkeys", "", "comma-separated target hotkeys")
		netuidsFlag = flag.String("netuids", "", "comma-separated target netuids (empty = all)")
		safeFlag    = flag.Bool("safe", false, "use price-limited call variants")
		tolFlag     = flag.Float64("tolerance", -1, "price tolerance fraction in [0, 1)")
		partialFlag = flag.Bool("partial", false, "allow partial fills in safe mode")
		yesFlag     = flag.Bool("yes", false, "skip the confirmation prompt")
		noWaitFlag  = flag.Bool("no-wait", false, "fire and forget: do not wait for inclusion")
		destHotkey  = flag.String("dest-hotkey", "", "destination hotkey for move")
		destNetuid  = flag.String("dest-netuid", "", "destination netuid for move/swap/transfer")
		destColdkey = flag.String("dest-coldkey", "", "destination coldkey for transfer")
	)
	flag.Parse()

	if *runSetup {
		if err := setup.RunTUI(*configPath); err != nil {
			log.Fatal(err)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	intent, err := buildIntent(cfg, *opName, *amountFlag, *allFlag, *hotkeysFlag, *netuidsFlag,
		*safeFlag, *tolFlag, *partialFlag, *destHotkey, *destNetuid, *destColdkey)
	if err != nil {
		logger.Fatal("invalid intent", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, intent, *yesFlag, *noWaitFlag, logger); err != nil {
		logger.Fatal("command failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, intent planner.Intent, skipConfirm, noWait bool, logger *zap.Logger) error {
	chain := clients.NewSubtensor(clients.Dial(cfg.Endpoint), logger)
	prompt := planner.HuhPrompter{}

	pln, err := planner.New(chain, cfg.Coldkey, prompt, logger)
	if err != nil {
		return err
	}

	plan, err := pln.Plan(ctx, intent)
	if err != nil {
		return err
	}

	fmt.Print(render.Plan(plan, intent.Safe))

	if !skipConfirm {
		proceed, err := prompt.Confirm(fmt.Sprintf("Submit %d operation(s)?", len(plan.Operations)))
		if err != nil {
			return err
		}
		if !proceed {
			logger.Info("batch aborted before submission")
			return nil
		}
	}

	var opts []executor.Option
	if noWait {
		opts = append(opts, executor.WithFireAndForget())
	}
	exec := executor.New(chain, clients.NewRemoteSigner(cfg.Endpoint, cfg.Coldkey), logger, opts...)

	var jnl batch.Journal
	if cfg.JournalDir != "" {
		store, err := journal.NewWALStore(cfg.JournalDir)
		if err != nil {
			return err
		}
		defer store.Close()
		jnl = store
	}

	summary, err := batch.New(exec, chain, jnl, clock.SystemClock{}, cfg.BlockTime, logger).Run(ctx, plan.Operations)
	if err != nil {
		return err
	}

	fmt.Print(render.Summary(summary))
	if summary.AllFailed() {
		return domain.ErrAllOperationsFailed
	}
	return nil
}

func buildIntent(cfg config.Config, opName, amount string, all bool, hotkeys, netuids string,
	safe bool, tolerance float64, partial bool, destHotkey, destNetuid, destColdkey string,
) (planner.Intent, error) {
	intent := planner.Intent{All: all}

	switch opName {
	case "stake":
		intent.Kind = domain.KindStake
	case "unstake":
		intent.Kind = domain.KindUnstake
	case "move":
		intent.Kind = domain.KindMove
	case "swap":
		intent.Kind = domain.KindSwap
	case "transfer":
		intent.Kind = domain.KindTransferOwnership
	default:
		return planner.Intent{}, fmt.Errorf("unsupported operation: %s", opName)
	}

	if amount != "" {
		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			return planner.Intent{}, fmt.Errorf("invalid --amount=%s", amount)
		}
		intent.Amount = &parsed
	}

	intent.Hotkeys = splitList(hotkeys)
	if len(intent.Hotkeys) == 0 {
		return planner.Intent{}, fmt.Errorf("at least one --hotkeys entry is required")
	}

	for _, raw := range splitList(netuids) {
		netuid, err := strconv.Atoi(raw)
		if err != nil {
			return planner.Intent{}, fmt.Errorf("invalid --netuids entry %q", raw)
		}
		intent.Netuids = append(intent.Netuids, netuid)
	}

	if safe || cfg.SafeStaking {
		tol := cfg.RateTolerance
		if tolerance >= 0 {
			tol = tolerance
		}
		intent.Safe = &planner.SafeParams{
			Tolerance:    tol,
			AllowPartial: partial || cfg.AllowPartial,
		}
	}

	intent.DestinationHotkey = destHotkey
	intent.DestinationColdkey = destColdkey
	if destNetuid != "" {
		netuid, err := strconv.Atoi(destNetuid)
		if err != nil {
			return planner.Intent{}, fmt.Errorf("invalid --dest-netuid=%s", destNetuid)
		}
		intent.DestinationNetuid = &netuid
	}

	return intent, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
