package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuanchen/stratsim/bus"
	"github.com/kuanchen/stratsim/engine"
	"github.com/kuanchen/stratsim/internal/logging"
	"github.com/kuanchen/stratsim/journal"
	"github.com/kuanchen/stratsim/market"
	"github.com/kuanchen/stratsim/replay"
	"github.com/kuanchen/stratsim/sim"
	"github.com/kuanchen/stratsim/strategies"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a bar file through a strategy and print the results",
	Long: `Run one strategy against a CSV bar file without the HTTP surface.
Bars are replayed to completion, fills are simulated, and the final
positions are printed.

Examples:
  stratsim replay --bars data/spy_minute.csv --strategy ma_cross
  stratsim replay --bars data/bars.csv --strategy rsi --param rsi_period=7 --db fills.sqlite`,
	RunE: runReplay,
}

var (
	replayBarsPath string
	replayStrategy string
	replaySymbol   string
	replayParams   []string
	replayDBPath   string
	replayLogLevel string
)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().StringVarP(&replayBarsPath, "bars", "b", "", "CSV file of bars (required)")
	replayCmd.Flags().StringVarP(&replayStrategy, "strategy", "s", "ma_cross", "strategy type to run")
	replayCmd.Flags().StringVar(&replaySymbol, "symbol", "", "symbol override for files without a symbol column")
	replayCmd.Flags().StringArrayVarP(&replayParams, "param", "p", nil, "strategy parameter as key=value (repeatable)")
	replayCmd.Flags().StringVarP(&replayDBPath, "db", "d", "", "SQLite journal path (no journal when empty)")
	replayCmd.Flags().StringVar(&replayLogLevel, "log-level", "warn", "log level during replay")
	replayCmd.MarkFlagRequired("bars")
}

func runReplay(cmd *cobra.Command, args []string) error {
	log := logging.New(replayLogLevel)

	var j journal.Journal
	if replayDBPath != "" {
		sq, err := journal.NewSQLite(replayDBPath)
		if err != nil {
			return fmt.Errorf("create journal: %w", err)
		}
		defer sq.Close()
		j = sq
	}

	b := bus.New(4096)
	defer b.Close()

	prices := market.NewBarStore()
	simulator := sim.NewSimulator(sim.DefaultConfig(), prices, j, log)
	svc := sim.NewService(b, simulator, log)
	if err := svc.Start(); err != nil {
		return fmt.Errorf("start simulator service: %w", err)
	}

	params, err := parseParams(replayParams)
	if err != nil {
		return err
	}
	if replaySymbol != "" {
		params["symbol"] = replaySymbol
	}

	eng := engine.New(b, strategies.NewRegistry(log), log)
	loaded, err := eng.Load(replayStrategy, "", params)
	if err != nil {
		return fmt.Errorf("load strategy: %w", err)
	}

	fmt.Printf("Replaying bars from: %s\n", replayBarsPath)
	fmt.Printf("  Strategy: %s (%s)\n", loaded.ID, loaded.Type)

	start := time.Now()
	n, err := replay.CSV(context.Background(), replayBarsPath, b, replay.Options{
		Symbol: replaySymbol,
		// pace the feed so bounded subscriber queues never overflow
		Interval: 100 * time.Microsecond,
	})
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	// drain: unloading waits for the strategy's queue, stopping the
	// service waits for the signal queue
	if err := eng.Unload(loaded.ID); err != nil {
		return err
	}
	svc.Stop()

	fmt.Printf("\nReplayed %d bars in %s\n", n, time.Since(start).Round(time.Millisecond))
	fmt.Printf("Fills: %d\n", simulator.FillCount())
	for _, sess := range simulator.Sessions() {
		fmt.Printf("  %s:\n", sess.StrategyID)
		for symbol, qty := range sess.Positions {
			fmt.Printf("    %-8s %d\n", symbol, qty)
		}
		for _, fill := range simulator.Session(sess.StrategyID).Fills() {
			fmt.Printf("    #%d %-4s %d @ %.4f (base %.4f)\n",
				fill.FillID, fill.Action, fill.Quantity, fill.Price, fill.BasePrice)
		}
	}
	return nil
}

func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("bad --param %q, want key=value", pair)
		}
		params[key] = coerceParam(value)
	}
	return params, nil
}

// coerceParam types flag values the way a JSON body would.
func coerceParam(v string) any {
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v
}
