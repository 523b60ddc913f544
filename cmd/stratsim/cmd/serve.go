package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuanchen/stratsim/bus"
	"github.com/kuanchen/stratsim/config"
	"github.com/kuanchen/stratsim/engine"
	"github.com/kuanchen/stratsim/httpapi"
	"github.com/kuanchen/stratsim/internal/logging"
	"github.com/kuanchen/stratsim/journal"
	"github.com/kuanchen/stratsim/market"
	"github.com/kuanchen/stratsim/replay"
	"github.com/kuanchen/stratsim/sim"
	"github.com/kuanchen/stratsim/strategies"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine with its HTTP control surface",
	Long: `Start the strategy engine, the execution simulator, and the HTTP
control surface. Strategies are loaded via POST /strategies/load or from
the config file's strategies list.

Examples:
  stratsim serve
  stratsim serve -f examples/configs/serve.yaml
  stratsim serve --bars data/spy_minute.csv --addr :8083`,
	RunE: runServe,
}

var (
	serveConfigPath string
	serveAddr       string
	serveBarsPath   string
	serveSymbol     string
	serveLogLevel   string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "f", "", "path to config file (YAML or JSON)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveBarsPath, "bars", "", "CSV bar file to replay on startup (overrides config)")
	serveCmd.Flags().StringVar(&serveSymbol, "symbol", "", "symbol override for bar files without a symbol column")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "log level: trace, debug, info, warn, error")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if serveConfigPath != "" {
		loaded, err := config.LoadFromFile(serveConfigPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveBarsPath != "" {
		cfg.Replay.File = serveBarsPath
	}
	if serveSymbol != "" {
		cfg.Replay.Symbol = serveSymbol
	}
	if serveLogLevel != "" {
		cfg.LogLevel = serveLogLevel
	}

	log := logging.New(cfg.LogLevel)

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	if j != nil {
		defer j.Close()
	}

	b := bus.New(cfg.Bus.Buffer)
	defer b.Close()

	prices := market.NewBarStore()
	simulator := sim.NewSimulator(sim.Config{
		SlippagePct: cfg.Execution.SlippagePct,
		Commission:  cfg.Execution.Commission,
		FillMode:    cfg.Execution.FillMode,
	}, prices, j, log)

	svc := sim.NewService(b, simulator, log)
	if err := svc.Start(); err != nil {
		return fmt.Errorf("start simulator service: %w", err)
	}
	defer svc.Stop()

	reg := strategies.NewRegistry(log)
	eng := engine.New(b, reg, log)
	defer eng.Close()

	for _, sc := range cfg.Strategies {
		loaded, err := eng.Load(sc.Type, sc.ID, sc.Params)
		if err != nil {
			log.Error().Err(err).Str("type", sc.Type).Msg("auto-load failed")
			continue
		}
		log.Info().Str("strategy", loaded.ID).Msg("auto-loaded strategy")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpapi.NewServer(cfg.Server.Addr, eng, simulator, stop, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	if cfg.Replay.File != "" {
		interval, err := cfg.Replay.ParseInterval()
		if err != nil {
			return fmt.Errorf("replay interval: %w", err)
		}
		go func() {
			n, err := replay.CSV(ctx, cfg.Replay.File, b, replay.Options{
				Symbol:   cfg.Replay.Symbol,
				Interval: interval,
			})
			if err != nil && ctx.Err() == nil {
				log.Error().Err(err).Str("file", cfg.Replay.File).Msg("replay failed")
				return
			}
			log.Info().Int("bars", n).Str("file", cfg.Replay.File).Msg("replay finished")
		}()
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	return nil
}

func openJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "csv":
		return journal.NewCSV(jc.FillsFile)
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	default:
		return nil, nil
	}
}
