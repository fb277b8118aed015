package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/tradecore-lab/tradecore/internal/config"
	"github.com/tradecore-lab/tradecore/internal/datasource"
	"github.com/tradecore-lab/tradecore/internal/engine"
	"github.com/tradecore-lab/tradecore/internal/gateway"
	"github.com/tradecore-lab/tradecore/internal/logger"
	"github.com/tradecore-lab/tradecore/internal/ordermanager"
	"github.com/tradecore-lab/tradecore/internal/performance"
	"github.com/tradecore-lab/tradecore/internal/portfolio"
	"github.com/tradecore-lab/tradecore/internal/store"
	"github.com/tradecore-lab/tradecore/internal/strategy"
	"github.com/tradecore-lab/tradecore/internal/types"
)

// runAction loads the configuration, wires the simulated gateway and runs
// the engine over the historical data, writing all artifacts to the results
// folder.
func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Flag overrides for quick experiments without editing the config file.
	if v := cmd.String("data"); v != "" {
		cfg.Gateway.DataPath = v
	}

	if v := cmd.String("results"); v != "" {
		cfg.ResultsFolder = v
	}

	if v := cmd.String("strategy"); v != "" {
		cfg.Strategy.Name = v
	}

	if cfg.ResultsFolder == "" {
		cfg.ResultsFolder = "results"
	}

	appLogger, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	source, err := datasource.NewDuckDBSource(appLogger)
	if err != nil {
		return fmt.Errorf("failed to open data source: %w", err)
	}

	if err := source.Initialize(cfg.Gateway.DataPath); err != nil {
		return fmt.Errorf("failed to load data: %w", err)
	}

	gw := gateway.NewSimulated(gateway.SimulatedConfig{
		FillChunk: cfg.Gateway.FillChunk,
		StartTime: cfg.StartTime,
		EndTime:   cfg.EndTime,
	}, source, appLogger)
	defer gw.Close()

	runStore, err := store.NewRunStore(appLogger)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	defer runStore.Close()

	pf := portfolio.New(cfg.InitialCapital, cfg.Risk.AllowNegativeCash, appLogger)
	orders := ordermanager.New(ordermanager.Config{
		MaxOrderValue:      cfg.Risk.MaxOrderValue,
		MaxOrdersPerMinute: cfg.Risk.MaxOrdersPerMinute,
		AllowNegativeCash:  cfg.Risk.AllowNegativeCash,
	}, pf, appLogger)

	eng := engine.New(engine.Config{
		StrategyName:   cfg.Strategy.Name,
		StrategyParams: cfg.Strategy.Params,
	}, gw, orders, pf, strategy.NewRegistry(), runStore, appLogger)

	count, err := gw.Count()
	if err != nil {
		return fmt.Errorf("failed to count bars: %w", err)
	}

	bar := progressbar.Default(int64(count))
	bar.Describe(fmt.Sprintf("Processing %s with %s", filepath.Base(cfg.Gateway.DataPath), cfg.Strategy.Name))
	eng.OnEvent(func(types.MarketData) {
		_ = bar.Add(1)
	})

	if err := eng.Run(ctx); err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	result := eng.Result()
	metrics := performance.Calculate(performance.Input{
		InitialCapital: result.InitialCapital,
		FinalEquity:    result.FinalEquity,
		EquityCurve:    result.EquityCurve,
		Fills:          result.Fills,
		Rejections:     result.Rejections,
		Orders:         result.Orders,
	})

	if err := runStore.Export(cfg.ResultsFolder); err != nil {
		return fmt.Errorf("failed to export run logs: %w", err)
	}

	if err := performance.WriteStats(filepath.Join(cfg.ResultsFolder, "stats.yaml"), metrics); err != nil {
		return fmt.Errorf("failed to write stats: %w", err)
	}

	if err := performance.WriteReport(filepath.Join(cfg.ResultsFolder, "report.md"), metrics); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	fmt.Printf("Final equity: %.2f (%.2f%%), results in %s\n",
		metrics.FinalEquity, metrics.TotalReturnPct, cfg.ResultsFolder)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Run a strategy over historical data",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the yaml run configuration",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Override the CSV data path from the config",
			},
			&cli.StringFlag{
				Name:    "results",
				Aliases: []string{"r"},
				Usage:   "Override the results folder from the config",
			},
			&cli.StringFlag{
				Name:    "strategy",
				Aliases: []string{"s"},
				Usage:   "Override the strategy name from the config",
			},
		},
		Action: runAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
