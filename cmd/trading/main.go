package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tradecore-lab/tradecore/internal/config"
	"github.com/tradecore-lab/tradecore/internal/engine"
	"github.com/tradecore-lab/tradecore/internal/gateway"
	"github.com/tradecore-lab/tradecore/internal/logger"
	"github.com/tradecore-lab/tradecore/internal/ordermanager"
	"github.com/tradecore-lab/tradecore/internal/performance"
	"github.com/tradecore-lab/tradecore/internal/portfolio"
	"github.com/tradecore-lab/tradecore/internal/store"
	"github.com/tradecore-lab/tradecore/internal/strategy"
)

func main() {
	configFlag := flag.String("config", "", "Path to yaml run configuration (required)")
	symbolsFlag := flag.String("symbols", "", "Comma-separated symbol override")
	intervalFlag := flag.String("interval", "", "Candlestick interval override")
	testnetFlag := flag.Bool("testnet", false, "Use the exchange testnet")

	flag.Parse()

	if *configFlag == "" {
		fmt.Println("Error: --config flag is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *symbolsFlag != "" {
		symbols := strings.Split(*symbolsFlag, ",")
		for i := range symbols {
			symbols[i] = strings.TrimSpace(symbols[i])
		}

		cfg.Gateway.Symbols = symbols
	}

	if *intervalFlag != "" {
		cfg.Gateway.Interval = *intervalFlag
	}

	if *testnetFlag {
		cfg.Gateway.Testnet = true
	}

	if len(cfg.Gateway.Symbols) == 0 {
		log.Fatal("No symbols configured")
	}

	if cfg.Gateway.Interval == "" {
		cfg.Gateway.Interval = "1m"
	}

	// Credentials come from the environment only.
	apiKey := os.Getenv("BINANCE_API_KEY")
	secretKey := os.Getenv("BINANCE_SECRET_KEY")

	if apiKey == "" || secretKey == "" {
		log.Fatal("BINANCE_API_KEY and BINANCE_SECRET_KEY must be set")
	}

	appLogger, err := logger.NewLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Sync()

	gw := gateway.NewLive(gateway.LiveConfig{
		Symbols:   cfg.Gateway.Symbols,
		Interval:  cfg.Gateway.Interval,
		APIKey:    apiKey,
		SecretKey: secretKey,
		Testnet:   cfg.Gateway.Testnet,
	}, appLogger)
	defer gw.Close()

	runStore, err := store.NewRunStore(appLogger)
	if err != nil {
		log.Fatalf("Failed to open run store: %v", err)
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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("Starting live trading: symbols=%v interval=%s testnet=%v\n",
		cfg.Gateway.Symbols, cfg.Gateway.Interval, cfg.Gateway.Testnet)

	runErr := eng.Run(ctx)

	result := eng.Result()
	metrics := performance.Calculate(performance.Input{
		InitialCapital: result.InitialCapital,
		FinalEquity:    result.FinalEquity,
		EquityCurve:    result.EquityCurve,
		Fills:          result.Fills,
		Rejections:     result.Rejections,
		Orders:         result.Orders,
	})

	if cfg.ResultsFolder != "" {
		if err := runStore.Export(cfg.ResultsFolder); err != nil {
			log.Printf("Failed to export run logs: %v", err)
		}
	}

	fmt.Printf("Session ended: %d orders, %d fills, final equity %.2f\n",
		metrics.TotalOrders, metrics.TotalFills, metrics.FinalEquity)

	if runErr != nil && ctx.Err() == nil {
		log.Fatalf("Engine error: %v", runErr)
	}
}
