package main

import (
	"io"
	"os"

	"raffle/internal/bank"
	"raffle/internal/config"
	"raffle/internal/handlers"
	"raffle/internal/journal"
	"raffle/internal/keeper"
	"raffle/internal/services"
	"raffle/internal/vrf"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "raffle"
	app.Usage = "timed raffle with an asynchronous randomness draw"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "path to TOML configuration file",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logger.Fatalf("raffle exited: %v", err)
	}
}

func run(c *cli.Context) error {
	defer logger.Init("raffle", true, false, io.Discard).Close()

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	// 1. Open the event journal.
	jnl, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return err
	}
	defer jnl.Close()

	// 2. Build the ledger and the randomness coordinator harness.
	ledger := bank.NewLedger()
	coordinator := vrf.NewMockCoordinator(cfg.VRF.FulfillDelay.Duration)
	coordinator.CreateSubscription(cfg.VRF.SubscriptionID)
	coordinator.FundSubscription(cfg.VRF.SubscriptionID, 1_000_000)

	// 3. Initialize the Raffle Service and register it as the
	// randomness consumer.
	raffleService := services.NewRaffleService(services.Config{
		Account:          cfg.Account,
		EntranceFee:      cfg.EntranceFee,
		Interval:         cfg.DrawInterval.Duration,
		KeyHash:          cfg.VRF.KeyHash,
		SubscriptionID:   cfg.VRF.SubscriptionID,
		MinConfirmations: cfg.VRF.MinConfirmations,
		CallbackGasLimit: cfg.VRF.CallbackGasLimit,
		NumWords:         cfg.VRF.NumWords,
	}, ledger, coordinator, jnl)
	coordinator.RegisterConsumer(raffleService)

	// 4. Start the background keeper that triggers eligible draws.
	upkeeper := keeper.New(raffleService, cfg.KeeperPoll.Duration)
	upkeeper.Start()
	defer upkeeper.Stop()

	// 5. Set up the Gin router and register routes.
	r := gin.Default()
	httpHandler := handlers.NewHTTPHandler(raffleService, ledger, coordinator, jnl)
	httpHandler.RegisterRoutes(r)

	// 6. Run the server.
	logger.Infof("Server starting on %s", cfg.ListenAddr)
	return r.Run(cfg.ListenAddr)
}
