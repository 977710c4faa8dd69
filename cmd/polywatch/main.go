package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rewired-gh/polywatch/internal/app"
	"github.com/rewired-gh/polywatch/internal/config"
	"github.com/rewired-gh/polywatch/internal/coordinator"
	"github.com/rewired-gh/polywatch/internal/history"
	"github.com/rewired-gh/polywatch/internal/logger"
	"github.com/rewired-gh/polywatch/internal/notify"
	"github.com/rewired-gh/polywatch/internal/polymarket"
	"github.com/rewired-gh/polywatch/internal/storage"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	// Optional .env for local development; environment wins over file.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store := storage.Open(cfg.Storage.FilePath, 0644, 0755)
	prices := history.NewStore(cfg.History.PriceCap, cfg.History.Epsilon, store)
	alerter := notify.NewAlerter(cfg.Alerts.PriceMovePct, cfg.Alerts.Cooldown)

	client := polymarket.NewClient(
		cfg.Polymarket.BaseURL,
		cfg.Polymarket.Timeout,
		cfg.Polymarket.MaxRetries,
		cfg.Polymarket.RetryDelay,
	)

	// A broken Telegram setup degrades to log-only operation rather than
	// taking the dashboard down.
	var telegramClient *notify.TelegramClient
	if cfg.Telegram.Enabled {
		telegramClient, err = notify.NewTelegramClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, 3, time.Second)
		if err != nil {
			logger.Error("Telegram disabled, failed to initialize client: %v", err)
		} else {
			logger.Info("Telegram client initialized")
		}
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	var notifier app.Notifier
	if telegramClient != nil {
		notifier = telegramClient
	}

	dashboard := app.New(app.Options{
		Client:        client,
		Store:         store,
		Prices:        prices,
		Alerter:       alerter,
		Notifier:      notifier,
		FetchLimit:    cfg.Polymarket.Limit,
		ResolutionCap: cfg.History.ResolutionCap,
		MinLiquidity:  cfg.Filter.MinLiquidity,
	})

	coord := coordinator.New(
		dashboard,
		coordinator.RealClock(),
		cfg.Refresh.DataInterval,
		cfg.Refresh.TickInterval,
		cfg.Polymarket.Timeout+10*time.Second,
		dashboard.AutoRefresh,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if telegramClient != nil {
		go telegramClient.ListenCommands(ctx, &commander{app: dashboard, coord: coord})
	}

	logger.Info("Starting refresh loop (data: %v, tick: %v, limit: %d)",
		cfg.Refresh.DataInterval, cfg.Refresh.TickInterval, cfg.Polymarket.Limit)

	coord.Start(ctx)
	<-ctx.Done()
	coord.Stop()
	logger.Info("Service stopped")
}

// commander glues the bot command surface to the app and the coordinator.
type commander struct {
	app   *app.App
	coord *coordinator.Coordinator
}

func (c *commander) StatusText() string {
	text := c.app.StatusText(time.Now())
	if c.coord.Paused() {
		text += "Auto-refresh paused\n"
	}
	return text
}

func (c *commander) Pause() {
	c.coord.Pause()
	logger.Info("Auto-refresh paused by command")
}

func (c *commander) Resume() {
	c.coord.Resume()
	logger.Info("Auto-refresh resumed by command")
}

func (c *commander) ExportCSV() ([]byte, error) {
	return c.app.ExportCSV()
}
