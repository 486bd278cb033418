/*
main.go - Application entry point

PURPOSE:
  Boots the storefront: configuration, logging, the document store, the
  ledger and top-up services, the Telegram shell, and the admin HTTP API.
  Handles graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment (.env honored)
  2. Configure logging (level, optional rotating file)
  3. Open the document store (jsonfile or sqlite backend)
  4. Build the ledger and top-up services; seed the catalog if empty
  5. Start the session sweeper, the bot, and the HTTP server

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Cancel the bot's update loop
  2. Drain the HTTP server (30s timeout)
  3. Close the store
  4. Exit

ENVIRONMENT:
  BOT_TOKEN and ADMIN_ID are required; see config/config.go for the
  full list and defaults.

SEE ALSO:
  - api/server.go: router configuration
  - bot/bot.go: update loop
  - config/config.go: all tunables
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/warp/storefront/api"
	"github.com/warp/storefront/bot"
	"github.com/warp/storefront/config"
	"github.com/warp/storefront/ledger"
	"github.com/warp/storefront/receipt"
	"github.com/warp/storefront/store"
	"github.com/warp/storefront/store/jsonfile"
	"github.com/warp/storefront/store/sqlite"
	"github.com/warp/storefront/topup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("configuration: %v", err)
	}

	log := newLogger(cfg)

	// Store backend
	var (
		st     store.Store
		closer interface{ Close() error }
	)
	switch cfg.StoreBackend {
	case "sqlite":
		db, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			log.Fatalf("open sqlite store: %v", err)
		}
		st, closer = db, db
	case "jsonfile":
		fs, err := jsonfile.New(cfg.DataDir)
		if err != nil {
			log.Fatalf("open jsonfile store: %v", err)
		}
		st = fs
	default:
		log.Fatalf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	log.WithField("backend", cfg.StoreBackend).Info("store opened")

	// Core services
	var ledgerOpts []ledger.Option
	if cfg.RequireApproval {
		ledgerOpts = append(ledgerOpts, ledger.WithManualApproval())
	}
	l := ledger.New(st, ledgerOpts...)

	seeded, err := l.SeedDefaultCatalog(context.Background())
	if err != nil {
		log.Fatalf("seed catalog: %v", err)
	}
	if seeded {
		log.Info("seeded default catalog")
	}

	sessions := topup.NewSessions(cfg.SessionTTL)
	topups := topup.NewService(st, l, sessions)

	renderer := &receipt.Renderer{
		StoreName:        cfg.StoreName,
		OwnerContact:     cfg.OwnerContact,
		Currency:         cfg.Currency,
		CurrencyExponent: cfg.CurrencyExponent,
	}

	// Telegram shell
	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("telegram: %v", err)
	}
	limiter := bot.NewRateLimiter(cfg.RateLimitInterval, cfg.RateLimitPerMin)
	shell := bot.New(botAPI, l, topups, renderer, limiter, log, bot.Options{
		AdminID:          cfg.AdminID,
		StoreName:        cfg.StoreName,
		OwnerContact:     cfg.OwnerContact,
		Currency:         cfg.Currency,
		CurrencyExponent: cfg.CurrencyExponent,
		RechargeAmounts:  cfg.RechargeAmounts,
		BankName:         cfg.BankName,
		BankAccount:      cfg.BankAccount,
		AccountHolder:    cfg.AccountHolder,
		BankIBAN:         cfg.BankIBAN,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Expired intake sessions are swept so abandoned top-ups don't
	// swallow later photos.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sessions.SweepExpired(); n > 0 {
					log.WithField("sessions", n).Debug("swept expired top-up sessions")
				}
			}
		}
	}()

	go func() {
		if err := shell.Run(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("bot stopped")
		}
	}()

	// Admin HTTP API
	router := api.NewRouter(api.NewHandler(l, topups))
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("admin API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
	if closer != nil {
		if err := closer.Close(); err != nil {
			log.WithError(err).Error("store close")
		}
	}
	log.Info("stopped")
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.LogFile != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    20, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}
	return log
}
