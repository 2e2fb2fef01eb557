// Package main is the entry point for the financial agent API: a
// single-user service that normalizes holdings from a crypto exchange, a
// brokerage aggregator, and a cold storage ledger into one valuation, and
// exposes a human-in-the-loop trade scaffold.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/finagent-dev/finagent/internal/clients/coinbase"
	"github.com/finagent-dev/finagent/internal/clients/plaid"
	"github.com/finagent-dev/finagent/internal/config"
	"github.com/finagent-dev/finagent/internal/domain"
	linkhandlers "github.com/finagent-dev/finagent/internal/modules/link"
	"github.com/finagent-dev/finagent/internal/modules/portfolio"
	portfoliohandlers "github.com/finagent-dev/finagent/internal/modules/portfolio/handlers"
	"github.com/finagent-dev/finagent/internal/modules/trading"
	tradinghandlers "github.com/finagent-dev/finagent/internal/modules/trading/handlers"
	"github.com/finagent-dev/finagent/internal/pricing"
	coinbaseprovider "github.com/finagent-dev/finagent/internal/providers/coinbase"
	coldstorageprovider "github.com/finagent-dev/finagent/internal/providers/coldstorage"
	plaidprovider "github.com/finagent-dev/finagent/internal/providers/plaid"
	"github.com/finagent-dev/finagent/internal/server"
	"github.com/finagent-dev/finagent/internal/store"
	"github.com/finagent-dev/finagent/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New("info", true)
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(cfg.LogLevel, true)
	logger.SetGlobal(log)

	log.Info().Msg("Starting financial agent")

	coinbaseClient, err := coinbase.NewClient(cfg.CoinbaseAPIKey, cfg.CoinbaseAPISecret, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Coinbase client")
	}

	plaidClient, err := plaid.NewClient(cfg.PlaidClientID, cfg.PlaidSecret, cfg.PlaidEnvironment, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Plaid client")
	}

	links, err := store.Open(cfg.LinkDBPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open link store")
	}
	defer links.Close()

	// Fixed provider list, registered at startup; the portfolio service
	// iterates it polymorphically.
	providers := []domain.HoldingsProvider{
		coinbaseprovider.NewProvider(coinbaseClient, cfg.IgnoredAssets, log),
		coldstorageprovider.NewProvider(cfg.ColdStoragePath, cfg.IgnoredAssets, log),
		plaidprovider.NewProvider(plaidClient, links, cfg.SchwabContainerID, cfg.IgnoredAssets, log),
	}

	pricer := pricing.NewCoinbasePricing(coinbaseClient, log)
	portfolioService := portfolio.NewService(providers, pricer, cfg.IgnoredAssets, log)
	tradingService := trading.NewService(cfg.AllowedSymbols, cfg.MaxNotionalUSD, log)

	srv := server.New(server.Config{
		Log:               log,
		Config:            cfg,
		PortfolioHandlers: portfoliohandlers.NewHandler(portfolioService, coinbaseClient, pricer, log),
		TradingHandlers:   tradinghandlers.NewHandler(tradingService, log),
		LinkHandlers:      linkhandlers.NewHandler(plaidClient, links, cfg.SchwabContainerID, log),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("Server failed")
		}
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}

	log.Info().Msg("Stopped")
}
