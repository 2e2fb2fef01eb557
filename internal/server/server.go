// Package server provides the HTTP server and routing for the financial
// agent.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/finagent-dev/finagent/internal/config"
	linkhandlers "github.com/finagent-dev/finagent/internal/modules/link"
	portfoliohandlers "github.com/finagent-dev/finagent/internal/modules/portfolio/handlers"
	tradinghandlers "github.com/finagent-dev/finagent/internal/modules/trading/handlers"
)

// Config holds server configuration.
type Config struct {
	Log               zerolog.Logger
	Config            *config.Config
	PortfolioHandlers *portfoliohandlers.Handler
	TradingHandlers   *tradinghandlers.Handler
	LinkHandlers      *linkhandlers.Handler
}

// Server represents the HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    *config.Config
}

// New creates a new HTTP server and wires all routes.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg.Config,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	// Local single-user tool; stays permissive for localhost frontends.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	health := newHealthHandler(s.log)

	s.router.Route("/agent", func(r chi.Router) {
		p := cfg.PortfolioHandlers

		// Legacy single-exchange surface.
		r.Get("/accounts", p.HandleGetAccounts)
		r.Get("/positions", p.HandleGetPositions)
		r.Get("/snapshot", p.HandleGetSnapshot)
		r.Get("/price", p.HandleGetPrice)
		r.Get("/value", p.HandleGetValue)

		// Multi-source valuation views.
		r.Get("/portfolio", p.HandleGetPortfolio)
		r.Get("/networth", p.HandleGetNetWorth)
		r.Get("/containers", p.HandleGetContainers)
		r.Get("/container/accounts", p.HandleGetContainerAccounts)
		r.Get("/container/value", p.HandleGetContainerValue)
		r.Get("/container/holdings", p.HandleGetContainerHoldings)

		// Trade scaffold.
		r.Post("/trades/preview", cfg.TradingHandlers.HandlePreview)
		r.Post("/trades/execute", cfg.TradingHandlers.HandleExecute)

		// Aggregator linking.
		r.Post("/plaid/link_token", cfg.LinkHandlers.HandleCreateLinkToken)
		r.Post("/plaid/exchange", cfg.LinkHandlers.HandleExchange)
		r.Get("/plaid/status", cfg.LinkHandlers.HandleStatus)
		r.Get("/plaid/items", cfg.LinkHandlers.HandleListItems)
		r.Post("/plaid/unlink", cfg.LinkHandlers.HandleUnlink)

		r.Get("/health", health.HandleHealth)
	})

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Config.Host, cfg.Config.Port),
		Handler: s.router,
	}

	return s
}

// Router exposes the router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins listening. Blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
