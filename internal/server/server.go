// Package server wires every collaborator together: config, logging,
// database, cache, quote cache, ledger, round repository, the round
// engine, and the WebSocket gateway. Grounded on the teacher's own
// internal/server/server.go (a FiberServer wrapping *fiber.App plus a
// db handle), generalized from one dependency to the full graph
// spec.md §4 describes.
package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"crashcore/internal/auth"
	"crashcore/internal/cache"
	"crashcore/internal/config"
	"crashcore/internal/database"
	"crashcore/internal/engine"
	"crashcore/internal/gateway"
	"crashcore/internal/ledger"
	"crashcore/internal/logging"
	"crashcore/internal/metrics"
	"crashcore/internal/quote"
	"crashcore/internal/rounds"
)

// FiberServer bundles the Fiber app with every collaborator the routes
// in routes.go need to reach.
type FiberServer struct {
	*fiber.App

	cfg *config.Config
	log *zap.Logger

	db  database.Service
	rdb cache.Service

	engine     *engine.Engine
	hub        *gateway.Hub
	dispatcher *gateway.Dispatcher
	validator  *auth.Validator
	registry   *prometheus.Registry
	metrics    *metrics.Metrics

	stopClientGauge chan struct{}
}

// New builds the fully wired server. It does not start the engine
// loop or the hub's Run goroutine — Start does that, so tests can
// construct a FiberServer without spinning up background goroutines.
func New() *FiberServer {
	cfg := config.Load()

	log, err := logging.New(cfg.IsProduction())
	if err != nil {
		panic(err)
	}

	db := database.New()

	rdb := cache.New()
	if rdb == nil {
		log.Fatal("redis connection required, the ledger has no durable store without it")
	}

	repo := rounds.New(db.DB())

	priceSource := quote.NewCoinGeckoSource(cfg.CoinGeckoAPIURL)
	quoteCache := quote.New(priceSource, cfg.PriceCacheDuration, log)

	ledgerStore := ledger.New(rdb.GetClient())

	registry := prometheus.NewRegistry()
	metricsBundle := metrics.New(registry)
	metricsAdapter := newMetricsAdapter(metricsBundle)

	hub := gateway.NewHub(log)
	eng := engine.New(quoteCache, ledgerStore, repo, hub, metricsAdapter, log, cfg.HouseEdge)

	dispatcher := gateway.NewDispatcher(eng, ledgerStore, repo, hub, cfg.RateLimitPerMinute, log)
	validator := auth.NewValidator(cfg.JWTSecret)

	srv := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader: "crashcore",
			AppName:      "crashcore",
		}),

		cfg: cfg,
		log: log,

		db:  db,
		rdb: rdb,

		engine:     eng,
		hub:        hub,
		dispatcher: dispatcher,
		validator:  validator,
		registry:   registry,
		metrics:    metricsBundle,

		stopClientGauge: make(chan struct{}),
	}

	srv.RegisterFiberRoutes()
	return srv
}

// Start begins the round engine loop and the hub's broadcast loop.
// Called once by cmd/server/main.go after New().
func (s *FiberServer) Start() {
	go s.hub.Run()
	s.engine.Start()
	go s.reportClientCount()
}

// reportClientCount samples the hub's connected-client count into the
// connected_clients gauge every second.
func (s *FiberServer) reportClientCount() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.metrics.ConnectedClients.Set(float64(s.hub.ClientCount()))
		case <-s.stopClientGauge:
			return
		}
	}
}

// Stop signals the round engine to exit (see engine.Engine.Stop) and
// stops the connected-client gauge sampler.
func (s *FiberServer) Stop() {
	s.engine.Stop()
	close(s.stopClientGauge)
}

// Port returns the configured listen port, for cmd/server/main.go.
func (s *FiberServer) Port() string {
	return s.cfg.Port
}
