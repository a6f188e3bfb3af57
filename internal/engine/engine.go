// Package engine wires the repositories, venue gateway, services and
// background loops into one runnable unit.
package engine

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"dealcore/internal/balance"
	"dealcore/internal/cancellation"
	"dealcore/internal/deal"
	"dealcore/internal/events"
	"dealcore/internal/lifecycle"
	"dealcore/internal/monitoring"
	"dealcore/internal/order"
	"dealcore/internal/placement"
	"dealcore/internal/stats"
	"dealcore/internal/store"
	"dealcore/pkg/config"
	"dealcore/pkg/db"
	"dealcore/pkg/exchange"
	"dealcore/pkg/logger"
)

// Repository is the full persistence surface the engine needs.
type Repository interface {
	store.OrderRepository
	store.DealRepository
}

// Engine owns the deal machinery for one currency pair.
type Engine struct {
	cfg  *config.Config
	pair exchange.CurrencyPair

	gateway exchange.Gateway
	repo    Repository
	sqlite  *db.Database // non-nil when the engine owns the handle

	bus   *events.Bus
	stats stats.Sink

	factory      *order.Factory
	balances     *balance.Cache
	placement    *placement.Service
	monitoring   *monitoring.Service
	cancellation *cancellation.Service
	orchestrator *deal.Orchestrator

	stale      *lifecycle.StaleOrderMonitor
	cascade    *lifecycle.CascadeHandler
	completion *lifecycle.DealCompletionMonitor

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	stopped bool
}

// New builds an engine from config. gw may be nil only in dry-run mode, where
// a simulated venue seeded with the configured quote balance is used instead.
func New(cfg *config.Config, gw exchange.Gateway) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pair := cfg.Pair()

	e := &Engine{
		cfg:   cfg,
		pair:  pair,
		bus:   events.NewBus(),
		stats: stats.LogSink{Log: logger.Get()},
	}

	if gw == nil {
		if !cfg.DryRun {
			return nil, errors.New("engine: gateway required outside dry-run mode")
		}
		sim := exchange.NewSim(exchange.AccountBalance{
			pair.QuoteCurrency: {Free: cfg.DryRunQuoteBalance, Total: cfg.DryRunQuoteBalance},
		})
		gw = sim
	}
	if cfg.GatewayRPS > 0 {
		gw = exchange.Throttle(gw, cfg.GatewayRPS, cfg.GatewayBurst)
	}
	e.gateway = gw

	if cfg.DryRun {
		e.repo = store.NewMemory()
	} else {
		sqlite, err := db.New(cfg.DBPath)
		if err != nil {
			return nil, errors.Wrap(err, "engine: open database")
		}
		e.sqlite = sqlite
		e.repo = sqlite
	}

	e.factory = order.NewFactory(pair)
	e.balances = balance.NewCache(e.gateway, cfg.BalanceTTL)
	e.placement = placement.NewService(e.gateway, e.repo, e.factory, e.balances, placement.Config{
		MaxAttempts:      cfg.MaxAttempts,
		RetryBase:        cfg.RetryBase,
		FetchAfterCreate: true,
	}, e.bus, e.stats)
	e.monitoring = monitoring.NewService(e.gateway, e.repo, pair.Symbol, e.bus, e.stats)
	e.cancellation = cancellation.NewService(e.gateway, e.repo, e.bus, e.stats)
	e.orchestrator = deal.NewOrchestrator(pair, e.repo, e.repo, e.factory, e.placement, e.cancellation, e.bus, e.stats)

	e.stale = lifecycle.NewStaleOrderMonitor(lifecycle.StaleConfig{
		Interval:     cfg.StaleInterval,
		MaxAge:       cfg.StaleMaxAge,
		MaxDeviation: cfg.StaleMaxDeviation,
	}, pair, e.repo, e.repo, e.placement, e.cancellation, e.gateway, e.bus, e.stats)
	e.cascade = lifecycle.NewCascadeHandler(lifecycle.CascadeConfig{
		Interval: cfg.CascadeInterval,
	}, e.repo, e.repo, e.placement, e.stats)
	e.completion = lifecycle.NewDealCompletionMonitor(lifecycle.CompletionConfig{
		Interval:    cfg.CompletionInterval,
		GracePeriod: cfg.GracePeriod,
	}, pair, e.repo, e.repo, e.monitoring, e.placement, e.bus, e.stats)

	return e, nil
}

// Start launches the background loops. Calling Start on a running or stopped
// engine is a no-op; the engine is one-shot, build a new one to restart.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running || e.stopped {
		return
	}
	ctx, e.cancel = context.WithCancel(ctx)
	e.running = true

	e.stale.Start(ctx)
	e.cascade.Start(ctx)
	e.completion.Start(ctx)

	logger.Get().Infow("engine started", "symbol", e.pair.Symbol, "dry_run", e.cfg.DryRun)
}

// Stop cancels the loops and releases resources, including the event bus and
// the database handle, so the engine cannot be restarted afterwards. Safe to
// call repeatedly, and before Start.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.stopped = true
	if e.running {
		e.cancel()
		e.running = false
	}

	e.bus.Close()
	if e.sqlite != nil {
		if err := e.sqlite.Close(); err != nil {
			logger.Get().Errorw("close database", "err", err)
		}
	}
	logger.Get().Infow("engine stopped", "symbol", e.pair.Symbol)
}

// OpenDealAtMarket creates a deal sized by the configured quota at the
// current top of book: the BUY at the bid, the SELL at bid plus the profit
// markup.
func (e *Engine) OpenDealAtMarket(ctx context.Context) (*deal.Deal, error) {
	ticker, err := e.gateway.FetchTicker(ctx, e.pair.Symbol)
	if err != nil {
		return nil, errors.Wrap(err, "engine: fetch ticker")
	}
	buyPrice := ticker.Bid
	if buyPrice <= 0 {
		buyPrice = ticker.Last
	}
	if buyPrice <= 0 {
		return nil, errors.Errorf("engine: no usable price for %s", e.pair.Symbol)
	}

	lim := e.pair.Limits
	buyPrice = order.SnapPrice(buyPrice, e.pair.TickSize, lim.MinPrice, lim.MaxPrice)
	amount := order.SnapAmount(e.pair.DealQuota/buyPrice, e.pair.StepSize, lim.MinAmount, lim.MaxAmount, true)
	sellPrice := order.SnapPrice(buyPrice*(1+e.pair.ProfitMarkup), e.pair.TickSize, lim.MinPrice, lim.MaxPrice)
	sellAmount := order.SnapAmount(amount, e.pair.StepSize, lim.MinAmount, lim.MaxAmount, false)

	return e.orchestrator.CreateDeal(ctx,
		deal.OrderSpec{Amount: amount, Price: buyPrice},
		deal.OrderSpec{Amount: sellAmount, Price: sellPrice})
}

// EmergencyStop cancels every live order and halts the loops.
func (e *Engine) EmergencyStop(ctx context.Context) cancellation.BatchResult {
	res := e.cancellation.EmergencyCancelAll(ctx)
	e.Stop()
	return res
}

// Orchestrator exposes deal creation and cancellation.
func (e *Engine) Orchestrator() *deal.Orchestrator { return e.orchestrator }

// Placement exposes direct order placement.
func (e *Engine) Placement() *placement.Service { return e.placement }

// Monitoring exposes order status reconciliation.
func (e *Engine) Monitoring() *monitoring.Service { return e.monitoring }

// Cancellation exposes order cancellation.
func (e *Engine) Cancellation() *cancellation.Service { return e.cancellation }

// Balances exposes the cached balance view.
func (e *Engine) Balances() *balance.Cache { return e.balances }

// Bus exposes the event stream for host subscriptions.
func (e *Engine) Bus() *events.Bus { return e.bus }
