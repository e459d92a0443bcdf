// Command paperengine is the composition root: it wires storage, the
// risk gate, the aggregator, the execution engine (which takes the
// aggregator as its quote source), the strategy registry, and the
// exchange stream into one running process, then reverses the order on
// shutdown. The exchange stream connects before the aggregator loads
// any game.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nbapaper/engine/internal/adapters/exchange"
	"github.com/nbapaper/engine/internal/adapters/outbound/discord"
	"github.com/nbapaper/engine/internal/adapters/sportsfeed"
	"github.com/nbapaper/engine/internal/config"
	"github.com/nbapaper/engine/internal/core/execution"
	"github.com/nbapaper/engine/internal/core/money"
	"github.com/nbapaper/engine/internal/core/risk"
	"github.com/nbapaper/engine/internal/core/strategy"
	"github.com/nbapaper/engine/internal/events"
	"github.com/nbapaper/engine/internal/storage"
	"github.com/nbapaper/engine/internal/telemetry"

	"github.com/nbapaper/engine/internal/core/aggregator"
)

// discoveryInterval is how often the process re-lists open NBA events
// on the exchange to pick up games that weren't yet listed at startup.
const discoveryInterval = 5 * time.Minute

// performanceRollupInterval is how often cmd/paperengine snapshots each
// strategy's running totals into strategy_performance (spec.md §6:
// "time-series mirror of the runtime state", a periodic write, not a
// per-event one).
const performanceRollupInterval = 1 * time.Minute

// orderCounters tallies per-strategy order outcomes for the performance
// rollup; the position book tracks P&L but not order counts.
type orderCounters struct {
	mu       sync.Mutex
	total    map[string]int
	filled   map[string]int
	rejected map[string]int
}

func newOrderCounters() *orderCounters {
	return &orderCounters{
		total:    make(map[string]int),
		filled:   make(map[string]int),
		rejected: make(map[string]int),
	}
}

func (c *orderCounters) record(strategyID string, status execution.OrderStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total[strategyID]++
	switch status {
	case execution.StatusFilled:
		c.filled[strategyID]++
	case execution.StatusRejected:
		c.rejected[strategyID]++
	}
}

func (c *orderCounters) snapshot(strategyID string) (total, filled, rejected int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total[strategyID], c.filled[strategyID], c.rejected[strategyID]
}

// rollupPerformance snapshots each strategy's running totals into
// strategy_performance: realized/unrealized P&L and open-position count
// come from the position book, order counts from orderCounters.
func rollupPerformance(ctx context.Context, store *storage.Store, strategyIDs []string, book *execution.Book, counters *orderCounters) {
	byStrategy := make(map[string][]execution.Position)
	for _, p := range book.All() {
		byStrategy[p.StrategyID] = append(byStrategy[p.StrategyID], p)
	}

	for _, id := range strategyIDs {
		realized := money.NewCents(0)
		unrealized := money.NewCents(0)
		open := 0
		for _, p := range byStrategy[id] {
			realized = realized.Add(p.RealizedPnL)
			if p.IsOpen {
				unrealized = unrealized.Add(p.UnrealizedPnL)
				open++
			}
		}
		total, filled, rejected := counters.snapshot(id)

		row := storage.StrategyPerformanceRow{
			StrategyID:     id,
			Timestamp:      time.Now(),
			RealizedPnL:    realized,
			UnrealizedPnL:  unrealized,
			OpenPositions:  open,
			TotalOrders:    total,
			FilledOrders:   filled,
			RejectedOrders: rejected,
		}
		if err := store.RecordStrategyPerformance(ctx, row); err != nil {
			telemetry.Warnf("paperengine: failed to record strategy performance for %s: %v", id, err)
		}
	}
}

func main() {
	cfg := config.Load()
	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))
	telemetry.Infof("paperengine: starting (mode=%s)", cfg.ExchangeMode)

	store, err := storage.Open(cfg.StoragePath)
	if err != nil {
		telemetry.Errorf("paperengine: storage open failed: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	riskLimits, err := config.LoadRiskLimits(cfg.RiskLimitsPath)
	if err != nil {
		telemetry.Errorf("paperengine: risk limits load failed: %v", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := store.RecordRiskLimits(ctx, riskLimits); err != nil {
		telemetry.Warnf("paperengine: failed to snapshot risk limits: %v", err)
	}
	gate := risk.NewGate(riskLimits)

	bus := events.NewBus()
	notifier := discord.NewNotifier(cfg.DiscordWebhookURL)

	signer, err := exchange.NewSignerFromFile(cfg.ExchangeKeyID, cfg.ExchangeKeyFile)
	if err != nil {
		telemetry.Errorf("paperengine: exchange signer load failed: %v", err)
		os.Exit(1)
	}
	if signer == nil || !signer.Enabled() {
		telemetry.Warnf("paperengine: no exchange credentials configured, running unauthenticated")
	}
	rest := exchange.NewRESTClient(cfg.ExchangeBaseURL, signer, cfg.ExchangeReadRPS)
	stream := exchange.NewStream(cfg.ExchangeWSURL, signer, bus)
	sportsClient := sportsfeed.NewClient(cfg.SportsFeedBaseURL, cfg.SportsFeedAPIKey)

	agg := aggregator.New(rest, stream, sportsClient, bus, cfg.NbaPollInterval, cfg.OddsPollInterval)

	bus.Subscribe(events.EventStateChange, func(e events.Event) error {
		sc, ok := e.Payload.(events.StateChangeEvent)
		if !ok || sc.NewPhase != "final" {
			return nil
		}
		gs, ok := agg.GetState(e.GameID)
		if !ok {
			return nil
		}
		return notifier.GameFinalAlert(ctx, gs.HomeAbbr, gs.AwayAbbr, gs.HomeScore, gs.AwayScore)
	})

	book := execution.NewBook()
	execEngine := execution.NewEngine(book, gate, agg, store)

	balanceCache := risk.NewBalanceCache(gate, money.NewCents(cfg.StartingBankrollCents), 30*time.Second)
	counters := newOrderCounters()

	recordOrder := func(o execution.SimulatedOrder) {
		counters.record(o.StrategyID, o.Status)
		if o.Status == execution.StatusFilled {
			telemetry.Metrics.OrdersFilled.Inc()
			price := 0
			if o.FillPrice != nil {
				price = int(o.FillPrice.IntPart())
			}
			if err := notifier.SignalAlert(ctx, o.StrategyKind, o.GameID, o.MarketTicker, string(o.Side), o.Quantity, price, o.SignalReason); err != nil {
				telemetry.Warnf("paperengine: discord signal alert failed: %v", err)
			}
			balanceCache.Invalidate()
			return
		}
		if o.Status == execution.StatusRejected {
			telemetry.Metrics.OrdersRejected.Inc()
			limitType := o.RejectReason
			if idx := strings.Index(o.RejectReason, ":"); idx >= 0 {
				telemetry.Metrics.RiskRejections.Inc()
				limitType = o.RejectReason[:idx]
			}
			if err := notifier.RiskRejectionAlert(ctx, o.StrategyID, o.MarketTicker, limitType, o.RejectReason); err != nil {
				telemetry.Warnf("paperengine: discord rejection alert failed: %v", err)
			}
		}
	}
	execEngine.OnFill(recordOrder)

	execEngine.OnHalt(func(orderID, reason string) {
		telemetry.Errorf("paperengine: execution halted: order=%s reason=%s", orderID, reason)
		if err := notifier.ExecutionHaltAlert(ctx, orderID, reason); err != nil {
			telemetry.Warnf("paperengine: discord halt alert failed: %v", err)
		}
	})

	strategyEngine := strategy.NewEngine(agg, cfg.StrategyEvalInterval)
	var sharpLine *strategy.SharpLine
	var strategyIDs []string
	for _, kind := range strategy.Kinds() {
		id := kind + "-1"
		sharpLineCfg := strategy.DefaultConfigFor(kind)
		if kind == strategy.KindSharpLine {
			slc := sharpLineCfg.(strategy.SharpLineConfig)
			slc.UseKellySizing = true
			slc.BankrollUnits = balanceCache.Get()
			sharpLineCfg = slc
		}
		inst, err := strategy.NewByKind(kind, id, sharpLineCfg)
		if err != nil {
			telemetry.Errorf("paperengine: failed to construct strategy %s: %v", kind, err)
			if alertErr := notifier.InvariantAlert(ctx, "strategy_registry", err.Error()); alertErr != nil {
				telemetry.Warnf("paperengine: discord invariant alert failed: %v", alertErr)
			}
			continue
		}
		if kind == strategy.KindSharpLine {
			sharpLine, _ = inst.(*strategy.SharpLine)
		}
		strategyEngine.Register(inst)
		strategyIDs = append(strategyIDs, id)
		if err := store.UpsertStrategy(ctx, storage.StrategyRecord{
			Name:      id,
			Type:      kind,
			IsEnabled: inst.Enabled(),
			Config:    sharpLineCfg,
		}); err != nil {
			telemetry.Warnf("paperengine: failed to persist strategy %s: %v", id, err)
		}
	}
	strategyEngine.Subscribe(func(sig strategy.TradeSignal) {
		telemetry.Metrics.SignalsEmitted.Inc()
		start := time.Now()
		order, err := execEngine.PlaceSignal(ctx, sig)
		if err != nil {
			telemetry.Warnf("paperengine: place signal failed (%s/%s): %v", sig.StrategyID, sig.MarketTicker, err)
		}
		if order != nil && order.Status == execution.StatusRejected {
			recordOrder(*order)
		}
		telemetry.Metrics.OrderE2ELatency.Record(time.Since(start))
	})

	if err := stream.Connect(ctx); err != nil {
		telemetry.Errorf("paperengine: exchange stream connect failed: %v", err)
		os.Exit(1)
	}

	loaded := make(map[string]bool)
	discoverAndLoad := func() {
		tickers, err := rest.ListEventsForDate(ctx, time.Now().UTC())
		if err != nil {
			telemetry.Warnf("paperengine: event discovery failed: %v", err)
			return
		}
		for _, eventTicker := range tickers {
			if loaded[eventTicker] {
				continue
			}
			gameID, err := agg.Load(ctx, eventTicker)
			if err != nil {
				telemetry.Warnf("paperengine: failed to load %s: %v", eventTicker, err)
				continue
			}
			loaded[eventTicker] = true
			telemetry.Metrics.GameWorkersActive.Inc()
			telemetry.Infof("paperengine: loaded game %s for event %s", gameID, eventTicker)
		}
	}
	discoverAndLoad()

	go strategyEngine.Run(ctx)
	if sharpLine != nil {
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					sharpLine.SetBankroll(balanceCache.Get())
				}
			}
		}()
	}
	go func() {
		ticker := time.NewTicker(discoveryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				discoverAndLoad()
			}
		}
	}()
	go func() {
		ticker := time.NewTicker(performanceRollupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rollupPerformance(ctx, store, strategyIDs, book, counters)
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	telemetry.Infof("paperengine: shutting down")
	cancel()
	if err := stream.Close(); err != nil {
		telemetry.Warnf("paperengine: exchange stream close: %v", err)
	}

	telemetry.Infof("paperengine: shutdown complete  signals=%s  filled=%s  rejected=%s  risk_rejections=%s",
		humanize.Comma(telemetry.Metrics.SignalsEmitted.Value()),
		humanize.Comma(telemetry.Metrics.OrdersFilled.Value()),
		humanize.Comma(telemetry.Metrics.OrdersRejected.Value()),
		humanize.Comma(telemetry.Metrics.RiskRejections.Value()),
	)
}
