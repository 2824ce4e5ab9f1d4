package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/defidash/exchange/internal/config"
	"github.com/defidash/exchange/internal/notify"
	"github.com/defidash/exchange/internal/server"
	"github.com/defidash/exchange/internal/server/handler"
	"github.com/defidash/exchange/internal/server/ws"
	"github.com/defidash/exchange/internal/service"
)

// shutdownTimeout bounds graceful HTTP shutdown after the context is
// cancelled.
const shutdownTimeout = 10 * time.Second

// ServerMode runs the HTTP + WebSocket API.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startAPIServer(ctx, g, deps)
	a.startNotifyBridge(ctx, g, deps)

	return g.Wait()
}

// ArchiveMode runs a single archive pass over trades older than the
// configured retention and exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	if deps.Archiver == nil {
		return fmt.Errorf("archive mode: archiver is not wired (check s3 configuration)")
	}

	return a.runArchivePass(ctx, deps)
}

// FullMode runs the API server plus a periodic archive loop.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startAPIServer(ctx, g, deps)
	a.startNotifyBridge(ctx, g, deps)

	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		interval := a.cfg.Archive.Interval.Duration
		if interval <= 0 {
			interval = 24 * time.Hour
		}

		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					if err := a.runArchivePass(ctx, deps); err != nil {
						a.logger.ErrorContext(ctx, "archive pass failed",
							slog.String("error", err.Error()),
						)
					}
				}
			}
		})
	}

	return g.Wait()
}

// startAPIServer builds the service and handler graph and adds the HTTP
// server plus WebSocket hub to the errgroup.
func (a *App) startAPIServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	swapSvc := service.NewSwapService(
		deps.PoolStore, deps.SwapStore, deps.PoolCache,
		deps.LockManager, deps.SignalBus, deps.AuditStore,
		int32(a.cfg.Exchange.MaxSlippageBps), a.logger,
	)
	liquiditySvc := service.NewLiquidityService(
		deps.PoolStore, deps.PoolCache, deps.LockManager,
		deps.SignalBus, deps.AuditStore,
		service.LiquidityConfig{
			DepositToleranceBps:   int32(a.cfg.Exchange.DepositToleranceBps),
			AllowDisproportionate: a.cfg.Exchange.AllowDisproportionateDeposits,
		}, a.logger,
	)
	poolSvc := service.NewPoolService(deps.PoolStore, deps.TradeStore, deps.PoolCache, a.logger)

	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, server.Handlers{
		Health: handler.NewHealthHandler(a.logger),
		Pools:  handler.NewPoolHandler(poolSvc, liquiditySvc, a.logger),
		Swaps:  handler.NewSwapHandler(swapSvc, a.logger),
		Trades: handler.NewTradeHandler(poolSvc, a.logger),
	}, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// startNotifyBridge forwards swap and pool events from the signal bus to the
// configured notification channels.
func (a *App) startNotifyBridge(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	channels := map[string]struct {
		event string
		title string
	}{
		"swaps": {notify.EventSwapExecuted, "Swap executed"},
		"pools": {notify.EventPoolCreated, "Pool created"},
	}

	for channel, sub := range channels {
		g.Go(func() error {
			ch, err := deps.SignalBus.Subscribe(ctx, channel)
			if err != nil {
				return fmt.Errorf("notify bridge: subscribe %s: %w", channel, err)
			}
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case payload, ok := <-ch:
					if !ok {
						return nil
					}
					if err := deps.Notifier.Notify(ctx, sub.event, sub.title, summarizeEvent(payload)); err != nil {
						a.logger.WarnContext(ctx, "notify bridge: delivery failed",
							slog.String("channel", channel),
							slog.String("error", err.Error()),
						)
					}
				}
			}
		})
	}
}

// summarizeEvent renders an event payload as a compact human-readable line
// for notification bodies.
func summarizeEvent(payload []byte) string {
	var fields map[string]string
	if err := json.Unmarshal(payload, &fields); err != nil {
		return string(payload)
	}

	msg := ""
	for _, key := range []string{"trade_id", "pool_id", "token_in", "token_out", "amount_in", "amount_out", "token_a", "token_b"} {
		if v, ok := fields[key]; ok && v != "" {
			if msg != "" {
				msg += ", "
			}
			msg += key + "=" + v
		}
	}
	if msg == "" {
		return string(payload)
	}
	return msg
}

// runArchivePass archives trades older than the retention cutoff and
// optionally prunes them from Postgres once the upload has succeeded.
func (a *App) runArchivePass(ctx context.Context, deps *Dependencies) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -archiveRetentionDays(a.cfg))

	count, err := deps.Archiver.ArchiveTrades(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive pass: %w", err)
	}

	a.logger.InfoContext(ctx, "archive pass complete",
		slog.Int64("archived", count),
		slog.Time("cutoff", cutoff),
	)

	if count > 0 && a.cfg.Archive.DeleteAfterUpload {
		deleted, err := deps.TradeStore.DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("archive pass: prune archived trades: %w", err)
		}
		a.logger.InfoContext(ctx, "archived trades pruned",
			slog.Int64("deleted", deleted),
		)
	}

	return nil
}

func archiveRetentionDays(cfg *config.Config) int {
	if cfg.Archive.RetentionDays > 0 {
		return cfg.Archive.RetentionDays
	}
	return 90
}
