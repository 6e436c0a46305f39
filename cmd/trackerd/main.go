// trackerd watches tracked Polymarket wallets and posts their position
// changes to Discord, a webhook and the /ws stream.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/ricardocisco/polymarket-tracker/pkg/api"
	"github.com/ricardocisco/polymarket-tracker/pkg/cache"
	"github.com/ricardocisco/polymarket-tracker/pkg/config"
	"github.com/ricardocisco/polymarket-tracker/pkg/logging"
	"github.com/ricardocisco/polymarket-tracker/pkg/notify"
	"github.com/ricardocisco/polymarket-tracker/pkg/polymarket/clob"
	"github.com/ricardocisco/polymarket-tracker/pkg/polymarket/data"
	"github.com/ricardocisco/polymarket-tracker/pkg/polymarket/gamma"
	"github.com/ricardocisco/polymarket-tracker/pkg/polymarket/profile"
	"github.com/ricardocisco/polymarket-tracker/pkg/store"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/market"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/metrics"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/portfolio"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/scheduler"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/streaming"
)

var (
	configPath = flag.String("config", "", "Path to a YAML config file")
	envOnly    = flag.Bool("env-only", false, "Ignore the config file and read only TRACKER_* variables")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "trackerd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath, *envOnly)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.Default()

	var opts []tracker.Option
	opts = append(opts, tracker.WithLogger(logger.Named("tracker")), tracker.WithMetrics(m))
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, using in-memory caches", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			p := cfg.Redis.KeyPrefix
			opts = append(opts, tracker.WithCaches(tracker.Caches{
				Metadata:  cache.NewRedis[market.Metadata](rdb, p+"meta:"),
				Outcomes:  cache.NewRedis[market.OutcomeTokens](rdb, p+"outcomes:"),
				Portfolio: cache.NewRedis[[]portfolio.Position](rdb, p+"portfolio:"),
				Usernames: cache.NewRedis[string](rdb, p+"username:"),
			}))
			logger.Info("redis caches enabled", zap.String("addr", cfg.Redis.Addr))
		}
	}

	tr := tracker.New(trackerConfig(cfg.Tracker), upstreamDeps(cfg.Upstream), opts...)

	hub := streaming.NewHub(streaming.WithLogger(logger.Named("ws")))
	notifiers := notify.Multi{hub}
	if cfg.Discord.Token != "" {
		session, err := notify.NewDiscordSession(cfg.Discord.Token)
		if err != nil {
			return err
		}
		notifiers = append(notifiers, notify.NewDiscord(session, logger.Named("discord")))
	}
	if cfg.Webhook.URL != "" {
		notifiers = append(notifiers, notify.NewWebhook(cfg.Webhook.URL, cfg.Webhook.Timeout))
	}

	sched := scheduler.New(scheduler.Config{
		Interval:      cfg.Tracker.SweepInterval,
		WalletPause:   cfg.Tracker.WalletPause,
		DeliveryPause: cfg.Tracker.DeliveryPause,
		DedupTTL:      cfg.Tracker.DedupTTL,
	}, tr, st, notifiers,
		scheduler.WithLogger(logger.Named("scheduler")),
		scheduler.WithMetrics(m),
		scheduler.WithStatusListener(func(s scheduler.Status) {
			if s.Phase == scheduler.PhaseIdle {
				hub.BroadcastStatus(s)
			}
		}),
	)

	router := api.NewRouter(api.RouterDeps{
		Tracker:   tr,
		Store:     st,
		Scheduler: sched,
		Registry:  m.Registry(),
		Stream:    hub.ServeWS,
		Logger:    logger.Named("http"),
		Debug:     cfg.Server.Mode == "debug",
	})
	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg conc.WaitGroup
	wg.Go(func() { hub.Run(ctx) })
	wg.Go(func() {
		logger.Info("http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
			stop()
		}
	})

	if err := sched.Start(ctx); err != nil {
		stop()
		wg.Wait()
		return err
	}
	// first sweep right away instead of waiting a full interval
	wg.Go(func() { sched.Sweep(ctx) })

	<-ctx.Done()
	logger.Info("shutting down")

	sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	wg.Wait()
	return nil
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Store, func(), error) {
	if cfg.DB.DSN == "" {
		logger.Warn("no database configured, subscriptions are kept in memory")
		return store.NewMemory(), func() {}, nil
	}
	g, err := store.Open(ctx, cfg.DB, logger.Named("store"))
	if err != nil {
		return nil, nil, err
	}
	return g, func() { _ = g.Close() }, nil
}

func upstreamDeps(u config.UpstreamConfig) tracker.Deps {
	dataClient := data.NewClient(data.WithBaseURL(u.DataURL), data.WithRateLimit(u.RateLimit, u.Burst))
	return tracker.Deps{
		Positions:   dataClient,
		DataMarkets: dataClient,
		CLOB:        clob.NewPublicClient(clob.WithCLOBBaseURL(u.CLOBURL), clob.WithCLOBRateLimit(u.RateLimit, u.Burst)),
		Gamma:       gamma.NewClient(gamma.WithBaseURL(u.GammaURL), gamma.WithRateLimit(u.RateLimit, u.Burst)),
		Pages:       profile.NewClient(profile.WithBaseURL(u.ProfileURL)),
	}
}

func trackerConfig(t config.TrackerConfig) *tracker.Config {
	c := tracker.DefaultConfig()
	c.MetadataTTL = t.MetadataTTL
	c.PortfolioTTL = t.PortfolioTTL
	c.UsernameTTL = t.UsernameTTL
	c.RecordPause = t.RecordPause
	c.EnrichPause = t.EnrichPause
	c.QuoteTimeout = t.QuoteTimeout
	c.PositionsTimeout = t.FetchTimeout
	c.ProfileTimeout = t.ProfileTimeout
	return c
}
