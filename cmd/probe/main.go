// probe runs one-shot tracker operations against the live Polymarket APIs.
//
//	probe resolve <address|@handle|profile-url>
//	probe portfolio <wallet>
//	probe poll [-n 2] [-every 15s] <wallet>
//	probe debug <wallet>
//	probe watch [-url ws://localhost:8080/ws] [-events change] [wallet...]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ricardocisco/polymarket-tracker/pkg/config"
	"github.com/ricardocisco/polymarket-tracker/pkg/logging"
	"github.com/ricardocisco/polymarket-tracker/pkg/polymarket/clob"
	"github.com/ricardocisco/polymarket-tracker/pkg/polymarket/data"
	"github.com/ricardocisco/polymarket-tracker/pkg/polymarket/gamma"
	"github.com/ricardocisco/polymarket-tracker/pkg/polymarket/profile"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/portfolio"
	"github.com/ricardocisco/polymarket-tracker/pkg/tracker/streaming"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: probe [-config file] [-v] <resolve|portfolio|poll|debug|watch> [flags] <wallet>")
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	verbose := flag.Bool("v", false, "Debug logging to stderr")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath, *configPath == "")
	if err != nil {
		fatal(err)
	}
	cfg.Log.Level = "warn"
	if *verbose {
		cfg.Log.Level = "debug"
	}
	cfg.Log.Encoding = "console"
	cfg.Log.Output = "stderr"
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fatal(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	u := cfg.Upstream
	dataClient := data.NewClient(data.WithBaseURL(u.DataURL))
	tr := tracker.New(nil, tracker.Deps{
		Positions:   dataClient,
		DataMarkets: dataClient,
		CLOB:        clob.NewPublicClient(clob.WithCLOBBaseURL(u.CLOBURL)),
		Gamma:       gamma.NewClient(gamma.WithBaseURL(u.GammaURL)),
		Pages:       profile.NewClient(profile.WithBaseURL(u.ProfileURL)),
	}, tracker.WithLogger(logger))

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "resolve":
		err = resolve(ctx, tr, args)
	case "portfolio":
		err = showPortfolio(ctx, tr, args)
	case "poll":
		err = poll(ctx, tr, logger, args)
	case "debug":
		err = debug(ctx, tr, args)
	case "watch":
		err = watch(ctx, tr, logger, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "probe:", err)
	os.Exit(1)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func wallet(ctx context.Context, tr *tracker.Tracker, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expected one wallet argument, got %d", len(args))
	}
	address, ok := tr.ResolveIdentity(ctx, args[0])
	if !ok {
		return "", fmt.Errorf("could not resolve %q", args[0])
	}
	return address, nil
}

func resolve(ctx context.Context, tr *tracker.Tracker, args []string) error {
	address, err := wallet(ctx, tr, args)
	if err != nil {
		return err
	}
	username, _ := tr.Username(ctx, address)
	return printJSON(map[string]string{"address": address, "username": username})
}

func showPortfolio(ctx context.Context, tr *tracker.Tracker, args []string) error {
	address, err := wallet(ctx, tr, args)
	if err != nil {
		return err
	}
	positions, err := tr.GetPortfolio(ctx, address)
	if err != nil {
		return err
	}
	for _, p := range positions {
		fmt.Printf("%-60.60s %-6s %10.2f @ %.3f -> %.3f  $%9.2f  %+.2f%%\n",
			p.Title, p.Outcome, p.Size, p.EntryPrice, p.CurrentPrice, p.CurrentValue, p.PnLPercent)
	}
	s := portfolio.Summarize(positions)
	fmt.Printf("\n%d positions in %d markets, value $%.2f, invested $%.2f, pnl $%.2f (%+.2f%%)\n",
		s.Positions, s.Markets, s.TotalValue, s.TotalInvested, s.TotalPnL, s.PnLPercent)
	return nil
}

// poll takes a baseline and then prints every change seen over n further polls.
func poll(ctx context.Context, tr *tracker.Tracker, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("poll", flag.ContinueOnError)
	n := fs.Int("n", 2, "Polls after the baseline")
	every := fs.Duration("every", 15*time.Second, "Delay between polls")
	if err := fs.Parse(args); err != nil {
		return err
	}
	address, err := wallet(ctx, tr, fs.Args())
	if err != nil {
		return err
	}

	if _, err := tr.PollOnce(ctx, address); err != nil {
		return fmt.Errorf("baseline: %w", err)
	}
	logger.Info("baseline stored", zap.String("wallet", address))

	for i := 0; i < *n; i++ {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(*every):
		}
		events, err := tr.PollOnce(ctx, address)
		if err != nil {
			fmt.Fprintln(os.Stderr, "poll failed:", err)
			continue
		}
		for _, e := range events {
			if err := printJSON(e); err != nil {
				return err
			}
		}
	}
	return nil
}

func debug(ctx context.Context, tr *tracker.Tracker, args []string) error {
	address, err := wallet(ctx, tr, args)
	if err != nil {
		return err
	}
	return printJSON(tr.Probe(ctx, address))
}

// watch follows a running trackerd's change stream.
func watch(ctx context.Context, tr *tracker.Tracker, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	url := fs.String("url", "ws://localhost:8080/ws", "trackerd stream endpoint")
	events := fs.String("events", "change", "Comma-separated event types, empty for all")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var wallets []string
	for _, in := range fs.Args() {
		address, ok := tr.ResolveIdentity(ctx, in)
		if !ok {
			return fmt.Errorf("could not resolve %q", in)
		}
		wallets = append(wallets, address)
	}
	var types []string
	if *events != "" {
		types = strings.Split(*events, ",")
	}

	sub := streaming.NewSubscriber(*url,
		streaming.WithFilter(types, wallets),
		streaming.WithSubscriberLogger(logger),
	)
	return sub.Run(ctx, func(f streaming.Frame) {
		if f.Type == streaming.EventTypeHeartbeat {
			return
		}
		if err := printJSON(f); err != nil {
			logger.Warn("print frame", zap.Error(err))
		}
	})
}
