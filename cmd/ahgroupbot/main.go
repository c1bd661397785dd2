package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v2"

	"github.com/ahgroup/ahgroupbot/automod"
	"github.com/ahgroup/ahgroupbot/automod/antispam"
	"github.com/ahgroup/ahgroupbot/automod/dispatch"
	"github.com/ahgroup/ahgroupbot/automod/setstore"
	"github.com/ahgroup/ahgroupbot/automod/statestore"
	"github.com/ahgroup/ahgroupbot/automod/sweep"
	"github.com/ahgroup/ahgroupbot/telegram"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "ahgroupbot",
		Usage:   "moderation daemon for the ah group (keeps the chat on script)",
		Version: versioninfo.Short(),
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the bot",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "token-file",
			Usage:   "path to file holding the bot token (defaults to $CREDENTIALS_DIRECTORY/token)",
			EnvVars: []string{"AHGROUPBOT_TOKEN_FILE"},
		},
		&cli.StringFlag{
			Name:    "state-file",
			Usage:   "path of the JSON state snapshot (defaults to $STATE_DIRECTORY/state.json)",
			EnvVars: []string{"AHGROUPBOT_STATE_FILE"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL; when set, state is persisted to redis instead of disk",
			EnvVars: []string{"AHGROUPBOT_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "sticker-sets",
			Usage:   "JSON file of injected lookup sets, including the allowed-sticker IDs",
			EnvVars: []string{"AHGROUPBOT_STICKER_SETS"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics",
			Value:   ":3989",
			EnvVars: []string{"AHGROUPBOT_METRICS_LISTEN"},
		},
		&cli.Int64Flag{
			Name:    "max-outstanding",
			Usage:   "max concurrent enforcement requests to the platform",
			Value:   30,
			EnvVars: []string{"AHGROUPBOT_MAX_OUTSTANDING"},
		},
		&cli.IntFlag{
			Name:    "max-retry",
			Usage:   "max retries for a failing delete",
			Value:   5,
			EnvVars: []string{"AHGROUPBOT_MAX_RETRY"},
		},
		&cli.Float64Flag{
			Name:    "api-rate-limit",
			Usage:   "max platform requests per second",
			Value:   25,
			EnvVars: []string{"AHGROUPBOT_API_RATE_LIMIT"},
		},
		&cli.DurationFlag{
			Name:    "sweep-interval",
			Value:   15 * time.Minute,
			EnvVars: []string{"AHGROUPBOT_SWEEP_INTERVAL"},
		},
		&cli.IntFlag{
			Name:    "sweep-min-sample",
			Usage:   "minimum tracked users before the sweep acts",
			Value:   16,
			EnvVars: []string{"AHGROUPBOT_SWEEP_MIN_SAMPLE"},
		},
		&cli.Float64Flag{
			Name:    "sweep-percentile",
			Usage:   "score percentile above which a user is a suspicion outlier",
			Value:   95,
			EnvVars: []string{"AHGROUPBOT_SWEEP_PERCENTILE"},
		},
		&cli.DurationFlag{
			Name:    "sweep-grace",
			Usage:   "accounts newer than this are exempt from the sweep",
			Value:   48 * time.Hour,
			EnvVars: []string{"AHGROUPBOT_SWEEP_GRACE"},
		},
	},
	Action: runBot,
}

func runBot(cctx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	token, err := readToken(cctx.String("token-file"))
	if err != nil {
		return err
	}

	backend, err := openBackend(cctx)
	if err != nil {
		return err
	}
	store, err := statestore.Open(ctx, backend, logger)
	if err != nil {
		return err
	}

	sets := setstore.NewMemSetStore()
	if p := cctx.String("sticker-sets"); p != "" {
		if err := sets.LoadFromFileJSON(p); err != nil {
			return fmt.Errorf("loading sticker sets: %w", err)
		}
	}

	client := telegram.NewBotClient(token, cctx.Float64("api-rate-limit"), logger)
	engine := &automod.Engine{
		Logger:   logger,
		Store:    store,
		Lexicons: antispam.DefaultLexicons(),
		Sets:     sets,
		Titles:   telegram.NewStickerTitleCache(client, 1000, 24*time.Hour),
	}
	dispatcher := dispatch.NewDispatcher(client, logger, cctx.Int64("max-outstanding"), cctx.Int("max-retry"))

	sweeper := &sweep.Sweeper{
		Logger: logger,
		Store:  store,
		Sink:   dispatcher,
		Client: client,
		Config: sweep.Config{
			Interval:            cctx.Duration("sweep-interval"),
			MinSample:           cctx.Int("sweep-min-sample"),
			SuspicionPercentile: cctx.Float64("sweep-percentile"),
			GracePeriod:         cctx.Duration("sweep-grace"),
		},
	}
	go sweeper.Run(ctx)

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cctx.String("metrics-listen"), nil); err != nil {
			slog.Error("failed to start metrics endpoint", "error", err)
		}
	}()

	logger.Info("ahgroupbot started", "version", versioninfo.Short())
	return pollLoop(ctx, logger, client, engine, dispatcher, store, cctx.Int("max-retry"))
}

// pollLoop consumes updates strictly in arrival order and runs the engine
// synchronously per update; only side-effect execution is concurrent.
func pollLoop(ctx context.Context, logger *slog.Logger, client *telegram.BotClient, engine *automod.Engine, dispatcher *dispatch.Dispatcher, store *statestore.Store, maxRetry int) error {
	var offset int64
	retryCount := 0
	for {
		updates, err := client.GetUpdates(ctx, offset, 30*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down")
				return nil
			}
			pollErrors.Inc()
			if retryCount < maxRetry {
				delay := dispatch.DefaultRetryBaseDelay << retryCount
				logger.Warn("polling error, backing off", "err", err, "backoff", delay)
				retryCount++
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(delay):
				}
				continue
			}
			return fmt.Errorf("polling updates: %w", err)
		}
		retryCount = 0
		updatesReceived.Add(float64(len(updates)))

		for _, upd := range updates {
			offset = upd.ID + 1
			act := engine.ProcessUpdate(ctx, upd)
			if act.Kind != automod.ActionAccept {
				logger.Info("enforcing", "action", act.String())
			}
			if err := dispatcher.Dispatch(ctx, act); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return fmt.Errorf("dispatching action: %w", err)
			}
		}
		if len(updates) > 0 {
			// a failed save is loud: losing recent moderation state is worse
			// than a restart
			if err := store.Save(ctx); err != nil {
				return fmt.Errorf("saving state: %w", err)
			}
		}
	}
}

func readToken(path string) (string, error) {
	if path == "" {
		dir := os.Getenv("CREDENTIALS_DIRECTORY")
		if dir == "" {
			dir = "."
		}
		path = filepath.Join(dir, "token")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading bot token from %s: %w", path, err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func openBackend(cctx *cli.Context) (statestore.SnapshotBackend, error) {
	if redisURL := cctx.String("redis-url"); redisURL != "" {
		return statestore.NewRedisBackend(redisURL)
	}
	path := cctx.String("state-file")
	if path == "" {
		dir := os.Getenv("STATE_DIRECTORY")
		if dir == "" {
			dir = "."
		}
		path = filepath.Join(dir, "state.json")
	}
	return statestore.NewFileBackend(path), nil
}
