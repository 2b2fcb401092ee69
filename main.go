package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"halisaha-bot/api"
	"halisaha-bot/availability"
	"halisaha-bot/checker"
	"halisaha-bot/config"
	"halisaha-bot/handlers"
	"halisaha-bot/health"
	"halisaha-bot/notify"
	"halisaha-bot/session"
	"halisaha-bot/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	loc := cfg.Location()
	logger.Info("timezone set", "timezone", loc.String(), "now", time.Now().In(loc).Format(time.DateTime))

	// --- Redis ---
	store, err := storage.Open(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer store.Close()
	logger.Info("connected to redis")

	// --- Telegram ---
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("authorizing bot: %w", err)
	}
	bot.Debug = cfg.BotDebug
	logger.Info("authorized on account", "username", bot.Self.UserName)

	// --- Wiring ---
	redirect := handlers.NewRedirect(bot, logger)
	sessions := session.NewProvider(store, redirect, logger)
	client := api.New(cfg.APIBaseURL, cfg.APITimeout, sessions, logger)
	resolver := availability.NewResolver(client, availability.NewWindow(cfg.OpenHour, cfg.CloseHour), cfg.SlotMinutes, loc)

	handler := handlers.New(handlers.Deps{
		Bot:      bot,
		API:      client,
		Store:    store,
		Guard:    session.NewGuard(store, logger),
		Sessions: sessions,
		Redirect: redirect,
		Toast:    notify.NewToaster(bot, cfg.ToastDuration, logger),
		Resolver: resolver,
		Location: loc,
		Logger:   logger,
	})

	poller := checker.New(bot, store, client, cfg.PollInterval, logger)

	srv := health.NewServer(cfg.HTTPAddr, logger, health.NewHandler(logger, map[string]health.Checker{
		"redis":   health.CheckerFunc(store.Ping),
		"backend": health.Backend{URL: cfg.APIBaseURL, Client: &http.Client{Timeout: 3 * time.Second}},
	}))

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down health server")
		return srv.Shutdown(context.Background())
	})

	g.Go(func() error {
		return poller.Run(gctx)
	})

	g.Go(func() error {
		return serveUpdates(gctx, bot, handler, logger)
	})

	return g.Wait()
}

// serveUpdates long-polls Telegram and handles each update in its own
// goroutine. It returns once ctx is done and in-flight updates finished.
func serveUpdates(ctx context.Context, bot *tgbotapi.BotAPI, h *handlers.Handler, logger *slog.Logger) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	logger.Info("bot is running")

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			logger.Info("stopped receiving updates")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			wg.Go(func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("update handler panicked", "update_id", update.UpdateID, "panic", r)
					}
				}()
				h.HandleUpdate(ctx, update)
			})
		}
	}
}
