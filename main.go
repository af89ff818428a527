package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/BatmanBruc/any2any-bot/internal/config"
	"github.com/BatmanBruc/any2any-bot/internal/conversation"
	"github.com/BatmanBruc/any2any-bot/internal/converter"
	"github.com/BatmanBruc/any2any-bot/internal/files"
	"github.com/BatmanBruc/any2any-bot/internal/handlers"
	"github.com/BatmanBruc/any2any-bot/internal/logging"
	"github.com/BatmanBruc/any2any-bot/internal/router"
	"github.com/BatmanBruc/any2any-bot/internal/scheduler"
	"github.com/BatmanBruc/any2any-bot/internal/server"
	"github.com/BatmanBruc/any2any-bot/internal/session"
	"github.com/BatmanBruc/any2any-bot/internal/telegram"
	"github.com/BatmanBruc/any2any-bot/store"
	"github.com/BatmanBruc/any2any-bot/types"
)

const webhookPath = "/webhook"

func main() {
	cfg, err := config.Load("config.env")
	if err != nil {
		logging.New(logging.Config{Service: "any2any"}).Fatal().Err(err).Msg("invalid configuration")
	}
	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "any2any"})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("bot stopped with error")
	}
	log.Info().Msg("bot stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	blobs, err := files.NewStore(cfg.StorageDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := blobs.Close(); err != nil {
			log.Error().Err(err).Msg("release stored files")
		}
	}()

	var deduper types.Deduper = store.NewMemoryDeduper(time.Hour)
	if cfg.RedisEnabled() {
		rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr(), cfg.RedisPassword, cfg.RedisDB, "any2any")
		if err != nil {
			return err
		}
		defer rdb.Close()
		deduper = store.NewRedisDeduper(rdb, store.DefaultDedupeTTL)
		log.Info().Str("addr", cfg.RedisAddr()).Msg("update dedupe via redis")
	}

	var journal types.Journal = store.NopJournal{}
	var stats server.OperationStats
	if cfg.JournalEnabled() {
		// An empty DSN is assembled from the POSTGRES_* variables.
		pg, err := store.NewPostgresJournal(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pg.Close()
		journal = pg
		stats = pg
		log.Info().Msg("operation journal enabled")
	}

	sessions := session.NewStore()
	gateway := converter.NewGateway(blobs, converter.Options{Timeout: cfg.ConversionTimeout})

	// The scheduler needs the handler and the bot needs the scheduler, so the
	// bot's default handler submits through this indirection.
	var sched *scheduler.Scheduler
	submit := submitFunc(func(ev types.Event) error { return sched.Submit(ev) })

	mw := telegram.NewMiddlewares(deduper, log)
	opts := []bot.Option{
		bot.WithDefaultHandler(telegram.Dispatcher(submit, log)),
		bot.WithMiddlewares(mw.DedupeMiddleware),
		bot.WithHTTPClient(50*time.Second, &http.Client{Timeout: 10 * time.Minute}),
		bot.WithErrorsHandler(func(err error) {
			log.Warn().Err(err).Msg("telegram api")
		}),
	}
	if cfg.WebhookSecret != "" {
		opts = append(opts, bot.WithWebhookSecretToken(cfg.WebhookSecret))
	}
	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		return err
	}

	messenger := telegram.NewMessenger(b, blobs, telegram.Options{})
	engine := conversation.NewEngine(sessions, messenger, gateway, journal, log, conversation.Config{IdleTimeout: cfg.IdleTimeout})
	h := handlers.NewHandlers(router.New(sessions), engine, messenger, gateway, journal, log, handlers.Config{PreviewPages: cfg.PreviewPages})

	sched = scheduler.NewScheduler(h.MainHandler, log, scheduler.Config{})
	sched.Start()
	sweeper := scheduler.NewSweeper(sessions, sched, cfg.IdleTimeout, log)

	var webhook http.Handler
	if cfg.Mode == config.ModeWebhook {
		webhook = b.WebhookHandler()
	}
	srv := server.New(server.Config{Port: cfg.Port}, server.NewRouter(webhookPath, webhook, sessions, blobs, stats, log), log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error {
		if cfg.Mode == config.ModeWebhook {
			if _, err := b.SetWebhook(gctx, &bot.SetWebhookParams{
				URL:         cfg.WebhookURL,
				SecretToken: cfg.WebhookSecret,
			}); err != nil {
				return err
			}
			log.Info().Str("mode", cfg.Mode).Msg("bot started")
			b.StartWebhook(gctx)
			return nil
		}
		if _, err := b.DeleteWebhook(gctx, &bot.DeleteWebhookParams{}); err != nil {
			log.Warn().Err(err).Msg("delete webhook")
		}
		log.Info().Str("mode", cfg.Mode).Msg("bot started")
		b.Start(gctx)
		return nil
	})

	err = g.Wait()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if serr := sched.Stop(stopCtx); serr != nil {
		log.Warn().Err(serr).Msg("scheduler stop")
	}
	engine.Close()
	return err
}

type submitFunc func(ev types.Event) error

func (f submitFunc) Submit(ev types.Event) error { return f(ev) }
