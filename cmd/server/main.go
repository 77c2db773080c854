package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Spok95/timetable-substitutes/internal/app"
	"github.com/Spok95/timetable-substitutes/internal/config"
	"github.com/Spok95/timetable-substitutes/internal/ctxutil"
	"github.com/Spok95/timetable-substitutes/internal/db"
	"github.com/Spok95/timetable-substitutes/internal/jobs"
	"github.com/Spok95/timetable-substitutes/internal/logging"
	"github.com/Spok95/timetable-substitutes/internal/notify"
	"github.com/Spok95/timetable-substitutes/internal/observability"
	"github.com/Spok95/timetable-substitutes/internal/schedule"
	"github.com/Spok95/timetable-substitutes/internal/staff"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Closer()
	logger := lg.Base

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, version)
	if err != nil {
		logger.Warn("sentry init failed", zap.Error(err))
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctxutil.DefaultDBTimeout = cfg.DBTimeout

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer func() { _ = database.Close() }()

	if err := db.Migrate(ctx, database); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}
	store := db.NewStore(database)

	var notifier notify.Notifier = notify.NewLog(logger)
	if cfg.BotToken != "" {
		tg, err := notify.Dial(cfg.BotToken, logger)
		if err != nil {
			logger.Fatal("telegram init failed", zap.Error(err))
		}
		notifier = tg
	} else {
		logger.Info("BOT_TOKEN is empty, notifications go to the log")
	}

	planner := schedule.NewPlanner(store, schedule.DefaultRand(), logger)
	resolver := schedule.NewResolver(store, notifier, logger)
	staffSvc := staff.NewService(store, logger)

	runner := jobs.New(ctx, logger)
	reminders := jobs.NewReminders(store, notifier, cfg.Location, logger)
	runner.Every(cfg.ReminderInterval, "substitute_reminders", reminders.Run)

	srv := app.NewServer(app.Deps{
		Store:           store,
		Planner:         planner,
		Resolver:        resolver,
		Staff:           staffSvc,
		DB:              store,
		Log:             logger,
		DefaultDays:     cfg.DefaultDays,
		DefaultSessions: cfg.DefaultSessions,
	})
	httpSrv := app.StartHTTP(ctx, cfg.HTTPAddr, srv.Router(), logger)

	<-ctx.Done()
	logger.Info("shutting down")
	<-httpSrv.Done()
	runner.Wait()
}
