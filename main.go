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

	"github.com/isdelr/reminder-be/internal/api"
	"github.com/isdelr/reminder-be/internal/auth"
	"github.com/isdelr/reminder-be/internal/clock"
	"github.com/isdelr/reminder-be/internal/config"
	"github.com/isdelr/reminder-be/internal/database"
	"github.com/isdelr/reminder-be/internal/logger"
	"github.com/isdelr/reminder-be/internal/monitoring"
	"github.com/isdelr/reminder-be/internal/notify"
	"github.com/isdelr/reminder-be/internal/services"
	"github.com/isdelr/reminder-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (or set REMINDER_CONFIG)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	loc, _ := cfg.Location()

	// Set up database
	db, err := database.New(cfg.Database.Path, cfg.Database.BusyTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	eventService := services.NewEventService(db)
	userService := services.NewUserService(db)
	reminderService := services.NewReminderService(db, eventService)
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// Delivery: mail when SMTP is configured, otherwise the log; always mirrored in-app.
	var primary notify.Channel = notify.LogChannel{}
	if cfg.SMTP.Enabled() {
		primary = notify.NewSMTPChannel(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	} else {
		log.Warn().Msg("SMTP is not configured; notifications will only be logged and pushed in-app")
	}
	channel := notify.Fanout(notify.RateLimited(primary, cfg.Notify.RatePerSec), notify.NewHubChannel(hub))
	renderer := notify.NewRenderer(cfg.Notify.AppName, cfg.Notify.DashboardURL, loc)
	dispatcher := notify.NewDispatcher(channel, renderer, cfg.Notify.SendTimeout)

	// Set up the due-window scanner and the loop that drives it
	scanner := monitoring.NewScanner(reminderService, dispatcher, eventService, clock.System{}, monitoring.ScannerOptions{
		Lookahead: cfg.Scheduler.Lookahead,
		CatchUp:   cfg.Scheduler.CatchUp,
		Workers:   cfg.Scheduler.Workers,
	})
	scheduler, err := monitoring.NewScheduler(scanner, eventService, monitoring.SchedulerOptions{
		Spec:                   cfg.Scheduler.Spec,
		MaxConsecutiveFailures: cfg.Scheduler.MaxConsecutiveFailures,
		OnFatal: func(err error) {
			log.Fatal().Err(err).Msg("Reminder scheduler cannot make progress")
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	// Not tied to the signal context so Stop can let an in-flight tick finish its sends.
	scheduler.Start(context.Background())

	// Set up router
	router := api.NewRouter(api.Deps{
		Users:          userService,
		Reminders:      reminderService,
		Events:         eventService,
		Tokens:         tokens,
		Mailer:         dispatcher,
		Hub:            hub,
		DB:             db,
		Ticks:          scheduler,
		Channel:        dispatcher.Channel(),
		EmailEnabled:   cfg.SMTP.Enabled(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SecureCookies:  cfg.IsProduction(),
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("channel", dispatcher.Channel()).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	scheduler.Stop() // lets an in-flight tick finish
	hub.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
