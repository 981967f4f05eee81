// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/Shivanand-hulikatti/event-admission/internal/clock"
	"github.com/Shivanand-hulikatti/event-admission/internal/config"
	"github.com/Shivanand-hulikatti/event-admission/internal/database"
	"github.com/Shivanand-hulikatti/event-admission/internal/dispatch"
	"github.com/Shivanand-hulikatti/event-admission/internal/handler"
	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/Shivanand-hulikatti/event-admission/internal/notify"
	"github.com/Shivanand-hulikatti/event-admission/internal/passport"
	"github.com/Shivanand-hulikatti/event-admission/internal/qrcode"
	"github.com/Shivanand-hulikatti/event-admission/internal/repository"
	"github.com/Shivanand-hulikatti/event-admission/internal/repository/memory"
	"github.com/Shivanand-hulikatti/event-admission/internal/service"
)

const qrSize = 256

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a config file (default: ./config.yaml if present)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	// ── 1. Storage ────────────────────────────────────────────────────────
	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	// ── 2. Side-effect plumbing ───────────────────────────────────────────
	clk := clock.NewSystem()
	runner := dispatch.NewRunner(cfg.Dispatch.Workers, cfg.Dispatch.QueueSize, log)

	sender, err := notify.NewSender(cfg.Notify, cfg.Collaborator.Timeout, log)
	if err != nil {
		return fmt.Errorf("notification sender: %w", err)
	}
	defer sender.Close()

	codes := qrcode.New(qrSize)
	notifier := notify.NewNotifier(notify.Deps{
		Sender:    sender,
		Runner:    runner,
		Events:    b.store.Events,
		Directory: b.participants,
		Codes:     codes,
		Clock:     clk,
		Timeout:   cfg.Collaborator.Timeout,
		Log:       log,
	})

	passports := passport.NewService(b.badges, b.store.Events, clk, log)
	var issuer service.BadgeIssuer = passports
	if cfg.Passport.BaseURL != "" {
		issuer = passport.NewClient(cfg.Passport.BaseURL, &http.Client{Timeout: cfg.Collaborator.Timeout})
	}

	policy := service.RetryPolicy{
		MaxAttempts:     cfg.Promotion.MaxAttempts,
		InitialInterval: cfg.Promotion.InitialInterval,
		MaxInterval:     cfg.Promotion.MaxInterval,
		Timeout:         cfg.Collaborator.Timeout,
	}

	// ── 3. Services and router ────────────────────────────────────────────
	promotion := service.NewPromotionService(b.store, notifier, clk, log)
	trigger := service.NewPromotionTrigger(promotion, runner, policy, log)

	h := handler.NewAdmissionHandler(handler.Services{
		Admission:    service.NewAdmissionService(b.store, notifier, clk, log),
		Promotion:    promotion,
		Cancellation: service.NewCancellationService(b.store, notifier, trigger, clk, log),
		CheckIn:      service.NewCheckInService(b.store.Registrations, notifier, issuer, runner, policy, clk, log),
		Query:        service.NewQueryService(b.store, codes),
		Passport:     passports,
	}, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.NewRouter(h, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// ── 4. Serve until signalled ──────────────────────────────────────────
	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Server.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	if err := runner.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("background jobs still running at exit")
	}
	log.Info("server stopped")
	return nil
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}
	return log
}

type backend struct {
	store        service.Store
	participants notify.Directory
	badges       passport.BadgeStore
	close        func()
}

func openBackend(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*backend, error) {
	if cfg.Store.Driver == "memory" {
		mem := memory.New()
		seed(mem, cfg.Seed, log)
		log.Warn("using in-memory store; state is lost on restart")
		return &backend{
			store:        service.Store{Tx: mem, Events: mem.Events(), Registrations: mem.Registrations(), Waitlist: mem.Waitlist()},
			participants: mem.Participants(),
			badges:       mem.Badges(),
			close:        func() {},
		}, nil
	}

	pool, err := database.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.Info("connected to PostgreSQL")

	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &backend{
		store: service.Store{
			Tx:            repository.NewTransactor(pool),
			Events:        repository.NewEventRepository(pool),
			Registrations: repository.NewRegistrationRepository(pool),
			Waitlist:      repository.NewWaitlistRepository(pool),
		},
		participants: repository.NewParticipantRepository(pool),
		badges:       repository.NewBadgeRepository(pool),
		close:        pool.Close,
	}, nil
}

func seed(mem *memory.Store, cfg config.SeedConfig, log logrus.FieldLogger) {
	for _, e := range cfg.Events {
		mem.PutEvent(model.Event{
			ID:              e.ID,
			Title:           e.Title,
			Location:        e.Location,
			StartTime:       e.StartTime,
			Capacity:        e.Capacity,
			Status:          model.EventStatus(e.Status),
			WaitlistEnabled: e.WaitlistEnabled,
		})
	}
	for _, p := range cfg.Participants {
		mem.PutParticipant(model.Participant{ID: p.ID, Name: p.Name, Email: p.Email})
	}
	log.WithFields(logrus.Fields{
		"events":       len(cfg.Events),
		"participants": len(cfg.Participants),
	}).Info("memory store seeded")
}
