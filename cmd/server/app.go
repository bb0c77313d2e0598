package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/practice-booking/internal/booking"
	"github.com/iliyamo/practice-booking/internal/calendar"
	"github.com/iliyamo/practice-booking/internal/config"
	"github.com/iliyamo/practice-booking/internal/database"
	"github.com/iliyamo/practice-booking/internal/logging"
	"github.com/iliyamo/practice-booking/internal/publisher"
	"github.com/iliyamo/practice-booking/internal/repository"
	"github.com/iliyamo/practice-booking/internal/sessiontype"
)

// app is what every command shares: configuration, logger, store and
// the engine built on top of them.
type app struct {
	cfg     config.Config
	policy  config.Policy
	log     *zap.Logger
	db      *sql.DB
	clients *repository.ClientRepo
	engine  *booking.Engine
	closers []func()
}

// bootstrap loads configuration and opens the store.  With sideEffects
// the engine gets the calendar synchronizer and the notification
// dispatcher; administrative commands run without them.
func bootstrap(ctx context.Context, sideEffects bool) (*app, error) {
	cfg := config.Load()
	log, err := logging.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, func() { _ = log.Sync() })

	policy, types, err := config.LoadPolicy()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("load policy: %w", err)
	}
	a.policy = policy
	registry, err := sessiontype.New(types)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("session types: %w", err)
	}

	db, err := database.Open(cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, func() { _ = db.Close() })
	a.clients = repository.NewClientRepo(db)

	opts := booking.Options{
		Bookings:          repository.NewBookingRepo(db),
		Credits:           repository.NewCreditRepo(db),
		Clients:           a.clients,
		Types:             registry,
		Policy:            policy,
		Logger:            log.Named("engine"),
		SideEffectTimeout: cfg.SideEffectTimeout,
		PracticeEmail:     cfg.NotifyEmail,
	}
	if sideEffects {
		opts.Calendar = a.calendar(ctx)
		opts.Notifier = a.dispatcher()
	}
	a.engine = booking.New(opts)
	return a, nil
}

// calendar returns the Google synchronizer when credentials are
// configured and a logging no-op otherwise.
func (a *app) calendar(ctx context.Context) booking.CalendarSync {
	log := a.log.Named("calendar")
	if a.cfg.CalendarCredentials == "" {
		log.Info("calendar sync disabled")
		return calendar.Nop{Log: log}
	}
	g, err := calendar.NewGoogle(ctx, a.cfg.CalendarCredentials, a.cfg.CalendarID, a.policy.Location, log)
	if err != nil {
		log.Error("google calendar unavailable, continuing without sync", zap.Error(err))
		return calendar.Nop{Log: log}
	}
	return g
}

// dispatcher returns the RabbitMQ publisher when a broker is configured.
// Without one, notifications are only logged.
func (a *app) dispatcher() booking.Dispatcher {
	log := a.log.Named("notify")
	if a.cfg.RabbitURL == "" {
		log.Info("no broker configured, notifications are logged only")
		return publisher.LogDispatcher{Log: log}
	}
	p, err := publisher.NewPublisher(a.cfg.RabbitURL, a.cfg.NotifyQueue, log)
	if err != nil {
		log.Error("rabbitmq unavailable, notifications are logged only", zap.Error(err))
		return publisher.LogDispatcher{Log: log}
	}
	a.closers = append(a.closers, func() { _ = p.Close() })
	return p
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
