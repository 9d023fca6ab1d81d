package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/jmoiron/sqlx"

	"shelfkeeper/internal/auth"
	"shelfkeeper/internal/catalog"
	"shelfkeeper/internal/circulation"
	"shelfkeeper/internal/config"
	"shelfkeeper/internal/eventlog"
	"shelfkeeper/internal/httpapi"
	"shelfkeeper/internal/logging"
	"shelfkeeper/internal/membership"
	"shelfkeeper/internal/notification"
	"shelfkeeper/internal/reporting"
	"shelfkeeper/internal/storage"
	"shelfkeeper/internal/telemetry"
)

const serviceName = "shelfkeeper"

// app is the wired object graph shared by the commands.
type app struct {
	cfg       *config.Config
	logger    logging.Logger
	db        *sql.DB
	telemetry *telemetry.Provider
	tokens    *auth.TokenIssuer

	catalog       catalog.Service
	membership    membership.Service
	circulation   circulation.Service
	notifications notification.Service
	reporting     reporting.Service
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logging.New(os.Stderr, cfg.LogLevel)

	tp, err := telemetry.Setup(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}

	db, err := storage.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	engine := circulation.NewService(storage.NewStore(db), logger.With("component", "circulation"),
		circulation.WithMeter(tp.Meter("shelfkeeper/circulation")))

	a := &app{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		telemetry: tp,
		tokens:    auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL),

		catalog: catalog.NewService(catalog.NewPostgresRepository(db), engine, logger.With("component", "catalog")),
		membership: membership.NewService(membership.NewPostgresRepository(db), logger.With("component", "membership"),
			membership.WithRateLimit(cfg.AuthRatePerMinute, cfg.AuthRateBurst)),
		circulation:   engine,
		notifications: notification.NewService(notification.NewPostgresRepository(db)),
		reporting: reporting.NewService(
			reporting.NewPostgresRepository(sqlx.NewDb(db, cfg.DatabaseDriver)),
			engine,
			eventlog.New(db),
			logger.With("component", "reporting"),
		),
	}
	return a, nil
}

func (a *app) router() http.Handler {
	return httpapi.NewRouter(httpapi.Handlers{
		Catalog:       catalog.NewHandler(a.catalog),
		Membership:    membership.NewHandler(a.membership, a.tokens),
		Circulation:   circulation.NewHandler(a.circulation),
		Notifications: notification.NewHandler(a.notifications),
		Reporting:     reporting.NewHandler(a.reporting),
	}, httpapi.Options{
		Logger:         a.logger,
		Verifier:       a.tokens,
		Metrics:        a.telemetry.MetricsHandler(),
		RequestTimeout: a.cfg.RequestTimeout,
	})
}

func (a *app) Close(ctx context.Context) error {
	return errors.Join(a.db.Close(), a.telemetry.Shutdown(ctx))
}

// withApp builds the app, runs fn and tears it down.
func withApp(ctx context.Context, cfg *config.Config, fn func(ctx context.Context, a *app) error) (err error) {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(logging.WithLogger(ctx, a.logger), a)
}
