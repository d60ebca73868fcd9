// Package app wires the sync client together: stores picked by config,
// session manager, push channel, reconciler and the read-model HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/supportdesk/ticketsync/internal/config"
	"github.com/supportdesk/ticketsync/internal/domain"
	"github.com/supportdesk/ticketsync/internal/highlight"
	"github.com/supportdesk/ticketsync/internal/http/handler"
	"github.com/supportdesk/ticketsync/internal/http/router"
	"github.com/supportdesk/ticketsync/internal/inbox"
	"github.com/supportdesk/ticketsync/internal/observability"
	"github.com/supportdesk/ticketsync/internal/push"
	"github.com/supportdesk/ticketsync/internal/querycache"
	"github.com/supportdesk/ticketsync/internal/reconciler"
	"github.com/supportdesk/ticketsync/internal/session"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Sessions      *session.Manager
	Inbox         *inbox.Inbox
	Highlights    *highlight.Set
	Tickets       *querycache.Cache[domain.PagedResult]
	Channel       *push.Channel
	Reconciler    *reconciler.Reconciler
	Server        *http.Server
	Observability *observability.Runtime

	redis   *redis.Client
	closers []func() error
}

func New(cfg *config.Config, logger *slog.Logger, runtime *observability.Runtime) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Observability: runtime}

	if cfg.TokenStoreBackend == config.StoreBackendRedis || cfg.InboxStoreBackend == config.StoreBackendRedis {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, a.redis.Close)
	}

	tokenStore, err := a.buildTokenStore()
	if err != nil {
		return nil, err
	}
	inboxStore, err := a.buildInboxStore()
	if err != nil {
		return nil, err
	}

	a.Sessions = session.NewManager(tokenStore, logger)
	a.Inbox = inbox.New(inboxStore, cfg.InboxCap, logger)
	a.Highlights = highlight.New(cfg.HighlightTTL)
	a.Tickets = querycache.New[domain.PagedResult]()

	a.Channel = push.New(push.Config{
		URL:        cfg.HubURL,
		Token:      a.Sessions.Token,
		MinBackoff: cfg.ReconnectMinBackoff,
		MaxBackoff: cfg.ReconnectMaxBackoff,
		Logger:     logger,
	})
	a.Reconciler = reconciler.New(a.Sessions, a.Channel, a.Inbox, a.Highlights, a.Tickets, &reconciler.LogAlerter{Logger: logger}, logger)
	if cfg.InvokeTimeout > 0 {
		a.Reconciler.InvokeTimeout = cfg.InvokeTimeout
	}

	h := router.NewRouter(router.Dependencies{
		Sessions:       a.Sessions,
		Notifications:  handler.NewNotificationHandler(a.Inbox),
		Status:         handler.NewStatusHandler(a.Sessions, a.Reconciler, a.Inbox, a.Highlights),
		Highlights:     handler.NewHighlightHandler(a.Highlights),
		Topics:         handler.NewTopicHandler(a.Reconciler),
		Logger:         logger,
		EnableOTelHTTP: cfg.EnableOTelHTTP,
	})
	a.Server = &http.Server{
		Addr:              cfg.HTTPListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

func (a *App) buildTokenStore() (session.TokenStore, error) {
	switch a.Config.TokenStoreBackend {
	case config.StoreBackendRedis:
		return session.NewRedisTokenStore(a.redis, "ticketsync"), nil
	case config.StoreBackendMemory:
		return session.NewInMemoryTokenStore(), nil
	default:
		return nil, fmt.Errorf("unsupported token store backend %q", a.Config.TokenStoreBackend)
	}
}

func (a *App) buildInboxStore() (inbox.Store, error) {
	switch a.Config.InboxStoreBackend {
	case config.StoreBackendNoop:
		return inbox.NewNoopStore(), nil
	case config.StoreBackendMemory:
		return inbox.NewInMemoryStore(), nil
	case config.StoreBackendRedis:
		return inbox.NewRedisStore(a.redis, "ticketsync"), nil
	case config.StoreBackendSQLite:
		db, err := inbox.OpenSQLite(a.Config.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
		return inbox.NewGormStore(db)
	default:
		return nil, fmt.Errorf("unsupported inbox store backend %q", a.Config.InboxStoreBackend)
	}
}

// Run brings the client up and blocks until ctx is cancelled or the HTTP
// server fails. Rehydration failures degrade to an empty start, they never
// abort the process.
func (a *App) Run(ctx context.Context) error {
	if err := a.Inbox.Load(ctx); err != nil {
		a.Logger.Warn("rehydrate inbox", "error", err)
	}
	if err := a.Sessions.Restore(ctx); err != nil {
		a.Logger.Warn("restore session", "error", err)
	}
	a.Reconciler.Start(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("read-model api listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	a.Reconciler.Stop()
	a.Highlights.Stop()
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Observability != nil {
		if err := a.Observability.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
