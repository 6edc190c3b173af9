// Package server initializes and runs the document server: it opens the
// document store, optionally follows the database change feed and serves
// the gRPC endpoint until a termination signal arrives.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/commissionsync/internal/logging"
	"github.com/dmitrijs2005/commissionsync/internal/remote/memstore"
	"github.com/dmitrijs2005/commissionsync/internal/remote/pgstore"
	"github.com/dmitrijs2005/commissionsync/internal/server/config"

	gs "github.com/dmitrijs2005/commissionsync/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	store  gs.Backend
	pg     *pgstore.Store
}

const openTimeout = 30 * time.Second

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, slog.LevelInfo)
	return newApp(c, logger)
}

func newApp(c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger}

	if c.DatabaseDSN == "" {
		logger.Warn(context.Background(), "no database configured, documents are kept in memory")
		app.store = memstore.New()
		return app, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	pg, err := pgstore.Open(ctx, c.DatabaseDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.pg = pg
	app.store = pg
	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s, err := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.store, app.config.SecretKey)

	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	} else {

		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}
}

// startListener follows the change feed and reconnects after failures, so
// subscriptions broken by a lost connection can be reopened by clients.
func (app *App) startListener(ctx context.Context) {
	backoff := time.Second
	for {
		err := app.pg.Listen(ctx, app.config.DatabaseDSN)
		if ctx.Err() != nil {
			return
		}
		app.logger.Error(ctx, "change feed failed", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	if app.pg != nil && app.config.ListenNotify {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startListener(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if app.pg != nil {
		if err := app.pg.Close(); err != nil {
			app.logger.Error(ctx, "db close error", "error", err)
		}
	}
	app.logger.Info(ctx, "Stopped")
}
