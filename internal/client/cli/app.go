package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/commissionsync/internal/client/autosave"
	"github.com/dmitrijs2005/commissionsync/internal/client/config"
	"github.com/dmitrijs2005/commissionsync/internal/client/identity"
	"github.com/dmitrijs2005/commissionsync/internal/client/livesync"
	"github.com/dmitrijs2005/commissionsync/internal/client/localstore"
	"github.com/dmitrijs2005/commissionsync/internal/client/syncsvc"
	"github.com/dmitrijs2005/commissionsync/internal/common"
	"github.com/dmitrijs2005/commissionsync/internal/filex"
	"github.com/dmitrijs2005/commissionsync/internal/logging"
	"github.com/dmitrijs2005/commissionsync/internal/remote"
	"github.com/dmitrijs2005/commissionsync/internal/remote/grpcstore"
)

type Mode string

const (
	ModeOffline  Mode = "offline"
	ModeOnline   Mode = "online"
	ModeDisabled Mode = "disabled"
)

const pingTimeout = 3 * time.Second

// remoteStore is the document store the client talks to.
type remoteStore interface {
	remote.Store
	remote.Pinger
}

type App struct {
	config *config.Config
	logger logging.Logger

	local    *localstore.Store
	remote   remoteStore
	session  *identity.Session
	autosave *autosave.Coordinator
	projects *syncsvc.ProjectService
	fixtures *syncsvc.FixtureService
	orgs     *syncsvc.OrgService
	live     *livesync.Center

	reader  *bufio.Reader
	out     io.Writer
	closers []func() error

	mu   sync.Mutex
	mode Mode

	// ids of the last listings, for numeric references
	lastProjects []string
	lastFixtures []string
	// project selected by the last fixture listing
	currentProject string
}

// NewApp opens the local store, prepares the remote client and restores a
// previous session. A token file from the config replaces the stored token.
func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()
	logger := logging.NewTextLogger(os.Stderr, slog.LevelWarn)

	path, err := filex.EnsureParentDir(c.DatabasePath)
	if err != nil {
		return nil, err
	}
	local, err := localstore.Open(ctx, path, logger)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	session := identity.NewSession(local.Metadata())
	rs, err := grpcstore.Dial(c.ServerEndpointAddr, session.Token, logger)
	if err != nil {
		_ = local.Close()
		return nil, err
	}

	a := newApp(c, local, rs, session, logger, bufio.NewReader(os.Stdin), os.Stdout)
	a.closers = append(a.closers, rs.Close)

	if err := a.restoreSession(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

func newApp(c *config.Config, local *localstore.Store, rs remoteStore, session *identity.Session,
	logger logging.Logger, reader *bufio.Reader, out io.Writer) *App {

	syncOpts := []syncsvc.Option{syncsvc.WithDriftTolerance(c.DriftTolerance)}
	projects := syncsvc.NewProjectService(local, rs, session, logger, syncOpts...)
	fixtures := syncsvc.NewFixtureService(local, rs, session, logger, syncOpts...)

	return &App{
		config:   c,
		logger:   logger,
		local:    local,
		remote:   rs,
		session:  session,
		autosave: autosave.New(local, session, logger, autosave.WithInterval(c.AutosaveInterval)),
		projects: projects,
		fixtures: fixtures,
		orgs:     syncsvc.NewOrgService(local, rs, session, logger, syncOpts...),
		live:     livesync.New(rs, projects, fixtures, logger, livesync.WithDebounce(c.PullDebounceInterval)),
		reader:   reader,
		out:      out,
		closers:  []func() error{local.Close},
		mode:     ModeDisabled,
	}
}

func (a *App) restoreSession(ctx context.Context) error {
	if a.config.TokenFile != "" {
		raw, err := os.ReadFile(a.config.TokenFile)
		if err != nil {
			return fmt.Errorf("read token file: %w", err)
		}
		return a.session.Login(ctx, strings.TrimSpace(string(raw)))
	}
	_, err := a.session.Restore(ctx)
	return err
}

func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// setMode records the connectivity mode and reports whether it changed.
func (a *App) setMode(mode Mode) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode == mode {
		return false
	}
	a.mode = mode
	a.logger.Info(context.Background(), fmt.Sprintf("Switched to %s mode", mode))
	return true
}

func (a *App) isLoggedIn() bool {
	_, ok := a.session.CurrentUID()
	return ok
}

func (a *App) status() string {
	who := "signed out"
	if a.isLoggedIn() {
		who = a.session.Email()
		if who == "" {
			who, _ = a.session.CurrentUID()
		}
	}
	return fmt.Sprintf("%s, %s", who, a.Mode())
}

// checkOnline pings the remote once and updates the mode. Going online
// starts live sync for the signed in user, going offline stops it.
func (a *App) checkOnline(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := a.remote.Ping(pctx)
	cancel()

	if err != nil {
		if a.setMode(ModeOffline) {
			a.live.Stop()
		}
		return
	}
	a.setMode(ModeOnline)
	a.startLive(ctx)
}

// startLive (re)starts live sync when signed in and online. A subscription
// dropped by the transport is reopened on the next check.
func (a *App) startLive(ctx context.Context) {
	uid, ok := a.session.CurrentUID()
	if !ok || a.Mode() != ModeOnline {
		return
	}
	if running, ok := a.live.Running(); ok && running == uid {
		return
	}
	if err := a.live.Start(ctx, uid); err != nil {
		a.logger.Warn(ctx, "live sync not started", "error", err)
	}
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {

	a.checkOnline(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)

		case <-ctx.Done():
			return
		}
	}
}

// Run starts the connectivity watcher and the REPL, and shuts everything
// down in order when the REPL ends.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)
	}()

	if _, err := a.orgs.EnsureLocal(ctx); err != nil {
		a.logger.Warn(ctx, "organization not available", "error", err)
	}

	runREPL(ctx, a, a.status, a.reader)

	cancel()
	wg.Wait()
	a.close(context.Background())
}

// close stops live sync, flushes staged edits, waits for background pushes
// and releases the stores.
func (a *App) close(ctx context.Context) {
	a.live.Stop()
	if err := a.autosave.Flush(ctx); err != nil {
		a.logger.Error(ctx, "final save failed", "error", err)
	}
	a.projects.Wait()
	a.fixtures.Wait()

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn(ctx, "close failed", "error", err)
		}
	}
}

// remoteOutcome turns the result of a remote step into a user message. A
// missing identity or an unreachable server is not a failure; the change is
// already committed locally.
func (a *App) remoteOutcome(err error, done string) error {
	switch {
	case err == nil:
		fmt.Fprintln(a.out, done)
		return nil
	case isOfflineError(err):
		fmt.Fprintln(a.out, done+" (saved locally)")
		return nil
	default:
		return err
	}
}

func isOfflineError(err error) bool {
	return errors.Is(err, common.ErrAuthRequired) ||
		errors.Is(err, remote.ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}
