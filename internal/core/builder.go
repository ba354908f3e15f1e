package core

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"flatctl/config"
	"flatctl/internal/auth"
	"flatctl/internal/command"
	ferrors "flatctl/internal/errors"
	"flatctl/internal/metrics"
	"flatctl/internal/session"
	"flatctl/internal/store"
	"flatctl/internal/surface"
	"flatctl/internal/transport"
	"flatctl/util"
)

// App is a fully assembled session: the collection, the credential
// store, the local conversation and, when enabled, the remote surface.
type App struct {
	Config       *config.Config
	Session      *session.Session
	Dispatcher   *command.Dispatcher
	Orchestrator *Orchestrator
	Console      *surface.Console
	Server       *transport.Server // nil when the network surface is off
	Metrics      *metrics.Collector
	Logger       *util.Logger
}

// Build constructs an App from cfg.  It is the single place where the
// components are wired together.  stdin and stdout default to the
// process streams when nil.
func Build(cfg *config.Config, logger *util.Logger, stdin io.Reader, stdout io.Writer) (*App, error) {
	if stdin == nil {
		stdin = os.Stdin
	}
	if stdout == nil {
		stdout = os.Stdout
	}

	flats, err := store.Open(cfg.DataPath)
	if err != nil {
		if !ferrors.Is(err, store.ErrSkipped) {
			return nil, err
		}
		logger.Warn("%v", err)
	}
	logger.Verbose("loaded %d flats from %s", flats.Len(), cfg.DataPath)

	users, err := buildUsers(cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	sess := session.New(flats, users, stdin, stdout, logger, m)
	d := command.NewDispatcher(sess, cfg.HistoryLimit)
	command.RegisterBuiltins(d)

	printer := surface.NewPrinter(stdout)
	console := surface.NewConsole(stdin, printer)
	orch := NewOrchestrator(d, console, printer, logger)

	app := &App{
		Config:       cfg,
		Session:      sess,
		Dispatcher:   d,
		Orchestrator: orch,
		Console:      console,
		Metrics:      m,
		Logger:       logger,
	}
	if cfg.NetworkEnabled() {
		app.Server = transport.NewServer(transport.Config{
			Address:   cfg.Address(),
			Senders:   cfg.Senders,
			Outbox:    cfg.Outbox,
			ClientTTL: cfg.ClientTTL,
			Bind:      cfg.BindPolicy(),
		}, users, orch.HandleRemote, logger, m)
	}
	return app, nil
}

// Run binds the remote surface, then runs the local conversation.  The
// remote surface starts serving once the bootstrap login completes, and
// stops when the local session ends.
func (a *App) Run(ctx context.Context) error {
	defer a.Console.Close()
	if a.Server != nil {
		if err := a.Server.Listen(ctx); err != nil {
			return err
		}
		defer a.Server.Close()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if a.Server != nil {
		a.Orchestrator.OnReady = func() {
			g.Go(func() error { return a.Server.Serve(gctx) })
		}
	}
	g.Go(func() error {
		defer cancel()
		return a.Orchestrator.Run(gctx)
	})

	err := g.Wait()
	a.Logger.Verbose("session over: %s", a.Metrics.JSON())
	return err
}

// Describe summarizes what Run would do.
func (a *App) Describe() string {
	remote := "disabled"
	if a.Server != nil {
		remote = fmt.Sprintf("udp %s (%d senders, client ttl %s)",
			a.Config.Address(), a.Config.Senders, a.Config.ClientTTL)
	}
	return fmt.Sprintf("collection: %s (%d flats)\nhistory limit: %d\nremote surface: %s\ncommands: %d",
		a.Config.DataPath, a.Session.Flats.Len(), a.Config.HistoryLimit, remote, len(a.Dispatcher.Names()))
}

// ── helpers ──────────────────────────────────────────────────────────

func buildUsers(cfg *config.Config) (*auth.Store, error) {
	users := auth.NewStore(cfg.BcryptCost)
	for _, u := range cfg.Users {
		if err := users.Seed(u.Name, u.PasswordHash); err != nil {
			return nil, fmt.Errorf("seeding user %q: %w", u.Name, err)
		}
	}
	return users, nil
}
