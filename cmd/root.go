// Package cmd wires up the CLI flags and runs a flatctl session.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"flatctl/config"
	"flatctl/internal/core"
	"flatctl/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X flatctl/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs a session on the process streams.
func Execute(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdin, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("flatctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// Flag defaults are only shown in --help; a flag overrides the
	// config file and environment only when it is given.
	defaults := config.New()

	// ── network ──────────────────────────────────────────────────
	port := fs.IntP("port", "p", defaults.Port, "UDP port for remote clients (0 disables)")
	bind := fs.String("bind", defaults.Bind, "Address to bind the UDP socket to")
	senders := fs.Int("senders", defaults.Senders, "Goroutines sending responses")
	clientTTL := fs.Int("client-ttl", int(defaults.ClientTTL/time.Second), "Seconds a silent client keeps its id")
	bindAttempts := fs.Int("bind-attempts", defaults.BindAttempts, "Tries before giving up on a busy port")
	bindDelay := fs.Duration("bind-delay", defaults.BindDelay, "First wait between bind attempts")

	// ── storage ──────────────────────────────────────────────────
	data := fs.StringP("data", "d", defaults.DataPath, "Collection file")
	configPath := fs.String("config", "", "TOML config file")
	historyLimit := fs.Int("history-limit", defaults.HistoryLimit, "Commands to remember (0 = unbounded)")

	// ── output ───────────────────────────────────────────────────
	verbose := fs.CountP("verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp, dryRun bool
	fs.BoolVar(&dryRun, "dry-run", false, "Load and validate everything, then exit")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(stderr, fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}
	if showHelp {
		printUsage(stderr, fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "flatctl %s\n", version)
		return nil
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q (use --help for usage)", fs.Arg(0))
	}

	// ── layers: defaults < file < env < flags ────────────────────
	cfg := config.New()
	path := *configPath
	if path == "" {
		path = config.ConfigPathFromEnv()
	}
	if path != "" {
		if err := config.LoadFile(cfg, path); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)

	changed := fs.Changed
	if changed("port") {
		cfg.Port = *port
	}
	if changed("bind") {
		cfg.Bind = *bind
	}
	if changed("senders") {
		cfg.Senders = *senders
	}
	if changed("client-ttl") {
		cfg.ClientTTL = time.Duration(*clientTTL) * time.Second
	}
	if changed("bind-attempts") {
		cfg.BindAttempts = *bindAttempts
	}
	if changed("bind-delay") {
		cfg.BindDelay = *bindDelay
	}
	if changed("data") {
		cfg.DataPath = *data
	}
	if changed("history-limit") {
		cfg.HistoryLimit = *historyLimit
	}
	if changed("verbose") {
		cfg.Verbose = *verbose
	}
	cfg.DryRun = cfg.DryRun || dryRun

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(stderr)

	app, err := core.Build(cfg, logger, stdin, stdout)
	if err != nil {
		return err
	}
	if cfg.DryRun {
		fmt.Fprintln(stdout, app.Describe())
		return nil
	}
	return app.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `flatctl – flat collection manager v%s

Manages a collection of flats from the console, from script files and
from remote clients over UDP.

Usage:
  flatctl [options]

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Environment:
  FLATCTL_PORT, FLATCTL_BIND, FLATCTL_DATA, FLATCTL_CONFIG,
  FLATCTL_HISTORY_LIMIT, FLATCTL_SENDERS, FLATCTL_CLIENT_TTL,
  FLATCTL_BCRYPT_COST, FLATCTL_VERBOSE, FLATCTL_DRY_RUN

Examples:
  flatctl                                     Console and UDP on :%d
  flatctl -p 0 -d ~/flats.json                Console only
  flatctl --config /etc/flatctl.toml -v       Seeded users, verbose
  flatctl < commands.txt                      Feed the console from a file
`, config.DefaultPort)
}
