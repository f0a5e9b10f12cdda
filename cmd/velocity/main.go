// velocity is an in-memory key-value server speaking RESP.
//
// Usage:
//
//	velocity [flags]
//	velocity config [flags]   print the effective configuration
//
// Settings are read from built-in defaults, then the file named by
// --config, then VELOCITY_* environment variables, then flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/velocitykv/velocity/internal/command"
	"github.com/velocitykv/velocity/internal/config"
	"github.com/velocitykv/velocity/internal/glob"
	"github.com/velocitykv/velocity/internal/logger"
	"github.com/velocitykv/velocity/internal/metrics"
	"github.com/velocitykv/velocity/internal/server"
	"github.com/velocitykv/velocity/internal/store"
	"github.com/velocitykv/velocity/internal/version"
	"github.com/velocitykv/velocity/internal/web"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "velocity",
		Usage:   "in-memory key-value server speaking RESP",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML configuration file",
				EnvVars: []string{"VELOCITY_CONFIG"},
			},
			&cli.StringFlag{Name: "addr", Usage: "RESP listen address"},
			&cli.IntFlag{Name: "max-clients", Usage: "maximum concurrent connections (0 = unlimited)"},
			&cli.Float64Flag{Name: "rate-limit", Usage: "commands per second per connection (0 = unlimited)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "json or text"},
			&cli.StringFlag{Name: "admin-addr", Usage: "admin HTTP listen address"},
			&cli.BoolFlag{Name: "no-admin", Usage: "disable the admin HTTP interface"},
		},
		Action: run,
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "print the effective configuration as YAML",
				Action: printConfig,
			},
		},
	}
}

// overrides maps explicitly set flags onto configuration keys.
func overrides(c *cli.Context) map[string]any {
	m := make(map[string]any)
	if c.IsSet("addr") {
		m["server.addr"] = c.String("addr")
	}
	if c.IsSet("max-clients") {
		m["server.max_clients"] = c.Int("max-clients")
	}
	if c.IsSet("rate-limit") {
		m["server.rate_limit"] = c.Float64("rate-limit")
	}
	if c.IsSet("log-level") {
		m["log.level"] = c.String("log-level")
	}
	if c.IsSet("log-format") {
		m["log.format"] = c.String("log-format")
	}
	if c.IsSet("admin-addr") {
		m["admin.addr"] = c.String("admin-addr")
	}
	if c.Bool("no-admin") {
		m["admin.enabled"] = false
	}
	return m
}

func printConfig(c *cli.Context) error {
	l, err := config.NewLoader()
	if err != nil {
		return err
	}
	if err := l.LoadFile(c.String("config")); err != nil {
		return err
	}
	if err := l.LoadEnv(); err != nil {
		return err
	}
	if err := l.LoadMap(overrides(c)); err != nil {
		return err
	}
	if _, err := l.Config(); err != nil {
		return err
	}

	out, err := l.Dump()
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(out)
	return err
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"), overrides(c))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		AddSource: cfg.Log.AddSource,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(log)

	log.Info("starting velocity",
		"version", version.Version,
		"commit", version.Commit,
		"config", c.String("config"))

	reg := metrics.New()

	st := store.New(
		store.WithSweepInterval(cfg.Store.SweepInterval),
		store.WithSweepHook(reg.KeysSwept),
		store.WithLogger(log.With("component", "store")),
	)
	defer st.Close()
	reg.TrackKeys(st.Size)

	dispatcher := command.New(st, glob.Match)

	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		MaxClients:   cfg.Server.MaxClients,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		RateLimit:    cfg.Server.RateLimit,
	}, dispatcher, reg, log)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Admin.Enabled {
		admin := web.New(web.Config{
			Addr:     cfg.Admin.Addr,
			Store:    st,
			Match:    glob.Match,
			Handler:  dispatcher,
			Frontend: srv,
			Metrics:  reg,
			Logger:   log,
		})
		go func() {
			if err := admin.Start(ctx); err != nil {
				log.Error("admin interface failed", "error", err)
			}
		}()
	}

	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("shutdown complete")
	return nil
}
