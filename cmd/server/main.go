package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-passwordless/auth"
	"github.com/jrsteele09/go-passwordless/flow"
	"github.com/jrsteele09/go-passwordless/internal/config"
	"github.com/jrsteele09/go-passwordless/internal/metrics"
	"github.com/jrsteele09/go-passwordless/server"
	"github.com/jrsteele09/go-passwordless/users"
	fakeuserrepo "github.com/jrsteele09/go-passwordless/users/repofake"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

// Build information, set via ldflags.
var Version = "dev"

const sweepInterval = time.Minute

func main() {
	app := &cli.App{
		Name:    "passwordless",
		Usage:   "Passwordless sign-in with one-time tokens",
		Version: Version,
		Flags:   globalFlags(),
		Action:  serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server (default)",
				Action: serve,
			},
			{
				Name:   "clear-tokens",
				Usage:  "Delete every outstanding token in the configured store",
				Action: clearTokens,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("passwordless stopped")
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file, overlaid by the environment",
			EnvVars: []string{"CONFIG_FILE"},
		},
		&cli.StringFlag{
			Name:  "port",
			Usage: "Listen port (overrides PORT)",
		},
		&cli.StringFlag{
			Name:  "store",
			Usage: "Token store: memory, redis, badger, sql or mongo (overrides STORE)",
		},
		&cli.StringFlag{
			Name:  "delivery",
			Usage: "Default delivery: console or email (overrides DELIVERY)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "zerolog level (overrides LOG_LEVEL)",
		},
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	return config.Load(
		config.WithConfigFile(c.String("config")),
		config.WithOverrides(map[string]string{
			"port":      c.String("port"),
			"store":     c.String("store"),
			"delivery":  c.String("delivery"),
			"log_level": c.String("log-level"),
		}),
	)
}

func serve(c *cli.Context) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	setupLogging(cfg)
	displayAppname(cfg.GetAppName())

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	handler, err := newHandler(cfg, b)
	if err != nil {
		return err
	}
	go sweep(ctx, b, sweepInterval)

	httpServer := &http.Server{
		Addr:              cfg.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(httpServer) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

// newHandler wires the token engine, its deliveries and the flow steps into
// the HTTP server.
func newHandler(cfg config.Config, b *backends) (http.Handler, error) {
	m := metrics.New()
	userRepo := fakeuserrepo.NewFakeUserRepo()

	deliveries, err := newDeliveries(cfg, userRepo)
	if err != nil {
		return nil, err
	}

	engine, err := auth.NewEngine(b.tokens, deliveries,
		auth.WithTTL(cfg.GetTokenTTL()),
		auth.WithMetrics(m),
		auth.WithAcceptHook(users.LoginRecorder(userRepo, time.Now)),
	)
	if err != nil {
		return nil, err
	}

	f, err := flow.New(engine,
		flow.WithSessionStore(b.sessions),
		flow.WithSessionMaxAge(cfg.GetSessionMaxAge()),
	)
	if err != nil {
		return nil, err
	}

	s, err := server.New(cfg, f, server.WithMetrics(m), server.WithUserRepo(userRepo))
	if err != nil {
		return nil, err
	}
	return s, nil
}

func clearTokens(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	b, err := openBackends(c.Context, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	n, err := b.tokens.Length(c.Context)
	if err != nil {
		return err
	}
	if err := b.tokens.Clear(c.Context); err != nil {
		return err
	}
	log.Info().Int("tokens", n).Str("store", cfg.GetStore()).Msg("cleared tokens")
	return nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
