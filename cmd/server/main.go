package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"houser/internal/config"
	"houser/internal/handler"
	"houser/internal/logger"
	"houser/internal/model"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.FatalErr(err, "houser exited")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "houser",
		Usage:   "Conversational UAE property search",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log output format (json, text)",
				EnvVars: []string{"LOG_FORMAT"},
				Value:   "json",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "host",
						Usage: "Listen host, overrides SERVER_HOST",
					},
					&cli.IntFlag{
						Name:  "port",
						Usage: "Listen port, overrides SERVER_PORT",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer one chat message, writing frames as NDJSON to stdout",
				ArgsUsage: "<message>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "user",
						Aliases: []string{"u"},
						Usage:   "Name to address the user by",
					},
					&cli.IntFlag{
						Name:  "page",
						Usage: "Result page",
						Value: 1,
					},
					&cli.Int64SliceFlag{
						Name:  "seen",
						Usage: "Listing ids already shown, excluded from results",
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	logger.Setup(c.String("log-level"), c.String("log-format"))
	return nil
}

func serveCommand(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if c.IsSet("host") {
		cfg.Server.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}

	logger.Info("starting houser", "version", Version, "build_time", BuildTime, "git_commit", GitCommit)

	svc, err := newServices(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	gin.SetMode(cfg.Server.GinMode)
	router := handler.NewRouter(cfg.Server, svc.routes())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func askCommand(c *cli.Context) error {
	message := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if message == "" {
		return cli.Exit("a message is required", 2)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	svc, err := newServices(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := &model.SessionContext{
		UserName: c.String("user"),
		Page:     c.Int("page"),
		SeenIDs:  c.Int64Slice("seen"),
	}

	writer := handler.NewFrameWriter(c.App.Writer, nil, handler.FormatNDJSON)
	if err := svc.pipeline.StreamChat(ctx, message, session, writer.Write); err != nil {
		// the error frame has already been written
		logger.Debug("ask finished with error", "error", err)
	}
	return nil
}
