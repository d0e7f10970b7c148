package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/config"
	transport "quiz-attempt-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz attempt server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	issuer, err := newIssuer(cfg)
	if err != nil {
		return err
	}

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	feed := app.NewFeed()
	publishers := app.Publishers{feed}
	if b.rabbit != nil {
		publishers = append(publishers, b.rabbit)
	}
	service := app.NewAttemptService(b.attempts, b.quizzes,
		app.WithCatalog(b.catalog),
		app.WithPublisher(publishers),
		app.WithLogger(log),
	)

	router := transport.NewRouter(transport.RouterConfig{
		Issuer:      issuer,
		Attempts:    transport.NewAttemptHandler(service, log),
		Auth:        transport.NewAuthHandler(issuer, cfg.Auth.SecureCookies, log),
		WS:          transport.NewWSHandler(service, feed, log, transport.WithOriginCheck(transport.AllowOrigins(cfg.Server.CORSOrigins))),
		CORSOrigins: cfg.Server.CORSOrigins,
		Log:         log,
	})

	// No WriteTimeout: websocket sessions stay open for the whole attempt.
	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("starting quiz attempt service", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func logBackend(log *slog.Logger, concern, backend string) {
	log.Info("backend selected", "concern", concern, "backend", backend)
}
