package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"studynotes-client/internal/app"
	"studynotes-client/internal/jobs"
	"studynotes-client/internal/metrics"
	transport "studynotes-client/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to start the websocket server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve live quiz and summary sessions over websockets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := loadRuntime(ctx, configPath)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	if rt.cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, rt.cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = rt.cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	m := metrics.New()
	summaries := rt.summaryService(jobs.WithObserver(m))
	wsHandler := transport.NewWSHandler(rt.client, summaries, rt.sessionRegistry(),
		transport.WithFlowOptions(
			app.WithRecorder(rt.attemptStore()),
			app.WithSubmissionObserver(m),
			app.WithFlowLogger(logger),
		),
		transport.WithQuizMaker(app.NewQuizGenerator(rt.client,
			app.WithGeneratorPolicies(rt.cfg.DocumentReadinessPolicy(), rt.cfg.QuizReadinessPolicy()),
			app.WithGeneratorTrackerOptions(jobs.WithLogger(logger), jobs.WithObserver(m)),
			app.WithGeneratorLogger(logger),
		)),
		transport.WithSessionObserver(m),
		transport.WithLogger(logger),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/ws/quiz", wsHandler.ServeQuiz)
	mux.HandleFunc("/ws/summary", wsHandler.ServeSummary)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting study notes client", "port", finalPort, "backend", rt.cfg.Backend.URL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
