package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/opsline/helpdesk-core/internal/api/http"
	"github.com/opsline/helpdesk-core/internal/api/http/handlers"
)

// ServeCmd returns the serve command.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the helpdesk API server and the SLA monitor loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.scheduler.Start(); err != nil {
				return err
			}

			app := fiber.New()
			httptransport.RegisterMiddlewares(app, rt.logger, rt.metrics, rt.cfg.App.RequestTimeout())
			httptransport.RegisterRoutes(app, httptransport.RouteConfig{
				Health:   handlers.NewHealthHandler(rt.cfg.App.Name, rt.cfg.App.Version, rt.checks),
				Tickets:  handlers.NewTicketsHandler(rt.tickets, rt.workflow),
				Workflow: handlers.NewWorkflowHandler(rt.workflow),
				Feedback: handlers.NewFeedbackHandler(rt.feedback),
				Monitor:  handlers.NewMonitorHandler(rt.scheduler),
			})

			go func() {
				if err := app.Listen(rt.cfg.App.Addr()); err != nil {
					rt.logger.Fatal("fiber listen", zap.Error(err))
				}
			}()

			waitForShutdown(rt.logger)

			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			if err := rt.scheduler.Stop(stopCtx); err != nil {
				rt.logger.Warn("monitor stop timed out", zap.Error(err))
			}
			_ = app.Shutdown()
			return nil
		},
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
