package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gartstein/hrflow/internal/hrflow/handlers"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the onboarding HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer syncLogger(logger)

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		handler := handlers.NewHandler(a.docs, a.pdf, cfg.Presence, logger)
		server := handlers.NewServer(cfg.HTTPPort, handler.Routes(a.recorder, a.registry), logger)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		return waitForShutdown(server, errCh, logger)
	},
}

// waitForShutdown blocks until an interrupt or SIGTERM is received, then
// shuts the server down. A server that fails on its own ends the wait too.
func waitForShutdown(server *handlers.Server, errCh <-chan error, logger *zap.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	server.Stop()
	logger.Info("Server stopped properly")
	return <-errCh
}
