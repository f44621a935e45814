// This is a local stand-in for the Foxit DocGen and PDF Services APIs,
// for running hrflow without provider credentials.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gartstein/hrflow/internal/hrflow/handlers"
	"github.com/gartstein/hrflow/internal/hrflow/providerstub"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

type config struct {
	Port         int    `envconfig:"PORT" default:"8081"`
	ClientID     string `envconfig:"CLIENT_ID"`
	ClientSecret string `envconfig:"CLIENT_SECRET"`
	PendingPolls int    `envconfig:"PENDING_POLLS" default:"1"`
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	var cfg config
	if err := envconfig.Process("STUB", &cfg); err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	stub := providerstub.New(providerstub.Options{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		PendingPolls: cfg.PendingPolls,
	})
	server := handlers.NewServer(cfg.Port, stub.Handler(), logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	logger.Info("Provider stub running",
		zap.Int("port", cfg.Port),
		zap.String("docgen", providerstub.DocGenPrefix),
		zap.String("pdf_services", providerstub.PDFServicesPrefix),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		if err != nil {
			logger.Fatal("Server error", zap.Error(err))
		}
	}
	server.Stop()
}
