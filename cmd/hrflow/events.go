package main

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"

	"github.com/gartstein/hrflow/internal/hrflow/events"
	"github.com/spf13/cobra"
)

var eventsGroup string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Work with document lifecycle events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print lifecycle events from Kafka as JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer syncLogger(logger)
		if len(cfg.Kafka.Brokers) == 0 {
			return errors.New("KAFKA_BROKERS is not set")
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		consumer := events.NewConsumer(cfg.Kafka.Brokers, eventsGroup, cfg.Kafka.Topic, logger)
		defer consumer.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		consumer.RegisterHandler(func(_ context.Context, ev events.Event) error {
			return enc.Encode(ev)
		})
		consumer.Run(ctx)
		return nil
	},
}

func init() {
	eventsTailCmd.Flags().StringVarP(&eventsGroup, "group", "g", "hrflow-tail", "Kafka consumer group")
	eventsCmd.AddCommand(eventsTailCmd)
}
