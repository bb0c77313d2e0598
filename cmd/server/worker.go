package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/practice-booking/internal/config"
	"github.com/iliyamo/practice-booking/internal/logging"
	"github.com/iliyamo/practice-booking/internal/queue"
)

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().String("outbox", "", "Outbox file the events are appended to (default $NOTIFY_OUTBOX or notifications.outbox)")
	workerCmd.Flags().Int("prefetch", 50, "Unacknowledged messages held at once")
}

var workerCmd = &cobra.Command{
	Use:   "notify-worker",
	Short: "Drain the notification queue into the outbox file",
	Long: `Consume booking notification events from RabbitMQ and append one line
per event to the outbox file read by the mailer. Runs until interrupted and
reconnects to the broker with backoff.`,
	RunE: runWorker,
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if cfg.RabbitURL == "" {
		return fmt.Errorf("RABBITMQ_URL is not set")
	}
	log, err := logging.New(cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	outbox, _ := cmd.Flags().GetString("outbox")
	if outbox == "" {
		outbox = cfg.NotifyOutbox
	}
	prefetch, _ := cmd.Flags().GetInt("prefetch")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log.Info("notify-worker started", zap.String("queue", cfg.NotifyQueue), zap.String("outbox", outbox))
	err = queue.StartNotificationConsumer(ctx, queue.ConsumerConfig{
		URL:        cfg.RabbitURL,
		Queue:      cfg.NotifyQueue,
		OutboxPath: outbox,
		Prefetch:   prefetch,
	}, log.Named("notify-worker"))
	if errors.Is(err, context.Canceled) {
		log.Info("notify-worker stopped")
		return nil
	}
	return err
}
