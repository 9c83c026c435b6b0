// transfer-service - queue-driven multi-part file transfer worker
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/viaa/transfer-service/internal/config"
	"github.com/viaa/transfer-service/internal/logging"
	"github.com/viaa/transfer-service/internal/queue"
	"github.com/viaa/transfer-service/internal/secrets"
	"github.com/viaa/transfer-service/internal/source"
	"github.com/viaa/transfer-service/internal/transfer"
	"github.com/viaa/transfer-service/internal/worker"
)

var Version = "v1.2.0"

const consumerTag = "transfer-service"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		logMode    string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:     "transfer-service",
		Short:   "Consume transfer requests and move files to their destination",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logMode, logLevel)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.ini", "path to the configuration file")
	cmd.Flags().StringVar(&logMode, "log-mode", "json", "log output format: json or console")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "minimum log level")
	return cmd
}

func run(configPath, logMode, logLevel string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New(logMode, logLevel)

	resolver, err := secrets.NewVaultResolver(secrets.VaultConfig{
		URL:        cfg.Vault.URL,
		Token:      cfg.Vault.Token,
		Namespace:  cfg.Vault.Namespace,
		SkipVerify: cfg.Vault.SkipVerify,
	})
	if err != nil {
		return err
	}

	producer, err := queue.NewPulsarProducer(queue.PulsarConfig{
		Host: cfg.Pulsar.Host,
		Port: cfg.Pulsar.Port,
	})
	if err != nil {
		return err
	}
	defer producer.Close()

	consumer, err := queue.NewConsumer(queue.RabbitConfig{
		Host:          cfg.RabbitMQ.Host,
		Port:          cfg.RabbitMQ.Port,
		Username:      cfg.RabbitMQ.Username,
		Password:      cfg.RabbitMQ.Password,
		Queue:         cfg.RabbitMQ.Queue,
		PrefetchCount: cfg.RabbitMQ.PrefetchCount,
	}, log)
	if err != nil {
		return err
	}
	defer consumer.Close()

	deliveries, err := consumer.Consume(consumerTag)
	if err != nil {
		return err
	}

	runner := &worker.TransferRunner{
		SSHPort: cfg.Destination.SSHPort,
		Sizer:   source.NewResolver(),
		Options: transfer.Options{
			Parts:            cfg.Destination.NumberParts,
			FreeSpacePercent: cfg.Destination.FreeSpaceThreshold(),
		},
		Log: log,
	}
	w := worker.New(runner, producer, resolver, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutdown requested, draining in-flight transfers")
			if err := consumer.Cancel(consumerTag); err != nil {
				log.Error().Err(err).Msg("cancelling consumer failed")
			}
		case amqpErr := <-consumer.Closed():
			log.Error().Err(amqpErr).Msg("lost connection to rabbitmq")
			stop()
		}
	}()

	log.Info().
		Str("queue", cfg.RabbitMQ.Queue).
		Int("parts", cfg.Destination.NumberParts).
		Msg("worker started")

	started := time.Now()
	w.Start(ctx, deliveries)
	log.Info().Dur("uptime", time.Since(started)).Msg("worker stopped")
	return nil
}
