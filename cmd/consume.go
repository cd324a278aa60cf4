package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"clinica-medicos/consumer"
	"clinica-medicos/models"
	"clinica-medicos/utils"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Apply medico change events to Elasticsearch and the list cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c, cleanup, err := buildConsumer()
		if err != nil {
			return err
		}
		defer cleanup()

		c.Start(ctx)
		<-ctx.Done()
		c.Stop()
		logger.Println("Consumer stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}

// buildConsumer wires the Kafka reader with the optional Elasticsearch and
// Redis sinks. cleanup releases the sinks; the reader is closed by Stop.
func buildConsumer() (*consumer.MedicoConsumer, func(), error) {
	if cfg.KafkaBroker == "" {
		return nil, nil, errors.New("KAFKA_BROKER is required to consume medico events")
	}

	var closers []func() error
	cleanup := func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.Printf("Error during cleanup: %v", err)
			}
		}
	}

	var es utils.ElasticsearchClient
	if cfg.ElasticsearchURL != "" {
		client, err := utils.NewElasticsearchClient(cfg.ElasticsearchURL)
		if err != nil {
			return nil, nil, err
		}
		es = client
		closers = append(closers, client.Close)
	}

	var invalidator consumer.ListInvalidator
	if cfg.RedisHost != "" {
		cache, err := connectRedis()
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, cache.Close)
		invalidator = consumer.InvalidatorFunc(func(ctx context.Context) error {
			return models.InvalidateListCache(ctx, cache)
		})
	}

	reader := consumer.NewKafkaReader(cfg.KafkaBroker, cfg.KafkaTopic, cfg.KafkaGroupID)
	return consumer.NewMedicoConsumer(reader, es, invalidator, cfg.ElasticIndex, logger), cleanup, nil
}
