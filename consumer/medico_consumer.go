package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"clinica-medicos/models"
	"clinica-medicos/utils"
)

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ListInvalidator drops cached listings; satisfied by *models.CachedRepository.
type ListInvalidator interface {
	Invalidate(ctx context.Context) error
}

// MedicoConsumer keeps the Elasticsearch projection of doctors in step with
// the change events and invalidates the list cache of every instance.
type MedicoConsumer struct {
	reader MessageReader
	es     utils.ElasticsearchClient
	cache  ListInvalidator
	index  string
	logger *log.Logger

	retryDelay time.Duration
	cancel     context.CancelFunc
	done       chan struct{}
	stopOnce   sync.Once
}

func NewKafkaReader(broker, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{broker},
		Topic:   topic,
		GroupID: groupID,
		MaxWait: 10 * time.Second,
	})
}

// NewMedicoConsumer builds a consumer; es and cache may each be nil.
func NewMedicoConsumer(reader MessageReader, es utils.ElasticsearchClient, cache ListInvalidator, index string, logger *log.Logger) *MedicoConsumer {
	return &MedicoConsumer{
		reader:     reader,
		es:         es,
		cache:      cache,
		index:      index,
		logger:     logger,
		retryDelay: 5 * time.Second,
		done:       make(chan struct{}),
	}
}

func (c *MedicoConsumer) Start(ctx context.Context) {
	c.logger.Println("Starting Kafka consumer...")

	ctx, c.cancel = context.WithCancel(ctx)
	go func() {
		defer close(c.done)
		for ctx.Err() == nil {
			c.processMessages(ctx)
		}
	}()
}

// Stop cancels the read loop, waits for it to exit and closes the reader.
func (c *MedicoConsumer) Stop() {
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
			<-c.done
		}
		if err := c.reader.Close(); err != nil {
			c.logger.Printf("Error closing Kafka reader: %v", err)
		}
	})
}

func (c *MedicoConsumer) processMessages(ctx context.Context) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}
		c.logger.Printf("Kafka read error: %v (will retry)", err)
		select {
		case <-ctx.Done():
		case <-time.After(c.retryDelay):
		}
		return
	}

	if err := c.HandleMessage(ctx, msg.Value); err != nil {
		c.logger.Printf("Failed to handle message at offset %d: %v", msg.Offset, err)
	}
}

// HandleMessage applies a single encoded MedicoEvent.
func (c *MedicoConsumer) HandleMessage(ctx context.Context, value []byte) error {
	var event models.MedicoEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal Kafka message: %w", err)
	}
	if event.Data.ID == 0 {
		return fmt.Errorf("event %s (%s) has no medico id", event.ID, event.Event)
	}
	docID := fmt.Sprintf("%d", event.Data.ID)

	var err error
	switch event.Event {
	case models.EventMedicoCreated, models.EventMedicoUpdated:
		if c.es != nil {
			if indexErr := c.es.IndexDocument(ctx, c.index, docID, event.Data); indexErr != nil {
				err = fmt.Errorf("failed to index medico %s in Elasticsearch: %w", docID, indexErr)
			}
		}
	case models.EventMedicoDeleted:
		if c.es != nil {
			if delErr := c.es.DeleteDocument(ctx, c.index, docID); delErr != nil {
				err = fmt.Errorf("failed to delete medico %s from Elasticsearch: %w", docID, delErr)
			}
		}
	default:
		return fmt.Errorf("unknown event type: %s", event.Event)
	}

	if c.cache != nil {
		if cacheErr := c.cache.Invalidate(ctx); cacheErr != nil {
			c.logger.Printf("Failed to invalidate list cache: %v", cacheErr)
		}
	}

	if err != nil {
		return err
	}
	c.logger.Printf("Processed %s event for medico ID %s", event.Event, docID)
	return nil
}

// InvalidatorFunc adapts a plain function to ListInvalidator.
type InvalidatorFunc func(ctx context.Context) error

func (f InvalidatorFunc) Invalidate(ctx context.Context) error {
	return f(ctx)
}
