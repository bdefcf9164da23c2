package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/mongomart/internal/domain"
	"github.com/fjod/mongomart/internal/service"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const (
	DefaultTopic   = "catalog-items"
	DefaultGroupID = "mongomart-catalog-importer"

	maxBackoff = 30 * time.Second
)

// ItemMessage is the payload published on the catalog topic.
type ItemMessage struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	Details  string          `json:"details"`
	ImageURL string          `json:"img_url"`
}

func (m ItemMessage) toDomain() domain.Item {
	return domain.Item{
		ID:       m.ID,
		Name:     m.Name,
		Price:    m.Price,
		Category: m.Category,
		Details:  m.Details,
		ImageURL: m.ImageURL,
	}
}

type ItemSaver interface {
	SaveItem(ctx context.Context, item domain.Item) (domain.Item, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Importer consumes catalog item messages and upserts them into the catalog.
type Importer struct {
	saver   ItemSaver
	reader  messageReader
	logger  zerolog.Logger
	backoff time.Duration
}

func New(saver ItemSaver, cfg Config, logger zerolog.Logger) *Importer {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.GroupID == "" {
		cfg.GroupID = DefaultGroupID
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MaxBytes: 10e6, // 10MB
	})

	return newImporter(saver, reader, logger.With().Str("component", "catalog_importer").Str("topic", cfg.Topic).Logger())
}

func newImporter(saver ItemSaver, reader messageReader, logger zerolog.Logger) *Importer {
	return &Importer{
		saver:   saver,
		reader:  reader,
		logger:  logger,
		backoff: time.Second,
	}
}

// Run consumes until ctx is cancelled.
func (i *Importer) Run(ctx context.Context) {
	i.logger.Info().Msg("catalog importer started")
	for {
		if ctx.Err() != nil {
			i.logger.Info().Msg("catalog importer stopped")
			return
		}
		i.processMessage(ctx)
	}
}

func (i *Importer) Close() error {
	if err := i.reader.Close(); err != nil {
		return fmt.Errorf("close kafka reader: %w", err)
	}
	return nil
}

func (i *Importer) processMessage(ctx context.Context) {
	m, err := i.reader.FetchMessage(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			i.logger.Error().Err(err).Msg("error reading message")
		}
		return
	}

	// A store outage keeps the message uncommitted and retries it; anything
	// else is a bad message that would fail forever, so it is skipped.
	delay := i.backoff
	for {
		err = i.handleMessage(ctx, m)
		if !errors.Is(err, service.ErrStoreUnavailable) {
			break
		}
		i.logger.Warn().Err(err).Int64("offset", m.Offset).Dur("retry_in", delay).Msg("store unavailable, retrying")
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, maxBackoff)
	}
	if err != nil {
		i.logger.Error().Err(err).Int64("offset", m.Offset).Msg("skipping catalog message")
	}

	if err := i.reader.CommitMessages(ctx, m); err != nil && !errors.Is(err, context.Canceled) {
		i.logger.Error().Err(err).Int64("offset", m.Offset).Msg("failed to commit message")
	}
}

func (i *Importer) handleMessage(ctx context.Context, m kafka.Message) error {
	var msg ItemMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return fmt.Errorf("error parsing message: %w", err)
	}

	item, err := i.saver.SaveItem(ctx, msg.toDomain())
	if err != nil {
		return err
	}

	i.logger.Debug().Int64("item_id", item.ID).Msg("catalog item saved")
	return nil
}
