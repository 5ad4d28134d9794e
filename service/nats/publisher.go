package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/walletwatch/service/enrich"
	"github.com/brojonat/walletwatch/service/metrics"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher defines the interface for publishing wallet activity to NATS.
type Publisher interface {
	// PublishActivity publishes a single record to JetStream on the subject
	// "activity.{wallet_address}".
	PublishActivity(ctx context.Context, rec *enrich.EnrichedRecord) error

	// PublishActivityBatch publishes multiple records. Failures are logged
	// and do not stop the batch.
	PublishActivityBatch(ctx context.Context, recs []*enrich.EnrichedRecord) error

	// Close closes the connection to NATS.
	Close() error
}

// streamPublisher is the part of jetstream.JetStream the publisher uses.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// JetStreamPublisher publishes wallet activity to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      streamPublisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewPublisher creates a new JetStream publisher.
// It connects to NATS and ensures the stream exists.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("walletwatch-publisher"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := EnsureStream(context.Background(), js, logger); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return &JetStreamPublisher{
		nc:      nc,
		js:      js,
		metrics: m,
		logger:  logger,
	}, nil
}

// EnsureStream creates the activity stream if it doesn't exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stream, err := js.Stream(ctx, StreamName)
	if err == nil {
		if info, err := stream.Info(ctx); err == nil {
			logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	logger.Info("creating JetStream stream", "stream", StreamName)
	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Enriched activity of tracked Solana wallets",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	logger.Info("JetStream stream created", "stream", StreamName)
	return nil
}

// PublishActivity publishes a single record. The signature is used as the
// message ID so JetStream drops duplicates within its dedup window.
func (p *JetStreamPublisher) PublishActivity(ctx context.Context, rec *enrich.EnrichedRecord) error {
	subject := Subject(rec.Wallet.WalletAddress)

	data, err := EncodeActivity(rec)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = p.js.Publish(ctx, subject, data, jetstream.WithMsgID(rec.Wallet.WalletAddress+":"+rec.Signature))
	if p.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		p.metrics.RecordNATSPublish(subject, status, time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("failed to publish activity: %w", err)
	}

	p.logger.DebugContext(ctx, "published activity",
		"subject", subject,
		"signature", rec.Signature,
		"transaction_type", rec.Summary.TransactionType,
	)
	return nil
}

// PublishActivityBatch publishes each record in turn.
func (p *JetStreamPublisher) PublishActivityBatch(ctx context.Context, recs []*enrich.EnrichedRecord) error {
	if len(recs) == 0 {
		return nil
	}

	failed := 0
	for _, rec := range recs {
		if err := p.PublishActivity(ctx, rec); err != nil {
			failed++
			p.logger.ErrorContext(ctx, "failed to publish activity in batch",
				"signature", rec.Signature,
				"wallet", rec.Wallet.WalletAddress,
				"error", err,
			)
		}
	}

	p.logger.DebugContext(ctx, "published activity batch",
		"count", len(recs),
		"failed", failed,
	)
	return nil
}

// Close flushes buffered publishes and closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	var err error
	if p.nc.IsConnected() {
		if ferr := p.nc.FlushTimeout(5 * time.Second); ferr != nil {
			err = fmt.Errorf("failed to flush NATS connection: %w", ferr)
		}
	}
	p.nc.Close()
	p.logger.Info("NATS publisher closed")
	return err
}
