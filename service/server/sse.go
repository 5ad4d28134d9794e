package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/walletwatch/service/enrich"
	"github.com/brojonat/walletwatch/service/metrics"
	natspkg "github.com/brojonat/walletwatch/service/nats"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// sseKeepalive is the interval between keepalive comments.
var sseKeepalive = 10 * time.Second

// ActivitySource delivers enriched records as they are published.
type ActivitySource interface {
	// Subscribe streams records for wallet, or for every wallet when wallet
	// is empty. The channel is closed when ctx is done.
	Subscribe(ctx context.Context, wallet string) (<-chan *enrich.EnrichedRecord, error)
	Close() error
}

// StreamSource is an ActivitySource backed by ephemeral JetStream consumers.
type StreamSource struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewStreamSource connects to NATS for SSE subscriptions.
func NewStreamSource(natsURL string, logger *slog.Logger) (*StreamSource, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("walletwatch-sse"),
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
	if err := natspkg.EnsureStream(context.Background(), js, logger); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("SSE stream source initialized", "nats_url", natsURL)
	return &StreamSource{nc: nc, js: js, logger: logger}, nil
}

// Subscribe creates an ephemeral consumer that only delivers new messages.
func (s *StreamSource) Subscribe(ctx context.Context, wallet string) (<-chan *enrich.EnrichedRecord, error) {
	subject := natspkg.StreamSubjects
	if wallet != "" {
		subject = natspkg.Subject(wallet)
	}

	cons, err := s.js.CreateOrUpdateConsumer(ctx, natspkg.StreamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	out := make(chan *enrich.EnrichedRecord, 10)
	cc, err := cons.Consume(func(msg jetstream.Msg) {
		rec, err := natspkg.DecodeActivity(msg.Data())
		msg.Ack()
		if err != nil {
			s.logger.WarnContext(ctx, "failed to decode activity", "subject", msg.Subject(), "error", err)
			return
		}
		select {
		case out <- rec:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming messages: %w", err)
	}

	go func() {
		<-ctx.Done()
		cc.Stop()
		<-cc.Closed()
		close(out)
	}()
	return out, nil
}

// Close closes the NATS connection.
func (s *StreamSource) Close() error {
	if s.nc != nil {
		s.nc.Close()
		s.logger.Info("SSE stream source closed")
	}
	return nil
}

// handleStreamActivity handles SSE streaming of enriched activity.
// If the address path parameter is empty, streams all wallets.
func handleStreamActivity(source ActivitySource, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")
		walletDesc := address
		if address == "" {
			walletDesc = "all"
		} else if err := validateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		records, err := source.Subscribe(r.Context(), address)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to subscribe to activity",
				"wallet", walletDesc,
				"error", err,
			)
			writeError(w, "failed to subscribe", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		if m != nil {
			m.RecordSSEConnectionChange(walletDesc, 1)
			defer m.RecordSSEConnectionChange(walletDesc, -1)
		}
		logger.DebugContext(r.Context(), "SSE client connected",
			"wallet", walletDesc,
			"remote_addr", r.RemoteAddr,
		)

		connected, _ := json.Marshal(map[string]string{"wallet": walletDesc})
		writeEvent(w, "connected", connected)
		flusher.Flush()

		keepalive := time.NewTicker(sseKeepalive)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprint(w, ": keepalive\n\n")
				flusher.Flush()

			case rec, ok := <-records:
				if !ok {
					return
				}
				data, err := json.Marshal(rec)
				if err != nil {
					logger.WarnContext(r.Context(), "failed to marshal activity", "error", err)
					continue
				}
				writeEvent(w, "activity", data)
				flusher.Flush()
				if m != nil {
					m.RecordSSEEventSent(walletDesc, "activity")
				}

			case <-r.Context().Done():
				logger.DebugContext(r.Context(), "SSE client disconnected",
					"wallet", walletDesc,
					"remote_addr", r.RemoteAddr,
				)
				return
			}
		}
	})
}

func writeEvent(w http.ResponseWriter, event string, data []byte) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
