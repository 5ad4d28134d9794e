package nats

import (
	"context"
	"sync"

	"github.com/brojonat/walletwatch/service/enrich"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu           sync.RWMutex
	published    []*enrich.EnrichedRecord
	publishError error
	closed       bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		published: make([]*enrich.EnrichedRecord, 0),
	}
}

// PublishActivity records the record and returns any configured error.
func (m *MockPublisher) PublishActivity(ctx context.Context, rec *enrich.EnrichedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}
	m.published = append(m.published, rec)
	return nil
}

// PublishActivityBatch records every record unless an error is configured.
func (m *MockPublisher) PublishActivityBatch(ctx context.Context, recs []*enrich.EnrichedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}
	m.published = append(m.published, recs...)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Published returns a copy of all published records.
func (m *MockPublisher) Published() []*enrich.EnrichedRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := make([]*enrich.EnrichedRecord, len(m.published))
	copy(recs, m.published)
	return recs
}

// PublishedForWallet returns records published for a specific wallet.
func (m *MockPublisher) PublishedForWallet(address string) []*enrich.EnrichedRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := make([]*enrich.EnrichedRecord, 0)
	for _, rec := range m.published {
		if rec.Wallet.WalletAddress == address {
			recs = append(recs, rec)
		}
	}
	return recs
}

// SetPublishError configures the mock to fail publishes.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
