package nats

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/brojonat/walletwatch/service/enrich"
	"github.com/brojonat/walletwatch/service/metrics"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wallet = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

type publishedMsg struct {
	subject string
	data    []byte
}

type fakeStream struct {
	mu   sync.Mutex
	msgs []publishedMsg
	err  error
}

func (f *fakeStream) Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, publishedMsg{subject: subject, data: payload})
	return &jetstream.PubAck{Stream: StreamName, Sequence: uint64(len(f.msgs))}, nil
}

func testRecord(sig string) *enrich.EnrichedRecord {
	return &enrich.EnrichedRecord{
		TransactionID: "id-" + sig,
		Signature:     sig,
		Wallet:        enrich.WalletActivity{WalletAddress: wallet, SOLChange: -0.5},
		Summary:       enrich.Summary{TransactionType: enrich.TokenTrade, RiskLevel: enrich.RiskLow},
	}
}

func newTestPublisher(js streamPublisher) *JetStreamPublisher {
	return &JetStreamPublisher{
		js:      js,
		metrics: metrics.NewMetrics(prometheus.NewRegistry()),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "activity."+wallet, Subject(wallet))

	got, ok := WalletFromSubject(Subject(wallet))
	assert.True(t, ok)
	assert.Equal(t, wallet, got)

	_, ok = WalletFromSubject("txns." + wallet)
	assert.False(t, ok)
	_, ok = WalletFromSubject(SubjectPrefix)
	assert.False(t, ok)
}

func TestPublishActivity(t *testing.T) {
	js := &fakeStream{}
	p := newTestPublisher(js)

	require.NoError(t, p.PublishActivity(context.Background(), testRecord("sig1")))

	require.Len(t, js.msgs, 1)
	assert.Equal(t, "activity."+wallet, js.msgs[0].subject)

	rec, err := DecodeActivity(js.msgs[0].data)
	require.NoError(t, err)
	assert.Equal(t, "sig1", rec.Signature)
	assert.Equal(t, wallet, rec.Wallet.WalletAddress)
	assert.Equal(t, enrich.TokenTrade, rec.Summary.TransactionType)
}

func TestPublishActivity_Error(t *testing.T) {
	js := &fakeStream{err: errors.New("no responders")}
	p := newTestPublisher(js)

	err := p.PublishActivity(context.Background(), testRecord("sig1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no responders")
}

func TestPublishActivityBatch(t *testing.T) {
	js := &fakeStream{}
	p := newTestPublisher(js)

	recs := []*enrich.EnrichedRecord{testRecord("a"), testRecord("b"), testRecord("c")}
	require.NoError(t, p.PublishActivityBatch(context.Background(), recs))
	assert.Len(t, js.msgs, 3)

	require.NoError(t, p.PublishActivityBatch(context.Background(), nil))
	assert.Len(t, js.msgs, 3)
}

func TestDecodeActivity_Invalid(t *testing.T) {
	_, err := DecodeActivity([]byte("not json"))
	assert.Error(t, err)

	_, err = DecodeActivity([]byte(`{"signature":"x"}`))
	assert.Error(t, err)
}

func TestMockPublisher(t *testing.T) {
	m := NewMockPublisher()
	ctx := context.Background()

	require.NoError(t, m.PublishActivity(ctx, testRecord("a")))
	other := testRecord("b")
	other.Wallet.WalletAddress = "other"
	require.NoError(t, m.PublishActivityBatch(ctx, []*enrich.EnrichedRecord{other}))

	assert.Len(t, m.Published(), 2)
	assert.Len(t, m.PublishedForWallet(wallet), 1)

	m.SetPublishError(errors.New("down"))
	assert.Error(t, m.PublishActivity(ctx, testRecord("c")))
	assert.Len(t, m.Published(), 2)

	require.NoError(t, m.Close())
	assert.True(t, m.IsClosed())
}

func TestJetStreamPublisher_CloseWithoutConnection(t *testing.T) {
	p := &JetStreamPublisher{}
	assert.NoError(t, p.Close())
}
