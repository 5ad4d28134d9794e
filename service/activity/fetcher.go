package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/brojonat/walletwatch/service/metrics"
	"github.com/brojonat/walletwatch/service/solana"
)

// MinSignatureLength is the shortest base58 signature Fetch will look up.
const MinSignatureLength = 50

// TransactionLookup fetches a decoded transaction. A transaction that does
// not exist yields (nil, nil). *solana.Client satisfies it.
type TransactionLookup interface {
	GetTransaction(ctx context.Context, signature string) (*solana.LedgerTransaction, error)
}

// Fetcher builds TransactionRecords for a wallet from transaction signatures.
type Fetcher struct {
	lookup     TransactionLookup
	metadata   MetadataLookup
	classifier *Classifier
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewFetcher creates a Fetcher. timeout bounds each transaction lookup;
// zero means no extra deadline.
func NewFetcher(
	lookup TransactionLookup,
	meta MetadataLookup,
	classifier *Classifier,
	timeout time.Duration,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Fetcher {
	if classifier == nil {
		classifier = NewClassifier()
	}
	return &Fetcher{
		lookup:     lookup,
		metadata:   meta,
		classifier: classifier,
		timeout:    timeout,
		logger:     logger,
		metrics:    m,
	}
}

// Fetch looks up signature and decodes it from wallet's point of view.
// It returns nil for short signatures, unknown transactions and any lookup
// failure; failures are logged, never returned.
func (f *Fetcher) Fetch(ctx context.Context, signature, wallet string) *TransactionRecord {
	if len(signature) < MinSignatureLength {
		f.logger.WarnContext(ctx, "invalid transaction signature", "signature", signature)
		return nil
	}

	lookupCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	tx, err := f.lookup.GetTransaction(lookupCtx, signature)
	if err != nil {
		f.logger.ErrorContext(ctx, "failed to fetch transaction",
			"signature", signature,
			"wallet", wallet,
			"error", err,
		)
		return nil
	}
	if tx == nil {
		f.logger.InfoContext(ctx, "transaction not found on chain", "signature", signature)
		return nil
	}

	solDelta := 0.0
	if idx := tx.AccountIndex(wallet); idx >= 0 && idx < len(tx.PreBalances) {
		solDelta = (float64(tx.PostBalances[idx]) - float64(tx.PreBalances[idx])) / lamportsPerSOL
	}

	ts := time.Now().UTC()
	if tx.BlockTime != nil {
		ts = *tx.BlockTime
	}

	record := &TransactionRecord{
		Signature: signature,
		Slot:      tx.Slot,
		Success:   tx.Success,
		SOLDelta:  solDelta,
		FeeLamps:  tx.Fee,
		Timestamp: ts,
		Transfers: ExtractTransfers(ctx, tx, wallet, f.metadata),
		Activity:  f.classifier.Classify(tx.LogMessages, wallet, solDelta, tx),
		Programs:  solana.InvokedPrograms(tx.LogMessages),
	}

	if f.metrics != nil {
		kind, protocol := "none", "none"
		if record.Activity != nil {
			kind, protocol = string(record.Activity.Type), record.Activity.Protocol
		}
		f.metrics.RecordActivityClassified(kind, protocol)
	}

	f.logger.DebugContext(ctx, "decoded transaction",
		"signature", signature,
		"wallet", wallet,
		"sol_delta", solDelta,
		"transfers", len(record.Transfers),
	)
	return record
}
