package nats

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/brojonat/walletwatch/service/enrich"
)

const (
	// StreamName is the name of the JetStream stream for wallet activity.
	StreamName = "WALLET_ACTIVITY"

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = SubjectPrefix + "*"

	// SubjectPrefix prefixes every per-wallet subject.
	SubjectPrefix = "activity."

	// StreamRetention is how long messages are retained.
	StreamRetention = 7 * 24 * time.Hour
)

// Subject returns the subject activity for wallet is published on.
func Subject(wallet string) string {
	return SubjectPrefix + wallet
}

// WalletFromSubject extracts the wallet address from an activity subject.
func WalletFromSubject(subject string) (string, bool) {
	wallet, ok := strings.CutPrefix(subject, SubjectPrefix)
	if !ok || wallet == "" {
		return "", false
	}
	return wallet, true
}

// EncodeActivity marshals a record for publishing.
func EncodeActivity(rec *enrich.EnrichedRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal activity record: %w", err)
	}
	return data, nil
}

// DecodeActivity unmarshals a published record.
func DecodeActivity(data []byte) (*enrich.EnrichedRecord, error) {
	var rec enrich.EnrichedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal activity record: %w", err)
	}
	if rec.Wallet.WalletAddress == "" {
		return nil, fmt.Errorf("activity record has no wallet address")
	}
	return &rec, nil
}
