package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"unicode"

	"github.com/brojonat/walletwatch/service/activity"
	"github.com/brojonat/walletwatch/service/enrich"
	"github.com/brojonat/walletwatch/service/metadata"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Version is reported by GET /version. It is set at build time.
var Version = "dev"

const (
	maxAddressLength   = 100 // Solana addresses are 44 chars, give buffer
	maxSignatureLength = 100 // signatures are 87-88 chars
	signatureBytes     = 64
)

var (
	// Valid Solana base58 characters (no 0, O, I, l)
	validBase58Regex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// TransactionFetcher decodes a signature. *activity.Fetcher satisfies it.
type TransactionFetcher interface {
	Fetch(ctx context.Context, signature, wallet string) *activity.TransactionRecord
}

// RecordEnricher builds records. *enrich.Enricher satisfies it.
type RecordEnricher interface {
	Enrich(ctx context.Context, wallet string, rec *activity.TransactionRecord, update *activity.AccountUpdate) *enrich.EnrichedRecord
}

// TokenResolver resolves token metadata. *metadata.Resolver satisfies it.
type TokenResolver interface {
	Resolve(ctx context.Context, mint string) *metadata.TokenMetadata
}

// handleGetTransaction returns a handler that decodes and enriches a
// transaction for a wallet.
// GET /api/v1/transactions/{signature}?wallet={address}
func handleGetTransaction(fetcher TransactionFetcher, enricher RecordEnricher, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature := r.PathValue("signature")
		wallet := r.URL.Query().Get("wallet")

		if err := validateSignature(signature); err != nil {
			logger.DebugContext(r.Context(), "invalid signature", "signature", signature, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := validateAddress(wallet); err != nil {
			logger.DebugContext(r.Context(), "invalid wallet", "wallet", wallet, "error", err)
			writeError(w, "wallet: "+err.Error(), http.StatusBadRequest)
			return
		}

		rec := fetcher.Fetch(r.Context(), signature, wallet)
		if rec == nil {
			writeError(w, "transaction not found", http.StatusNotFound)
			return
		}

		writeJSON(w, enricher.Enrich(r.Context(), wallet, rec, nil), http.StatusOK)
	})
}

// handleGetToken returns a handler that resolves token metadata.
// GET /api/v1/tokens/{mint}
func handleGetToken(tokens TokenResolver, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mint := r.PathValue("mint")
		if err := validateAddress(mint); err != nil {
			logger.DebugContext(r.Context(), "invalid mint", "mint", mint, "error", err)
			writeError(w, "mint: "+err.Error(), http.StatusBadRequest)
			return
		}

		writeJSON(w, tokens.Resolve(r.Context(), mint), http.StatusOK)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress validates a base58 account address.
func validateAddress(address string) error {
	if address == "" {
		return errors.New("address is required")
	}
	if len(address) > maxAddressLength {
		return fmt.Errorf("address too long: maximum length is %d characters", maxAddressLength)
	}
	if err := checkBase58(address); err != nil {
		return err
	}
	if _, err := solanago.PublicKeyFromBase58(address); err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	return nil
}

// validateSignature validates a base58 transaction signature.
func validateSignature(signature string) error {
	if signature == "" {
		return errors.New("signature is required")
	}
	if len(signature) < activity.MinSignatureLength || len(signature) > maxSignatureLength {
		return fmt.Errorf("invalid signature length %d", len(signature))
	}
	if err := checkBase58(signature); err != nil {
		return err
	}
	raw, err := base58.Decode(signature)
	if err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}
	if len(raw) != signatureBytes {
		return fmt.Errorf("invalid signature: decodes to %d bytes, want %d", len(raw), signatureBytes)
	}
	return nil
}

func checkBase58(s string) error {
	for _, r := range s {
		if r == 0 || unicode.IsControl(r) {
			return errors.New("invalid characters: control characters not allowed")
		}
	}
	if !validBase58Regex.MatchString(s) {
		return errors.New("invalid characters: must be base58")
	}
	return nil
}
