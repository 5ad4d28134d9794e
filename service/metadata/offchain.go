package metadata

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// OffChainMetadata is the JSON document referenced by a Metaplex URI.
type OffChainMetadata struct {
	Name        string
	Symbol      string
	Image       string
	Description string
	ExternalURL string
	Twitter     string
	Telegram    string
}

type offChainDocument struct {
	Name        string         `json:"name"`
	Symbol      string         `json:"symbol"`
	Image       string         `json:"image"`
	Description string         `json:"description"`
	ExternalURL string         `json:"external_url"`
	Extensions  map[string]any `json:"extensions"`
	Attributes  []struct {
		TraitType string `json:"trait_type"`
		Value     any    `json:"value"`
	} `json:"attributes"`
}

// OffChainFetcher retrieves off-chain token metadata JSON.
type OffChainFetcher struct {
	http *jsonClient
}

// NewOffChainFetcher creates a fetcher. A nil client uses a 10s-timeout default.
func NewOffChainFetcher(httpClient *http.Client) *OffChainFetcher {
	return &OffChainFetcher{http: newJSONClient(httpClient)}
}

// IsHTTPURI reports whether uri can be fetched by the OffChainFetcher.
func IsHTTPURI(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}

// Fetch downloads and decodes the document at uri.
func (f *OffChainFetcher) Fetch(ctx context.Context, uri string) (*OffChainMetadata, error) {
	if !IsHTTPURI(uri) {
		return nil, fmt.Errorf("unsupported metadata uri %q", uri)
	}

	var doc offChainDocument
	if err := f.http.getJSON(ctx, uri, &doc); err != nil {
		return nil, fmt.Errorf("failed to fetch metadata json from %s: %w", uri, err)
	}

	out := &OffChainMetadata{
		Name:        doc.Name,
		Symbol:      doc.Symbol,
		Image:       doc.Image,
		Description: doc.Description,
		ExternalURL: doc.ExternalURL,
		Twitter:     stringField(doc.Extensions, "twitter"),
		Telegram:    stringField(doc.Extensions, "telegram"),
	}
	if out.ExternalURL == "" {
		out.ExternalURL = stringField(doc.Extensions, "website")
	}

	for _, attr := range doc.Attributes {
		v, ok := attr.Value.(string)
		if !ok || v == "" {
			continue
		}
		switch strings.ToLower(attr.TraitType) {
		case "twitter":
			if out.Twitter == "" {
				out.Twitter = v
			}
		case "telegram":
			if out.Telegram == "" {
				out.Telegram = v
			}
		case "website":
			if out.ExternalURL == "" {
				out.ExternalURL = v
			}
		}
	}
	return out, nil
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
