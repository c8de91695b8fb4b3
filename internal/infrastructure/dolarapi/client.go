package dolarapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/romanzzaa/dolar-rate-bot/internal/domain"
)

const (
	DefaultBaseURL = "https://dolarapi.com"
	OficialPath    = "/v1/dolares/oficial"

	maxBodyBytes = 1 << 20
	pricePlaces  = 2
)

var _ domain.QuoteFetcher = (*Client)(nil)

type Client struct {
	baseURL    string
	path       string
	httpClient *http.Client
}

// NewClient - timeout bounds one full round-trip
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		path:       OficialPath,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchQuote performs one GET without retry. Every failure (transport, timeout,
// non-200 status, malformed body) is wrapped in domain.ErrFetch.
func (c *Client) FetchQuote(ctx context.Context) (domain.Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.path, nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("%w: create request: %w", domain.ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("%w: do request: %w", domain.ErrFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.Quote{}, fmt.Errorf("%w: read response: %w", domain.ErrFetch, err)
	}

	if resp.StatusCode != http.StatusOK {
		return domain.Quote{}, fmt.Errorf("%w: dolarapi status %d: %s", domain.ErrFetch, resp.StatusCode, truncate(body, 200))
	}

	return decodeQuote(body)
}

func decodeQuote(body []byte) (domain.Quote, error) {
	var raw QuoteResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.Quote{}, fmt.Errorf("%w: failed to parse response: %w | Body: %s", domain.ErrFetch, err, truncate(body, 200))
	}

	if !raw.Compra.Valid || !raw.Venta.Valid {
		return domain.Quote{}, fmt.Errorf("%w: response without compra/venta", domain.ErrFetch)
	}

	// Rounded so the baseline compares equal after a NUMERIC(18,2) round-trip.
	return domain.Quote{
		BuyPrice:        raw.Compra.Decimal.Round(pricePlaces),
		SellPrice:       raw.Venta.Decimal.Round(pricePlaces),
		SourceTimestamp: raw.FechaActualizacion,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
