package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"crosslist/internal/core/apperror"
	"crosslist/internal/core/types"
)

// RESTConfig configures a RESTAdapter.
type RESTConfig struct {
	// Name identifies the marketplace in errors and logs.
	Name string

	// BaseURL of the marketplace inventory API.
	BaseURL string

	// Timeout per HTTP call.
	Timeout time.Duration
}

// RESTAdapter implements Adapter over a JSON inventory API with bearer
// authentication. Both sales channels expose the same minimal surface the
// engine needs: an offer quantity endpoint and an offer price endpoint.
type RESTAdapter struct {
	cfg    RESTConfig
	tokens *TokenSource
	client *http.Client
}

// NewRESTAdapter creates a REST adapter with its token source.
func NewRESTAdapter(cfg RESTConfig, tokens *TokenSource) *RESTAdapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RESTAdapter{
		cfg:    cfg,
		tokens: tokens,
		client: &http.Client{Timeout: timeout},
	}
}

type quantityRequest struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

type priceRequest struct {
	Price    string `json:"price"`
	Currency string `json:"currency"`
}

// SetQuantity implements Adapter.
func (a *RESTAdapter) SetQuantity(ctx context.Context, remoteListingID, sku string, qty int) error {
	url := fmt.Sprintf("%s/offers/%s/quantity", a.cfg.BaseURL, remoteListingID)
	return a.put(ctx, url, quantityRequest{SKU: sku, Quantity: qty})
}

// SetPrice implements Adapter.
func (a *RESTAdapter) SetPrice(ctx context.Context, remoteListingID string, price types.Money, currency string) error {
	url := fmt.Sprintf("%s/offers/%s/price", a.cfg.BaseURL, remoteListingID)
	return a.put(ctx, url, priceRequest{Price: price.StringFixed(2), Currency: currency})
}

func (a *RESTAdapter) put(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	tok, err := a.tokens.Get(ctx)
	if err != nil {
		return fmt.Errorf("%s token: %w", a.cfg.Name, err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.Value)

	resp, err := a.client.Do(req)
	if err != nil {
		return apperror.NewMarketplace(a.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Token went stale between Get and the call. Drop it; the retry
		// wrapping this push will fetch a fresh one.
		a.tokens.Invalidate()
	}
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperror.NewMarketplace(a.cfg.Name,
			fmt.Errorf("status %d: %s", resp.StatusCode, string(detail)))
	}
	return nil
}
