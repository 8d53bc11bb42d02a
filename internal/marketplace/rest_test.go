package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosslist/internal/core/apperror"
	"crosslist/internal/core/types"
	"crosslist/internal/domain/listing"
)

func staticTokens(value string) *TokenSource {
	return NewTokenSource(func(ctx context.Context) (Token, error) {
		return Token{Value: value, ExpiresAt: time.Now().Add(time.Hour)}, nil
	})
}

func TestRESTAdapter_SetQuantity(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody quantityRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewRESTAdapter(RESTConfig{Name: "EBAY", BaseURL: srv.URL}, staticTokens("tok-1"))
	err := a.SetQuantity(context.Background(), "offer-9", "SKU-1", 0)

	require.NoError(t, err)
	assert.Equal(t, "/offers/offer-9/quantity", gotPath)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, quantityRequest{SKU: "SKU-1", Quantity: 0}, gotBody)
}

func TestRESTAdapter_SetPrice(t *testing.T) {
	var gotBody priceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	a := NewRESTAdapter(RESTConfig{Name: "EBAY", BaseURL: srv.URL}, staticTokens("tok-1"))
	err := a.SetPrice(context.Background(), "offer-9", types.MustMoney("143.675"), "USD")

	require.NoError(t, err)
	assert.Equal(t, priceRequest{Price: "143.68", Currency: "USD"}, gotBody)
}

func TestRESTAdapter_ErrorStatusCarriesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"offer locked"}`))
	}))
	defer srv.Close()

	a := NewRESTAdapter(RESTConfig{Name: "JOOM", BaseURL: srv.URL}, staticTokens("tok-1"))
	err := a.SetQuantity(context.Background(), "offer-9", "SKU-1", 0)

	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeMarketplace, appErr.Code)
	assert.Contains(t, appErr.Err.Error(), "offer locked")
}

func TestRESTAdapter_UnauthorizedInvalidatesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	refreshes := 0
	tokens := NewTokenSource(func(ctx context.Context) (Token, error) {
		refreshes++
		return Token{Value: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
	})

	a := NewRESTAdapter(RESTConfig{Name: "EBAY", BaseURL: srv.URL}, tokens)
	require.Error(t, a.SetQuantity(context.Background(), "o", "s", 0))
	require.Error(t, a.SetQuantity(context.Background(), "o", "s", 0))

	assert.Equal(t, 2, refreshes, "each 401 drops the cached token")
}

func TestTokenSource_CachesUntilExpiry(t *testing.T) {
	refreshes := 0
	tokens := NewTokenSource(func(ctx context.Context) (Token, error) {
		refreshes++
		return Token{Value: "tok", ExpiresAt: time.Now().Add(time.Hour)}, nil
	})

	for i := 0; i < 5; i++ {
		tok, err := tokens.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok", tok.Value)
	}
	assert.Equal(t, 1, refreshes)
}

func TestTokenSource_ExpiredTokenRefreshes(t *testing.T) {
	refreshes := 0
	tokens := NewTokenSource(func(ctx context.Context) (Token, error) {
		refreshes++
		// Inside the 30s safety margin, so never considered valid.
		return Token{Value: "tok", ExpiresAt: time.Now().Add(10 * time.Second)}, nil
	})

	_, _ = tokens.Get(context.Background())
	_, _ = tokens.Get(context.Background())

	assert.Equal(t, 2, refreshes)
}

func TestTokenSource_RefreshErrorPropagates(t *testing.T) {
	boom := errors.New("auth endpoint down")
	tokens := NewTokenSource(func(ctx context.Context) (Token, error) {
		return Token{}, boom
	})

	_, err := tokens.Get(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRegistry_Resolve(t *testing.T) {
	a := NewRESTAdapter(RESTConfig{Name: "EBAY", BaseURL: "http://x"}, staticTokens("t"))
	r := NewRegistry(map[listing.Marketplace]Adapter{listing.MarketplaceEbay: a})

	got, ok := r.Resolve(listing.MarketplaceEbay)
	assert.True(t, ok)
	assert.Same(t, a, got)

	_, ok = r.Resolve(listing.MarketplaceJoom)
	assert.False(t, ok)
}
