package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"kanzey-backend/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRedirectURL(t *testing.T) {
	client := NewInTouchClient(config.InTouchConfig{
		RedirectURL: "https://pay.example/checkout",
		MerchantID:  "m-123",
		SecretKey:   "sk-456",
	}, "https://kanzey.example")

	raw := client.BuildRedirectURL(15000, "KANZ-1-abc")

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "pay.example", parsed.Host)

	params := parsed.Query()
	assert.Equal(t, "m-123", params.Get("merchant_id"))
	assert.Equal(t, "sk-456", params.Get("secret_key"))
	assert.Equal(t, "15000", params.Get("amount"))
	assert.Equal(t, "KANZ-1-abc", params.Get("transaction_id"))
	assert.Equal(t, "https://kanzey.example/payment/success?transaction=KANZ-1-abc", params.Get("return_url"))
	assert.Equal(t, "https://kanzey.example/payment/cancel?transaction=KANZ-1-abc", params.Get("cancel_url"))
}

func TestMapProviderStatus(t *testing.T) {
	cases := map[string]ProviderStatus{
		"SUCCESS":    ProviderStatusSuccess,
		"COMPLETED":  ProviderStatusSuccess,
		"PENDING":    ProviderStatusPending,
		"INITIATED":  ProviderStatusPending,
		"PROCESSING": ProviderStatusPending,
		"FAILED":     ProviderStatusFailed,
		"DECLINED":   ProviderStatusFailed,
		"":           ProviderStatusFailed,
		"garbage":    ProviderStatusFailed,
	}
	for code, want := range cases {
		assert.Equal(t, want, MapProviderStatus(code), "code %q", code)
	}
}

func TestQueryStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "m-123", r.URL.Query().Get("merchant_id"))
		assert.Equal(t, "KANZ-1-abc", r.URL.Query().Get("transaction_id"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"COMPLETED","amount":15000}`))
	}))
	defer srv.Close()

	client := NewInTouchClient(config.InTouchConfig{
		StatusURL:  srv.URL,
		MerchantID: "m-123",
		SecretKey:  "sk-456",
	}, "https://kanzey.example")

	status, err := client.QueryStatus(context.Background(), "KANZ-1-abc")
	require.NoError(t, err)
	assert.Equal(t, ProviderStatusSuccess, status)
}

func TestQueryStatusUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewInTouchClient(config.InTouchConfig{StatusURL: srv.URL}, "https://kanzey.example")

	_, err := client.QueryStatus(context.Background(), "KANZ-1-abc")
	assert.ErrorIs(t, err, ErrExternalService)
}
