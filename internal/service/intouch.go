package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"kanzey-backend/config"
	"kanzey-backend/internal/util"

	"go.uber.org/zap"
)

// ProviderStatus is the provider-side state of a transaction as reported
// by the status endpoint.
type ProviderStatus string

const (
	ProviderStatusSuccess ProviderStatus = "success"
	ProviderStatusPending ProviderStatus = "pending"
	ProviderStatusFailed  ProviderStatus = "failed"
)

// InTouchClient talks to the InTouch mobile-money gateway. The purchase
// flow itself happens on the gateway's hosted page; this client only
// builds the redirect URL and performs server-to-server status queries.
type InTouchClient struct {
	cfg         config.InTouchConfig
	frontendURL string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewInTouchClient creates a new InTouch gateway client
func NewInTouchClient(cfg config.InTouchConfig, frontendURL string) *InTouchClient {
	return &InTouchClient{
		cfg:         cfg,
		frontendURL: frontendURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		logger:      util.GetLogger(),
	}
}

// BuildRedirectURL constructs the hosted-checkout URL for a transaction.
// The gateway calls back to the return/cancel URLs after its flow, both
// parameterized with the transaction identifier.
func (c *InTouchClient) BuildRedirectURL(amount int64, transactionID string) string {
	params := url.Values{}
	params.Set("merchant_id", c.cfg.MerchantID)
	params.Set("secret_key", c.cfg.SecretKey)
	params.Set("amount", strconv.FormatInt(amount, 10))
	params.Set("transaction_id", transactionID)
	params.Set("return_url", fmt.Sprintf("%s/payment/success?transaction=%s", c.frontendURL, transactionID))
	params.Set("cancel_url", fmt.Sprintf("%s/payment/cancel?transaction=%s", c.frontendURL, transactionID))

	return c.cfg.RedirectURL + "?" + params.Encode()
}

// QueryStatus asks the gateway for the authoritative state of a
// transaction. Used by the return path, which must never trust the
// browser redirect alone.
func (c *InTouchClient) QueryStatus(ctx context.Context, transactionID string) (ProviderStatus, error) {
	params := url.Values{}
	params.Set("merchant_id", c.cfg.MerchantID)
	params.Set("secret_key", c.cfg.SecretKey)
	params.Set("transaction_id", transactionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.StatusURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		util.ProviderStatusQueriesTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: intouch status query: %v", ErrExternalService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		util.ProviderStatusQueriesTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: intouch status query returned %d", ErrExternalService, resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
		Amount int64  `json:"amount"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		util.ProviderStatusQueriesTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: malformed intouch status response: %v", ErrExternalService, err)
	}

	status := MapProviderStatus(body.Status)
	util.ProviderStatusQueriesTotal.WithLabelValues(string(status)).Inc()
	c.logger.Info("InTouch status query",
		zap.String("transaction_id", transactionID),
		zap.String("status", body.Status))
	return status, nil
}

// MapProviderStatus maps the gateway's status codes onto the three states
// this system acts on. SUCCESS and COMPLETED both confirm; INITIATED and
// PENDING leave the ticket pending; everything else fails it.
func MapProviderStatus(code string) ProviderStatus {
	switch code {
	case "SUCCESS", "COMPLETED":
		return ProviderStatusSuccess
	case "PENDING", "INITIATED", "PROCESSING":
		return ProviderStatusPending
	default:
		return ProviderStatusFailed
	}
}
