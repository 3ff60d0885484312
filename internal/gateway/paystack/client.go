package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/olatunbosunprowess2-hue/tradeplus-sub001/internal/infra/httpclient"
)

// ErrGatewayUnavailable covers transport failures, timeouts and
// responses the adapter cannot parse. Callers leave the purchase
// pending and may retry.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

const (
	ChargeStatusSuccess   = "success"
	ChargeStatusFailed    = "failed"
	ChargeStatusAbandoned = "abandoned"
)

type Config struct {
	BaseURL     string
	SecretKey   string
	CallbackURL string
	Timeout     time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

type VerifyResult struct {
	Status           string
	AmountMinorUnits int64
	Currency         string
	PaidAt           string
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:  cfg,
		http: httpclient.New(cfg.Timeout),
	}
}

func (c *Client) Initialize(ctx context.Context, email string, amountMinor int64, currency, reference string) (InitializeResult, error) {
	body, err := json.Marshal(map[string]any{
		"email":        email,
		"amount":       amountMinor,
		"currency":     strings.ToUpper(currency),
		"reference":    reference,
		"callback_url": c.cfg.CallbackURL,
	})
	if err != nil {
		return InitializeResult{}, fmt.Errorf("marshal initialize payload: %w", err)
	}

	var resp struct {
		Status bool `json:"status"`
		Data   struct {
			AuthorizationURL string `json:"authorization_url"`
			AccessCode       string `json:"access_code"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, "/transaction/initialize", body, &resp); err != nil {
		return InitializeResult{}, err
	}
	if !resp.Status || resp.Data.AuthorizationURL == "" {
		return InitializeResult{}, ErrGatewayUnavailable
	}

	return InitializeResult{
		AuthorizationURL: resp.Data.AuthorizationURL,
		AccessCode:       resp.Data.AccessCode,
		Reference:        resp.Data.Reference,
	}, nil
}

func (c *Client) Verify(ctx context.Context, reference string) (VerifyResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return VerifyResult{}, fmt.Errorf("verify reference is required")
	}

	var resp struct {
		Status bool `json:"status"`
		Data   struct {
			Status   string `json:"status"`
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
			PaidAt   string `json:"paid_at"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, "/transaction/verify/"+reference, &resp); err != nil {
		return VerifyResult{}, err
	}
	if !resp.Status {
		return VerifyResult{}, ErrGatewayUnavailable
	}

	return VerifyResult{
		Status:           strings.ToLower(resp.Data.Status),
		AmountMinorUnits: resp.Data.Amount,
		Currency:         strings.ToUpper(resp.Data.Currency),
		PaidAt:           resp.Data.PaidAt,
	}, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body []byte, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, target)
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	return c.do(req, target)
}

func (c *Client) do(req *http.Request, target any) error {
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: gateway returned %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		// Unparseable gateway responses are treated as unavailability,
		// never as a definitive charge outcome.
		return fmt.Errorf("%w: decode response: %v", ErrGatewayUnavailable, err)
	}

	return nil
}
