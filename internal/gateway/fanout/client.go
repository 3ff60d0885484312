package fanout

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

// ErrFanoutUnavailable is returned when the notification service cannot
// be reached or answers with garbage within the timeout.
var ErrFanoutUnavailable = errors.New("notification fanout unavailable")

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is the HTTP adapter to the external notification delivery
// service. Delivery mechanics (push vs in-app) are that service's
// concern; this client only hands over a user id list and a payload.
type Client struct {
	cfg  Config
	http *http.Client
}

type Payload struct {
	ListingID  int64  `json:"listing_id"`
	Title      string `json:"title"`
	Category   string `json:"category"`
	SellerName string `json:"seller_name"`
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:  cfg,
		http: httpclient.New(cfg.Timeout),
	}
}

// Send dispatches one notification batch and returns the delivered
// count as reported by the fanout service.
func (c *Client) Send(ctx context.Context, userIDs []int64, payload Payload) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}

	body, err := json.Marshal(map[string]any{
		"user_ids": userIDs,
		"payload":  payload,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal fanout payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/notifications/batch", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build fanout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFanoutUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: fanout returned %d", ErrFanoutUnavailable, resp.StatusCode)
	}

	var out struct {
		Delivered int `json:"delivered"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", ErrFanoutUnavailable, err)
	}

	return out.Delivered, nil
}
