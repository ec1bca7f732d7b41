// Package erp talks to the back-office system. Escalations and confirmation
// write-backs are fire-once-per-claim posts; the remote side keys records by
// (order, phase) and tolerates repeats.
package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Jconte1/auth-api/internal/notify"
)

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Log     *zap.Logger
}

func NewClient(baseURL, token string, log *zap.Logger) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		Log:     log,
	}
}

func (c *Client) PostDeliveryEscalation(ctx context.Context, req notify.EscalationRequest) (notify.EscalationResult, error) {
	// Unwired environments (dev, staging without ERP creds) accept the
	// escalation locally so the engine's state machine still advances.
	if c.BaseURL == "" {
		c.Log.Info("erp base url not set; escalation accepted locally",
			zap.String("phase", req.Phase),
			zap.String("order_nbr", req.OrderNbr),
			zap.String("reason", req.Reason),
			zap.Int("days_out", req.DaysOut),
		)
		return notify.EscalationResult{OK: true}, nil
	}

	var res notify.EscalationResult
	if err := c.post(ctx, "/escalations/delivery", req, &res); err != nil {
		return notify.EscalationResult{}, err
	}
	return res, nil
}

// OrderConfirmation is the write-back after a customer confirms a delivery
// date. Best effort: callers log failures and move on.
type OrderConfirmation struct {
	OrderID       uint64     `json:"orderId"`
	BAID          string     `json:"baid"`
	OrderNbr      string     `json:"orderNbr"`
	DeliveryDate  *time.Time `json:"deliveryDate"`
	ConfirmedVia  string     `json:"confirmedVia"`
	ConfirmedWith string     `json:"confirmedWith"`
}

func (c *Client) PostOrderConfirmed(ctx context.Context, conf OrderConfirmation) error {
	if c.BaseURL == "" {
		c.Log.Info("erp base url not set; confirmation write skipped",
			zap.String("order_nbr", conf.OrderNbr),
		)
		return nil
	}
	return c.post(ctx, "/orders/confirm", conf, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("erp marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("erp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("erp post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("erp post %s: status %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("erp decode %s: %w", path, err)
		}
	}
	return nil
}
