// Package paymentprovider клиент Orders API платёжного провайдера (Razorpay-совместимый).
package paymentprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/magabrotheeeer/connection-engine/internal/config"
	"github.com/magabrotheeeer/connection-engine/internal/lib/apperr"
)

// Client ходит в API провайдера с basic-авторизацией по ключу магазина.
type Client struct {
	keyID      string
	keySecret  string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт клиент по секции payment конфига.
func NewClient(cfg config.Payment) *Client {
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		keyID:      cfg.ProviderKeyID,
		keySecret:  cfg.ProviderKeySecret,
		apiURL:     strings.TrimRight(cfg.ProviderAPIURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// CreateOrder создаёт заказ. amount передаётся в основных единицах и
// переводится в минимальные (умножается на 100).
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency string) (*Order, error) {
	const op = "paymentprovider.CreateOrder"
	if amount <= 0 {
		return nil, fmt.Errorf("%s: %w: amount must be positive", op, apperr.ErrInvalidRequest)
	}
	if currency == "" {
		currency = DefaultCurrency
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/orders", CreateOrderRequest{
		Amount:   amount * 100,
		Currency: currency,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, apperr.ErrProvider, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, apperr.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%s: %w: %s", op, apperr.ErrProvider, describe(resp))
	}

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("%s: %w: decode order: %w", op, apperr.ErrProvider, err)
	}
	return &order, nil
}

func describe(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e errorResponse
	if json.Unmarshal(body, &e) == nil && e.Error.Description != "" {
		return fmt.Sprintf("unexpected status %s: %s", resp.Status, e.Error.Description)
	}
	return "unexpected status: " + resp.Status
}
