// Package billing starts hosted checkout sessions through the payment
// backend function.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AnshRaj112/civicpulse-backend/internal/apperr"
)

const defaultTimeout = 15 * time.Second

type Client struct {
	endpoint   string
	prices     map[string]string
	httpClient *http.Client
	logger     *zap.Logger
}

// New returns a checkout client. prices maps plan names to price ids.
func New(endpoint string, prices map[string]string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint:   strings.TrimSpace(endpoint),
		prices:     prices,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

type checkoutRequest struct {
	PriceID       string `json:"priceId"`
	Plan          string `json:"plan"`
	CustomerEmail string `json:"customerEmail,omitempty"`
}

type checkoutResponse struct {
	URL   string `json:"url"`
	Error string `json:"error,omitempty"`
}

// Checkout returns the hosted checkout URL for plan.
func (c *Client) Checkout(ctx context.Context, plan, email string) (string, error) {
	plan = strings.ToLower(strings.TrimSpace(plan))
	priceID, known := c.prices[plan]
	if !known {
		return "", apperr.Config("unknown_plan", fmt.Sprintf("Plan %q is not available.", plan))
	}
	if priceID == "" || c.endpoint == "" {
		return "", apperr.Config("billing_unconfigured", "Checkout is not configured for this plan.")
	}

	body, err := json.Marshal(checkoutRequest{PriceID: priceID, Plan: plan, CustomerEmail: strings.TrimSpace(email)})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperr.External("checkout_failed", "Failed to start checkout. Please try again.", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperr.External("checkout_failed", "Failed to start checkout. Please try again.", err)
	}
	var out checkoutResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode != http.StatusOK || out.URL == "" {
		c.logger.Error("checkout function error",
			zap.Int("status", resp.StatusCode),
			zap.String("plan", plan),
			zap.String("error", out.Error))
		return "", apperr.External("checkout_failed", "Failed to start checkout. Please try again.",
			fmt.Errorf("checkout status %d", resp.StatusCode))
	}
	return out.URL, nil
}
