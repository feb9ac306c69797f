package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"farepay/internal/app/payments"
	"farepay/internal/domain"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx answer from the farepay API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("farepay api: http %d", e.StatusCode)
	}
	return fmt.Sprintf("farepay api: http %d: %s", e.StatusCode, e.Message)
}

// Client talks to the farepay HTTP API on behalf of a rider device.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Initiate asks the server to send a push prompt and returns the merchant reference to poll.
func (c *Client) Initiate(ctx context.Context, req payments.InitiatePaymentRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode payment request: %w", err)
	}

	var resp payments.InitiatePaymentResponse
	if err := c.do(ctx, http.MethodPost, "/api/pay", bytes.NewReader(body), &resp); err != nil {
		return "", err
	}
	if resp.MerchantReference == "" {
		return "", errors.New("farepay api: response carried no merchant reference")
	}
	return resp.MerchantReference, nil
}

// QueryStatus performs one status query. A not_found answer is a normal result.
func (c *Client) QueryStatus(ctx context.Context, merchantReference string) (domain.StatusView, error) {
	var resp payments.StatusResponse
	path := "/api/status/" + url.PathEscape(merchantReference)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return domain.StatusView{}, err
	}
	return resp.View(merchantReference), nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("farepay api %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr payments.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		c.logger.Debug("API request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("error", apiErr.Error))
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
