package daraja

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"farepay/internal/domain"
)

const (
	DefaultBaseURL         = "https://sandbox.safaricom.co.ke"
	DefaultTransactionType = "CustomerPayBillOnline"
	stkPushPath            = "/mpesa/stkpush/v1/processrequest"
	maxAccountReferenceLen = 12
)

type Config struct {
	BaseURL          string
	ConsumerKey      string
	ConsumerSecret   string
	ShortCode        string
	PassKey          string
	CallbackURL      string
	TransactionType  string
	AccountReference string
	Timeout          time.Duration
}

// Client sends STK push requests. Access tokens are fetched lazily and reused
// until shortly before they expire.
type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.TransactionType == "" {
		cfg.TransactionType = DefaultTransactionType
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	c := &Client{cfg: cfg, now: time.Now, logger: logger}

	base := &http.Client{Timeout: cfg.Timeout}
	source := &tokenSource{
		baseURL:        cfg.BaseURL,
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		httpClient:     base,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	c.httpClient = oauth2.NewClient(ctx, oauth2.ReuseTokenSource(nil, source))
	c.httpClient.Timeout = cfg.Timeout
	return c
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// InitiatePush sends the prompt. Failures are *domain.GatewayError, except an
// unusable payer number which is domain.ErrInvalidRequest.
func (c *Client) InitiatePush(ctx context.Context, req domain.PushRequest) (*domain.PushResult, error) {
	phone, err := NormalizePhone(req.PayerContact)
	if err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Truncate(0)) {
		return nil, domain.NewGatewayError("Amount must be a whole number of shillings.",
			fmt.Errorf("amount %s cannot be sent to the provider", req.Amount))
	}

	accountReference := req.AccountReference
	if accountReference == "" {
		accountReference = c.cfg.AccountReference
	}
	if len(accountReference) > maxAccountReferenceLen {
		accountReference = accountReference[:maxAccountReferenceLen]
	}
	timestamp := Timestamp(c.now())
	payload := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.PassKey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   c.cfg.TransactionType,
		Amount:            req.Amount.IntPart(),
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  accountReference,
		TransactionDesc:   req.Description,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode push request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+stkPushPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build push request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		var gwErr *domain.GatewayError
		if errors.As(err, &gwErr) {
			return nil, gwErr
		}
		return nil, domain.NewGatewayError("", fmt.Errorf("push request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, domain.NewGatewayError("", fmt.Errorf("failed to read push response: %w", err))
	}

	var out stkPushResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode != http.StatusOK || out.ResponseCode != "0" {
		message := out.ErrorMessage
		if message == "" && out.ResponseCode != "0" {
			message = out.ResponseDescription
		}
		c.logger.Warn("Provider rejected push request",
			zap.Int("http_status", resp.StatusCode),
			zap.String("error_code", out.ErrorCode),
			zap.String("response_code", out.ResponseCode),
			zap.String("message", message))
		return nil, domain.NewGatewayError(message, fmt.Errorf("push request returned status %d", resp.StatusCode))
	}
	if decodeErr != nil {
		return nil, domain.NewGatewayError("", fmt.Errorf("failed to decode push response: %w", decodeErr))
	}
	if out.CheckoutRequestID == "" {
		return nil, domain.NewGatewayError("", errors.New("push response carried no checkout request id"))
	}

	return &domain.PushResult{
		MerchantReference: out.CheckoutRequestID,
		ProviderRequestID: out.MerchantRequestID,
		CustomerMessage:   out.CustomerMessage,
	}, nil
}
