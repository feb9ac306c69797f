package daraja

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"farepay/internal/domain"
)

const defaultTokenLifetime = 3599 * time.Second

// tokenSource performs the client-credentials exchange. Daraja wants a GET with
// HTTP Basic credentials, which the stock clientcredentials flow does not send.
type tokenSource struct {
	baseURL        string
	consumerKey    string
	consumerSecret string
	httpClient     *http.Client
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	ExpiresIn    json.Number `json:"expires_in"`
	ErrorCode    string      `json:"errorCode"`
	ErrorMessage string      `json:"errorMessage"`
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	req, err := http.NewRequest(http.MethodGet, s.baseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build credential request: %w", err)
	}
	req.SetBasicAuth(s.consumerKey, s.consumerSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewGatewayError("", fmt.Errorf("credential exchange failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, domain.NewGatewayError("", fmt.Errorf("failed to read credential response: %w", err))
	}

	var body tokenResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil && resp.StatusCode == http.StatusOK {
			return nil, domain.NewGatewayError("", fmt.Errorf("failed to decode credential response: %w", err))
		}
	}
	if resp.StatusCode != http.StatusOK || body.AccessToken == "" {
		return nil, domain.NewGatewayError(body.ErrorMessage,
			fmt.Errorf("credential exchange returned status %d", resp.StatusCode))
	}

	lifetime := defaultTokenLifetime
	if secs, err := body.ExpiresIn.Int64(); err == nil && secs > 0 {
		lifetime = time.Duration(secs) * time.Second
	}
	// oauth2.Token.Valid compares against the wall clock, so Expiry must too.
	return &oauth2.Token{
		AccessToken: body.AccessToken,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(lifetime),
	}, nil
}
