// Package verify wraps the external phone-verification collaborator: given a
// one-time credential, it returns the phone number the provider verified.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultCheckTimeout bounds a single provider call.
const DefaultCheckTimeout = 10 * time.Second

// Provider resolves a one-time verification token to a verified phone
// number. Implementations must bound the call with a timeout.
type Provider interface {
	Check(ctx context.Context, token string) (phone string, err error)
}

// HTTPProvider implements Provider against the provider's REST check
// endpoint.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProvider creates a new provider client.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) (*HTTPProvider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("verification provider base URL is required")
	}
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Check exchanges the one-time token for the phone number the provider
// verified. Any non-200 response is a provider failure.
func (p *HTTPProvider) Check(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("verification token is required")
	}

	checkURL := p.baseURL + "/v1/check?" + url.Values{"token": {token}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build verification request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("verification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("verification provider returned status %d", resp.StatusCode)
	}

	var payload struct {
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode verification response: %w", err)
	}
	if payload.Phone == "" {
		return "", fmt.Errorf("verification response is missing the phone number")
	}
	return NormalizePhone(payload.Phone), nil
}

// NormalizePhone canonicalizes a phone number for comparison and storage:
// digits only, with a single leading + preserved when present.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	var b strings.Builder
	for i, ch := range phone {
		if ch == '+' && i == 0 {
			b.WriteRune(ch)
			continue
		}
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}
