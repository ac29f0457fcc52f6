// Package recaptcha checks challenge widget tokens.
package recaptcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultEndpoint is Google's token verification endpoint.
const DefaultEndpoint = "https://www.google.com/recaptcha/api/siteverify"

// TestSiteKey is Google's public test key; it renders a widget that always
// passes.
const TestSiteKey = "6LeIxAcTAAAAAJcZVRqyHh71UMIEGNQ_MXjiZKhI"

// AcceptNonEmpty treats any non-empty token as a pass.
type AcceptNonEmpty struct{}

func (AcceptNonEmpty) Verify(_ context.Context, token, _ string) (bool, error) {
	return token != "", nil
}

// SiteVerifier posts tokens to the siteverify endpoint.
type SiteVerifier struct {
	secret   string
	endpoint string
	client   *http.Client
}

func NewSiteVerifier(secret string, client *http.Client) *SiteVerifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SiteVerifier{secret: secret, endpoint: DefaultEndpoint, client: client}
}

// WithEndpoint points the verifier somewhere else, e.g. a test server.
func (v *SiteVerifier) WithEndpoint(endpoint string) *SiteVerifier {
	v.endpoint = endpoint
	return v
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

func (v *SiteVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if token == "" {
		return false, nil
	}
	form := url.Values{"secret": {v.secret}, "response": {token}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("siteverify: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("siteverify: unexpected status %d", resp.StatusCode)
	}
	var out siteVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("siteverify: decode: %w", err)
	}
	return out.Success, nil
}
