package authflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// logonTokenPath is the SASLogon OAuth token endpoint relative to the Viya
// server base URL.
const logonTokenPath = "/SASLogon/oauth/token"

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// exchangeToken posts an OAuth grant to SASLogon and returns the access
// token plus its remaining lifetime.
func exchangeToken(ctx context.Context, hc *http.Client, host string, form url.Values, clientID, clientSecret string) (string, time.Duration, error) {
	endpoint := strings.TrimRight(host, "/") + logonTokenPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("authflow: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(clientID, clientSecret)

	res, err := hc.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("authflow: token request to %s: %w", endpoint, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", 0, fmt.Errorf("authflow: read token response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("authflow: token endpoint returned %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, fmt.Errorf("authflow: decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", 0, fmt.Errorf("authflow: token endpoint returned no access_token")
	}
	return tr.AccessToken, time.Duration(tr.ExpiresIn) * time.Second, nil
}

func refreshGrant(ctx context.Context, hc *http.Client, host, refreshToken, clientID, clientSecret string) (string, time.Duration, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return exchangeToken(ctx, hc, host, form, clientID, clientSecret)
}

func passwordGrant(ctx context.Context, hc *http.Client, host, username, password, clientID, clientSecret string) (string, time.Duration, error) {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {username},
		"password":   {password},
	}
	return exchangeToken(ctx, hc, host, form, clientID, clientSecret)
}
