package authflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// cliCredential is one profile entry in ~/.sas/credentials.json as written
// by "sas-viya auth login".
type cliCredential struct {
	AccessToken  string `json:"access-token"`
	RefreshToken string `json:"refresh-token"`
	Expiry       string `json:"expiry"`
}

// cliProfile is one profile entry in ~/.sas/config.json.
type cliProfile struct {
	Endpoint string `json:"sas-endpoint"`
}

// readCLIProfile loads the named profile from the sas-viya CLI files under
// configDir/.sas. It returns the stored tokens and the profile's endpoint
// (which may be empty when config.json is absent).
func readCLIProfile(configDir, profile string) (cliCredential, string, error) {
	sasDir := filepath.Join(configDir, ".sas")

	credPath := filepath.Join(sasDir, "credentials.json")
	b, err := os.ReadFile(credPath)
	if err != nil {
		return cliCredential{}, "", fmt.Errorf("authflow: read %s: %w", credPath, err)
	}
	var creds map[string]cliCredential
	if err := json.Unmarshal(b, &creds); err != nil {
		return cliCredential{}, "", fmt.Errorf("authflow: parse %s: %w", credPath, err)
	}
	cred, ok := creds[profile]
	if !ok {
		return cliCredential{}, "", fmt.Errorf("%w: profile %q not in %s", ErrNoCredentials, profile, credPath)
	}
	if cred.AccessToken == "" && cred.RefreshToken == "" {
		return cliCredential{}, "", fmt.Errorf("%w: profile %q has no tokens", ErrNoCredentials, profile)
	}

	endpoint := ""
	if b, err := os.ReadFile(filepath.Join(sasDir, "config.json")); err == nil {
		var profiles map[string]cliProfile
		if err := json.Unmarshal(b, &profiles); err == nil {
			endpoint = profiles[profile].Endpoint
		}
	}
	return cred, endpoint, nil
}

// cliExpired reports whether a CLI credential's recorded expiry has passed.
// An unparseable or absent expiry defers to the token's own exp claim.
func cliExpired(cred cliCredential, now time.Time) bool {
	if cred.Expiry != "" {
		if exp, err := time.Parse(time.RFC3339, cred.Expiry); err == nil {
			return !now.Add(expiryLeeway).Before(exp)
		}
	}
	if cred.AccessToken == "" {
		return true
	}
	return stale(cred.AccessToken, now)
}
