package authflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// tokenKeysPath serves the SASLogon signing keys as a JWKS document.
const tokenKeysPath = "/SASLogon/token_keys"

// Verifier validates access-token signatures against the Viya deployment's
// published signing keys. The key set refreshes itself in the background
// until ctx is canceled.
type Verifier struct {
	jwks keyfunc.Keyfunc
}

// NewVerifier fetches the JWKS from the deployment's token_keys endpoint.
func NewVerifier(ctx context.Context, host string) (*Verifier, error) {
	u := strings.TrimRight(host, "/") + tokenKeysPath
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{u})
	if err != nil {
		return nil, fmt.Errorf("authflow: fetch JWKS from %s: %w", u, err)
	}
	return &Verifier{jwks: jwks}, nil
}

// Verify checks the token's signature and standard time claims.
func (v *Verifier) Verify(token string) error {
	_, err := jwt.Parse(token, v.jwks.Keyfunc)
	return err
}
