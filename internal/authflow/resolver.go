package authflow

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Resolver turns session credentials into logon payloads. It owns the token
// exchange transport and the access-token cache; callers hold the resulting
// payload and hand it back on the next call so fresh tokens are reused.
type Resolver struct {
	log          *slog.Logger
	hc           *http.Client
	cache        TokenCache
	verifier     *Verifier
	forceRefresh bool
	now          func() time.Time
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithHTTPClient sets the client used for token exchanges.
func WithHTTPClient(hc *http.Client) ResolverOption {
	return func(r *Resolver) { r.hc = hc }
}

// WithTokenCache sets the exchanged-token cache.
func WithTokenCache(c TokenCache) ResolverOption {
	return func(r *Resolver) { r.cache = c }
}

// WithForceRefresh makes every Resolve ignore the cached payload, matching
// TOKENREFRESH=true.
func WithForceRefresh(force bool) ResolverOption {
	return func(r *Resolver) { r.forceRefresh = force }
}

// WithVerifier enables signature validation of direct tokens.
func WithVerifier(v *Verifier) ResolverOption {
	return func(r *Resolver) { r.verifier = v }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

// NewResolver builds a Resolver. The logger is required; everything else
// has workable defaults.
func NewResolver(log *slog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		log:   log,
		hc:    http.DefaultClient,
		cache: NewMemoryTokenCache(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve produces the logon payload for one tool call. cached is the
// payload from the previous call on the same session, or nil; it is reused
// when force refresh is off and the token is not near expiry.
func (r *Resolver) Resolve(ctx context.Context, host string, cred *Credential, cached *LogonPayload) (*LogonPayload, error) {
	if cred == nil {
		return nil, ErrNoCredentials
	}
	if cred.Flow == FlowNone {
		return &LogonPayload{Host: host, AuthType: AuthTypeNone}, nil
	}
	if host == "" {
		return nil, fmt.Errorf("authflow: no Viya server configured")
	}

	if cached != nil && !r.forceRefresh && cached.Token != "" && !stale(cached.Token, r.now()) {
		return cached, nil
	}

	token, err := r.accessToken(ctx, host, cred)
	if err != nil {
		return nil, err
	}
	if r.verifier != nil {
		if err := r.verifier.Verify(token); err != nil {
			return nil, fmt.Errorf("authflow: token rejected: %w", err)
		}
	}
	return &LogonPayload{
		Host:      host,
		AuthType:  AuthTypeServer,
		Token:     token,
		TokenType: "Bearer",
	}, nil
}

func (r *Resolver) accessToken(ctx context.Context, host string, cred *Credential) (string, error) {
	switch cred.Flow {
	case FlowBearer, FlowToken:
		if cred.token == "" {
			return "", fmt.Errorf("%w: no token for flow %q", ErrNoCredentials, cred.Flow)
		}
		return cred.token, nil

	case FlowCode:
		if cred.token == "" {
			return "", ErrAuthenticationPending
		}
		return cred.token, nil

	case FlowRefresh:
		return r.exchangeCached(ctx, host, cred.refreshToken, func(ctx context.Context) (string, time.Duration, error) {
			return refreshGrant(ctx, r.hc, host, cred.refreshToken, cred.clientID, cred.clientSecret)
		})

	case FlowPassword:
		return r.exchangeCached(ctx, host, cred.username+"\x00"+cred.password, func(ctx context.Context) (string, time.Duration, error) {
			return passwordGrant(ctx, r.hc, host, cred.username, cred.password, cred.clientID, cred.clientSecret)
		})

	case FlowCLI:
		return r.cliToken(ctx, host, cred)
	}
	return "", fmt.Errorf("authflow: unknown flow %q", cred.Flow)
}

// exchangeCached consults the token cache before running a grant. Under a
// forced-refresh policy the cache is write-only: every resolution runs the
// grant, and the cache exists for other instances sharing it.
func (r *Resolver) exchangeCached(ctx context.Context, host, secret string, grant func(context.Context) (string, time.Duration, error)) (string, error) {
	key := cacheKey(host, secret)
	if !r.forceRefresh {
		if tok, ok := r.cache.Get(ctx, key); ok && !stale(tok, r.now()) {
			return tok, nil
		}
	}

	tok, lifetime, err := grant(ctx)
	if err != nil {
		return "", err
	}
	r.log.InfoContext(ctx, "auth.token.exchanged", slog.String("host", host), slog.Duration("lifetime", lifetime))

	ttl := lifetime - expiryLeeway
	if ttl > 0 {
		r.cache.Set(ctx, key, tok, ttl)
	}
	return tok, nil
}

func (r *Resolver) cliToken(ctx context.Context, host string, cred *Credential) (string, error) {
	cli, _, err := readCLIProfile(cred.configDir, cred.profile)
	if err != nil {
		return "", err
	}
	if cli.AccessToken != "" && !cliExpired(cli, r.now()) {
		return cli.AccessToken, nil
	}
	if cli.RefreshToken == "" {
		return "", fmt.Errorf("%w: profile %q token expired and no refresh token; run sas-viya auth login", ErrNoCredentials, cred.profile)
	}
	return r.exchangeCached(ctx, host, cli.RefreshToken, func(ctx context.Context) (string, time.Duration, error) {
		return refreshGrant(ctx, r.hc, host, cli.RefreshToken, DefaultClientID, "")
	})
}

// CLIEndpoint returns the sas-endpoint recorded for a sascli credential's
// profile, used when no Viya server is configured explicitly.
func CLIEndpoint(cred Credential) (string, error) {
	if cred.Flow != FlowCLI {
		return "", fmt.Errorf("authflow: flow %q has no endpoint file", cred.Flow)
	}
	_, endpoint, err := readCLIProfile(cred.configDir, cred.profile)
	if err != nil {
		return "", err
	}
	return endpoint, nil
}
