// Package authflow resolves per-session credentials into logon payloads for
// Viya REST calls. Each session carries a Credential; a Resolver turns it
// into a bearer token, exchanging refresh tokens or reading CLI credential
// files as the flow requires.
package authflow

import (
	"errors"
	"fmt"
)

// Flow identifies how a session authenticates to Viya.
type Flow string

const (
	// FlowNone issues unauthenticated requests.
	FlowNone Flow = "none"
	// FlowBearer uses a caller-supplied access token as-is.
	FlowBearer Flow = "bearer"
	// FlowToken uses a statically configured access token.
	FlowToken Flow = "token"
	// FlowRefresh exchanges a refresh token for access tokens.
	FlowRefresh Flow = "refresh"
	// FlowPassword performs the resource-owner password grant.
	FlowPassword Flow = "password"
	// FlowCLI reads tokens from sas-viya CLI credential files.
	FlowCLI Flow = "sascli"
	// FlowCode expects the caller to authenticate out of band and supply a
	// token later. Tool calls fail with guidance until one arrives.
	FlowCode Flow = "code"
)

// ParseFlow validates a flow name from configuration.
func ParseFlow(s string) (Flow, error) {
	switch Flow(s) {
	case FlowNone, FlowBearer, FlowToken, FlowRefresh, FlowPassword, FlowCLI, FlowCode:
		return Flow(s), nil
	}
	return "", fmt.Errorf("authflow: unknown flow %q", s)
}

var (
	// ErrAuthenticationPending is returned for code-flow sessions that have
	// not yet supplied a token.
	ErrAuthenticationPending = errors.New("authflow: authentication pending")
	// ErrNoCredentials indicates the flow's required inputs are missing.
	ErrNoCredentials = errors.New("authflow: missing credentials")
)

// Credential is the validated input to a Resolver. Construct one with the
// per-flow constructors; the zero value is not usable.
type Credential struct {
	Flow Flow

	token        string
	refreshToken string
	username     string
	password     string
	clientID     string
	clientSecret string
	profile      string
	configDir    string
}

// DefaultClientID is the OAuth client used when none is configured. It
// matches the client the sas-viya CLI registers tokens under.
const DefaultClientID = "sas.cli"

// None returns a credential for unauthenticated sessions.
func None() Credential {
	return Credential{Flow: FlowNone}
}

// Bearer wraps a caller-supplied access token.
func Bearer(token string) (Credential, error) {
	if token == "" {
		return Credential{}, fmt.Errorf("%w: bearer flow needs a token", ErrNoCredentials)
	}
	return Credential{Flow: FlowBearer, token: token}, nil
}

// StaticToken wraps a statically configured access token.
func StaticToken(token string) (Credential, error) {
	if token == "" {
		return Credential{}, fmt.Errorf("%w: token flow needs a token", ErrNoCredentials)
	}
	return Credential{Flow: FlowToken, token: token}, nil
}

// Refresh wraps a refresh token for on-demand exchange.
func Refresh(refreshToken, clientID, clientSecret string) (Credential, error) {
	if refreshToken == "" {
		return Credential{}, fmt.Errorf("%w: refresh flow needs a refresh token", ErrNoCredentials)
	}
	if clientID == "" {
		clientID = DefaultClientID
	}
	return Credential{Flow: FlowRefresh, refreshToken: refreshToken, clientID: clientID, clientSecret: clientSecret}, nil
}

// Password carries resource-owner credentials for the password grant.
func Password(username, password, clientID, clientSecret string) (Credential, error) {
	if username == "" || password == "" {
		return Credential{}, fmt.Errorf("%w: password flow needs USERNAME and PASSWORD", ErrNoCredentials)
	}
	if clientID == "" {
		return Credential{}, fmt.Errorf("%w: password flow needs CLIENTID", ErrNoCredentials)
	}
	return Credential{Flow: FlowPassword, username: username, password: password, clientID: clientID, clientSecret: clientSecret}, nil
}

// CLIFile points at sas-viya CLI credential files under configDir/.sas.
func CLIFile(profile, configDir string) (Credential, error) {
	if profile == "" {
		profile = "Default"
	}
	if configDir == "" {
		return Credential{}, fmt.Errorf("%w: sascli flow needs a config directory", ErrNoCredentials)
	}
	return Credential{Flow: FlowCLI, profile: profile, configDir: configDir}, nil
}

// Code returns a credential that stays pending until SetToken is called.
func Code() Credential {
	return Credential{Flow: FlowCode}
}

// SetToken installs a token on a code-flow credential once the caller has
// authenticated out of band. Bearer credentials also accept replacement
// tokens from request headers.
func (c *Credential) SetToken(token string) error {
	switch c.Flow {
	case FlowCode, FlowBearer, FlowToken:
		c.token = token
		return nil
	}
	return fmt.Errorf("authflow: flow %q does not accept direct tokens", c.Flow)
}

// HasToken reports whether a direct token is present.
func (c *Credential) HasToken() bool { return c.token != "" }

// FromConfig builds the base credential for the configured flow. The
// arguments mirror the environment configuration surface.
func FromConfig(flow, token, refreshToken, username, password, clientID, clientSecret, profile, configDir string) (Credential, error) {
	f, err := ParseFlow(flow)
	if err != nil {
		return Credential{}, err
	}
	switch f {
	case FlowNone:
		return None(), nil
	case FlowBearer:
		// Bearer tokens usually arrive per request; an empty one is fine
		// until the first tool call.
		c := Credential{Flow: FlowBearer, token: token}
		return c, nil
	case FlowToken:
		return StaticToken(token)
	case FlowRefresh:
		return Refresh(refreshToken, clientID, clientSecret)
	case FlowPassword:
		return Password(username, password, clientID, clientSecret)
	case FlowCLI:
		return CLIFile(profile, configDir)
	case FlowCode:
		return Code(), nil
	}
	return Credential{}, fmt.Errorf("authflow: unknown flow %q", flow)
}

// LogonPayload is the resolved authentication material a Viya call uses.
type LogonPayload struct {
	Host      string `json:"host"`
	AuthType  string `json:"authType"`
	Token     string `json:"token,omitempty"`
	TokenType string `json:"tokenType,omitempty"`
}

// AuthType values.
const (
	AuthTypeServer = "server"
	AuthTypeNone   = "none"
)
