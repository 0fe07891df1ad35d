// Package config resolves process configuration from the environment,
// optionally preloaded from a .env file. The rest of the repo consumes the
// resolved Config; nothing else reads os.Getenv.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
)

// Transport modes.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config is the resolved process configuration.
type Config struct {
	// Transport selects the process transport mode: "http" or "stdio".
	Transport string `env:"MCPTYPE,default=http"`
	// Brand prefixes every public tool name ("{brand}-{tool}").
	Brand string `env:"BRAND,default=sas-viya"`
	Port  int    `env:"PORT,default=8080"`

	// HTTPS enables TLS on the app server. Certs come from SSLCert, or are
	// self-signed from the TLSCreate subject when the dir yields nothing.
	HTTPS     bool   `env:"HTTPS,default=false"`
	SSLCert   string `env:"SSLCERT"`
	TLSCreate string `env:"TLS_CREATE"`
	// ViyaCert is a directory of CA certificates trusted for backend calls.
	ViyaCert string `env:"VIYACERT"`

	ViyaServer string `env:"VIYA_SERVER"`

	// AuthFlow is the default authentication flow for new sessions. One of:
	// none, bearer, refresh, token, password, sascli, code.
	AuthFlow string `env:"AUTHFLOW,default=sascli"`
	// TokenRefresh forces re-resolution of the logon payload on every tool
	// call when true (the default, matching the original behavior).
	TokenRefresh bool `env:"TOKENREFRESH,default=true"`

	Username     string `env:"USERNAME"`
	Password     string `env:"PASSWORD"`
	ClientID     string `env:"CLIENTID"`
	ClientSecret string `env:"CLIENTSECRET"`

	Token        string `env:"TOKEN"`
	TokenFile    string `env:"TOKENFILE"`
	RefreshToken string `env:"REFRESH_TOKEN"`

	SASCLIProfile string `env:"SAS_CLI_PROFILE,default=Default"`
	SASCLIConfig  string `env:"SAS_CLI_CONFIG"`

	CASServer      string `env:"CASSERVER,default=cas-shared-default"`
	ComputeContext string `env:"COMPUTECONTEXT,default=SAS Job Execution compute context"`

	// Toolsets selects which tool groups register, comma separated.
	// "default" enables everything.
	Toolsets []string `env:"TOOLSETS,default=default"`

	// ValidateTokens enables signature validation of bearer tokens against
	// the Viya SASLogon JWKS before they are accepted for a session.
	ValidateTokens bool `env:"VALIDATE_TOKENS,default=false"`

	// RedisAddr, when set, enables the shared access-token cache so
	// horizontally scaled instances reuse token exchanges.
	RedisAddr string `env:"REDIS_ADDR"`

	// SessionTTL caps how long an idle HTTP session context is retained,
	// in minutes. Zero disables idle expiry.
	SessionTTLMinutes int `env:"SESSION_TTL_MINUTES,default=0"`
}

// Load resolves configuration: .env first (unless ENVFILE=FALSE), then the
// process environment via envdecode.
func Load() (*Config, error) {
	if strings.ToUpper(os.Getenv("ENVFILE")) != "FALSE" {
		wd, err := os.Getwd()
		if err == nil {
			// Missing file is fine; a malformed one is not.
			if err := loadDotEnv(filepath.Join(wd, ".env")); err != nil && !os.IsNotExist(err) {
				return nil, fmt.Errorf("load .env: %w", err)
			}
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	if cfg.Transport != TransportStdio && cfg.Transport != TransportHTTP {
		return nil, fmt.Errorf("unsupported MCPTYPE %q (want %q or %q)", cfg.Transport, TransportHTTP, TransportStdio)
	}
	if cfg.SASCLIConfig == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.SASCLIConfig = home
		}
	}
	for i, ts := range cfg.Toolsets {
		cfg.Toolsets[i] = strings.ToLower(strings.TrimSpace(ts))
	}

	if cfg.TokenFile != "" {
		b, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("read token file %s: %w", cfg.TokenFile, err)
		}
		cfg.Token = strings.TrimSpace(string(b))
		cfg.AuthFlow = "token"
	}

	return &cfg, nil
}
