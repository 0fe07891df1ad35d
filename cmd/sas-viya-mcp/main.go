// Command sas-viya-mcp serves SAS Viya tooling over the Model Context
// Protocol, on stdio for locally spawned clients or streamable HTTP for
// remote ones.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sassoftware/sas-viya-mcp-server/internal/authflow"
	"github.com/sassoftware/sas-viya-mcp-server/internal/config"
	"github.com/sassoftware/sas-viya-mcp-server/internal/contextstore"
	"github.com/sassoftware/sas-viya-mcp-server/internal/invoke"
	"github.com/sassoftware/sas-viya-mcp-server/internal/logctx"
	"github.com/sassoftware/sas-viya-mcp-server/internal/mcp"
	"github.com/sassoftware/sas-viya-mcp-server/internal/server"
	"github.com/sassoftware/sas-viya-mcp-server/internal/sessionctx"
	"github.com/sassoftware/sas-viya-mcp-server/internal/stdio"
	"github.com/sassoftware/sas-viya-mcp-server/internal/streaminghttp"
	"github.com/sassoftware/sas-viya-mcp-server/internal/tlscert"
	"github.com/sassoftware/sas-viya-mcp-server/internal/toolreg"
	"github.com/sassoftware/sas-viya-mcp-server/internal/tools"
	"github.com/sassoftware/sas-viya-mcp-server/internal/viya"
)

const (
	serverName    = "sas-viya-mcp-server"
	serverVersion = "1.0.0"

	instructions = "Tools operate against a SAS Viya deployment. Discovery tools " +
		"(list-models, list-libraries, list-jobdefs, search-assets) are cheap; call " +
		"them before scoring, querying, or running jobs. Use get-env to inspect the " +
		"session's target servers and set-context to change them."
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Stdout carries the protocol in stdio mode; logs always go to stderr.
	log := slog.New(logctx.Handler{Handler: slog.NewJSONHandler(os.Stderr, nil)})

	cred, err := authflow.FromConfig(cfg.AuthFlow, cfg.Token, cfg.RefreshToken,
		cfg.Username, cfg.Password, cfg.ClientID, cfg.ClientSecret,
		cfg.SASCLIProfile, cfg.SASCLIConfig)
	if err != nil {
		return err
	}

	host := cfg.ViyaServer
	if host == "" && cred.Flow == authflow.FlowCLI {
		if ep, err := authflow.CLIEndpoint(cred); err == nil {
			host = ep
		} else {
			log.Warn("config.cli_endpoint.fail", slog.String("err", err.Error()))
		}
	}

	backendClient, err := backendHTTPClient(cfg)
	if err != nil {
		return err
	}

	resolverOpts := []authflow.ResolverOption{
		authflow.WithHTTPClient(backendClient),
		authflow.WithForceRefresh(cfg.TokenRefresh),
	}
	if cfg.RedisAddr != "" {
		resolverOpts = append(resolverOpts, authflow.WithTokenCache(authflow.NewRedisTokenCache(cfg.RedisAddr)))
	}
	if cfg.ValidateTokens {
		if host == "" {
			return errors.New("VALIDATE_TOKENS requires VIYA_SERVER")
		}
		verifier, err := authflow.NewVerifier(ctx, host)
		if err != nil {
			return err
		}
		resolverOpts = append(resolverOpts, authflow.WithVerifier(verifier))
	}
	resolver := authflow.NewResolver(log, resolverOpts...)

	// The preflight validates startup credentials without blocking the
	// transport: a failure poisons sessions so every tool call reports it,
	// but protocol requests still get answered.
	tmpl := &sessionctx.Template{
		Credential: cred,
		Target: sessionctx.TargetServer{
			Host:           host,
			CASServer:      cfg.CASServer,
			ComputeContext: cfg.ComputeContext,
		},
		Fatal: preflight(ctx, log, resolver, host, cred),
	}

	if cfg.TokenFile != "" {
		err := authflow.WatchTokenFile(ctx, log, cfg.TokenFile, func(token string) {
			next, err := authflow.StaticToken(token)
			if err != nil {
				log.Warn("auth.tokenfile.invalid", slog.String("err", err.Error()))
				return
			}
			tmpl.UpdateCredential(next)
		})
		if err != nil {
			log.Warn("auth.tokenfile.watch.unavailable", slog.String("err", err.Error()))
		}
	}

	client := viya.NewClient(log, viya.WithHTTPClient(backendClient))
	registry, err := toolreg.NewRegistry(cfg.Brand, cfg.Toolsets, tools.All(tools.Deps{
		Client:  client,
		Version: serverVersion,
	}))
	if err != nil {
		return err
	}

	invoker := invoke.New(log, registry, resolver)
	rpc := server.New(log, invoker, mcp.ImplementationInfo{
		Name:    serverName,
		Version: serverVersion,
		Title:   "SAS Viya MCP Server",
	}, server.WithInstructions(instructions))

	log.Info("server.start",
		slog.String("transport", cfg.Transport),
		slog.String("auth_flow", cfg.AuthFlow),
		slog.String("viya_server", host),
		slog.Int("tools", registry.Len()),
	)

	switch cfg.Transport {
	case config.TransportStdio:
		sess := tmpl.NewSession("stdio")
		return stdio.New(log, rpc, sess, os.Stdin, os.Stdout).Run(ctx)
	case config.TransportHTTP:
		return serveHTTP(ctx, log, cfg, tmpl, rpc)
	}
	return fmt.Errorf("unsupported transport %q", cfg.Transport)
}

// preflight exercises the configured credential once so misconfiguration
// shows up at startup instead of on the first tool call. Flows that cannot
// resolve without caller input are skipped.
func preflight(ctx context.Context, log *slog.Logger, resolver *authflow.Resolver, host string, cred authflow.Credential) error {
	switch cred.Flow {
	case authflow.FlowRefresh, authflow.FlowToken, authflow.FlowPassword, authflow.FlowCLI:
	default:
		return nil
	}
	if host == "" {
		err := errors.New("no Viya server configured: set VIYA_SERVER")
		log.Error("preflight.fail", slog.String("err", err.Error()))
		return err
	}

	pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := resolver.Resolve(pctx, host, &cred, nil); err != nil {
		log.Error("preflight.fail", slog.String("err", err.Error()))
		return fmt.Errorf("credential preflight failed: %w", err)
	}
	log.Info("preflight.ok", slog.String("auth_flow", string(cred.Flow)))
	return nil
}

// backendHTTPClient builds the client used for Viya and SASLogon calls,
// trusting the VIYACERT CA directory when configured.
func backendHTTPClient(cfg *config.Config) (*http.Client, error) {
	pool, err := tlscert.CAPool(cfg.ViyaCert)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Timeout: 5 * time.Minute,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool},
		},
	}, nil
}

func serveHTTP(ctx context.Context, log *slog.Logger, cfg *config.Config, tmpl *sessionctx.Template, rpc *server.Handler) error {
	store, err := contextstore.New(0)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions := sessionctx.NewManager(store, tmpl, time.Duration(cfg.SessionTTLMinutes)*time.Minute)
	handler := streaminghttp.New(log, sessions, rpc,
		streaminghttp.WithServerIdentity(serverName, serverVersion))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.HTTPS {
		cert, err := serverCertificate(cfg)
		if err != nil {
			return err
		}
		srv.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http.listen", slog.String("addr", srv.Addr), slog.Bool("tls", cfg.HTTPS))
		if cfg.HTTPS {
			errCh <- srv.ListenAndServeTLS("", "")
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("http.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return srv.Close()
	}
	return nil
}

// serverCertificate loads the TLS pair from the SSLCERT directory, falling
// back to a self-signed certificate generated from the TLS_CREATE subject.
func serverCertificate(cfg *config.Config) (tls.Certificate, error) {
	if cfg.SSLCert != "" {
		cert, err := tlscert.LoadDir(cfg.SSLCert)
		if err == nil {
			return cert, nil
		}
		if !errors.Is(err, tlscert.ErrNoCertFound) {
			return tls.Certificate{}, err
		}
	}
	subject := cfg.TLSCreate
	if subject == "" {
		subject = "/O=" + serverName + "/CN=localhost"
	}
	return tlscert.SelfSigned(subject)
}
