// Package sessionctx holds per-session state: the credential the session
// authenticates with, the Viya deployment it targets, and scratch values
// tools accumulate across calls. Sessions are created from a Template so no
// mutable state is shared between them.
package sessionctx

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sassoftware/sas-viya-mcp-server/internal/authflow"
	"github.com/sassoftware/sas-viya-mcp-server/internal/contextstore"
)

// ErrSessionNotFound indicates an unknown or expired session id.
var ErrSessionNotFound = errors.New("sessionctx: session not found")

// TargetServer identifies where tool calls execute.
type TargetServer struct {
	// Host is the Viya base URL, e.g. "https://viya.example.com".
	Host string
	// CASServer names the CAS server for library and table operations.
	CASServer string
	// ComputeContext names the compute context for SAS code execution.
	ComputeContext string
}

// Session is one client's isolated context. All accessors are safe for
// concurrent use; requests on the same session may overlap.
type Session struct {
	id string

	mu       sync.Mutex
	cred     authflow.Credential
	logon    *authflow.LogonPayload
	target   TargetServer
	values   map[string]string
	fatalErr error
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Flow returns the session's authentication flow.
func (s *Session) Flow() authflow.Flow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred.Flow
}

// Credential returns a snapshot of the session credential.
func (s *Session) Credential() authflow.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred
}

// SetCredential replaces the session credential and drops any cached logon.
func (s *Session) SetCredential(cred authflow.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
	s.logon = nil
}

// SetToken installs a direct token on the session credential and drops any
// cached logon. It fails for flows that do not accept direct tokens.
func (s *Session) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cred.SetToken(token); err != nil {
		return err
	}
	s.logon = nil
	return nil
}

// Logon returns the cached logon payload, or nil.
func (s *Session) Logon() *authflow.LogonPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logon
}

// SetLogon caches a resolved logon payload.
func (s *Session) SetLogon(p *authflow.LogonPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logon = p
}

// Target returns the session's target server.
func (s *Session) Target() TargetServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// SetTarget updates the target server. Empty fields keep their current
// values so callers can change just the CAS server or compute context.
func (s *Session) SetTarget(t TargetServer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Host != "" {
		s.target.Host = t.Host
		// A new host invalidates the cached logon.
		s.logon = nil
	}
	if t.CASServer != "" {
		s.target.CASServer = t.CASServer
	}
	if t.ComputeContext != "" {
		s.target.ComputeContext = t.ComputeContext
	}
}

// Value returns a scratch value set by an earlier tool call.
func (s *Session) Value(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// SetValue stores a scratch value for later tool calls on this session.
func (s *Session) SetValue(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Values returns a copy of the scratch values.
func (s *Session) Values() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Fatal returns the session's unrecoverable error, if any. Once set, every
// tool call on the session fails fast with it.
func (s *Session) Fatal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatalErr
}

// SetFatal marks the session unusable. The first error sticks.
func (s *Session) SetFatal(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fatalErr == nil {
		s.fatalErr = err
	}
}

// Template is the prototype new sessions are stamped from. Its fields are
// copied, never aliased: mutating one session can not leak into another.
type Template struct {
	Credential authflow.Credential
	Target     TargetServer
	Values     map[string]string
	// Fatal poisons every stamped session, used when a startup preflight
	// failed but the server should still answer protocol requests.
	Fatal error

	mu sync.Mutex
}

// NewSession builds an independent session from the template.
func (t *Template) NewSession(id string) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	values := make(map[string]string, len(t.Values))
	for k, v := range t.Values {
		values[k] = v
	}
	return &Session{
		id:       id,
		cred:     t.Credential,
		target:   t.Target,
		values:   values,
		fatalErr: t.Fatal,
	}
}

// UpdateCredential swaps the credential future sessions start with, for
// example when a mounted token file rotates. Existing sessions keep the
// credential they were stamped with.
func (t *Template) UpdateCredential(cred authflow.Credential) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Credential = cred
}

// Manager tracks live sessions by id, backed by the TTL-aware context
// store so idle sessions age out when a TTL is configured.
type Manager struct {
	store    *contextstore.Store
	template *Template
	ttl      time.Duration
}

// NewManager builds a Manager stamping sessions from tmpl. A zero ttl keeps
// sessions until they are destroyed explicitly.
func NewManager(store *contextstore.Store, tmpl *Template, ttl time.Duration) *Manager {
	return &Manager{store: store, template: tmpl, ttl: ttl}
}

// Create registers a fresh session under id.
func (m *Manager) Create(id string) (*Session, error) {
	if _, ok := m.store.Get(id); ok {
		return nil, fmt.Errorf("sessionctx: session %q already exists", id)
	}
	sess := m.template.NewSession(id)
	if m.ttl > 0 {
		m.store.SetTTL(id, sess, m.ttl)
	} else {
		m.store.Set(id, sess)
	}
	return sess, nil
}

// Get returns the session for id, refreshing its idle timer.
func (m *Manager) Get(id string) (*Session, error) {
	v, ok := m.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	sess, ok := v.(*Session)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	if m.ttl > 0 {
		m.store.Expire(id, m.ttl)
	}
	return sess, nil
}

// Destroy removes the session for id. Removing an unknown id is an error so
// transports can reject bogus teardown requests.
func (m *Manager) Destroy(id string) error {
	if _, ok := m.store.Get(id); !ok {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	m.store.Delete(id)
	return nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	return m.store.Len()
}
