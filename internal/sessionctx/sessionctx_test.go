package sessionctx

import (
	"errors"
	"testing"
	"time"

	"github.com/sassoftware/sas-viya-mcp-server/internal/authflow"
	"github.com/sassoftware/sas-viya-mcp-server/internal/contextstore"
)

func testTemplate() *Template {
	return &Template{
		Credential: authflow.None(),
		Target: TargetServer{
			Host:           "https://viya.example.com",
			CASServer:      "cas-shared-default",
			ComputeContext: "SAS Job Execution compute context",
		},
		Values: map[string]string{"seed": "one"},
	}
}

func mustManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	store, err := contextstore.New(0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(store.Close)
	return NewManager(store, testTemplate(), ttl)
}

func TestSessionIsolation(t *testing.T) {
	m := mustManager(t, 0)
	a, err := m.Create("a")
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Create("b")
	if err != nil {
		t.Fatal(err)
	}

	a.SetTarget(TargetServer{CASServer: "cas-other"})
	a.SetValue("compute.session", "sess-1")

	if got := b.Target().CASServer; got != "cas-shared-default" {
		t.Errorf("session b CASServer = %q, template state leaked", got)
	}
	if _, ok := b.Value("compute.session"); ok {
		t.Error("session b sees session a's scratch value")
	}
	if v, _ := b.Value("seed"); v != "one" {
		t.Errorf("template seed value missing, got %q", v)
	}
}

func TestSetTargetPartialUpdate(t *testing.T) {
	s := testTemplate().NewSession("s")
	s.SetLogon(&authflow.LogonPayload{Host: s.Target().Host, AuthType: authflow.AuthTypeServer, Token: "t"})

	s.SetTarget(TargetServer{ComputeContext: "other context"})
	if s.Logon() == nil {
		t.Error("compute context change should keep the cached logon")
	}
	if s.Target().Host != "https://viya.example.com" {
		t.Error("host changed by a partial update")
	}

	s.SetTarget(TargetServer{Host: "https://other.example.com"})
	if s.Logon() != nil {
		t.Error("host change should drop the cached logon")
	}
	if s.Target().ComputeContext != "other context" {
		t.Error("earlier compute context update lost")
	}
}

func TestSetTokenDropsLogon(t *testing.T) {
	tmpl := testTemplate()
	tmpl.Credential = authflow.Code()
	s := tmpl.NewSession("s")
	s.SetLogon(&authflow.LogonPayload{AuthType: authflow.AuthTypeServer, Token: "old"})

	if err := s.SetToken("new"); err != nil {
		t.Fatal(err)
	}
	if s.Logon() != nil {
		t.Error("cached logon survived a token change")
	}

	if err := s.SetToken("x"); err != nil {
		t.Fatal(err)
	}
	none := testTemplate().NewSession("n")
	if err := none.SetToken("x"); err == nil {
		t.Error("none-flow session accepted a token")
	}
}

func TestFatalSticks(t *testing.T) {
	s := testTemplate().NewSession("s")
	first := errors.New("startup preflight failed")
	s.SetFatal(first)
	s.SetFatal(errors.New("later"))
	if got := s.Fatal(); got != first {
		t.Errorf("Fatal() = %v, want the first error", got)
	}
}

func TestManagerLifecycle(t *testing.T) {
	m := mustManager(t, 0)
	if _, err := m.Create("s1"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create("s1"); err == nil {
		t.Error("duplicate id accepted")
	}

	got, err := m.Get("s1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID() != "s1" {
		t.Errorf("ID = %q", got.ID())
	}

	if _, err := m.Get("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get(missing) err = %v", err)
	}
	if err := m.Destroy("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Destroy(missing) err = %v", err)
	}
	if err := m.Destroy("s1"); err != nil {
		t.Fatal(err)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d after destroy", m.Len())
	}
}

func TestManagerIdleExpiry(t *testing.T) {
	m := mustManager(t, 10*time.Millisecond)
	if _, err := m.Create("s1"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := m.Get("s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("idle session survived its TTL: %v", err)
	}
}
