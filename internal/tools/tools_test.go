package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/sassoftware/sas-viya-mcp-server/internal/authflow"
	"github.com/sassoftware/sas-viya-mcp-server/internal/mcp"
	"github.com/sassoftware/sas-viya-mcp-server/internal/sessionctx"
	"github.com/sassoftware/sas-viya-mcp-server/internal/toolreg"
	"github.com/sassoftware/sas-viya-mcp-server/internal/viya"
)

// fakeViya serves just enough of the Viya REST surface for the tool tests.
func fakeViya(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /microanalyticScore/modules", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(viya.Collection[viya.Module]{
			Items: []viya.Module{{ID: "credit_score", Name: "credit_score"}, {ID: "churn", Name: "churn_model"}},
			Count: 2,
		})
	})
	mux.HandleFunc("POST /microanalyticScore/modules/credit_score/steps/score", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"outputs": []map[string]any{{"name": "EM_PROBABILITY", "value": 0.9}},
		})
	})
	mux.HandleFunc("GET /casManagement/servers/cas-shared-default/caslibs/public/tables/heart", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(viya.CASTable{Name: "HEART", Rows: 5209, Columns: 17})
	})
	mux.HandleFunc("GET /casManagement/servers/cas-shared-default/caslibs/public/tables/heart/columns", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(viya.Collection[viya.CASColumn]{
			Items: []viya.CASColumn{{Name: "Status", Type: "char"}, {Name: "AgeAtStart", Type: "double"}},
		})
	})
	mux.HandleFunc("GET /jobDefinitions/definitions/def-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(viya.JobDefinition{
			ID: "def-1", Name: "nightly-refresh",
			Parameters: []viya.JobParameter{{Name: "TABLE", Required: true}},
		})
	})
	mux.HandleFunc("POST /jobExecution/jobs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(viya.ExecutedJob{ID: "job-9", State: "completed"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func toolTable(t *testing.T, host string) (map[string]toolreg.Descriptor, *sessionctx.Session) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	client := viya.NewClient(log, viya.WithHTTPClient(http.DefaultClient))

	table := make(map[string]toolreg.Descriptor)
	for _, d := range All(Deps{Client: client, Version: "test"}) {
		if _, dup := table[d.Name]; dup {
			t.Fatalf("duplicate tool name %q", d.Name)
		}
		table[d.Name] = d
	}

	tmpl := &sessionctx.Template{
		Credential: authflow.None(),
		Target: sessionctx.TargetServer{
			Host:           host,
			CASServer:      "cas-shared-default",
			ComputeContext: "SAS Job Execution compute context",
		},
	}
	return table, tmpl.NewSession("t1")
}

func call(t *testing.T, table map[string]toolreg.Descriptor, sess *sessionctx.Session, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	d, ok := table[name]
	if !ok {
		t.Fatalf("tool %q not in table", name)
	}
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			t.Fatal(err)
		}
		raw = b
	}
	res, err := d.Handler(context.Background(), sess, &mcp.CallToolRequest{Name: name, Arguments: raw})
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return res
}

func TestAllToolNamesAndGroups(t *testing.T) {
	table, _ := toolTable(t, "http://unused")
	want := []string{
		"list-models", "find-model", "model-info", "model-score", "scr-info", "scr-score", "deva-score",
		"list-libraries", "find-library", "list-tables", "find-table", "table-info", "read-table",
		"sas-query", "run-sas-program", "run-sas-macro",
		"list-jobs", "find-job", "run-job", "list-jobdefs", "find-jobdef", "run-jobdef",
		"search-assets",
		"set-context", "get-env",
	}
	for _, name := range want {
		d, ok := table[name]
		if !ok {
			t.Errorf("tool %q missing", name)
			continue
		}
		if d.Group == "" {
			t.Errorf("tool %q has no toolset group", name)
		}
		if d.Description == "" {
			t.Errorf("tool %q has no description", name)
		}
	}
	if len(table) != len(want) {
		t.Errorf("tool count = %d, want %d", len(table), len(want))
	}

	// get-env takes no arguments; its schema must still be a valid object.
	schema := table["get-env"].InputSchema
	if schema.Type != "object" || len(schema.Properties) != 0 {
		t.Errorf("get-env schema = %+v, want empty object", schema)
	}
}

func TestListAndFindModels(t *testing.T) {
	srv := fakeViya(t)
	table, sess := toolTable(t, srv.URL)

	res := call(t, table, sess, "list-models", nil)
	if res.IsError {
		t.Fatalf("list-models = %+v", res)
	}
	if !strings.Contains(res.Content[0].Text, "credit_score") {
		t.Errorf("text = %q", res.Content[0].Text)
	}

	res = call(t, table, sess, "find-model", map[string]any{"name": "churn"})
	if res.IsError || !strings.Contains(res.Content[0].Text, "churn_model") {
		t.Errorf("find-model = %+v", res)
	}

	res = call(t, table, sess, "find-model", map[string]any{"name": "zzz"})
	if res.IsError || !strings.Contains(res.Content[0].Text, "No published modules") {
		t.Errorf("find-model miss = %+v", res)
	}
}

func TestModelScore(t *testing.T) {
	srv := fakeViya(t)
	table, sess := toolTable(t, srv.URL)

	res := call(t, table, sess, "model-score", map[string]any{
		"module": "credit_score",
		"inputs": map[string]any{"income": 50000},
	})
	if res.IsError {
		t.Fatalf("model-score = %+v", res)
	}
	if !strings.Contains(res.Content[0].Text, "EM_PROBABILITY") {
		t.Errorf("text = %q", res.Content[0].Text)
	}
	if v, _ := sess.Value("models.last"); v != "credit_score" {
		t.Errorf("models.last = %q", v)
	}
}

func TestTableInfo(t *testing.T) {
	srv := fakeViya(t)
	table, sess := toolTable(t, srv.URL)

	res := call(t, table, sess, "table-info", map[string]any{"library": "public", "table": "heart"})
	if res.IsError {
		t.Fatalf("table-info = %+v", res)
	}
	if !strings.Contains(res.Content[0].Text, "AgeAtStart") {
		t.Errorf("text = %q", res.Content[0].Text)
	}
}

func TestRunJobDefRequiredArgument(t *testing.T) {
	srv := fakeViya(t)
	table, sess := toolTable(t, srv.URL)

	res := call(t, table, sess, "run-jobdef", map[string]any{"id": "def-1"})
	if !res.IsError || !strings.Contains(res.Content[0].Text, "TABLE") {
		t.Errorf("missing required argument not reported: %+v", res)
	}

	res = call(t, table, sess, "run-jobdef", map[string]any{
		"id":        "def-1",
		"arguments": map[string]any{"TABLE": "public.heart"},
	})
	if res.IsError {
		t.Fatalf("run-jobdef = %+v", res)
	}
	if v, _ := sess.Value("jobs.last"); v != "job-9" {
		t.Errorf("jobs.last = %q", v)
	}
}

func TestSetContextAndGetEnv(t *testing.T) {
	table, sess := toolTable(t, "https://viya.example.com")

	res := call(t, table, sess, "set-context", map[string]any{"casServer": "cas-west"})
	if res.IsError {
		t.Fatalf("set-context = %+v", res)
	}
	if sess.Target().CASServer != "cas-west" {
		t.Errorf("CASServer = %q", sess.Target().CASServer)
	}

	res = call(t, table, sess, "set-context", nil)
	if !res.IsError {
		t.Error("empty set-context accepted")
	}

	res = call(t, table, sess, "get-env", nil)
	if res.IsError {
		t.Fatalf("get-env = %+v", res)
	}
	var env map[string]any
	if err := json.Unmarshal([]byte(res.Content[0].Text), &env); err != nil {
		t.Fatal(err)
	}
	if env["casServer"] != "cas-west" {
		t.Errorf("env = %v", env)
	}
	if env["authFlow"] != "none" {
		t.Errorf("authFlow = %v", env["authFlow"])
	}
}

func TestDevaScoreRoutesToEndpoint(t *testing.T) {
	scr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/credit_score" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"outputs": []map[string]any{{"name": "score", "value": 0.7}}})
	}))
	defer scr.Close()

	table, sess := toolTable(t, "https://viya.example.com")
	res := call(t, table, sess, "deva-score", map[string]any{
		"module":   "credit_score",
		"endpoint": scr.URL,
		"inputs":   map[string]any{"x": 1},
	})
	if res.IsError || !strings.Contains(res.Content[0].Text, "score") {
		t.Errorf("deva-score = %+v", res)
	}
}
