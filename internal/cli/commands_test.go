package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/profilesync/internal/config"
	"github.com/roach88/profilesync/internal/model"
	"github.com/roach88/profilesync/internal/transport"
)

// engageServer records every decoded request it receives.
type engageServer struct {
	mu       sync.Mutex
	requests []model.Object
	fail     bool
}

func newEngageServer(t *testing.T) (*engageServer, *httptest.Server) {
	t.Helper()
	es := &engageServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != transport.EngagePath {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		obj, err := transport.Decode(r.PostForm)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		es.mu.Lock()
		es.requests = append(es.requests, obj)
		fail := es.fail
		es.mu.Unlock()
		if fail {
			fmt.Fprint(w, "0")
			return
		}
		fmt.Fprint(w, "1")
	}))
	t.Cleanup(srv.Close)
	return es, srv
}

func (es *engageServer) received() []model.Object {
	es.mu.Lock()
	defer es.mu.Unlock()
	return append([]model.Object(nil), es.requests...)
}

func (es *engageServer) setFail(fail bool) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.fail = fail
}

// writeConfig writes a config using a sqlite pending store in a temp dir.
func writeConfig(t *testing.T, apiHost string) string {
	t.Helper()
	t.Setenv(config.EnvToken, "")
	t.Setenv(config.EnvAPIHost, "")

	dir := t.TempDir()
	path := filepath.Join(dir, "profilesync.yaml")
	content := fmt.Sprintf(`token: tok
api_host: %s
http_timeout: 2s
store:
  backend: sqlite
  path: %s
`, apiHost, filepath.Join(dir, "pending.db"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", cfgPath, "--format", "json"}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func decodeData[T any](t *testing.T, out string) T {
	t.Helper()
	var resp struct {
		Status string    `json:"status"`
		Data   T         `json:"data"`
		Error  *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status, out)
	return resp.Data
}

func decodeError(t *testing.T, out string) CLIError {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "error", resp.Status, out)
	require.NotNil(t, resp.Error)
	return *resp.Error
}

func canonical(t *testing.T, v model.Value) string {
	t.Helper()
	data, err := model.MarshalCanonical(v)
	require.NoError(t, err)
	return string(data)
}

func TestSetBeforeIdentify_IsDeferredThenFlushed(t *testing.T) {
	es, srv := newEngageServer(t)
	cfg := writeConfig(t, srv.URL)

	out, err := execute(t, cfg, "set", "name", "Ada")
	require.NoError(t, err)
	view := decodeData[ResultView](t, out)
	assert.Equal(t, "deferred", view.Outcome)
	assert.Equal(t, -1, view.Code)
	assert.Empty(t, es.received())

	out, err = execute(t, cfg, "queue")
	require.NoError(t, err)
	queued := decodeData[QueueView](t, out)
	assert.Equal(t, "tok", queued.Namespace)
	require.Contains(t, queued.Merged, "set")
	assert.Equal(t, model.String("Ada"), queued.Merged["set"]["name"])

	out, err = execute(t, cfg, "identify", "user-1")
	require.NoError(t, err)
	flushed := decodeData[FlushView](t, out)
	assert.Equal(t, "user-1", flushed.ProfileID)
	assert.Equal(t, 1, flushed.Sent)
	assert.Zero(t, flushed.Failed)

	reqs := es.received()
	require.Len(t, reqs, 1)
	assert.Equal(t, model.String("user-1"), reqs[0][model.PropDistinctID])
	assert.Equal(t, model.String("tok"), reqs[0][model.PropToken])
	set, ok := reqs[0]["$set"].(model.Object)
	require.True(t, ok)
	assert.Equal(t, model.String("Ada"), set["name"])

	out, err = execute(t, cfg, "queue")
	require.NoError(t, err)
	queued = decodeData[QueueView](t, out)
	assert.Empty(t, queued.Merged)
	assert.Empty(t, queued.Appends)
}

func TestMutationWithAs_SendsImmediately(t *testing.T) {
	es, srv := newEngageServer(t)
	cfg := writeConfig(t, srv.URL)

	out, err := execute(t, cfg, "--as", "user-9", "increment", "logins", "2")
	require.NoError(t, err)
	view := decodeData[ResultView](t, out)
	assert.Equal(t, "add", view.Action)
	assert.Equal(t, "success", view.Outcome)
	assert.Equal(t, 1, view.Code)

	reqs := es.received()
	require.Len(t, reqs, 1)
	assert.Equal(t, model.String("user-9"), reqs[0][model.PropDistinctID])
	assert.Equal(t, `{"logins":2}`, canonical(t, reqs[0]["$add"]))
}

func TestUnsetWithAs_SendsNameList(t *testing.T) {
	es, srv := newEngageServer(t)
	cfg := writeConfig(t, srv.URL)

	_, err := execute(t, cfg, "--as", "user-1", "unset", "b", "a")
	require.NoError(t, err)

	reqs := es.received()
	require.Len(t, reqs, 1)
	assert.Equal(t, `["a","b"]`, canonical(t, reqs[0]["$unset"]))
}

func TestDeleteWithoutIdentity_IsUsageError(t *testing.T) {
	es, srv := newEngageServer(t)
	cfg := writeConfig(t, srv.URL)

	out, err := execute(t, cfg, "delete")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ErrCodeUsage, decodeError(t, out).Code)
	assert.Empty(t, es.received())

	out, err = execute(t, cfg, "queue")
	require.NoError(t, err)
	assert.Empty(t, decodeData[QueueView](t, out).Merged)
}

func TestDeleteWithAs(t *testing.T) {
	es, srv := newEngageServer(t)
	cfg := writeConfig(t, srv.URL)

	_, err := execute(t, cfg, "--as", "user-1", "delete")
	require.NoError(t, err)

	reqs := es.received()
	require.Len(t, reqs, 1)
	assert.Equal(t, model.String("user-1"), reqs[0]["$delete"])
}

func TestIdentify_FailedRequestsStayQueued(t *testing.T) {
	es, srv := newEngageServer(t)
	cfg := writeConfig(t, srv.URL)

	_, err := execute(t, cfg, "append", "visits", "home")
	require.NoError(t, err)

	es.setFail(true)
	out, err := execute(t, cfg, "identify", "user-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	flushed := decodeData[FlushView](t, out)
	assert.Equal(t, 1, flushed.Failed)

	out, err = execute(t, cfg, "queue")
	require.NoError(t, err)
	queued := decodeData[QueueView](t, out)
	require.Len(t, queued.Appends, 1)
	assert.Equal(t, model.String("home"), queued.Appends[0]["visits"])

	es.setFail(false)
	_, err = execute(t, cfg, "--as", "user-1", "flush")
	require.NoError(t, err)

	out, err = execute(t, cfg, "queue")
	require.NoError(t, err)
	assert.Empty(t, decodeData[QueueView](t, out).Appends)
	assert.Len(t, es.received(), 2)
}

func TestFlushWithoutAs(t *testing.T) {
	_, srv := newEngageServer(t)
	cfg := writeConfig(t, srv.URL)

	out, err := execute(t, cfg, "flush")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ErrCodeUsage, decodeError(t, out).Code)
}

func TestSetWithAs_ServerRejects(t *testing.T) {
	es, srv := newEngageServer(t)
	es.setFail(true)
	cfg := writeConfig(t, srv.URL)

	out, err := execute(t, cfg, "--as", "user-1", "set", "plan", "pro")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	view := decodeData[ResultView](t, out)
	assert.Equal(t, "failure", view.Outcome)
	assert.Equal(t, 0, view.Code)
}

func TestCharge(t *testing.T) {
	es, srv := newEngageServer(t)
	cfg := writeConfig(t, srv.URL)

	_, err := execute(t, cfg, "--as", "user-1", "charge", "9.5", `{"sku":"A1"}`)
	require.NoError(t, err)

	reqs := es.received()
	require.Len(t, reqs, 1)
	appended, ok := reqs[0]["$append"].(model.Object)
	require.True(t, ok)
	txn, ok := appended["$transactions"].(model.Object)
	require.True(t, ok)
	assert.Equal(t, model.String("A1"), txn["sku"])
	assert.Contains(t, txn, "$time")
	assert.Contains(t, txn, "$amount")
}

func TestCharge_BadProperties(t *testing.T) {
	es, srv := newEngageServer(t)
	cfg := writeConfig(t, srv.URL)

	out, err := execute(t, cfg, "--as", "user-1", "charge", "9.5", "not-json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ErrCodeArgs, decodeError(t, out).Code)
	assert.Empty(t, es.received())
}

func TestMissingToken_IsConfigError(t *testing.T) {
	t.Setenv(config.EnvToken, "")
	path := filepath.Join(t.TempDir(), "profilesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  backend: memory\n"), 0o600))

	out, err := execute(t, path, "set", "a", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ErrCodeConfig, decodeError(t, out).Code)
}

func TestConfigGet(t *testing.T) {
	_, srv := newEngageServer(t)
	cfg := writeConfig(t, srv.URL)

	out, err := execute(t, cfg, "config", "get", "token")
	require.NoError(t, err)
	assert.Equal(t, "tok", decodeData[ConfigValue](t, out).Value)

	out, err = execute(t, cfg, "config", "get", "http_timeout")
	require.NoError(t, err)
	assert.Equal(t, "2s", decodeData[ConfigValue](t, out).Value)

	out, err = execute(t, cfg, "config", "get", "nope")
	require.Error(t, err)
	assert.Equal(t, ErrCodeArgs, decodeError(t, out).Code)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"Ada", "Ada"},
		{"42", json.Number("42")},
		{"true", true},
		{"null", nil},
		{`"quoted"`, "quoted"},
		{`["a","b"]`, []any{"a", "b"}},
		{"1 2", "1 2"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValue(tt.in))
		})
	}
}
