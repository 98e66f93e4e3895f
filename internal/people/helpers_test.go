package people

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/profilesync/internal/identity"
	"github.com/roach88/profilesync/internal/model"
	"github.com/roach88/profilesync/internal/store"
	"github.com/roach88/profilesync/internal/transport"
)

// sentRequest is one request captured by fakeTransport.
type sentRequest struct {
	endpoint string
	object   model.Object
}

func (r sentRequest) kind() model.ActionKind {
	for k := range r.object {
		if k != model.PropToken && k != model.PropDistinctID {
			return model.ActionKind(k)
		}
	}
	return ""
}

func (r sentRequest) payload() model.Value {
	return r.object[string(r.kind())]
}

// fakeTransport records requests and answers synchronously.
type fakeTransport struct {
	mu       sync.Mutex
	requests []sentRequest
	fail     map[model.ActionKind]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{fail: make(map[model.ActionKind]bool)}
}

func (f *fakeTransport) Send(_ context.Context, endpoint string, body url.Values, cb model.Callback) {
	obj, err := transport.Decode(body)
	if err != nil {
		panic(err)
	}
	req := sentRequest{endpoint: endpoint, object: obj}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	failed := f.fail[req.kind()]
	f.mu.Unlock()

	res := model.Success(200, []byte("1"))
	if failed {
		res = model.Failure(503, []byte("0"), errors.New("service unavailable"))
	}
	if cb != nil {
		cb(res)
	}
}

func (f *fakeTransport) failKind(kind model.ActionKind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[kind] = true
}

func (f *fakeTransport) sent() []sentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentRequest{}, f.requests...)
}

// results collects callback results.
type results struct {
	mu  sync.Mutex
	all []model.Result
}

func (r *results) cb(res model.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, res)
}

func (r *results) list() []model.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Result{}, r.all...)
}

type fixture struct {
	client    *Client
	transport *fakeTransport
	store     *store.Store
	backend   *store.MemoryBackend
	session   *identity.Session
}

var fixedNow = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

func testSettings() Settings {
	return Settings{
		Token:   "tok",
		APIHost: "https://api.example.com",
	}
}

func newFixture(t *testing.T, opts ...func(*Options)) *fixture {
	t.Helper()

	backend := store.NewMemoryBackend()
	s, err := store.Open(context.Background(), backend, "tok")
	require.NoError(t, err)

	f := &fixture{
		transport: newFakeTransport(),
		store:     s,
		backend:   backend,
		session:   identity.NewSession(identity.NewFixedGenerator("anon-1")),
	}

	o := Options{
		Settings:          testSettings(),
		Session:           f.session,
		Store:             f.store,
		Transport:         f.transport,
		DefaultProperties: model.Object{},
		Now:               func() time.Time { return fixedNow },
	}
	for _, opt := range opts {
		opt(&o)
	}

	f.client, err = New(o)
	require.NoError(t, err)
	return f
}

func (f *fixture) identify(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.client.Identify(context.Background(), id, nil))
}

func obj(kv ...any) model.Object {
	out := model.Object{}
	for i := 0; i < len(kv); i += 2 {
		v, err := model.FromGo(kv[i+1])
		if err != nil {
			panic(err)
		}
		out[kv[i].(string)] = v
	}
	return out
}
