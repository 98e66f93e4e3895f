// Package people dispatches profile mutations.
//
// The Dispatcher decides, per mutation, whether to send it now or buffer it:
// before the session's identity is resolved every mutation is merged into
// the pending store and its callback receives a Deferred result; afterwards
// mutations are encoded and handed to the transport. Flush drains the
// pending store once identity is known, re-enqueueing whatever fails.
//
// Client layers the public operations (set, increment, append, ...) on top
// of the Dispatcher.
package people

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/roach88/profilesync/internal/model"
	"github.com/roach88/profilesync/internal/transport"
)

// PendingStore buffers mutations while identity is unresolved
// (implemented by store.Store).
type PendingStore interface {
	Enqueue(ctx context.Context, m model.Mutation) error
	Take(kind model.ActionKind) (model.Mutation, bool)
	TakeAppends() []model.Object
	Persist(ctx context.Context) error
}

// Transport sends an encoded request and reports the outcome on cb
// (implemented by transport.HTTPTransport). Send must not block on the
// network.
type Transport interface {
	Send(ctx context.Context, endpoint string, body url.Values, cb model.Callback)
}

// IdentitySource answers whether the profile id is known
// (implemented by identity.Session).
type IdentitySource interface {
	IsResolved() bool
	CurrentProfileID() (string, bool)
	DistinctID() string
}

// Dispatcher routes mutations to the transport or the pending store.
//
// Thread-safety: safe for concurrent use if its collaborators are.
type Dispatcher struct {
	settings  Settings
	identity  IdentitySource
	store     PendingStore
	transport Transport
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil logger uses slog.Default().
func NewDispatcher(settings Settings, id IdentitySource, store PendingStore, tr Transport, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		settings:  settings.normalize(),
		identity:  id,
		store:     store,
		transport: tr,
		logger:    logger,
	}
}

// Settings returns the dispatcher's settings.
func (d *Dispatcher) Settings() Settings {
	return d.settings
}

// Dispatch sends m, or buffers it if identity is unresolved, and returns the
// truncated wire request describing it.
//
// Unresolved: the untruncated mutation is merged into the pending store and
// cb receives Deferred synchronously. Resolved: the truncated request is
// encoded and handed to the transport; cb receives the transport's Result
// unchanged. Dispatch never blocks on the network and never returns an
// error: failures reach cb as a Failure result.
func (d *Dispatcher) Dispatch(ctx context.Context, m model.Mutation, cb model.Callback) model.Request {
	req := model.Request{
		Mutation:   m,
		Token:      d.settings.Token,
		DistinctID: d.identity.DistinctID(),
	}
	truncated := model.TruncateRequest(req, d.settings.TruncateLimit)

	if !d.identity.IsResolved() {
		if err := d.store.Enqueue(ctx, m); err != nil {
			d.logger.Error("failed to queue mutation",
				"action", m.Kind.String(),
				"error", err,
			)
			d.complete(m.Kind, cb, model.Failure(0, nil, err))
			return truncated
		}
		d.logger.Debug("mutation deferred until identify",
			"action", m.Kind.String(),
			"distinct_id", truncated.DistinctID,
		)
		d.complete(m.Kind, cb, model.Deferred())
		return truncated
	}

	d.send(ctx, truncated, cb)
	return truncated
}

// send encodes req and hands it to the transport.
func (d *Dispatcher) send(ctx context.Context, req model.Request, cb model.Callback) {
	body, err := transport.Encode(req)
	if err != nil {
		d.logger.Error("failed to encode request",
			"action", req.Kind().String(),
			"error", err,
		)
		d.complete(req.Kind(), cb, model.Failure(0, nil, err))
		return
	}

	kind := req.Kind()
	d.logger.Debug("sending mutation",
		"action", kind.String(),
		"distinct_id", req.DistinctID,
	)
	d.transport.Send(ctx, d.settings.Endpoint(), body, func(res model.Result) {
		d.complete(kind, cb, res)
	})
}

func (d *Dispatcher) complete(kind model.ActionKind, cb model.Callback, res model.Result) {
	dispatchTotal.WithLabelValues(kind.String(), res.Outcome.String()).Inc()
	if cb != nil {
		cb(res)
	}
}
