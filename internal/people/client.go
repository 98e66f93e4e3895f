package people

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/profilesync/internal/identity"
	"github.com/roach88/profilesync/internal/model"
	"github.com/roach88/profilesync/internal/mutation"
)

// Options configures a Client.
type Options struct {
	Settings  Settings
	Session   *identity.Session
	Store     PendingStore
	Transport Transport

	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// Consent, when set, is consulted before every operation.
	Consent ConsentGuard

	// Referrer supplies initial referrer info for SET when
	// Settings.SaveReferrer is on.
	Referrer ReferrerSource

	// DefaultProperties are merged beneath every SET. Nil uses
	// DefaultProperties(); use an empty Object to send none.
	DefaultProperties model.Object

	// Now stamps charges. Defaults to time.Now.
	Now func() time.Time
}

// Client is the public profile API for one session.
//
// Every mutating operation returns the truncated wire request it produced.
// A non-nil request together with a VALIDATION error means some properties
// were dropped and the rest were dispatched. Transport outcomes are only
// ever reported through the callback.
type Client struct {
	dispatcher *Dispatcher
	session    *identity.Session
	logger     *slog.Logger
	consent    ConsentGuard
	referrer   ReferrerSource
	defaults   model.Object
	now        func() time.Time
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	if opts.Session == nil {
		return nil, errors.New("people: session is required")
	}
	if opts.Store == nil {
		return nil, errors.New("people: pending store is required")
	}
	if opts.Transport == nil {
		return nil, errors.New("people: transport is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defaults := opts.DefaultProperties
	if defaults == nil {
		defaults = DefaultProperties()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		dispatcher: NewDispatcher(opts.Settings, opts.Session, opts.Store, opts.Transport, logger),
		session:    opts.Session,
		logger:     logger,
		consent:    opts.Consent,
		referrer:   opts.Referrer,
		defaults:   defaults.Clone(),
		now:        now,
	}, nil
}

// Dispatcher returns the underlying dispatcher.
func (c *Client) Dispatcher() *Dispatcher {
	return c.dispatcher
}

// Set sets one property, overwriting any existing value.
func (c *Client) Set(ctx context.Context, name string, value any, cb model.Callback) (model.Request, error) {
	return c.SetMap(ctx, map[string]any{name: value}, cb)
}

// SetMap sets several properties. Default properties and, when enabled,
// referrer info are merged beneath the caller's properties.
func (c *Client) SetMap(ctx context.Context, props map[string]any, cb model.Callback) (model.Request, error) {
	if err := c.guard("set"); err != nil {
		return model.Request{}, err
	}
	m, errs := mutation.EncodeMap(model.KindSet, props)
	if len(errs) == 0 || !m.IsEmpty() {
		base := c.defaults
		if c.dispatcher.settings.SaveReferrer && c.referrer != nil {
			base = underlay(c.referrer(), base)
		}
		m.Props = underlay(m.Props, mutation.Filter(base))
	}
	return c.submit(ctx, "set", m, errs, cb)
}

// SetOnce sets a property only if it is not already set on the profile.
func (c *Client) SetOnce(ctx context.Context, name string, value any, cb model.Callback) (model.Request, error) {
	return c.SetOnceMap(ctx, map[string]any{name: value}, cb)
}

// SetOnceMap is SetOnce for several properties.
func (c *Client) SetOnceMap(ctx context.Context, props map[string]any, cb model.Callback) (model.Request, error) {
	if err := c.guard("set_once"); err != nil {
		return model.Request{}, err
	}
	m, errs := mutation.EncodeMap(model.KindSetOnce, props)
	return c.submit(ctx, "set_once", m, errs, cb)
}

// Unset removes properties from the profile.
func (c *Client) Unset(ctx context.Context, names []string, cb model.Callback) (model.Request, error) {
	if err := c.guard("unset"); err != nil {
		return model.Request{}, err
	}
	m, errs := mutation.EncodeUnset(names...)
	return c.submit(ctx, "unset", m, errs, cb)
}

// Increment adds 1 to a numeric property.
func (c *Client) Increment(ctx context.Context, name string, cb model.Callback) (model.Request, error) {
	if err := c.guard("increment"); err != nil {
		return model.Request{}, err
	}
	m, errs := mutation.Increment(name)
	return c.submit(ctx, "increment", m, errs, cb)
}

// IncrementBy adds amount (a number or numeric string) to a property.
func (c *Client) IncrementBy(ctx context.Context, name string, amount any, cb model.Callback) (model.Request, error) {
	return c.IncrementMap(ctx, map[string]any{name: amount}, cb)
}

// IncrementMap adds to several numeric properties. Non-numeric values are
// dropped and reported; the rest are dispatched.
func (c *Client) IncrementMap(ctx context.Context, amounts map[string]any, cb model.Callback) (model.Request, error) {
	if err := c.guard("increment"); err != nil {
		return model.Request{}, err
	}
	m, errs := mutation.EncodeMap(model.KindAdd, amounts)
	return c.submit(ctx, "increment", m, errs, cb)
}

// Append appends a value to a list property.
func (c *Client) Append(ctx context.Context, name string, value any, cb model.Callback) (model.Request, error) {
	return c.AppendMap(ctx, map[string]any{name: value}, cb)
}

// AppendMap appends one value to each named list property.
func (c *Client) AppendMap(ctx context.Context, props map[string]any, cb model.Callback) (model.Request, error) {
	if err := c.guard("append"); err != nil {
		return model.Request{}, err
	}
	m, errs := mutation.EncodeMap(model.KindAppend, props)
	return c.submit(ctx, "append", m, errs, cb)
}

// Union merges values into a list property without duplicates. A scalar is
// treated as a one-element list.
func (c *Client) Union(ctx context.Context, name string, values any, cb model.Callback) (model.Request, error) {
	return c.UnionMap(ctx, map[string]any{name: values}, cb)
}

// UnionMap is Union for several properties.
func (c *Client) UnionMap(ctx context.Context, props map[string]any, cb model.Callback) (model.Request, error) {
	if err := c.guard("union"); err != nil {
		return model.Request{}, err
	}
	m, errs := mutation.EncodeMap(model.KindUnion, props)
	return c.submit(ctx, "union", m, errs, cb)
}

// DeleteUser deletes the profile. It requires a resolved identity: called
// earlier, it logs and returns a NOT_IDENTIFIED error without sending or
// queueing anything, and cb is not invoked.
func (c *Client) DeleteUser(ctx context.Context, cb model.Callback) (model.Request, error) {
	if err := c.guard("delete_user"); err != nil {
		return model.Request{}, err
	}
	if !c.session.IsResolved() {
		err := newNotIdentifiedError("delete_user")
		usageErrorsTotal.WithLabelValues(string(err.Code)).Inc()
		c.logger.Error("delete_user called before identify", "error", err)
		return model.Request{}, err
	}
	return c.dispatcher.Dispatch(ctx, model.NewDeleteMutation(), cb), nil
}

// TrackCharge records a transaction by appending
// {"$amount": amount, "$time": now, ...props} to "$transactions".
// amount must be a number or numeric string.
func (c *Client) TrackCharge(ctx context.Context, amount any, props map[string]any, cb model.Callback) (model.Request, error) {
	if err := c.guard("track_charge"); err != nil {
		return model.Request{}, err
	}

	v, err := model.FromGo(amount)
	if err == nil {
		var ok bool
		if v, ok = model.ParseNumber(v); !ok {
			err = errors.New("amount must be a number")
		}
	}
	if err != nil {
		errs := mutation.ValidationErrors{{Kind: model.KindAppend, Property: "$amount", Message: err.Error()}}
		return c.submit(ctx, "track_charge", model.NewPropsMutation(model.KindAppend, nil), errs, cb)
	}

	charge := map[string]any{
		"$time": model.FormatTime(c.now()),
	}
	for k, p := range props {
		charge[k] = p
	}
	charge["$amount"] = v

	m, errs := mutation.EncodeMap(model.KindAppend, map[string]any{"$transactions": charge})
	return c.submit(ctx, "track_charge", m, errs, cb)
}

// ClearCharges resets "$transactions" to an empty list.
func (c *Client) ClearCharges(ctx context.Context, cb model.Callback) (model.Request, error) {
	return c.Set(ctx, "$transactions", []any{}, cb)
}

// Identify resolves the session to profileID and flushes everything queued
// so far. Only the first resolution takes effect; identifying again with a
// different id is logged and still flushes.
func (c *Client) Identify(ctx context.Context, profileID string, cbs FlushCallbacks) error {
	if err := c.guard("identify"); err != nil {
		return err
	}
	resolved, err := c.session.Resolve(profileID)
	if err != nil {
		return &Error{Code: ErrCodeValidation, Op: "identify", Message: "invalid profile id", Err: err}
	}
	if !resolved {
		if current, _ := c.session.CurrentProfileID(); current != profileID {
			c.logger.Warn("session already identified",
				"distinct_id", current,
				"requested", profileID,
			)
		}
	} else {
		c.logger.Info("session identified", "distinct_id", profileID)
	}
	return c.dispatcher.Flush(ctx, cbs)
}

// Flush drains the pending store. See Dispatcher.Flush.
func (c *Client) Flush(ctx context.Context, cbs FlushCallbacks) error {
	if err := c.guard("flush"); err != nil {
		return err
	}
	return c.dispatcher.Flush(ctx, cbs)
}

// guard applies the consent check shared by every operation.
func (c *Client) guard(op string) error {
	if c.consent != nil && c.consent() {
		err := newOptedOutError(op)
		usageErrorsTotal.WithLabelValues(string(err.Code)).Inc()
		c.logger.Debug("operation skipped, opted out", "op", op)
		return err
	}
	return nil
}

// submit dispatches m and reports dropped properties. When every property
// was dropped nothing is dispatched and cb is not invoked.
func (c *Client) submit(ctx context.Context, op string, m model.Mutation, errs mutation.ValidationErrors, cb model.Callback) (model.Request, error) {
	if len(errs) == 0 {
		return c.dispatcher.Dispatch(ctx, m, cb), nil
	}

	validationErrorsTotal.WithLabelValues(m.Kind.String()).Add(float64(len(errs)))
	verr := newValidationError(op, errs)
	c.logger.Error("invalid properties dropped", "op", op, "error", errs)

	if m.IsEmpty() {
		return model.Request{}, verr
	}
	return c.dispatcher.Dispatch(ctx, m, cb), verr
}
