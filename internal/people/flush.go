package people

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/roach88/profilesync/internal/model"
)

// FlushCallbacks receives the Result of each flushed request, keyed by
// action kind. Missing kinds are not notified.
type FlushCallbacks map[model.ActionKind]model.Callback

// Flush drains every pending queue through the transport.
//
// Merged kinds are drained independently: the pending payload is taken
// from the store in one step (so mutations queued meanwhile start a fresh
// entry and overlapping flushes never send the same payload twice) and
// dispatched. APPEND entries are dispatched one request each, tail to head.
// Any send that fails puts its untransformed entry back in the store. The
// store is persisted once, after every queue has been taken.
//
// Flush returns ErrNotIdentified before identity is resolved. A failed
// persist is returned; transport outcomes are only reported through cbs.
func (d *Dispatcher) Flush(ctx context.Context, cbs FlushCallbacks) error {
	if !d.identity.IsResolved() {
		return newNotIdentifiedError("flush")
	}

	ctx, span := tracer.Start(ctx, "people.Flush")
	defer span.End()

	sent := 0
	for _, kind := range model.MergedKinds {
		snapshot, ok := d.store.Take(kind)
		if !ok {
			continue
		}

		out := snapshot
		if kind == model.KindUnset {
			out = model.NewUnsetMutation(snapshot.UnsetNames()...)
		}
		d.Dispatch(ctx, out, d.requeueOnFailure(ctx, snapshot, cbs[kind]))
		sent++
	}

	appends := d.store.TakeAppends()
	for i := len(appends) - 1; i >= 0; i-- {
		m := model.NewPropsMutation(model.KindAppend, appends[i])
		d.Dispatch(ctx, m, d.requeueOnFailure(ctx, m, cbs[model.KindAppend]))
		sent++
	}

	span.SetAttributes(attribute.Int("flush.requests", sent))
	d.logger.Debug("pending queues flushed", "requests", sent)

	if err := d.store.Persist(ctx); err != nil {
		err = fmt.Errorf("flush: %w", err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Error("flush incomplete", "error", err)
		return err
	}
	return nil
}

// requeueOnFailure wraps cb so a failed send puts snapshot back in the
// store before cb is told.
func (d *Dispatcher) requeueOnFailure(ctx context.Context, snapshot model.Mutation, cb model.Callback) model.Callback {
	ctx = context.WithoutCancel(ctx)
	return func(res model.Result) {
		if res.IsFailure() {
			requeueTotal.WithLabelValues(snapshot.Kind.String()).Inc()
			if err := d.store.Enqueue(ctx, snapshot); err != nil {
				d.logger.Error("failed to re-enqueue after send failure",
					"action", snapshot.Kind.String(),
					"error", err,
				)
			} else {
				h, _ := model.MutationHash(snapshot)
				d.logger.Warn("send failed, mutation re-enqueued",
					"action", snapshot.Kind.String(),
					"mutation", h,
					"status", res.Status,
					"error", res.Err,
				)
			}
		}
		if cb != nil {
			cb(res)
		}
	}
}
