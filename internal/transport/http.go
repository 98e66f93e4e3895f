package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/profilesync/internal/model"
)

var tracer = otel.Tracer("profilesync.transport")

// ErrClosed is reported to callbacks of requests sent after Close.
var ErrClosed = errors.New("transport closed")

// DefaultTimeout bounds a single POST.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of an acknowledgement body is kept.
const maxResponseBytes = 64 << 10

// HTTPTransport posts encoded requests from a single sender goroutine.
//
// Send only enqueues; Run drains the queue in FIFO order and delivers each
// Result to its callback on the sender goroutine. There is no retry: a
// failed POST is reported once and the caller decides what to do with it.
type HTTPTransport struct {
	client *http.Client
	logger *slog.Logger
	queue  *sendQueue
}

// Option configures an HTTPTransport.
type Option func(*HTTPTransport)

// WithHTTPClient replaces the HTTP client (tests use httptest's client).
func WithHTTPClient(c *http.Client) Option {
	return func(t *HTTPTransport) {
		t.client = c
	}
}

// WithTimeout sets the per-request timeout on the default client.
func WithTimeout(d time.Duration) Option {
	return func(t *HTTPTransport) {
		if d > 0 {
			t.client.Timeout = d
		}
	}
}

// WithLogger sets the logger for send diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(t *HTTPTransport) {
		t.logger = l
	}
}

// NewHTTP creates a transport. Call Run to start sending.
func NewHTTP(opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		client: &http.Client{Timeout: DefaultTimeout},
		logger: slog.Default(),
		queue:  newSendQueue(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send queues body for POST to endpoint. cb receives the Result from the
// sender goroutine. After Close, cb is invoked synchronously with a failure.
func (t *HTTPTransport) Send(ctx context.Context, endpoint string, body url.Values, cb model.Callback) {
	j := job{ctx: ctx, endpoint: endpoint, body: body, cb: cb}
	if !t.queue.Enqueue(j) {
		t.logger.Warn("send after close", "url", endpoint)
		deliver(cb, model.Failure(0, nil, ErrClosed))
	}
}

// Run sends queued requests until the queue is closed and drained, or ctx
// is cancelled. On cancellation every request still queued is failed with
// ctx.Err().
func (t *HTTPTransport) Run(ctx context.Context) error {
	for {
		for {
			j, ok := t.queue.TryDequeue()
			if !ok {
				break
			}
			if ctx.Err() != nil {
				t.finish(j, model.Failure(0, nil, ctx.Err()))
				continue
			}
			t.finish(j, t.post(j))
		}

		if t.queue.Closed() && t.queue.Len() == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			t.drain(ctx.Err())
			return ctx.Err()
		case <-t.queue.Wait():
		}
	}
}

// Wait blocks until nothing is queued or in flight, or ctx is done.
func (t *HTTPTransport) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.queue.Idle():
		return nil
	}
}

// Pending returns the number of requests waiting to be sent.
func (t *HTTPTransport) Pending() int {
	return t.queue.Len()
}

// Close stops accepting requests. Already queued requests are still sent
// by Run.
func (t *HTTPTransport) Close() {
	t.queue.Close()
}

func (t *HTTPTransport) drain(cause error) {
	for {
		j, ok := t.queue.TryDequeue()
		if !ok {
			return
		}
		t.finish(j, model.Failure(0, nil, cause))
	}
}

func (t *HTTPTransport) finish(j job, res model.Result) {
	defer t.queue.Done()
	deliver(j.cb, res)
}

// post performs one POST. The caller's cancellation does not abort a
// request already taken off the queue; only the client timeout applies.
func (t *HTTPTransport) post(j job) model.Result {
	ctx := context.WithoutCancel(j.ctx)
	ctx, span := tracer.Start(ctx, "transport.Post",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.url", j.endpoint)),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.endpoint, strings.NewReader(j.body.Encode()))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return model.Failure(0, nil, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.logger.Warn("request failed", "url", j.endpoint, "error", err)
		return model.Failure(0, nil, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return model.Failure(resp.StatusCode, nil, fmt.Errorf("read response: %w", err))
	}

	res := ParseResponse(resp.StatusCode, body)
	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.String("profilesync.outcome", res.Outcome.String()),
	)
	if res.IsFailure() {
		span.SetStatus(codes.Error, res.Err.Error())
	}

	t.logger.Debug("request sent",
		"url", j.endpoint,
		"status", resp.StatusCode,
		"outcome", res.Outcome.String(),
	)
	return res
}

func deliver(cb model.Callback, res model.Result) {
	if cb != nil {
		cb(res)
	}
}
