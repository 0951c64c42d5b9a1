// Package gateway is the single chokepoint for authenticated platform API
// calls. A call is retried at most once, after exactly one silent refresh,
// and only when the first attempt was answered with 401.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/assessly/assessly/internal/assert"
	"github.com/assessly/assessly/internal/cli/session"
	"github.com/assessly/assessly/internal/metrics"
)

const (
	RequestIDHeader = "X-Request-ID"

	tracerName   = "github.com/assessly/assessly/internal/cli/gateway"
	maxBodyBytes = 10 << 20
	maxErrorBody = 512
)

// Session is the part of the session state the gateway relies on
type Session interface {
	IsAuthenticated() bool
	Refresh(ctx context.Context) error
	Logout(ctx context.Context)
	RedirectToLogin(ctx context.Context)
}

// Options describe one logical call
type Options struct {
	// Method defaults to GET
	Method string

	// Header is merged over the defaults. Content-Type is always
	// application/json and Cookie is always taken from the jar.
	Header http.Header

	// Body is sent as JSON. []byte and json.RawMessage are sent verbatim.
	Body any
}

// Gateway performs authenticated calls against one server
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	session    Session
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// Option configures a Gateway
type Option func(*Gateway)

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithTracerProvider sets the tracer provider. Default: the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *Gateway) {
		g.tracer = tp.Tracer(tracerName)
	}
}

// New creates a gateway. httpClient must be the client the session uses so
// that refreshed cookies are seen by the retry.
func New(baseURL string, httpClient *http.Client, sess Session, opts ...Option) *Gateway {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	g := &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		session:    sess,
		logger:     zerolog.Nop(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.logger = g.logger.With().Str("component", "gateway").Logger()
	return g
}

// attempt is one HTTP request of a logical call
type attempt struct {
	method string
	url    string
	header http.Header
	body   []byte
	number int
}

// Call performs one logical API call and returns the JSON body of the 2xx
// response (nil for an empty body).
func (g *Gateway) Call(ctx context.Context, path string, opts Options) (json.RawMessage, error) {
	if !g.session.IsAuthenticated() {
		g.session.RedirectToLogin(ctx)
		return nil, ErrAuthRequired
	}

	body, err := encodeBody(opts.Body)
	if err != nil {
		return nil, err
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	header := composeHeader(opts.Header)

	ctx, span := g.tracer.Start(ctx, "gateway.call", trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("url.path", path),
		attribute.String("request.id", header.Get(RequestIDHeader)),
	))
	defer span.End()

	raw, err := g.call(ctx, &attempt{
		method: method,
		url:    g.baseURL + path,
		header: header,
		body:   body,
		number: 1,
	}, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return raw, nil
}

func (g *Gateway) call(ctx context.Context, a *attempt, span trace.Span) (json.RawMessage, error) {
	log := g.logger.With().
		Str("method", a.method).
		Str("url", a.url).
		Str("request_id", a.header.Get(RequestIDHeader)).
		Logger()

	status, data, err := g.do(ctx, a)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		log.Debug().Msg("Unauthorized, refreshing session")

		// The retry is issued only once the refresh has fully resolved.
		if err := g.session.Refresh(ctx); err != nil {
			if errors.Is(err, session.ErrRateLimited) || ctx.Err() != nil {
				log.Warn().Err(err).Msg("Session refresh did not complete")
				return nil, fmt.Errorf("%w: %w", ErrTokenRefreshFailed, err)
			}
			log.Info().Err(err).Msg("Session refresh failed, logging out")
			g.session.Logout(ctx)
			return nil, fmt.Errorf("%w: %w", ErrTokenRefreshFailed, err)
		}

		a.number = 2
		span.SetAttributes(attribute.Bool("gateway.retried", true))

		status, data, err = g.do(ctx, a)
		if err != nil {
			return nil, err
		}

		if status == http.StatusUnauthorized {
			log.Info().Msg("Still unauthorized after refresh, logging out")
			g.session.Logout(ctx)
			return nil, ErrAuthenticationFailed
		}
	}

	span.SetAttributes(attribute.Int("http.status_code", status))

	if status < 200 || status >= 300 {
		return nil, &HTTPError{Status: status, Body: errorBody(data)}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Err: err}
	}

	return raw, nil
}

// do issues a single HTTP request and reads the full body
func (g *Gateway) do(ctx context.Context, a *attempt) (int, []byte, error) {
	var reader io.Reader
	if a.body != nil {
		reader = bytes.NewReader(a.body)
	}

	req, err := http.NewRequestWithContext(ctx, a.method, a.url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = a.header.Clone()

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.metrics.ObserveRequest(a.method, a.number, 0, time.Since(start))
		return 0, nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	g.metrics.ObserveRequest(a.method, a.number, resp.StatusCode, time.Since(start))
	if err != nil {
		return 0, nil, &NetworkError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	g.logger.Debug().
		Str("method", a.method).
		Str("url", a.url).
		Int("attempt", a.number).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Request completed")

	return resp.StatusCode, data, nil
}

// composeHeader merges caller headers over the defaults. Caller values win,
// except Content-Type (always JSON) and Cookie (always from the jar).
func composeHeader(caller http.Header) http.Header {
	header := http.Header{}
	header.Set("Accept", "application/json")

	for key, values := range caller {
		header[http.CanonicalHeaderKey(key)] = append([]string(nil), values...)
	}

	header.Set("Content-Type", "application/json")
	header.Del("Cookie")

	if header.Get(RequestIDHeader) == "" {
		id := ulid.Make().String()
		assert.Length(id, ulid.EncodedSize)
		header.Set(RequestIDHeader, id)
	}

	return header
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		return data, nil
	}
}

func errorBody(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}

// CallInto performs Call and decodes the JSON body into T
func CallInto[T any](ctx context.Context, g *Gateway, path string, opts Options) (T, error) {
	var out T

	raw, err := g.Call(ctx, path, opts)
	if err != nil {
		return out, err
	}
	if raw == nil {
		return out, nil
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &DecodeError{Err: err}
	}

	return out, nil
}
