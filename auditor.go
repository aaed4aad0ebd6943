package linkaudit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/docutag/linkaudit"

// Auditor validates, repairs and analyzes the links of tool records
type Auditor struct {
	config     Config
	httpClient *http.Client
	validator  LinkValidator
	fetcher    Fetcher
	completer  Completer
	observers  []Observer
	logger     *slog.Logger
	tracer     trace.Tracer

	transport    http.RoundTripper
	browserProbe Probe
}

// Option configures an Auditor
type Option func(*Auditor)

// WithTransport replaces the HTTP transport (wrapped with otelhttp by default)
func WithTransport(rt http.RoundTripper) Option {
	return func(a *Auditor) { a.transport = rt }
}

// WithLinkValidator replaces the probe-based validator
func WithLinkValidator(v LinkValidator) Option {
	return func(a *Auditor) { a.validator = v }
}

// WithFetcher replaces the HTTP content fetcher
func WithFetcher(f Fetcher) Option {
	return func(a *Auditor) { a.fetcher = f }
}

// WithBrowser prepends a rendering probe to the validator and, when fetcher is
// non-nil, fetches content through it.
func WithBrowser(probe Probe, fetcher Fetcher) Option {
	return func(a *Auditor) {
		a.browserProbe = probe
		if fetcher != nil {
			a.fetcher = fetcher
		}
	}
}

// WithCompleter enables content analysis
func WithCompleter(c Completer) Option {
	return func(a *Auditor) { a.completer = c }
}

// WithObserver subscribes to audit events
func WithObserver(o Observer) Option {
	return func(a *Auditor) { a.observers = append(a.observers, o) }
}

// WithLogger sets the logger for diagnostics (slog.Default otherwise)
func WithLogger(l *slog.Logger) Option {
	return func(a *Auditor) { a.logger = l }
}

// New creates a new Auditor
func New(config Config, opts ...Option) *Auditor {
	a := &Auditor{
		config: config.withDefaults(),
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}

	transport := a.transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	a.httpClient = newHTTPClient(a.config.HTTPTimeout, a.config.MaxRedirects, otelhttp.NewTransport(transport))

	if a.validator == nil {
		var probes []Probe
		if a.browserProbe != nil {
			probes = append(probes, a.browserProbe)
		}
		probes = append(probes,
			NewHTTPProbe(a.httpClient, http.MethodHead, a.config.UserAgent),
			NewHTTPProbe(a.httpClient, http.MethodGet, a.config.UserAgent),
		)
		a.validator = NewValidator(probes...)
	}
	if a.fetcher == nil {
		a.fetcher = NewHTTPFetcher(a.httpClient, a.config.UserAgent, a.config.MaxBodyBytes)
	}
	return a
}

// Config returns the effective configuration
func (a *Auditor) Config() Config {
	return a.config
}

// HasCompleter reports whether content analysis is available
func (a *Auditor) HasCompleter() bool {
	return a.completer != nil
}

// Subscribe adds an observer after construction
func (a *Auditor) Subscribe(o Observer) {
	a.observers = append(a.observers, o)
}

// Validate classifies the reachability of a single URL
func (a *Auditor) Validate(ctx context.Context, targetURL string) ValidationOutcome {
	return a.validator.Validate(ctx, targetURL)
}

// FetchContent returns the page body on a 2xx response. Failures are logged and
// reported as absence, never as errors.
func (a *Auditor) FetchContent(ctx context.Context, targetURL string) (string, bool) {
	return a.fetchContent(ctx, 0, "", FieldHomepage, targetURL)
}

// ExtractLinks fetches a page and returns the links found on it
func (a *Auditor) ExtractLinks(ctx context.Context, targetURL string) ([]string, bool) {
	body, ok := a.FetchContent(ctx, targetURL)
	if !ok {
		return nil, false
	}
	return ExtractLinks(body, targetURL), true
}

// validateField validates one link of a tool and reports it
func (a *Auditor) validateField(ctx context.Context, line int, tool string, f Field, link string) ValidationOutcome {
	start := time.Now()
	outcome := a.validator.Validate(ctx, link)
	a.emit(Event{
		Kind: EventValidated, Line: line, Tool: tool, Field: f, HasField: true, URL: link,
		Outcome: &outcome, Duration: time.Since(start),
	})
	return outcome
}

func (a *Auditor) fetchContent(ctx context.Context, line int, tool string, f Field, link string) (string, bool) {
	start := time.Now()
	body, err := a.fetcher.Fetch(ctx, link)
	if err != nil {
		a.logger.Warn("content unavailable", "url", link, "tool", tool, "error", err)
		a.emit(Event{
			Kind: EventContentUnavailable, Line: line, Tool: tool, Field: f, HasField: tool != "", URL: link,
			Err: err, Duration: time.Since(start),
		})
		return "", false
	}
	a.emit(Event{
		Kind: EventContentFetched, Line: line, Tool: tool, Field: f, HasField: tool != "", URL: link,
		Detail: fmt.Sprintf("%d chars", len(body)), Duration: time.Since(start),
	})
	return body, true
}

// pause is the courtesy delay after a network call; it returns early on cancellation
func (a *Auditor) pause(ctx context.Context) {
	if a.config.RequestDelay <= 0 {
		return
	}
	t := time.NewTimer(a.config.RequestDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (a *Auditor) emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	for _, o := range a.observers {
		o.OnEvent(e)
	}
}

// startToolSpan opens the span covering one tool
func (a *Auditor) startToolSpan(ctx context.Context, op string, line int, tool string) (context.Context, trace.Span) {
	return a.tracer.Start(ctx, "linkaudit."+op,
		trace.WithAttributes(
			attribute.String("tool.name", tool),
			attribute.Int("tool.line", line),
		))
}

// pacedValidator pauses after every validation and reports each one
type pacedValidator struct {
	a    *Auditor
	line int
	tool string
}

func (p pacedValidator) Validate(ctx context.Context, targetURL string) ValidationOutcome {
	o := p.a.validateField(ctx, p.line, p.tool, FieldHomepage, targetURL)
	p.a.pause(ctx)
	return o
}
