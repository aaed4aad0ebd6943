package linkaudit

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TestHTTPClientUsesOtelTransport verifies outgoing requests carry trace context
func TestHTTPClientUsesOtelTransport(t *testing.T) {
	a := New(Config{HTTPTimeout: 30 * time.Second})

	_, ok := a.httpClient.Transport.(*otelhttp.Transport)
	if !ok {
		t.Error("❌ Auditor HTTP client does not use otelhttp.Transport for trace propagation")
	} else {
		t.Log("✅ Auditor HTTP client correctly uses otelhttp.Transport")
	}
}

// countingTransport counts round trips before handing them to the default transport
type countingTransport struct {
	n atomic.Int32
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.n.Add(1)
	return http.DefaultTransport.RoundTrip(req)
}

func TestWithTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	rt := &countingTransport{}
	a := New(testConfig(), WithTransport(rt))
	assert.True(t, a.Validate(context.Background(), srv.URL).Reachable)
	assert.Equal(t, int32(1), rt.n.Load())
}

func TestNewFillsDefaults(t *testing.T) {
	a := New(Config{RequestDelay: -time.Second})
	cfg := a.Config()
	d := DefaultConfig()

	assert.Equal(t, d.HTTPTimeout, cfg.HTTPTimeout)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.Zero(t, cfg.RequestDelay)
	assert.Equal(t, d.MaxCandidateProbes, cfg.MaxCandidateProbes)
	assert.Equal(t, d.AnalysisChunkSize, cfg.AnalysisChunkSize)
	assert.False(t, a.HasCompleter())
}

func TestWithBrowserProbeRunsFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("HTTP probes must not run after a rendered page")
	}))
	defer srv.Close()

	probe := &fakeProbe{name: "browser", result: ProbeResult{Rendered: true}}
	a := New(testConfig(), WithBrowser(probe, nil))

	o := a.Validate(context.Background(), srv.URL)
	assert.Equal(t, "Valid (page loaded)", o.Label)
	assert.Equal(t, 1, probe.calls)
}

func TestFetchContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
			io.WriteString(w, `<html><body><a href="/privacy">Privacy</a><a href="mailto:x@y.z">Mail</a></body></html>`)
		case "/error":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	events := &eventLog{}
	a := New(testConfig(), WithObserver(events))

	body, ok := a.FetchContent(context.Background(), srv.URL+"/")
	require.True(t, ok)
	assert.Contains(t, body, "Privacy")

	for _, path := range []string{"/error", "/missing"} {
		body, ok = a.FetchContent(context.Background(), srv.URL+path)
		assert.False(t, ok, path)
		assert.Empty(t, body, path)
	}
	_, ok = a.FetchContent(context.Background(), "")
	assert.False(t, ok)

	assert.Len(t, events.find(EventContentFetched), 1)
	assert.Len(t, events.find(EventContentUnavailable), 3)

	links, ok := a.ExtractLinks(context.Background(), srv.URL+"/")
	require.True(t, ok)
	assert.Equal(t, []string{srv.URL + "/privacy"}, links)

	links, ok = a.ExtractLinks(context.Background(), srv.URL+"/missing")
	assert.False(t, ok)
	assert.Nil(t, links)
}

func TestFetchContentBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "0123456789")
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxBodyBytes = 4
	body, ok := New(cfg).FetchContent(context.Background(), srv.URL)
	require.True(t, ok)
	assert.Equal(t, "0123", body)
}

func TestPauseHonorsCancellation(t *testing.T) {
	cfg := testConfig()
	cfg.RequestDelay = time.Hour
	a := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		a.pause(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pause did not return after cancellation")
	}
}

func TestCheckEmitsEventsInOrder(t *testing.T) {
	v := batchValidator()
	events := &eventLog{}
	a := New(testConfig(), WithLinkValidator(v), WithObserver(events))
	a.Subscribe(ObserverFunc(func(e Event) {
		assert.False(t, e.Time.IsZero())
	}))

	res := a.Check(context.Background(), batchRecords()[0])
	assert.Equal(t, 1, res.Broken())
	_, ok := res.Outcome(FieldGDPR)
	assert.False(t, ok, "empty links are not validated")

	assert.Equal(t, []EventKind{EventToolStarted, EventValidated, EventValidated, EventToolFinished}, events.kinds())
	assert.Equal(t, "check", events.events[0].Detail)
	assert.Equal(t, FieldPrivacy, events.events[2].Field)
	assert.Equal(t, "Not found (HTTP 404)", events.events[2].Outcome.Label)
}

func TestUnreachableError(t *testing.T) {
	err := &UnreachableError{URL: "https://acme.com", Reason: "Timeout"}
	assert.Equal(t, "https://acme.com: Timeout", err.Error())
	assert.ErrorIs(t, err, ErrUnreachable)

	fetchErr := &FetchError{URL: "https://acme.com", StatusCode: 500}
	assert.ErrorIs(t, fetchErr, ErrContentUnavailable)
	assert.Equal(t, "fetch https://acme.com: HTTP 500", fetchErr.Error())
}
