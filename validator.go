package linkaudit

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"
)

// Class is the classification of a single validation
type Class string

const (
	ClassValid        Class = "valid"
	ClassRendered     Class = "rendered"
	ClassBlocked      Class = "blocked"
	ClassRateLimited  Class = "rate_limited"
	ClassRedirect     Class = "redirect"
	ClassServerError  Class = "server_error"
	ClassNotFound     Class = "not_found"
	ClassGone         Class = "gone"
	ClassClientError  Class = "client_error"
	ClassEmpty        Class = "empty"
	ClassConnection   Class = "connection_error"
	ClassTimeout      Class = "timeout"
	ClassRedirectLoop Class = "too_many_redirects"
	ClassError        Class = "error"
)

// maxErrorDescription bounds the free-form part of generic error labels
const maxErrorDescription = 15

// ValidationOutcome is the classified result of validating one URL
type ValidationOutcome struct {
	Reachable  bool   `json:"reachable"`
	Label      string `json:"label"`
	Class      Class  `json:"class"`
	StatusCode int    `json:"status_code,omitempty"`
}

// Warning reports outcomes that count as reachable but deserve a second look
func (o ValidationOutcome) Warning() bool {
	return o.Class == ClassServerError || o.Class == ClassEmpty
}

// ProbeResult is what a single probe observed
type ProbeResult struct {
	StatusCode int
	Rendered   bool // a browser rendered a substantive page
	Err        error
}

// decisive reports whether the result ends the probe sequence
func (r ProbeResult) decisive() bool {
	if r.Rendered {
		return true
	}
	return r.Err == nil && r.StatusCode > 0 && r.StatusCode < 400
}

// Probe issues one request purely to classify reachability
type Probe interface {
	Name() string
	Probe(ctx context.Context, targetURL string) ProbeResult
}

// LinkValidator classifies reachability of a URL
type LinkValidator interface {
	Validate(ctx context.Context, targetURL string) ValidationOutcome
}

// Validator runs an ordered list of probes and classifies the first decisive result
type Validator struct {
	probes []Probe
}

// NewValidator creates a validator trying probes in order
func NewValidator(probes ...Probe) *Validator {
	return &Validator{probes: probes}
}

// Validate classifies the reachability of targetURL. It never returns an error:
// every failure is folded into the outcome label.
func (v *Validator) Validate(ctx context.Context, targetURL string) ValidationOutcome {
	targetURL = strings.TrimSpace(targetURL)
	if targetURL == "" {
		return ValidationOutcome{Reachable: false, Label: "Empty URL", Class: ClassEmpty}
	}
	if len(v.probes) == 0 {
		return ValidationOutcome{Reachable: false, Label: "Error: no probes", Class: ClassError}
	}

	var last, lastStatus ProbeResult
	for _, p := range v.probes {
		last = p.Probe(ctx, targetURL)
		if last.decisive() {
			return classifyProbe(last)
		}
		if last.Err == nil && last.StatusCode > 0 {
			lastStatus = last
		}
	}

	// A transport failure on a fallback probe says less than an HTTP status from an earlier one.
	if last.Err != nil && lastStatus.StatusCode > 0 {
		return classifyProbe(lastStatus)
	}
	return classifyProbe(last)
}

func classifyProbe(r ProbeResult) ValidationOutcome {
	if r.Rendered {
		return ValidationOutcome{Reachable: true, Label: "Valid (page loaded)", Class: ClassRendered}
	}
	if r.Err != nil {
		return classifyError(r.Err)
	}
	return ClassifyStatus(r.StatusCode)
}

// ClassifyStatus maps an HTTP status code to an outcome.
// 403, 429 and 5xx count as reachable: the resource most likely exists.
func ClassifyStatus(code int) ValidationOutcome {
	o := ValidationOutcome{StatusCode: code}
	switch {
	case code >= 200 && code < 300:
		o.Reachable, o.Class, o.Label = true, ClassValid, fmt.Sprintf("Valid (HTTP %d)", code)
	case code == http.StatusForbidden:
		o.Reachable, o.Class, o.Label = true, ClassBlocked, "Valid (HTTP 403 - blocked)"
	case code == http.StatusTooManyRequests:
		o.Reachable, o.Class, o.Label = true, ClassRateLimited, "Valid (rate limited)"
	case code >= 300 && code < 400:
		o.Reachable, o.Class, o.Label = true, ClassRedirect, fmt.Sprintf("Valid (redirect %d)", code)
	case code == http.StatusNotFound:
		o.Class, o.Label = ClassNotFound, "Not found (HTTP 404)"
	case code == http.StatusGone:
		o.Class, o.Label = ClassGone, "Gone (HTTP 410)"
	case code >= 500:
		o.Reachable, o.Class, o.Label = true, ClassServerError, fmt.Sprintf("Server error (HTTP %d)", code)
	default:
		o.Class, o.Label = ClassClientError, fmt.Sprintf("Error (HTTP %d)", code)
	}
	return o
}

// errTooManyRedirects is returned from CheckRedirect once the redirect cap is hit
var errTooManyRedirects = errors.New("too many redirects")

func classifyError(err error) ValidationOutcome {
	o := ValidationOutcome{Reachable: false}

	var netErr net.Error
	var dnsErr *net.DNSError
	var opErr *net.OpError
	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var recordErr tls.RecordHeaderError

	switch {
	case errors.Is(err, errTooManyRedirects):
		o.Class, o.Label = ClassRedirectLoop, "Too Many Redirects"
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		o.Class, o.Label = ClassTimeout, "Timeout"
	case errors.As(err, &dnsErr), errors.As(err, &opErr), errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET), errors.As(err, &certErr), errors.As(err, &unknownAuth),
		errors.As(err, &hostErr), errors.As(err, &recordErr):
		o.Class, o.Label = ClassConnection, "Connection Error"
	default:
		o.Class, o.Label = ClassError, "Error: "+truncate(errorDescription(err), maxErrorDescription)
	}
	return o
}

// errorDescription strips the url.Error envelope, which only repeats the method and URL
func errorDescription(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Err != nil {
		return uerr.Err.Error()
	}
	return err.Error()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// httpProbe probes with a single HTTP method
type httpProbe struct {
	client    *http.Client
	method    string
	userAgent string
}

// NewHTTPProbe creates a probe issuing requests with the given method (HEAD or GET)
func NewHTTPProbe(client *http.Client, method, userAgent string) Probe {
	return &httpProbe{client: client, method: method, userAgent: userAgent}
}

func (p *httpProbe) Name() string { return p.method }

func (p *httpProbe) Probe(ctx context.Context, targetURL string) ProbeResult {
	req, err := http.NewRequestWithContext(ctx, p.method, targetURL, nil)
	if err != nil {
		return ProbeResult{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := p.client.Do(req)
	if err != nil {
		return ProbeResult{Err: err}
	}
	defer resp.Body.Close()
	// Drain a little so the connection can be reused; the body itself is irrelevant here.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	return ProbeResult{StatusCode: resp.StatusCode}
}

// newHTTPClient builds the client shared by probes and the content fetcher
func newHTTPClient(timeout time.Duration, maxRedirects int, transport http.RoundTripper) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errTooManyRedirects
			}
			return nil
		},
	}
}
