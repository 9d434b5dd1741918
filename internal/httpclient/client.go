// Package httpclient is the launcher's single way of talking HTTPS.
//
// Callers hand a Request to a Client and get back a status and body, or a
// *TransportError when no connection could be made at all. The Client hides
// the TLS fallback chain: a custom CA bundle when one is configured, then the
// system roots, then (only when explicitly allowed) an unverified context.
// Each candidate is tried once, in order. HTTP error statuses are returned
// to the caller, not retried.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/cdx/internal/logging"
)

const (
	// MaxResponseSize bounds API response reads.
	MaxResponseSize int64 = 16 << 20
	// DefaultTimeout applies to API requests.
	DefaultTimeout = 30 * time.Second
	// DownloadTimeout applies to binary downloads.
	DownloadTimeout = 5 * time.Minute
	// DefaultUserAgent is sent when a request does not set one.
	DefaultUserAgent = "cdx"
)

// Request is an outbound HTTP request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client performs HTTP requests.
type Client interface {
	// Do returns the response for any HTTP status. The error is non-nil only
	// when no candidate produced a response.
	Do(ctx context.Context, req *Request) (*Response, error)
	// Download streams a 2xx response body into w. Non-2xx statuses are
	// returned as *StatusError.
	Download(ctx context.Context, req *Request, w io.Writer) (int64, error)
}

// TransportError is returned when every TLS candidate failed to connect.
type TransportError struct {
	URL      string
	Attempts []error
}

func (e *TransportError) Error() string {
	msgs := make([]string, 0, len(e.Attempts))
	for _, err := range e.Attempts {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("request %s failed: %s", e.URL, strings.Join(msgs, "; "))
}

func (e *TransportError) Unwrap() []error {
	return e.Attempts
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "…"
	}
	if body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, body)
}

// Candidate is one TLS configuration in the fallback chain.
type Candidate struct {
	Name string
	TLS  *tls.Config // nil means the system defaults
}

// Candidates builds the fallback chain. A CA file that cannot be loaded is
// skipped and reported through the returned error.
func Candidates(caFile string, allowInsecure bool) ([]Candidate, error) {
	var out []Candidate
	var caErr error

	if caFile != "" {
		pool, err := loadCAPool(caFile)
		if err != nil {
			caErr = err
		} else {
			out = append(out, Candidate{Name: "custom-ca", TLS: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}})
		}
	}

	out = append(out, Candidate{Name: "system"})

	if allowInsecure {
		out = append(out, Candidate{Name: "insecure", TLS: &tls.Config{InsecureSkipVerify: true}}) //nolint:gosec // opt-in fallback
	}

	return out, caErr
}

func loadCAPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("CA file %s contains no PEM certificates", path)
	}
	return pool, nil
}

type attempt struct {
	name     string
	api      *http.Client
	download *http.Client
}

// ChainClient tries each candidate in order until one connects.
type ChainClient struct {
	attempts  []attempt
	userAgent string
	logger    *slog.Logger
}

// New creates a client over candidates. An empty list means system defaults.
func New(candidates []Candidate, logger *slog.Logger) *ChainClient {
	if len(candidates) == 0 {
		candidates = []Candidate{{Name: "system"}}
	}
	c := &ChainClient{
		userAgent: DefaultUserAgent,
		logger:    logging.Category(logger, "tls"),
	}
	for _, cand := range candidates {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if cand.TLS != nil {
			transport.TLSClientConfig = cand.TLS
		}
		c.attempts = append(c.attempts, attempt{
			name:     cand.Name,
			api:      &http.Client{Transport: transport, Timeout: DefaultTimeout},
			download: &http.Client{Transport: transport, Timeout: DownloadTimeout},
		})
	}
	return c
}

// SetUserAgent overrides the default User-Agent.
func (c *ChainClient) SetUserAgent(ua string) {
	c.userAgent = ua
}

// Do implements Client.
func (c *ChainClient) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.roundTrip(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// Download implements Client.
func (c *ChainClient) Download(ctx context.Context, req *Request, w io.Writer) (int64, error) {
	resp, err := c.roundTrip(ctx, req, true)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("copy response body: %w", err)
	}
	return n, nil
}

func (c *ChainClient) roundTrip(ctx context.Context, req *Request, download bool) (*http.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var errs []error
	for _, a := range c.attempts {
		var body io.Reader
		if req.Body != nil {
			body = bytes.NewReader(req.Body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		for k, vs := range req.Header {
			for _, v := range vs {
				httpReq.Header.Add(k, v)
			}
		}
		if httpReq.Header.Get("User-Agent") == "" {
			httpReq.Header.Set("User-Agent", c.userAgent)
		}

		client := a.api
		if download {
			client = a.download
		}
		resp, err := client.Do(httpReq)
		if err == nil {
			if len(errs) > 0 {
				c.logger.Debug("connected after fallback", "candidate", a.name)
			}
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug("request failed", "candidate", a.name, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", a.name, err))
	}
	return nil, &TransportError{URL: req.URL, Attempts: errs}
}

// PostJSON marshals payload and POSTs it with the given extra headers.
func PostJSON(ctx context.Context, c Client, url string, header http.Header, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	return c.Do(ctx, &Request{Method: http.MethodPost, URL: url, Header: h, Body: body})
}

// IsTransport reports whether err is a connection-level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
