// Package source resolves metadata about the file to be transferred.
// The size of the source file determines how it is split into parts,
// and the inquiry is protocol specific: an HTTP HEAD request or an FTP
// SIZE query.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/jlaffaye/ftp"
	"golang.org/x/net/http2"
)

// ErrSizeUnavailable reports that the source did not reveal the file
// size: a missing content-length header, a failed FTP login, or an
// unreachable host.
var ErrSizeUnavailable = errors.New("size of source file unavailable")

// UnsupportedSchemeError reports a source URL with a scheme outside
// http, https and ftp. It is a permanent input error and is never
// retried.
type UnsupportedSchemeError struct {
	URL string
}

func (e *UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("protocol not supported: %s", e.URL)
}

// Endpoint describes the source to probe.
type Endpoint struct {
	URL        string
	HostHeader string
	Username   string
	Password   string
}

// Resolver answers size inquiries against HTTP(S) and FTP sources.
type Resolver struct {
	client     *retryablehttp.Client
	ftpTimeout time.Duration
}

// NewResolver builds a Resolver with a tuned HTTP client. Compression
// is disabled on the transport so content-length reflects the real
// byte size.
func NewResolver() *Resolver {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = nil

	if tr, ok := client.HTTPClient.Transport.(*http.Transport); ok {
		tr.DisableCompression = true
		tr.ForceAttemptHTTP2 = true
		_ = http2.ConfigureTransport(tr)
	}
	client.HTTPClient.Timeout = 30 * time.Second

	return &Resolver{
		client:     client,
		ftpTimeout: 30 * time.Second,
	}
}

// Size returns the byte size of the file behind ep.
func (r *Resolver) Size(ctx context.Context, ep Endpoint) (int64, error) {
	parsed, err := url.Parse(ep.URL)
	if err != nil {
		return 0, &UnsupportedSchemeError{URL: ep.URL}
	}
	switch parsed.Scheme {
	case "http", "https":
		return r.httpSize(ctx, ep)
	case "ftp":
		return r.ftpSize(ctx, parsed, ep)
	default:
		return 0, &UnsupportedSchemeError{URL: ep.URL}
	}
}

// httpSize issues a HEAD request, following redirects, and reads the
// content-length header. Accept-Encoding is pinned to identity so a
// compressed length is never reported.
func (r *Resolver) httpSize(ctx context.Context, ep Endpoint) (int64, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, ep.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("head %s: %w", ep.URL, err)
	}
	if ep.HostHeader != "" {
		req.Host = ep.HostHeader
	}
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("head %s: %v: %w", ep.URL, err, ErrSizeUnavailable)
	}
	defer resp.Body.Close()

	length := resp.Header.Get("Content-Length")
	if length == "" {
		return 0, fmt.Errorf("head %s: no content-length: %w", ep.URL, ErrSizeUnavailable)
	}
	size, err := strconv.ParseInt(length, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("head %s: content-length %q: %w", ep.URL, length, ErrSizeUnavailable)
	}
	return size, nil
}

// ftpSize opens a control connection to the URL's host and issues a
// SIZE query. Absent credentials mean an anonymous login.
func (r *Resolver) ftpSize(ctx context.Context, parsed *url.URL, ep Endpoint) (int64, error) {
	addr := parsed.Host
	if parsed.Port() == "" {
		addr = parsed.Host + ":21"
	}

	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(r.ftpTimeout))
	if err != nil {
		return 0, fmt.Errorf("ftp dial %s: %v: %w", addr, err, ErrSizeUnavailable)
	}
	defer conn.Quit()

	user, pass := ep.Username, ep.Password
	if user == "" {
		user, pass = "anonymous", "anonymous"
	}
	if err := conn.Login(user, pass); err != nil {
		return 0, fmt.Errorf("ftp login %s: %v: %w", addr, err, ErrSizeUnavailable)
	}

	size, err := conn.FileSize(parsed.Path)
	if err != nil {
		return 0, fmt.Errorf("ftp size %s: %v: %w", parsed.Path, err, ErrSizeUnavailable)
	}
	return size, nil
}
