package repo

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"

	"github.com/vertextoedge/cydia-mirror/internal/domain"
	"github.com/vertextoedge/cydia-mirror/internal/port"
)

// Identity header names sent with every request
const (
	HeaderCydiaID  = "X-Cydia-ID"
	HeaderFirmware = "X-Firmware"
	HeaderMachine  = "X-Machine"
	HeaderUniqueID = "X-Unique-ID"
)

// Identity holds the opaque device identity presented to the repository
type Identity struct {
	CydiaID  string
	Firmware string
	Machine  string
	UniqueID string
}

// Headers returns the identity as an http.Header, validating every value
func (id Identity) Headers() (http.Header, error) {
	h := make(http.Header, 4)
	for _, kv := range []struct{ name, value string }{
		{HeaderCydiaID, id.CydiaID},
		{HeaderFirmware, id.Firmware},
		{HeaderMachine, id.Machine},
		{HeaderUniqueID, id.UniqueID},
	} {
		if !httpguts.ValidHeaderFieldValue(kv.value) {
			return nil, fmt.Errorf("%w: %s=%q", domain.ErrInvalidHeader, kv.name, kv.value)
		}
		h.Set(kv.name, kv.value)
	}
	return h, nil
}

// Client fetches files from a repository root
type Client struct {
	root           *url.URL
	headers        http.Header
	httpClient     *http.Client
	downloadClient *http.Client
}

// Ensure Client implements port.RepoClient
var _ port.RepoClient = (*Client)(nil)

// ClientConfig contains optional client configuration
type ClientConfig struct {
	RequestTimeout        time.Duration // Timeout for small metadata requests (default: 60s)
	ResponseHeaderTimeout time.Duration // Header timeout for package downloads (default: 30s)
	MaxConnsPerHost       int           // default: 16
	SkipTLSVerify         bool
	HTTPClient            *http.Client // overrides both transports, used by tests
}

// ParseRoot validates a repository URL and normalizes it to end with "/"
func ParseRoot(raw string) (*url.URL, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: repository url %q: %v", domain.ErrInvalidConfig, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: repository url %q must be http or https", domain.ErrInvalidConfig, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: repository url %q has no host", domain.ErrInvalidConfig, raw)
	}
	return u, nil
}

// NewClient creates a repository client
func NewClient(rootURL string, id Identity, cfg *ClientConfig) (*Client, error) {
	root, err := ParseRoot(rootURL)
	if err != nil {
		return nil, err
	}

	headers, err := id.Headers()
	if err != nil {
		return nil, err
	}

	if cfg == nil {
		cfg = &ClientConfig{}
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.ResponseHeaderTimeout == 0 {
		cfg.ResponseHeaderTimeout = 30 * time.Second
	}
	if cfg.MaxConnsPerHost == 0 {
		cfg.MaxConnsPerHost = 16
	}

	c := &Client{root: root, headers: headers}

	if cfg.HTTPClient != nil {
		c.httpClient = cfg.HTTPClient
		c.downloadClient = cfg.HTTPClient
		return c, nil
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.SkipTLSVerify,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	downloadTransport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.SkipTLSVerify,
		},
		// Connection pooling
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     120 * time.Second,

		ForceAttemptHTTP2: true,

		// Packages are already compressed
		DisableCompression: true,

		// Response header timeout (not total download timeout)
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
	}

	c.httpClient = &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
	}
	c.downloadClient = &http.Client{
		Transport: downloadTransport,
		Timeout:   0, // No timeout for downloads
	}
	return c, nil
}

// Root returns the normalized repository root
func (c *Client) Root() string {
	return c.root.String()
}

// URL resolves a repository-relative path against the root
func (c *Client) URL(relPath string) string {
	ref := &url.URL{Path: strings.TrimLeft(relPath, "/")}
	return c.root.ResolveReference(ref).String()
}

// Fetch reads a small metadata file fully into memory
func (c *Client) Fetch(ctx context.Context, relPath string) ([]byte, error) {
	resp, err := c.do(ctx, c.httpClient, relPath)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", c.URL(relPath), err)
	}
	return data, nil
}

// Open issues a GET for a package and returns the response body.
// The caller must close it.
func (c *Client) Open(ctx context.Context, relPath string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, c.downloadClient, relPath)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, client *http.Client, relPath string) (*http.Response, error) {
	urlStr := c.URL(relPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &domain.StatusError{URL: urlStr, StatusCode: resp.StatusCode}
	}

	return resp, nil
}
