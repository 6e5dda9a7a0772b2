// Package gateway is the single chokepoint through which every call to the
// backend passes. It keeps the backend's session cookie in a cookie jar and
// sends it with every request, lets registered observers see every response
// exactly once, and normalizes every failure into an *Error.
//
// A 401 from any endpoint signs the session out. This policy is installed by
// New as the first response observer and cannot be opted out of.
package gateway

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/byuoitav/functions/log"
	"github.com/byuoitav/functions/session/jar"
)

// DefaultTimeout bounds a single exchange with the backend
const DefaultTimeout = 15 * time.Second

// Session is what the gateway needs from the session store
type Session interface {
	// Clear signs the session out; changed reports whether it was signed in
	Clear() (changed bool, err error)
}

// ResponseObserver is called with every response the gateway receives, before
// the body is read. Observers must not read or close the body.
type ResponseObserver func(res *http.Response)

// Client represents a gateway bound to one backend base address
type Client struct {
	baseURL   string
	base      *url.URL
	userAgent string

	httpClient *http.Client
	detached   *http.Client
	timeout    time.Duration
	jar        *jar.Jar

	session        Session
	onUnauthorized func()

	observers []ResponseObserver
	obsMux    sync.RWMutex
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the http client requests are sent with. The client is
// copied; its Jar is replaced by the gateway's cookie jar.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the timeout of a single exchange, whatever http client is used
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithCookieJar sets the jar holding the backend's session cookie. Without it
// cookies only live as long as the Client.
func WithCookieJar(j *jar.Jar) Option {
	return func(c *Client) {
		c.jar = j
	}
}

// WithUnauthorizedHandler sets the function run after a 401 signed the session
// out, typically navigation to the sign in screen. It runs at most once per
// sign out, however many requests fail with 401 concurrently.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// WithUserAgent sets the User-Agent header of every request
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New returns a Client for the backend at baseURL that signs the given session
// out whenever the backend answers 401
func New(baseURL string, session Session, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		session:    session,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.jar == nil {
		// a jar without storage cannot fail to load
		c.jar, _ = jar.New(nil)
	}

	hc := *c.httpClient
	switch {
	case c.timeout > 0:
		hc.Timeout = c.timeout
	case hc.Timeout == 0:
		hc.Timeout = DefaultTimeout
	}

	detached := hc
	hc.Jar = c.jar
	detached.Jar = nil

	c.httpClient = &hc
	c.detached = &detached

	c.base, _ = url.Parse(c.baseURL + "/")
	c.observers = []ResponseObserver{c.forcedLogout}
	return c
}

// Cookies returns the cookies that would be sent to the backend
func (c *Client) Cookies() []*http.Cookie {
	if c.base == nil {
		return nil
	}

	return c.jar.Cookies(c.base)
}

// ResetCookies forgets the backend's session cookie
func (c *Client) ResetCookies() {
	if err := c.jar.Reset(); err != nil {
		log.L.Errorf("unable to reset cookies: %s", err)
	}
}

// BaseURL returns the backend address the client is bound to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Observe registers an additional response observer. Observers run in
// registration order, after the forced logout policy.
func (c *Client) Observe(fn ResponseObserver) {
	c.obsMux.Lock()
	defer c.obsMux.Unlock()

	c.observers = append(c.observers, fn)
}

func (c *Client) observe(res *http.Response) {
	c.obsMux.RLock()
	observers := make([]ResponseObserver, len(c.observers))
	copy(observers, c.observers)
	c.obsMux.RUnlock()

	for _, fn := range observers {
		fn(res)
	}
}

func (c *Client) forcedLogout(res *http.Response) {
	if res.StatusCode != http.StatusUnauthorized {
		return
	}

	// the request spoke for a session that is no longer the current one
	if res.Request != nil && detachedFrom(res.Request.Context()) {
		return
	}

	changed, err := c.session.Clear()
	if err != nil {
		log.L.Errorf("unable to clear session after 401: %s", err)
	}

	c.ResetCookies()

	if !changed {
		log.L.Debugf("401 from %s while already signed out", requestPath(res))
		return
	}

	log.L.Warnf("401 from %s, session signed out", requestPath(res))
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

func requestPath(res *http.Response) string {
	if res.Request == nil || res.Request.URL == nil {
		return "unknown path"
	}

	return res.Request.URL.Path
}
