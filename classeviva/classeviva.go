// Package classeviva is a credential-caching client for the Classeviva
// school-platform REST API.
//
// A Client owns one set of credentials, one bearer token and one expiry. It
// persists the last successful login to a JSON cache file so restarts can
// skip the network round trip, and renews the session on a timer while
// authenticated.
//
// Usage:
//
//	c := classeviva.New(
//	    classeviva.WithCredentials("S1234567A", "secret"),
//	)
//	defer c.Close()
//
//	user, err := c.Login(ctx, "", "")
//	if err != nil {
//	    return err
//	}
//	grades, err := c.Grades(ctx)
//
// All methods that reach the network take a context.Context. Failures are
// returned as wrapped sentinel errors from internal/errors and are also
// logged through the injected logger.
package classeviva

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jrsteele09/go-classeviva/session"
	"github.com/jrsteele09/go-classeviva/users"
	"github.com/rs/zerolog"
)

// Region selects which platform deployment the client talks to.
type Region string

const (
	RegionItaly     Region = "it"
	RegionSanMarino Region = "sm"
)

// regionHosts is the fixed per-region hostname table. Unknown regions fall
// back to the Italian deployment.
var regionHosts = map[Region]string{
	RegionItaly:     "web.spaggiari.eu",
	RegionSanMarino: "web.spaggiari.sm",
}

const (
	defaultApp      = "zorro/1.0"
	renewalInterval = 90 * time.Minute
)

// Client is a session-holding client for one Classeviva account.
// It is safe for use from multiple goroutines, although the API itself is
// sequential: callers are expected to await each call before the next.
type Client struct {
	httpClient *http.Client
	log        zerolog.Logger
	now        func() time.Time

	region      Region
	app         string
	baseURL     string // https://{host}/rest/v1
	contentsURL string // https://{host}/gek/api/v1
	userAgent   string

	username string
	password string

	renewEvery time.Duration

	mu      sync.Mutex
	session session.Session
	user    users.User
	cache   *session.FileCache
	renewal *time.Timer
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithRegion selects the platform deployment. Defaults to RegionItaly.
func WithRegion(r Region) Option {
	return func(c *Client) { c.region = r }
}

// WithApp sets the application identifier embedded in the User-Agent header.
func WithApp(app string) Option {
	return func(c *Client) { c.app = app }
}

// WithCredentials stores default credentials used when Login is called with
// empty arguments.
func WithCredentials(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithHTTPClient replaces the transport. Defaults to http.DefaultClient.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithLogger injects the logger every success and failure line is written to.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithCacheDir overrides the directory holding the session cache file.
func WithCacheDir(dir string) Option {
	return func(c *Client) { c.cache = session.NewFileCache(dir) }
}

// WithBaseURL points the client at an arbitrary API root instead of the
// region host table. Primarily for tests against fakes.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithContentsURL points the contents feature at an arbitrary root.
// Primarily for tests against fakes.
func WithContentsURL(u string) Option {
	return func(c *Client) { c.contentsURL = u }
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Client) { c.now = nowFunc }
}

// WithRenewalInterval overrides the 90-minute renewal cadence (primarily for
// testing)
func WithRenewalInterval(d time.Duration) Option {
	return func(c *Client) { c.renewEvery = d }
}

// New builds a Client. All options are optional; the zero configuration
// talks to the Italian deployment, logs to stderr and caches the session
// under the user cache directory.
func New(options ...Option) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		log:        zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger(),
		now:        time.Now,
		region:     RegionItaly,
		app:        defaultApp,
		renewEvery: renewalInterval,
	}

	for _, opt := range options {
		opt(c)
	}

	host, ok := regionHosts[c.region]
	if !ok {
		host = regionHosts[RegionItaly]
	}
	if c.baseURL == "" {
		c.baseURL = fmt.Sprintf("https://%s/rest/v1", host)
	}
	if c.contentsURL == "" {
		c.contentsURL = fmt.Sprintf("https://%s/gek/api/v1", host)
	}
	c.userAgent = fmt.Sprintf("CVVS/std/4.2.3 %s", c.app)
	if c.cache == nil {
		c.cache = session.NewFileCache(defaultCacheDir())
	}

	return c
}

// Authorized reports whether the client currently holds a usable session.
func (c *Client) Authorized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Authorized(c.now())
}

// User returns a copy of the current profile.
func (c *Client) User() users.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Token returns the opaque bearer token, empty when unauthenticated.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Token
}

// Close cancels the renewal timer and clears the session. The on-disk cache
// is left in place.
func (c *Client) Close() {
	c.Logout()
}

// setDefaultHeaders applies the fixed header set every request carries.
func (c *Client) setDefaultHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Z-Dev-Apikey", "Tg1NWEwNGIgIC0K")
	req.Header.Set("Z-Cache-Control", "cache")
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "classeviva")
}
