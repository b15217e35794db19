package classeviva

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	cverrors "github.com/jrsteele09/go-classeviva/internal/errors"
	"github.com/jrsteele09/go-classeviva/internal/utils"
	"github.com/jrsteele09/go-classeviva/session"
	"github.com/jrsteele09/go-classeviva/users"
	"github.com/pkg/errors"
)

type loginRequest struct {
	UID  string `json:"uid"`
	Pass string `json:"pass"`
}

// Login authenticates the client and returns the resulting profile.
//
// When the client is already authorized the call is an idempotent no-op: no
// network request is made and the current profile is returned. Empty
// arguments fall back to the credentials supplied at construction. A cached
// session whose expiry is still in the future is adopted without touching
// the network; otherwise one POST to /auth/login/ is issued and, on success,
// its response overwrites the cache file.
//
// Every successful login schedules the renewal timer. Failures never change
// session state.
func (c *Client) Login(ctx context.Context, username, password string) (*users.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginLocked(ctx, username, password)
}

func (c *Client) loginLocked(ctx context.Context, username, password string) (*users.User, error) {
	if c.session.Authorized(c.now()) {
		c.log.Debug().Str("ident", c.user.Ident).Msg("login: already logged in")
		u := c.user
		return &u, nil
	}

	if username == "" {
		username = c.username
	}
	if password == "" {
		password = c.password
	}
	if username == "" || password == "" {
		c.log.Error().Msg("login: credentials not set")
		return nil, cverrors.ErrMissingCredentials
	}

	if rec, err := c.cache.Load(c.now()); err == nil {
		c.adopt(rec)
		c.username, c.password = username, password
		c.scheduleRenewalLocked()
		c.log.Info().
			Str("ident", c.user.Ident).
			Time("expiry", c.session.Expiry).
			Msg("login: adopted cached session")
		u := c.user
		return &u, nil
	}

	rec, err := c.postLogin(ctx, username, password)
	if err != nil {
		c.log.Error().Err(err).Msg("login failed")
		return nil, err
	}

	c.adopt(rec)
	c.username, c.password = username, password
	if err := c.cache.Store(rec); err != nil {
		c.log.Warn().Err(err).Str("path", c.cache.Path()).Msg("login: could not persist session cache")
	}
	c.scheduleRenewalLocked()
	c.log.Info().
		Str("ident", c.user.Ident).
		Time("expiry", c.session.Expiry).
		Msg("login succeeded")

	u := c.user
	return &u, nil
}

// Logout cancels the renewal timer and clears the session and profile. It
// reports false when no session was active.
func (c *Client) Logout() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.session.Authorized(c.now()) && c.renewal == nil {
		c.log.Debug().Msg("logout: already logged out")
		return false
	}

	if c.renewal != nil {
		c.renewal.Stop()
		c.renewal = nil
	}
	c.session = session.Session{}
	c.user = users.User{}
	c.log.Info().Msg("logout succeeded")
	return true
}

// postLogin issues the single authentication request.
func (c *Client) postLogin(ctx context.Context, username, password string) (*session.Record, error) {
	body, err := json.Marshal(loginRequest{UID: username, Pass: password})
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Login] marshal credentials")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login/", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Login] build request")
	}
	c.setDefaultHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Login] issue request")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Login] read response")
	}

	var env struct {
		session.Record
		envelope
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errors.Wrap(err, "[Client.Login] decode response")
	}
	if env.Error != "" {
		return nil, errors.Wrapf(cverrors.ErrRemote, "[Client.Login] %s (status %d)", env.remoteMessage(), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(cverrors.ErrUnexpectedStatus, "[Client.Login] status %d", resp.StatusCode)
	}
	if !env.Expire.After(c.now()) {
		return nil, errors.Wrap(cverrors.ErrSessionExpired, "[Client.Login] login response already expired")
	}

	rec := env.Record
	return &rec, nil
}

// adopt installs a login record as the live session and profile. The numeric
// id is the digit run of the identifier; type and school stay empty until a
// card fetch.
func (c *Client) adopt(rec *session.Record) {
	c.session = session.Session{Token: rec.Token, Expiry: rec.Expire}
	c.user = users.User{
		Name:    rec.FirstName,
		Surname: rec.LastName,
		ID:      utils.Digits(rec.Ident),
		Ident:   rec.Ident,
	}
}

// scheduleRenewalLocked arms the single renewal timer, replacing any pending
// one. Callers must hold c.mu.
func (c *Client) scheduleRenewalLocked() {
	if c.renewal != nil {
		c.renewal.Stop()
	}
	c.renewal = time.AfterFunc(c.renewEvery, c.renew)
}

// renew re-enters login with the stored credentials. A failure is logged and
// leaves the session untouched; nothing propagates to callers.
func (c *Client) renew() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.loginLocked(context.Background(), c.username, c.password); err != nil {
		c.log.Error().Err(err).Msg("session renewal failed")
	}
}
