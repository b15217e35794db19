package classeviva

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/google/uuid"
	cverrors "github.com/jrsteele09/go-classeviva/internal/errors"
	"github.com/pkg/errors"
)

// audience is the API path component selecting which account-role namespace
// a request addresses.
type audience string

const (
	audStudents audience = "students"
	audParents  audience = "parents"
	audUsers    audience = "users"
)

// envelope carries the error indicator the remote API may return in place of
// the requested payload.
type envelope struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// remoteMessage composes a human-readable failure reason: the server's
// message field when present, otherwise the tail segment of the error path
// (e.g. "auth/err_authentication_failed" -> "err_authentication_failed").
func (e envelope) remoteMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return path.Base(e.Error)
}

// request describes one authenticated call: everything that varies between
// the catalogue entries.
type request struct {
	path     string
	method   string   // defaults to GET
	audience audience // defaults to students
	body     any      // attached only on non-GET requests
	binary   bool     // skip JSON decoding and envelope checks
	useIdent bool     // interpolate the identifier instead of the numeric id
	headers  map[string]string
}

// fetch issues one authenticated request and returns the raw response body.
// It short-circuits without touching the network when the client holds no
// usable session. JSON responses have their envelope checked for a remote
// error before the body is handed back.
func (c *Client) fetch(ctx context.Context, r request) ([]byte, error) {
	c.mu.Lock()
	authorized := c.session.Authorized(c.now())
	token := c.session.Token
	id := c.user.ID
	if r.useIdent {
		id = c.user.Ident
	}
	c.mu.Unlock()

	if !authorized {
		c.log.Error().Str("path", r.path).Msg("fetch: not authorized")
		return nil, cverrors.ErrNotAuthorized
	}

	if r.method == "" {
		r.method = http.MethodGet
	}
	if r.audience == "" {
		r.audience = audStudents
	}

	requestID := uuid.NewString()
	url := fmt.Sprintf("%s/%s/%s%s", c.baseURL, r.audience, id, r.path)

	var body io.Reader
	if r.body != nil && r.method != http.MethodGet {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, errors.Wrap(err, "[Client.fetch] marshal body")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, url, body)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.fetch] build request")
	}
	c.setDefaultHeaders(req)
	req.Header.Set("Z-Auth-Token", token)
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).
			Str("request_id", requestID).
			Str("path", r.path).
			Msg("fetch: transport error")
		return nil, errors.Wrap(err, "[Client.fetch] issue request")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Error().Err(err).
			Str("request_id", requestID).
			Str("path", r.path).
			Msg("fetch: read error")
		return nil, errors.Wrap(err, "[Client.fetch] read response")
	}

	if r.binary {
		if resp.StatusCode != http.StatusOK {
			c.log.Error().
				Str("request_id", requestID).
				Str("path", r.path).
				Int("status", resp.StatusCode).
				Msg("fetch: unexpected status")
			return nil, errors.Wrapf(cverrors.ErrUnexpectedStatus, "[Client.fetch] %s: status %d", r.path, resp.StatusCode)
		}
		return payload, nil
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		c.log.Error().Err(err).
			Str("request_id", requestID).
			Str("path", r.path).
			Msg("fetch: undecodable response")
		return nil, errors.Wrap(err, "[Client.fetch] decode response")
	}
	if env.Error != "" {
		c.log.Error().
			Str("request_id", requestID).
			Str("path", r.path).
			Int("status", resp.StatusCode).
			Str("reason", env.remoteMessage()).
			Msg("fetch: remote error")
		return nil, errors.Wrapf(cverrors.ErrRemote, "[Client.fetch] %s: %s (status %d)", r.path, env.remoteMessage(), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Error().
			Str("request_id", requestID).
			Str("path", r.path).
			Int("status", resp.StatusCode).
			Msg("fetch: unexpected status")
		return nil, errors.Wrapf(cverrors.ErrUnexpectedStatus, "[Client.fetch] %s: status %d", r.path, resp.StatusCode)
	}

	return payload, nil
}

// unwrap extracts the catalogue entry's payload field from a decoded
// envelope. An absent field yields the zero value, never an error, so
// callers always see the documented default on absence.
func unwrap[T any](raw []byte, key string) (T, error) {
	var zero T

	if key == "" {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return zero, errors.Wrap(err, "[unwrap] decode payload")
		}
		return v, nil
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		return zero, errors.Wrap(err, "[unwrap] decode envelope")
	}
	field, ok := env[key]
	if !ok {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(field, &v); err != nil {
		return zero, errors.Wrapf(err, "[unwrap] decode %q", key)
	}
	return v, nil
}

// getJSON runs one catalogue entry through fetch and unwraps its payload.
func getJSON[T any](ctx context.Context, c *Client, ep endpoint, body any, args ...any) (T, error) {
	p := ep.path
	if len(args) > 0 {
		p = fmt.Sprintf(ep.path, args...)
	}
	raw, err := c.fetch(ctx, request{
		path:     p,
		method:   ep.method,
		audience: ep.audience,
		body:     body,
		useIdent: ep.useIdent,
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return unwrap[T](raw, ep.key)
}
