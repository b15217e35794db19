package classeviva

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	cverrors "github.com/jrsteele09/go-classeviva/internal/errors"
	"github.com/pkg/errors"
)

// The methods in this file bypass the endpoint catalogue: they hit the
// /auth namespace or the secondary contents host, or need a response header
// instead of a body. Each replicates the same auth-check-then-request shape
// the catalogue executor uses.

// TokenStatus describes the remaining lifetime of the current bearer token
// as reported by the platform.
type TokenStatus struct {
	Expire        string `json:"expire"`
	Release       string `json:"release"`
	RemainingTime int    `json:"remainingTime"`
}

// ContentItem is one promotional/minigame content entry from the secondary
// contents host.
type ContentItem struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	ImageURL string `json:"imageUrl"`
	Opens    string `json:"opens"`
	Closes   string `json:"closes"`
}

// authRequest issues one bearer-authenticated request against an absolute
// URL and returns the raw body. Shared by the /auth endpoints and the
// contents host.
func (c *Client) authRequest(ctx context.Context, method, url string) (*http.Response, []byte, error) {
	c.mu.Lock()
	authorized := c.session.Authorized(c.now())
	token := c.session.Token
	c.mu.Unlock()

	if !authorized {
		c.log.Error().Str("url", url).Msg("request: not authorized")
		return nil, nil, cverrors.ErrNotAuthorized
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[Client.authRequest] build request")
	}
	c.setDefaultHeaders(req)
	req.Header.Set("Z-Auth-Token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("url", url).Msg("request: transport error")
		return nil, nil, errors.Wrap(err, "[Client.authRequest] issue request")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[Client.authRequest] read response")
	}
	return resp, payload, nil
}

// Ticket returns a short-lived ticket usable for web-session handover.
func (c *Client) Ticket(ctx context.Context) (string, error) {
	resp, payload, err := c.authRequest(ctx, http.MethodGet, c.baseURL+"/auth/ticket")
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Error().Int("status", resp.StatusCode).Msg("ticket: unexpected status")
		return "", errors.Wrapf(cverrors.ErrUnexpectedStatus, "[Client.Ticket] status %d", resp.StatusCode)
	}
	ticket, err := unwrap[string](payload, "ticket")
	if err != nil {
		return "", errors.Wrap(err, "[Client.Ticket]")
	}
	return ticket, nil
}

// Avatar returns the account avatar as raw image bytes.
func (c *Client) Avatar(ctx context.Context) ([]byte, error) {
	resp, payload, err := c.authRequest(ctx, http.MethodGet, c.baseURL+"/auth/avatar")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Error().Int("status", resp.StatusCode).Msg("avatar: unexpected status")
		return nil, errors.Wrapf(cverrors.ErrUnexpectedStatus, "[Client.Avatar] status %d", resp.StatusCode)
	}
	return payload, nil
}

// Status returns the platform's view of the current token.
func (c *Client) Status(ctx context.Context) (TokenStatus, error) {
	resp, payload, err := c.authRequest(ctx, http.MethodGet, c.baseURL+"/auth/status/")
	if err != nil {
		return TokenStatus{}, err
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Error().Int("status", resp.StatusCode).Msg("status: unexpected status")
		return TokenStatus{}, errors.Wrapf(cverrors.ErrUnexpectedStatus, "[Client.Status] status %d", resp.StatusCode)
	}
	status, err := unwrap[TokenStatus](payload, "status")
	if err != nil {
		return TokenStatus{}, errors.Wrap(err, "[Client.Status]")
	}
	return status, nil
}

// Contents returns the promotional content catalogue from the secondary
// host. It requires the school code, which is only known after a successful
// Card fetch.
func (c *Client) Contents(ctx context.Context) ([]ContentItem, error) {
	c.mu.Lock()
	schoolCode := c.user.School.Code
	c.mu.Unlock()

	if schoolCode == "" {
		c.log.Error().Msg("contents: school code not known, fetch the card first")
		return nil, cverrors.ErrNoSchoolCode
	}

	url := fmt.Sprintf("%s/%s/2021/students/contents", c.contentsURL, schoolCode)
	resp, payload, err := c.authRequest(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Error().Int("status", resp.StatusCode).Msg("contents: unexpected status")
		return nil, errors.Wrapf(cverrors.ErrUnexpectedStatus, "[Client.Contents] status %d", resp.StatusCode)
	}

	var items []ContentItem
	if err := json.Unmarshal(payload, &items); err != nil {
		c.log.Error().Err(err).Msg("contents: undecodable response")
		return nil, errors.Wrap(err, "[Client.Contents] decode response")
	}
	return items, nil
}

// NoticeAttachmentURL resolves the download URL of a noticeboard attachment
// by reading the Location header of the redirect the platform answers with.
func (c *Client) NoticeAttachmentURL(ctx context.Context, eventCode string, pubID, attachNum int) (string, error) {
	c.mu.Lock()
	authorized := c.session.Authorized(c.now())
	token := c.session.Token
	id := c.user.ID
	c.mu.Unlock()

	if !authorized {
		c.log.Error().Msg("notice attachment: not authorized")
		return "", cverrors.ErrNotAuthorized
	}

	requestID := uuid.NewString()
	url := fmt.Sprintf("%s/students/%s/noticeboard/attach/%s/%d/%d", c.baseURL, id, eventCode, pubID, attachNum)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "[Client.NoticeAttachmentURL] build request")
	}
	c.setDefaultHeaders(req)
	req.Header.Set("Z-Auth-Token", token)

	// The redirect must not be followed: the Location header is the result.
	noRedirect := *c.httpClient
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := noRedirect.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("request_id", requestID).Msg("notice attachment: transport error")
		return "", errors.Wrap(err, "[Client.NoticeAttachmentURL] issue request")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	location := resp.Header.Get("Location")
	if location == "" {
		c.log.Error().Int("status", resp.StatusCode).Str("request_id", requestID).Msg("notice attachment: no location header")
		return "", errors.Wrapf(cverrors.ErrNoLocation, "[Client.NoticeAttachmentURL] status %d", resp.StatusCode)
	}
	return location, nil
}
