package classeviva_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-classeviva/classeviva"
	cverrors "github.com/jrsteele09/go-classeviva/internal/errors"
	"github.com/jrsteele09/go-classeviva/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken    = "tok-12345"
	testIdent    = "S42"
	testUsername = "S1234567A"
	testPassword = "password123"
	testName     = "A"
	testSurname  = "B"
)

// fakeAPI is an httptest-backed stand-in for the remote platform.
type fakeAPI struct {
	t *testing.T

	mu         sync.Mutex
	loginCount int
	dataCount  int

	tokenLifetime time.Duration
	loginError    string // when set, login answers with this error path
	gradesBody    string // raw body served for /grades
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	return &fakeAPI{
		t:             t,
		tokenLifetime: time.Hour,
		gradesBody:    `{"grades":[{"subjectDesc":"MATEMATICA","evtId":1,"decimalValue":7.5,"displayValue":"7½"}]}`,
	}
}

func (f *fakeAPI) logins() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCount
}

func (f *fakeAPI) dataRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dataCount
}

func (f *fakeAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.loginCount++
	lifetime := f.tokenLifetime
	loginError := f.loginError
	f.mu.Unlock()

	var creds struct {
		UID  string `json:"uid"`
		Pass string `json:"pass"`
	}
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&creds))

	if loginError != "" || creds.UID != testUsername || creds.Pass != testPassword {
		if loginError == "" {
			loginError = "/rest/v1/auth/login/err_authentication_failed"
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprintf(w, `{"error":%q,"statusCode":422}`, loginError)
		return
	}

	expire := time.Now().Add(lifetime).Format(time.RFC3339Nano)
	fmt.Fprintf(w, `{"token":%q,"expire":%q,"firstName":%q,"lastName":%q,"ident":%q}`,
		testToken, expire, testName, testSurname, testIdent)
}

func (f *fakeAPI) requireAuth(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Z-Auth-Token") != testToken {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"auth/err_invalid_token","statusCode":401}`)
		return false
	}
	return true
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login/", f.handleLogin)

	serve := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.dataCount++
			f.mu.Unlock()
			if !f.requireAuth(w, r) {
				return
			}
			fmt.Fprint(w, body)
		}
	}

	mux.HandleFunc("GET /students/42/grades", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.dataCount++
		body := f.gradesBody
		f.mu.Unlock()
		if !f.requireAuth(w, r) {
			return
		}
		fmt.Fprint(w, body)
	})
	mux.Handle("GET /students/42/absences/details", serve(`{"events":[{"evtId":9,"evtCode":"ABA0","isJustified":true}]}`))
	mux.Handle("GET /students/42/agenda/all/{start}/{end}", serve(`{"agenda":[{"evtId":3,"evtCode":"AGHW","subjectDesc":"INGLESE"}]}`))
	mux.Handle("GET /students/42/agenda/{filter}/{start}/{end}", serve(`{"agenda":[{"evtId":4,"evtCode":"AGHW"}]}`))
	mux.Handle("GET /students/42/notes/all", serve(`{"NTTE":[{"evtId":5,"evtText":"note"}],"NTCL":[]}`))
	mux.Handle("GET /users/S42/card", serve(`{"card":{"ident":"S42","usrType":"G","usrId":42,"schName":"ITIS Example","schDedication":"G. Marconi","schCity":"Rome","schProv":"RM","schCode":"RMTF000000"}}`))
	mux.Handle("GET /auth/ticket", serve(`{"ticket":"web-ticket-1"}`))
	mux.Handle("GET /auth/status/", serve(`{"status":{"expire":"soon","remainingTime":5400}}`))
	mux.HandleFunc("GET /students/42/noticeboard/attach/{code}/{pub}/{n}", func(w http.ResponseWriter, r *http.Request) {
		if !f.requireAuth(w, r) {
			return
		}
		w.Header().Set("Location", "https://cdn.example.com/attach.pdf")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("POST /students/42/documents/read/{hash}", func(w http.ResponseWriter, r *http.Request) {
		if !f.requireAuth(w, r) {
			return
		}
		w.Write([]byte("%PDF-1.4 fake"))
	})
	mux.Handle("GET /RMTF000000/2021/students/contents", serve(`[{"id":1,"title":"minigame"}]`))

	return mux
}

// fixture wires a client against the fake API with a throwaway cache dir.
type fixture struct {
	api      *fakeAPI
	server   *httptest.Server
	client   *classeviva.Client
	cacheDir string
}

func setup(t *testing.T, options ...classeviva.Option) *fixture {
	t.Helper()

	api := newFakeAPI(t)
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	cacheDir := t.TempDir()
	base := []classeviva.Option{
		classeviva.WithBaseURL(server.URL),
		classeviva.WithContentsURL(server.URL),
		classeviva.WithCacheDir(cacheDir),
		classeviva.WithLogger(zerolog.Nop()),
		classeviva.WithCredentials(testUsername, testPassword),
	}
	client := classeviva.New(append(base, options...)...)
	t.Cleanup(client.Close)

	return &fixture{api: api, server: server, client: client, cacheDir: cacheDir}
}

func (f *fixture) login(t *testing.T) *users.User {
	t.Helper()
	user, err := f.client.Login(context.Background(), "", "")
	require.NoError(t, err)
	return user
}

func (f *fixture) cacheFile(t *testing.T) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(f.cacheDir, "*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	return matches[0]
}

func TestLoginEndToEnd(t *testing.T) {
	f := setup(t)

	user := f.login(t)

	assert.Equal(t, testName, user.Name)
	assert.Equal(t, testSurname, user.Surname)
	assert.Equal(t, "42", user.ID)
	assert.Equal(t, testIdent, user.Ident)
	assert.True(t, f.client.Authorized())
	assert.Equal(t, testToken, f.client.Token())

	// The raw login response must be on disk.
	data, err := os.ReadFile(f.cacheFile(t))
	require.NoError(t, err)
	var rec struct {
		Token string `json:"token"`
		Ident string `json:"ident"`
	}
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, testToken, rec.Token)
	assert.Equal(t, testIdent, rec.Ident)
}

func TestLoginIdempotentWhenAuthorized(t *testing.T) {
	f := setup(t)

	first := f.login(t)
	second := f.login(t)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.api.logins())
}

func TestLoginWithoutCredentials(t *testing.T) {
	f := setup(t, classeviva.WithCredentials("", ""))

	_, err := f.client.Login(context.Background(), "", "")

	require.ErrorIs(t, err, cverrors.ErrMissingCredentials)
	assert.False(t, f.client.Authorized())
	assert.Equal(t, 0, f.api.logins())
}

func TestLoginRemoteError(t *testing.T) {
	f := setup(t)

	_, err := f.client.Login(context.Background(), testUsername, "wrong")

	require.ErrorIs(t, err, cverrors.ErrRemote)
	assert.Contains(t, err.Error(), "err_authentication_failed")
	assert.False(t, f.client.Authorized())
}

func TestLoginAdoptsValidCache(t *testing.T) {
	f := setup(t)

	writeCacheRecord(t, f.cacheDir, testToken, time.Now().Add(time.Hour))

	user := f.login(t)

	assert.Equal(t, 0, f.api.logins(), "a valid cached session must skip the network")
	assert.Equal(t, "42", user.ID)
	assert.True(t, f.client.Authorized())
}

func TestLoginIgnoresExpiredCache(t *testing.T) {
	f := setup(t)

	path := writeCacheRecord(t, f.cacheDir, "stale-token", time.Now().Add(-time.Minute))

	f.login(t)

	assert.Equal(t, 1, f.api.logins(), "an expired cached session must force a network login")
	assert.Equal(t, testToken, f.client.Token())
	_, err := os.Stat(path)
	assert.NoError(t, err, "an expired cache record is ignored, not deleted")
}

func TestLoginIgnoresMalformedCache(t *testing.T) {
	f := setup(t)

	require.NoError(t, os.WriteFile(filepath.Join(f.cacheDir, "classeviva-session.json"), []byte("not json"), 0o600))

	f.login(t)

	assert.Equal(t, 1, f.api.logins())
	assert.True(t, f.client.Authorized())
}

func TestLogoutClearsState(t *testing.T) {
	f := setup(t)
	f.login(t)

	assert.True(t, f.client.Logout())
	assert.False(t, f.client.Authorized())
	assert.Empty(t, f.client.Token())
	assert.Equal(t, users.User{}, f.client.User())
	assert.False(t, f.client.Logout(), "second logout is a no-op")

	before := f.api.dataRequests()
	_, err := f.client.Grades(context.Background())
	require.ErrorIs(t, err, cverrors.ErrNotAuthorized)
	assert.Equal(t, before, f.api.dataRequests(), "unauthorized calls must not reach the network")
}

func TestGrades(t *testing.T) {
	f := setup(t)
	f.login(t)

	grades, err := f.client.Grades(context.Background())

	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, "MATEMATICA", grades[0].SubjectDesc)
	assert.Equal(t, 7.5, grades[0].DecimalValue)
}

func TestGradesDefaultOnAbsentKey(t *testing.T) {
	f := setup(t)
	f.api.mu.Lock()
	f.api.gradesBody = `{}`
	f.api.mu.Unlock()
	f.login(t)

	grades, err := f.client.Grades(context.Background())

	require.NoError(t, err)
	assert.Empty(t, grades)
}

func TestFetchRemoteErrorEnvelope(t *testing.T) {
	f := setup(t)
	f.api.mu.Lock()
	f.api.gradesBody = `{"error":"/students/grades/err_forbidden","statusCode":403,"message":"account disabled"}`
	f.api.mu.Unlock()
	f.login(t)

	_, err := f.client.Grades(context.Background())

	require.ErrorIs(t, err, cverrors.ErrRemote)
	assert.Contains(t, err.Error(), "account disabled")
}

func TestNotesDecodesWholeBody(t *testing.T) {
	f := setup(t)
	f.login(t)

	notes, err := f.client.Notes(context.Background())

	require.NoError(t, err)
	require.Len(t, notes.Teacher, 1)
	assert.Equal(t, "note", notes.Teacher[0].EventText)
	assert.Empty(t, notes.Warning)
}

func TestAgenda(t *testing.T) {
	f := setup(t)
	f.login(t)

	start := time.Date(2024, time.June, 3, 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 0, 7)
	events, err := f.client.Agenda(context.Background(), start, end)

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "INGLESE", events[0].SubjectDesc)
}

func TestAgendaCodeRejectsUnknownFilter(t *testing.T) {
	f := setup(t)
	f.login(t)

	before := f.api.dataRequests()
	_, err := f.client.AgendaCode(context.Background(), "BOGUS", time.Now(), time.Now())

	require.ErrorIs(t, err, cverrors.ErrInvalidFilter)
	assert.Equal(t, before, f.api.dataRequests())
}

func TestCardEnrichesProfile(t *testing.T) {
	f := setup(t)
	f.login(t)

	assert.Empty(t, f.client.User().School.Name, "school descriptor empty before card fetch")

	card, err := f.client.Card(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "RMTF000000", card.SchoolCode)

	user := f.client.User()
	assert.Equal(t, "ITIS Example", user.School.Name)
	assert.Equal(t, "RM", user.School.Province)
	assert.Equal(t, users.TypeParent, user.Type)
}

func TestContentsRequiresSchoolCode(t *testing.T) {
	f := setup(t)
	f.login(t)

	_, err := f.client.Contents(context.Background())
	require.ErrorIs(t, err, cverrors.ErrNoSchoolCode)

	_, err = f.client.Card(context.Background())
	require.NoError(t, err)

	items, err := f.client.Contents(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "minigame", items[0].Title)
}

func TestTicketAndStatus(t *testing.T) {
	f := setup(t)
	f.login(t)

	ticket, err := f.client.Ticket(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "web-ticket-1", ticket)

	status, err := f.client.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5400, status.RemainingTime)
}

func TestReadDocumentReturnsRawBytes(t *testing.T) {
	f := setup(t)
	f.login(t)

	data, err := f.client.ReadDocument(context.Background(), "abc123")

	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 fake"), data)
}

func TestNoticeAttachmentURLReadsLocation(t *testing.T) {
	f := setup(t)
	f.login(t)

	url, err := f.client.NoticeAttachmentURL(context.Background(), "CF", 1, 1)

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/attach.pdf", url)
}

func TestRenewalReLogsInAfterExpiry(t *testing.T) {
	f := setup(t, classeviva.WithRenewalInterval(300*time.Millisecond))
	f.api.mu.Lock()
	f.api.tokenLifetime = 250 * time.Millisecond
	f.api.mu.Unlock()

	f.login(t)
	require.Equal(t, 1, f.api.logins())

	require.Eventually(t, func() bool {
		return f.api.logins() >= 2
	}, 3*time.Second, 25*time.Millisecond, "renewal timer must re-enter login once the session expires")
}

func TestLogoutCancelsRenewal(t *testing.T) {
	f := setup(t, classeviva.WithRenewalInterval(150*time.Millisecond))
	f.api.mu.Lock()
	f.api.tokenLifetime = 100 * time.Millisecond
	f.api.mu.Unlock()

	f.login(t)
	require.True(t, f.client.Logout())

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 1, f.api.logins(), "no renewal may fire after logout")
}

func writeCacheRecord(t *testing.T, dir, token string, expire time.Time) string {
	t.Helper()
	path := filepath.Join(dir, "classeviva-session.json")
	body := fmt.Sprintf(`{"token":%q,"expire":%q,"firstName":%q,"lastName":%q,"ident":%q}`,
		token, expire.Format(time.RFC3339), testName, testSurname, testIdent)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
