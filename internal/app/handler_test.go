package app_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolasapp/caseview/internal/app"
	"github.com/stolasapp/caseview/internal/config"
	"github.com/stolasapp/caseview/internal/sec"
	"github.com/stolasapp/caseview/internal/session"
	"github.com/stolasapp/caseview/internal/storage"
	"github.com/stolasapp/caseview/internal/storage/db"
)

func newTestApp(t *testing.T) (*httptest.Server, *storage.DB) {
	t.Helper()

	store, err := storage.NewDB(t.Context(), slog.Default(), filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv := httptest.NewServer(app.New(config.Config{}, slog.Default(), session.NewManager(store)))
	t.Cleanup(srv.Close)
	return srv, store
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		// Redirects are assertions in these tests, never followed.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func register(t *testing.T, store storage.Users, username, password string) {
	t.Helper()
	hash, err := sec.HashPassword(password)
	require.NoError(t, err)
	_, err = store.CreateUser(t.Context(), db.User{Name: username, PasswordHash: hash})
	require.NoError(t, err)
}

func get(t *testing.T, client *http.Client, base, path string) *http.Response {
	t.Helper()
	resp, err := client.Get(base + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func postForm(t *testing.T, client *http.Client, base, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := client.PostForm(base+path, form)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func login(t *testing.T, client *http.Client, base, username, password string) *http.Response {
	t.Helper()
	return postForm(t, client, base, "/login", url.Values{
		"username": {username},
		"password": {password},
	})
}

func TestPublicSurface(t *testing.T) {
	t.Parallel()

	srv, _ := newTestApp(t)
	client := newClient(t)

	resp := get(t, client, srv.URL, "/")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/index", resp.Header.Get("Location"))

	resp = get(t, client, srv.URL, "/public")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "without logging in")

	resp = get(t, client, srv.URL, "/error")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Something went wrong")

	resp = get(t, client, srv.URL, "/login")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), `name="username"`)
}

func TestProtectedRedirectsAnonymous(t *testing.T) {
	t.Parallel()

	srv, _ := newTestApp(t)
	client := newClient(t)

	for _, path := range []string{"/index", "/protected", "/logout", "/case"} {
		resp := get(t, client, srv.URL, path)
		assert.Equal(t, http.StatusFound, resp.StatusCode, path)
		assert.Equal(t, "/login?next="+url.QueryEscape(path), resp.Header.Get("Location"), path)
	}

	// POST /case is guarded too; the handler must never run.
	resp := postForm(t, client, srv.URL, "/case", url.Values{"caseid": {"42"}})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?next=%2Fcase", resp.Header.Get("Location"))
}

func TestLoginLogoutScenario(t *testing.T) {
	t.Parallel()

	srv, store := newTestApp(t)
	register(t, store, "alice", "pw1")
	client := newClient(t)

	// Successful login lands on /index.
	resp := login(t, client, srv.URL, "alice", "pw1")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/index", resp.Header.Get("Location"))

	resp = get(t, client, srv.URL, "/index")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "alice")

	resp = get(t, client, srv.URL, "/protected")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "alice")

	// Logout invalidates the session.
	resp = get(t, client, srv.URL, "/logout")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "logged out")

	resp = get(t, client, srv.URL, "/protected")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?next=%2Fprotected", resp.Header.Get("Location"))
}

func TestLoginFailure(t *testing.T) {
	t.Parallel()

	srv, store := newTestApp(t)
	register(t, store, "alice", "pw1")
	client := newClient(t)

	// Wrong password and unknown user produce the same page.
	for _, creds := range [][2]string{{"alice", "wrong"}, {"mallory", "pw1"}} {
		resp := login(t, client, srv.URL, creds[0], creds[1])
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, body(t, resp), "Invalid username or password.")
	}

	// Still anonymous.
	resp := get(t, client, srv.URL, "/index")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestLoginResumesDestination(t *testing.T) {
	t.Parallel()

	srv, store := newTestApp(t)
	register(t, store, "alice", "pw1")
	client := newClient(t)

	resp := get(t, client, srv.URL, "/protected")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	location := resp.Header.Get("Location")
	require.Equal(t, "/login?next=%2Fprotected", location)

	resp = get(t, client, srv.URL, location)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), `name="next" value="/protected"`)

	resp = postForm(t, client, srv.URL, "/login", url.Values{
		"username": {"alice"},
		"password": {"pw1"},
		"next":     {"/protected"},
	})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/protected", resp.Header.Get("Location"))
}

func TestLoginNextSanitized(t *testing.T) {
	t.Parallel()

	srv, store := newTestApp(t)
	register(t, store, "alice", "pw1")

	// Off-site and malformed targets collapse to the landing page.
	for _, next := range []string{"https://example.com/evil", "//example.com", "relative", "/bad\r\nSet-Cookie: x=y"} {
		client := newClient(t)
		resp := postForm(t, client, srv.URL, "/login", url.Values{
			"username": {"alice"},
			"password": {"pw1"},
			"next":     {next},
		})
		require.Equal(t, http.StatusFound, resp.StatusCode, next)
		assert.Equal(t, "/index", resp.Header.Get("Location"), next)
	}
}

func TestCaseSubmission(t *testing.T) {
	t.Parallel()

	srv, store := newTestApp(t)
	register(t, store, "alice", "pw1")
	client := newClient(t)
	resp := login(t, client, srv.URL, "alice", "pw1")
	require.Equal(t, http.StatusFound, resp.StatusCode)

	// GET is not a valid way to reach the case page.
	resp = get(t, client, srv.URL, "/case")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/error", resp.Header.Get("Location"))

	for _, invalid := range []string{"abc", "", "-5", "4 2", "0x10"} {
		resp := postForm(t, client, srv.URL, "/case", url.Values{"caseid": {invalid}})
		assert.Equal(t, http.StatusFound, resp.StatusCode, invalid)
		assert.Equal(t, "/error", resp.Header.Get("Location"), invalid)
	}

	resp = postForm(t, client, srv.URL, "/case", url.Values{"caseid": {"42"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Case 42")
}

func TestCaseIsolationBetweenSessions(t *testing.T) {
	t.Parallel()

	srv, store := newTestApp(t)
	register(t, store, "alice", "pw1")
	register(t, store, "bob", "pw2")

	first := newClient(t)
	resp := login(t, first, srv.URL, "alice", "pw1")
	require.Equal(t, http.StatusFound, resp.StatusCode)

	second := newClient(t)
	resp = login(t, second, srv.URL, "bob", "pw2")
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp = postForm(t, first, srv.URL, "/case", url.Values{"caseid": {"42"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = postForm(t, second, srv.URL, "/case", url.Values{"caseid": {"7"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, first, srv.URL, "/protected")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	content := body(t, resp)
	assert.Contains(t, content, "Last case you opened: 42")
	assert.NotContains(t, content, ": 7")

	resp = get(t, second, srv.URL, "/protected")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	content = body(t, resp)
	assert.Contains(t, content, "Last case you opened: 7")
	assert.NotContains(t, content, ": 42")
}

func TestRememberMeCookie(t *testing.T) {
	t.Parallel()

	srv, store := newTestApp(t)
	register(t, store, "alice", "pw1")

	// A plain login gets a browser-session cookie; remember-me gets an
	// expiring one.
	client := newClient(t)
	resp := login(t, client, srv.URL, "alice", "pw1")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	cookie := sessionCookieOf(t, resp)
	assert.True(t, cookie.Expires.IsZero())
	assert.True(t, cookie.HttpOnly)

	client = newClient(t)
	resp = postForm(t, client, srv.URL, "/login", url.Values{
		"username": {"alice"},
		"password": {"pw1"},
		"remember": {"on"},
	})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	cookie = sessionCookieOf(t, resp)
	assert.False(t, cookie.Expires.IsZero())
}

func sessionCookieOf(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, cookie := range resp.Cookies() {
		if strings.HasPrefix(cookie.Name, "caseview_") {
			return cookie
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}
