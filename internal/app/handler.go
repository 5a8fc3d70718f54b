package app

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/stolasapp/caseview/internal/sec"
	"github.com/stolasapp/caseview/internal/session"
)

// sessionCookie names the cookie carrying the opaque session token.
const sessionCookie = "caseview_session"

// principalKey is the echo context key holding the resolved principal on
// protected routes.
const principalKey = "caseview.principal"

type handler struct {
	sessions *session.Manager
	logger   *slog.Logger
}

func (h handler) register(e *echo.Echo) {
	e.GET("/", h.root)
	e.GET("/public", h.public)
	e.GET("/error", h.errorPage)
	e.GET("/login", h.loginForm)
	e.POST("/login", h.login)

	protected := e.Group("", h.requireSession)
	protected.GET("/index", h.index)
	protected.GET("/protected", h.protected)
	protected.GET("/logout", h.logout)
	protected.GET("/case", h.caseForm)
	protected.POST("/case", h.caseSubmit)
}

// requireSession resolves the session cookie to a principal. Anonymous
// requests are not an error; they redirect to the login page carrying the
// original destination so it can be resumed.
func (h handler) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		principal, err := h.sessions.Get(c.Request().Context(), cookieToken(c))
		if errors.Is(err, session.ErrNotAuthenticated) {
			return c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request().URL.Path))
		} else if err != nil {
			return err
		}
		c.Set(principalKey, principal)
		return next(c)
	}
}

func currentPrincipal(c echo.Context) *session.Principal {
	if principal, ok := c.Get(principalKey).(session.Principal); ok {
		return &principal
	}
	return nil
}

func cookieToken(c echo.Context) string {
	cookie, err := c.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (h handler) root(c echo.Context) error {
	return c.Redirect(http.StatusFound, "/index")
}

func (h handler) index(c echo.Context) error {
	return c.Render(http.StatusOK, "index.html", page{
		Title:     "Home",
		Principal: currentPrincipal(c),
	})
}

func (h handler) public(c echo.Context) error {
	return c.Render(http.StatusOK, "public.html", page{Title: "Public"})
}

func (h handler) protected(c echo.Context) error {
	return c.Render(http.StatusOK, "protected.html", page{
		Title:     "Protected",
		Principal: currentPrincipal(c),
	})
}

func (h handler) errorPage(c echo.Context) error {
	return c.Render(http.StatusOK, "error.html", page{Title: "Error"})
}

func (h handler) loginForm(c echo.Context) error {
	return c.Render(http.StatusOK, "login.html", page{
		Title: "Login",
		Next:  sanitizeNext(c.QueryParam("next")),
	})
}

func (h handler) login(c echo.Context) error {
	username := c.FormValue("username")
	password := c.FormValue("password")
	remember := c.FormValue("remember") != ""
	next := sanitizeNext(c.FormValue("next"))

	principal, err := h.sessions.Login(c.Request().Context(), username, password, remember)
	if errors.Is(err, sec.ErrInvalidCredentials) {
		// Deliberately non-specific; never reveal whether the username exists.
		return c.Render(http.StatusUnauthorized, "login.html", page{
			Title:       "Login",
			LoginFailed: true,
			Next:        next,
		})
	} else if err != nil {
		return err
	}

	h.logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "user logged in",
		slog.String("username", principal.Username),
	)

	cookie := &http.Cookie{
		Name:     sessionCookie,
		Value:    principal.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		cookie.Expires = principal.ExpiresAt
	}
	c.SetCookie(cookie)

	if next == "" {
		next = "/index"
	}
	return c.Redirect(http.StatusFound, next)
}

func (h handler) logout(c echo.Context) error {
	principal := currentPrincipal(c)
	if err := h.sessions.Logout(c.Request().Context(), principal.Token); err != nil {
		return err
	}

	h.logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "user logged out",
		slog.String("username", principal.Username),
	)

	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Render(http.StatusOK, "logout.html", page{Title: "Logged out"})
}

func (h handler) caseForm(c echo.Context) error {
	return c.Redirect(http.StatusFound, "/error")
}

func (h handler) caseSubmit(c echo.Context) error {
	raw := c.FormValue("caseid")
	if !isDigits(raw) {
		return c.Redirect(http.StatusFound, "/error")
	}
	caseID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return c.Redirect(http.StatusFound, "/error")
	}

	principal := currentPrincipal(c)
	if err := h.sessions.SetCaseID(c.Request().Context(), principal.Token, caseID); err != nil {
		return err
	}

	h.logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "case requested",
		slog.String("username", principal.Username),
		slog.Int64("caseid", caseID),
	)

	return c.Render(http.StatusOK, "case.html", page{
		Title:     "Case",
		Principal: principal,
		CaseID:    caseID,
	})
}

// isDigits reports whether s is non-empty and entirely decimal digits. A sign
// or any other rune fails, matching the form contract.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// sanitizeNext restricts post-login redirect targets to local absolute paths
// so untrusted query input cannot send the browser off-site.
func sanitizeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return ""
	}
	if strings.ContainsAny(next, "\\\r\n") {
		return ""
	}
	return next
}
