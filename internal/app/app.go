// Package app contains the web front-end.
package app

import (
	"embed"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/stolasapp/caseview/internal/config"
	"github.com/stolasapp/caseview/internal/session"
)

//go:embed static
var staticFiles embed.FS

// New creates the web front-end server.
func New(cfg config.Config, logger *slog.Logger, sessions *session.Manager) *echo.Echo {
	srv := echo.New()

	srv.HideBanner = true
	srv.HidePort = true
	srv.Logger.SetLevel(log.OFF)
	srv.Renderer = newRenderer()
	srv.HTTPErrorHandler = errorHandler(logger)

	if cfg.DevMode {
		srv.Debug = true
		srv.Use(logRequests(logger))
	}

	srv.Use(
		middleware.Recover(),
		middleware.Decompress(),
		middleware.Gzip(),
		middleware.Secure(),
		middleware.RequestID(),
	)

	handler{sessions: sessions, logger: logger}.register(srv)
	staticFS := echo.MustSubFS(staticFiles, "static")
	srv.StaticFS("/static/", staticFS)
	srv.FileFS("/robots.txt", "robots.txt", staticFS)
	return srv
}

// errorHandler renders the generic error page for anything a handler did not
// already turn into a redirect. Internal detail is logged, never shown.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			code = httpErr.Code
		}
		if code >= http.StatusInternalServerError {
			logger.LogAttrs(
				c.Request().Context(),
				slog.LevelError,
				"request failed",
				slog.String("uri", c.Request().RequestURI),
				slog.Any("error", err),
			)
		}

		if renderErr := c.Render(code, "error.html", page{Title: "Error"}); renderErr != nil {
			c.Response().WriteHeader(code)
		}
	}
}

func logRequests(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("uri", req.RequestURI),
				slog.String("route", c.Path()),
				slog.Duration("latency", latency),
				slog.Int("status", res.Status),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			logger.LogAttrs(
				req.Context(),
				slog.LevelDebug,
				"request handled",
				attrs...,
			)
			return err
		}
	}
}
