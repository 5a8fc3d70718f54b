package app

import (
	"embed"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"

	"github.com/stolasapp/caseview/internal/session"
)

//go:embed templates/*.html
var templateFiles embed.FS

// page is the view model shared by every template. Unused fields stay zero.
type page struct {
	Title     string
	Principal *session.Principal
	// LoginFailed re-renders the login form with its generic failure notice.
	LoginFailed bool
	// Next is the sanitized path to resume after login.
	Next string
	// CaseID is the parsed case number for the case page.
	CaseID int64
}

type renderer struct {
	templates *template.Template
}

func newRenderer() renderer {
	return renderer{
		templates: template.Must(template.ParseFS(templateFiles, "templates/*.html")),
	}
}

// Render satisfies [echo.Renderer].
func (r renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}
