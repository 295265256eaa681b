package core

import (
	"embed"
	"html"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

// page is the data every view receives. Errors is never nil.
type page struct {
	Errors  []string
	User    *SessionClaims
	Flashes []string

	// dashboard
	Posts []Post

	// single-post, edit-post
	Post     *Post
	Author   string
	BodyHTML template.HTML
	IsAuthor bool
	Views    int64
	Counted  bool

	// form echo on re-render
	Username string
	Title    string
	Body     string
}

// LoadTemplates parses the embedded view set.
func LoadTemplates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{"plain": displayText}).ParseFS(templateFS, "templates/*.html")
}

// displayText decodes the entities StripAll left in stored text so the template
// escapes them exactly once.
func displayText(stored string) string {
	return html.UnescapeString(stored)
}

func (h *handlers) render(c *gin.Context, name string, p page) {
	if identity, ok := IdentityFrom(c); ok {
		p.User = &identity
	}
	if p.Errors == nil {
		p.Errors = []string{}
	}
	p.Flashes = h.flash.Pop(c)
	c.HTML(http.StatusOK, name, p)
}

// safeHTML marks the output of RenderMarkup as trusted markup. Nothing else may be passed here.
func safeHTML(rendered string) template.HTML {
	return template.HTML(rendered) // #nosec G203 -- allow-list sanitized
}
