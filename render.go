package blade

import (
	"net/http"

	ginrender "github.com/gin-gonic/gin/render"
)

var _ ginrender.HTMLRender = (*HtmlRender)(nil)

// HtmlRender plugs the engine into gin as its HTML renderer:
//
//	r := gin.New()
//	r.HTMLRender = blade.NewHTMLRender(engine)
type HtmlRender struct {
	e *Engine
}

// NewHTMLRender creates a gin-compatible renderer backed by e.
func NewHTMLRender(e *Engine) *HtmlRender {
	return &HtmlRender{e: e}
}

// Instance returns a ginrender.Render for one response.
func (h *HtmlRender) Instance(name string, data any) ginrender.Render {
	return &Render{e: h.e, name: name, data: data}
}

// Render renders one HTML response.
type Render struct {
	e    *Engine
	name string
	data any
}

// Render writes the rendered template to w.
func (r *Render) Render(w http.ResponseWriter) error {
	r.WriteContentType(w)
	return r.e.Render(w, r.name, r.data)
}

// WriteContentType sets the HTML content type unless one is present.
func (r *Render) WriteContentType(w http.ResponseWriter) {
	header := w.Header()
	if val := header["Content-Type"]; len(val) == 0 {
		header["Content-Type"] = []string{"text/html; charset=utf-8"}
	}
}
