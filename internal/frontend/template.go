package frontend

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/ZanzyTHEbar/startup-success-predictor/internal/features"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/prediction"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/security"
	"github.com/gin-gonic/gin"
)

// Page names a renderable view.
type Page string

const (
	PageIndex      Page = "index"
	PageForm       Page = "form"
	PageResults    Page = "results"
	PageAdaptivity Page = "adaptivity"
)

var pages = []Page{PageIndex, PageForm, PageResults, PageAdaptivity}

// Renderer holds one parsed template set per page, each sharing the layout.
type Renderer struct {
	templates map[Page]*template.Template
}

var funcs = template.FuncMap{
	"percent": func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
	"number":  func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
}

// LoadRenderer parses every page template from fsys.
func LoadRenderer(fsys fs.FS) (*Renderer, error) {
	r := &Renderer{templates: make(map[Page]*template.Template, len(pages))}
	for _, page := range pages {
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(fsys, "layout.html", string(page)+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", page, err)
		}
		r.templates[page] = tmpl
	}
	return r, nil
}

// FormView lists the schema fields grouped for the input form.
type FormView struct {
	Groups []features.FieldGroup
}

// NewFormView builds the input form model.
func NewFormView() FormView {
	return FormView{Groups: features.Grouped()}
}

// InputValue is one echoed input in schema order.
type InputValue struct {
	Name  string
	Value float64
}

// ResultsView is the model of the results page.
type ResultsView struct {
	prediction.Result
	Inputs []InputValue
}

// NewResultsView orders the echoed inputs by schema position.
func NewResultsView(result prediction.Result) ResultsView {
	view := ResultsView{Result: result}
	if result.InputData == nil {
		return view
	}
	for _, name := range features.Names() {
		view.Inputs = append(view.Inputs, InputValue{Name: name, Value: result.InputData[name]})
	}
	return view
}

type pageData struct {
	Nonce string
	Title string
	Data  any
}

var titles = map[Page]string{
	PageIndex:      "Startup Success Predictor",
	PageForm:       "Predict",
	PageResults:    "Prediction Result",
	PageAdaptivity: "Adaptivity",
}

// Render executes page with data and writes it with status.
func (r *Renderer) Render(c *gin.Context, status int, page Page, data any) error {
	tmpl, ok := r.templates[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	err := tmpl.Execute(&buf, pageData{
		Nonce: security.GetNonce(c),
		Title: titles[page],
		Data:  data,
	})
	if err != nil {
		return fmt.Errorf("failed to execute %s template: %w", page, err)
	}

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
	return nil
}

// MustRender renders page or, on failure, records the error for the gin
// error middleware.
func (r *Renderer) MustRender(c *gin.Context, page Page, data any) {
	if err := r.Render(c, http.StatusOK, page, data); err != nil {
		_ = c.Error(err)
	}
}
