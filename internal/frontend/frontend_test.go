package frontend

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/startup-success-predictor/internal/features"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/prediction"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func render(t *testing.T, page Page, data any) *httptest.ResponseRecorder {
	t.Helper()
	renderer, err := LoadRenderer(TemplatesFS())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set("csp-nonce", "test-nonce")

	require.NoError(t, renderer.Render(c, http.StatusOK, page, data))
	return w
}

func TestFormListsEveryField(t *testing.T) {
	w := render(t, PageForm, NewFormView())
	body := w.Body.String()

	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	for _, name := range features.Names() {
		assert.Contains(t, body, `name="`+name+`"`)
	}
	assert.Contains(t, body, `nonce="test-nonce"`)
}

func TestResultsSuccess(t *testing.T) {
	result := prediction.Result{
		Prediction:         1,
		SuccessProbability: 73.46,
		FailureProbability: 26.54,
		Tier:               prediction.TierMedium,
		InputData:          map[string]float64{"funding_rounds": 2, "milestones": 1},
	}

	body := render(t, PageResults, NewResultsView(result)).Body.String()
	assert.Contains(t, body, "Likely to Succeed")
	assert.Contains(t, body, "medium-success")
	assert.Contains(t, body, "73.46%")
	assert.Contains(t, body, "26.54%")
	assert.Contains(t, body, "<td>funding_rounds</td><td>2</td>")
	assert.NotContains(t, body, "Prediction failed")
}

func TestResultsError(t *testing.T) {
	result := prediction.Result{Error: `invalid value "<b>abc</b>" for field funding_rounds: must be a number`}

	body := render(t, PageResults, NewResultsView(result)).Body.String()
	assert.Contains(t, body, "Prediction failed")
	assert.Contains(t, body, "funding_rounds")
	assert.NotContains(t, body, "<b>abc</b>", "error text is escaped")
	assert.NotContains(t, body, "Inputs used")
}

func TestNewResultsViewUsesSchemaOrder(t *testing.T) {
	view := NewResultsView(prediction.Result{InputData: map[string]float64{"milestones": 1}})
	require.Len(t, view.Inputs, features.Len())
	assert.Equal(t, features.Names()[0], view.Inputs[0].Name)

	idx, _ := features.IndexOf("milestones")
	assert.Equal(t, 1.0, view.Inputs[idx].Value)

	assert.Nil(t, NewResultsView(prediction.Result{Error: "x"}).Inputs)
}

func TestStaticPages(t *testing.T) {
	for _, page := range []Page{PageIndex, PageAdaptivity} {
		body := render(t, page, nil).Body.String()
		assert.True(t, strings.HasPrefix(body, "<!DOCTYPE html>"), page)
		assert.Contains(t, body, "<title>"+titles[page]+"</title>")
	}
}

func TestRenderUnknownPage(t *testing.T) {
	renderer, err := LoadRenderer(TemplatesFS())
	require.NoError(t, err)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Error(t, renderer.Render(c, http.StatusOK, Page("missing"), nil))
}

func TestStaticHandler(t *testing.T) {
	router := gin.New()
	router.GET("/static/*filepath", StaticHandler("/static", StaticFS()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/css")
	assert.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/missing.css", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
