package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	apperrors "github.com/ZanzyTHEbar/startup-success-predictor/internal/errors"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/features"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/frontend"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/prediction"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/predictor"
	"github.com/ZanzyTHEbar/startup-success-predictor/internal/resilience"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error" example:"invalid value \"abc\" for field funding_rounds: must be a number"`
}

// SchemaResponse lists the accepted feature names in model order.
type SchemaResponse struct {
	Features []string `json:"features"`
	Count    int      `json:"count"`
}

func (h *Handler) Index(c *gin.Context) {
	h.deps.Renderer.MustRender(c, frontend.PageIndex, nil)
}

func (h *Handler) Form(c *gin.Context) {
	h.deps.Renderer.MustRender(c, frontend.PageForm, frontend.NewFormView())
}

func (h *Handler) Adaptivity(c *gin.Context) {
	h.deps.Renderer.MustRender(c, frontend.PageAdaptivity, nil)
}

// PredictForm scores a form submission and renders the results page. Failures
// render the same page with an error message.
func (h *Handler) PredictForm(c *gin.Context) {
	var result prediction.Result
	if err := c.Request.ParseForm(); err != nil {
		appErr := apperrors.NewValidationError("could not read form submission", err)
		result = prediction.Result{Error: appErr.Message()}
	} else {
		result = h.deps.Service.PredictForm(c.Request.Context(), c.Request.PostForm)
	}

	h.deps.Renderer.MustRender(c, frontend.PageResults, frontend.NewResultsView(result))
}

// PredictAPI godoc
// @Summary      Predict startup success
// @Description  Scores a JSON object keyed by feature name. Missing or empty fields count as 0.
// @Tags         prediction
// @Accept       json
// @Produce      json
// @Param        features  body      object  true  "Feature values keyed by name"
// @Success      200       {object}  prediction.APIResult
// @Failure      400       {object}  ErrorResponse
// @Failure      429       {object}  ErrorResponse
// @Router       /api/predict [post]
func (h *Handler) PredictAPI(c *gin.Context) {
	body, err := decodeObject(c.Request.Body)
	if err != nil {
		appErr := apperrors.ToAppError(err)
		c.JSON(appErr.HTTPStatus, appErr.Response())
		return
	}

	result, err := h.deps.Service.PredictAPI(c.Request.Context(), body)
	if err != nil {
		appErr := apperrors.ToAppError(err)
		c.JSON(appErr.HTTPStatus, appErr.Response())
		return
	}

	c.JSON(http.StatusOK, result)
}

// decodeObject reads a single JSON object, keeping numbers exact.
func decodeObject(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, apperrors.NewValidationError("request body too large")
		case errors.Is(err, io.EOF):
			return nil, apperrors.NewValidationError("request body must be a JSON object")
		default:
			return nil, apperrors.NewValidationError("request body must be a JSON object", err)
		}
	}
	if body == nil {
		return nil, apperrors.NewValidationError("request body must be a JSON object")
	}
	return body, nil
}

// Schema godoc
// @Summary      List accepted features
// @Description  Feature names in the order the model consumes them.
// @Tags         prediction
// @Produce      json
// @Success      200  {object}  SchemaResponse
// @Router       /api/schema [get]
func (h *Handler) Schema(c *gin.Context) {
	c.JSON(http.StatusOK, SchemaResponse{Features: features.Names(), Count: features.Len()})
}

// Health godoc
// @Summary      Service health
// @Tags         operations
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	response := gin.H{
		"status":         "ok",
		"timestamp":      time.Now().Format(time.RFC3339),
		"version":        h.opts.Version,
		"uptime_seconds": time.Since(h.started).Seconds(),
	}

	p := h.deps.Service.Predictor()
	if d, ok := p.(predictor.Describer); ok {
		response["model"] = d.Info()
	}
	if remote, ok := p.(*predictor.Remote); ok {
		stats := remote.BreakerStats()
		response["predictor_breaker"] = stats
		if stats["state"] == resilience.StateOpen {
			response["status"] = "degraded"
		}
	}

	if h.deps.Redis.IsEnabled() {
		if err := h.deps.Redis.HealthCheck(c.Request.Context()); err != nil {
			response["redis"] = gin.H{"status": "unavailable", "error": err.Error()}
			response["status"] = "degraded"
		} else {
			response["redis"] = gin.H{"status": "ok"}
		}
	}

	c.JSON(http.StatusOK, response)
}

// Metrics godoc
// @Summary      Runtime metrics
// @Tags         operations
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /metrics [get]
func (h *Handler) Metrics(c *gin.Context) {
	stats := h.deps.Metrics.GetStats()
	stats["compression"] = h.compression.GetStats()
	if h.deps.Limiter != nil {
		stats["rate_limiter"] = h.deps.Limiter.GetStats()
	}
	c.JSON(http.StatusOK, stats)
}
