package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sirupsen/logrus"

	"go-vision-lens/internal/config"
	apperrors "go-vision-lens/internal/errors"
	"go-vision-lens/internal/logger"
	"go-vision-lens/internal/observer"
	"go-vision-lens/internal/offline"
	"go-vision-lens/internal/presenter"
	"go-vision-lens/internal/service"
	"go-vision-lens/internal/session"
	"go-vision-lens/internal/vision"
	"go-vision-lens/pkg/models"
)

const sessionKey = "session"

// Dependencies are the collaborators the HTTP surface needs
type Dependencies struct {
	Service   service.AnalysisService
	Sessions  *session.Manager
	Registry  *vision.Registry
	Presenter *presenter.Presenter
	// Metrics may be nil, in which case /metrics is not registered
	Metrics *observer.MetricsObserver
	// Assets serves the app shell: embedded files or the offline proxy
	Assets http.Handler
	// Worker is reported by /health when the offline cache is enabled
	Worker *offline.Worker
}

// NewHandler builds the gin engine with every route
func NewHandler(deps Dependencies, cfg *config.Config) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	h := &handler{deps: deps, cfg: cfg}

	// Configure routes
	r.GET("/health", h.healthCheck)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := r.Group("/api", sessionMiddleware(deps.Sessions))
	api.GET("/models", h.listModels)
	api.POST("/model", h.selectModel)
	api.POST("/credential", h.storeCredential)
	api.POST("/analyze", h.analyzeImage)

	form := r.Group("/analyze", sessionMiddleware(deps.Sessions))
	form.GET("", h.formPage)
	form.POST("", h.analyzeForm)

	if deps.Assets != nil {
		assets := gin.WrapH(deps.Assets)
		r.GET("/", assets)
		r.HEAD("/", assets)
		r.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
				respondError(c, http.StatusNotFound, "route not found", apperrors.NewNotFoundError(c.Request.URL.Path, nil))
				return
			}
			assets(c)
		})
	}

	return r
}

type handler struct {
	deps Dependencies
	cfg  *config.Config
}

func (h *handler) healthCheck(c *gin.Context) {
	body := gin.H{
		"status":   "available",
		"version":  "1.0.0",
		"time":     time.Now().UTC().Format(time.RFC3339),
		"sessions": h.deps.Sessions.Len(),
	}
	if h.deps.Worker != nil {
		body["offline_cache"] = gin.H{
			"state": h.deps.Worker.State(),
			"cache": h.deps.Worker.CacheName(),
		}
	}
	if h.deps.Metrics != nil {
		body["analyses"] = h.deps.Metrics.GetMetrics()
	}
	c.JSON(http.StatusOK, body)
}

func (h *handler) modelsResponse(s *session.Session) models.ModelsResponse {
	return models.ModelsResponse{
		Models:          h.deps.Registry.Models(),
		Selected:        h.selectedModel(s),
		NeedsCredential: h.deps.Service.NeedsCredential(s),
	}
}

func (h *handler) selectedModel(s *session.Session) string {
	if key := s.Model(); h.deps.Registry.Has(key) {
		return key
	}
	return h.deps.Registry.DefaultKey()
}

func (h *handler) listModels(c *gin.Context) {
	c.JSON(http.StatusOK, h.modelsResponse(currentSession(c)))
}

func (h *handler) selectModel(c *gin.Context) {
	var req models.SelectModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}
	if !h.deps.Registry.Has(req.Model) {
		err := apperrors.NewValidationError(fmt.Sprintf("unknown model %q", req.Model), nil)
		respondError(c, err.StatusCode, "invalid model", err)
		return
	}

	s := currentSession(c)
	s.SetModel(req.Model)
	logger.WithFields(logrus.Fields{
		"model": req.Model,
		"ip":    c.ClientIP(),
	}).Debug("Model selected")

	c.JSON(http.StatusOK, h.modelsResponse(s))
}

func (h *handler) storeCredential(c *gin.Context) {
	var req models.CredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.APIKey) == "" {
		// binding errors are not echoed since they may quote the key
		respondError(c, http.StatusBadRequest, "invalid request format",
			apperrors.NewValidationError("api_key is required", nil))
		return
	}

	s := currentSession(c)
	s.SetCredential(req.APIKey)
	logger.WithField("ip", c.ClientIP()).Info("Runtime API key stored for session")

	c.JSON(http.StatusOK, h.modelsResponse(s))
}

func (h *handler) analyzeImage(c *gin.Context) {
	startTime := time.Now()
	s := currentSession(c)

	// Log request start
	logger.WithFields(logrus.Fields{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"ip":         c.ClientIP(),
	}).Info("Processing image analysis request")

	var (
		view presenter.View
		err  error
	)
	if c.ContentType() == binding.MIMEJSON {
		var req models.AnalyzeImageRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			err = bodyError(bindErr, "image is required")
			view = presenter.PresentFailure(apperrors.Reason(err), h.selectedModel(s))
		} else {
			h.applyModel(s, req.Model)
			view, err = h.deps.Service.AnalyzeBase64(c.Request.Context(), s, req.Image)
		}
	} else {
		data, readErr := readUpload(c)
		if readErr != nil {
			err = readErr
			view = presenter.PresentFailure(apperrors.Reason(err), h.selectedModel(s))
		} else {
			h.applyModel(s, c.PostForm("model"))
			view, err = h.deps.Service.Analyze(c.Request.Context(), s, data)
		}
	}

	status := http.StatusOK
	fields := logrus.Fields{
		"model":              view.Model,
		"entries":            len(view.Entries),
		"processing_time_ms": time.Since(startTime).Milliseconds(),
		"ip":                 c.ClientIP(),
	}
	if err != nil {
		status = apperrors.GetStatusCode(err)
		logger.WithError(err).WithFields(fields).WithField("status_code", status).Warn("Image analysis failed")
	} else {
		logger.WithFields(fields).Info("Image analysis completed successfully")
	}

	if c.Query("format") == "html" {
		h.renderFragment(c, status, view)
		return
	}
	c.JSON(status, view)
}

func (h *handler) formPage(c *gin.Context) {
	h.renderPage(c, http.StatusOK, nil)
}

func (h *handler) analyzeForm(c *gin.Context) {
	s := currentSession(c)
	h.applyModel(s, c.PostForm("model"))
	if key := c.PostForm("api_key"); strings.TrimSpace(key) != "" {
		s.SetCredential(key)
	}

	var (
		view presenter.View
		err  error
	)
	data, readErr := readUpload(c)
	if readErr != nil {
		err = readErr
		view = presenter.PresentFailure(apperrors.Reason(err), h.selectedModel(s))
	} else {
		view, err = h.deps.Service.Analyze(c.Request.Context(), s, data)
	}

	status := http.StatusOK
	if err != nil {
		status = apperrors.GetStatusCode(err)
		logger.WithError(err).WithFields(logrus.Fields{
			"status_code": status,
			"ip":          c.ClientIP(),
		}).Warn("Form analysis failed")
	}
	h.renderPage(c, status, &view)
}

func (h *handler) applyModel(s *session.Session, key string) {
	if key != "" && h.deps.Registry.Has(key) {
		s.SetModel(key)
	}
}

func (h *handler) renderFragment(c *gin.Context, status int, view presenter.View) {
	var buf bytes.Buffer
	if err := h.deps.Presenter.RenderFragment(&buf, view); err != nil {
		respondError(c, http.StatusInternalServerError, "render failed", err)
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func (h *handler) renderPage(c *gin.Context, status int, view *presenter.View) {
	s := currentSession(c)
	data := presenter.PageData{
		Models:          h.deps.Registry.Models(),
		Selected:        h.selectedModel(s),
		NeedsCredential: h.deps.Service.NeedsCredential(s),
		View:            view,
	}

	var buf bytes.Buffer
	if err := h.deps.Presenter.RenderPage(&buf, data); err != nil {
		respondError(c, http.StatusInternalServerError, "render failed", err)
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

// readUpload returns the bytes of the multipart "image" field
func readUpload(c *gin.Context) ([]byte, error) {
	header, err := c.FormFile("image")
	if err != nil {
		return nil, bodyError(err, "No image provided")
	}

	file, err := header.Open()
	if err != nil {
		return nil, apperrors.NewDecodeError("Could not read the uploaded image", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperrors.NewDecodeError("Could not read the uploaded image", err)
	}
	return data, nil
}

func bodyError(err error, missing string) *apperrors.AppError {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		appErr := apperrors.NewValidationError("Image is too large", err)
		appErr.StatusCode = http.StatusRequestEntityTooLarge
		return appErr
	}
	return apperrors.NewValidationError(missing, err)
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

// sessionMiddleware attaches the browser's session, issuing a cookie for new
// ones.
func sessionMiddleware(manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(session.CookieName)
		s, created := manager.GetOrCreate(id)
		if created {
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     session.CookieName,
				Value:    s.ID,
				Path:     "/",
				MaxAge:   int(manager.TTL().Seconds()),
				HttpOnly: true,
				Secure:   c.Request.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %s", message, apperrors.Reason(err)),
	})
}
