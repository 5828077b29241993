package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phobologic/quid/internal/config"
	"github.com/phobologic/quid/internal/dataset"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeUnknownEnvironment = "UNKNOWN_ENVIRONMENT"
	CodeMissingData        = "MISSING_DATA"
	CodeLoadFailed         = "LOAD_FAILED"
)

// RequestIDHeader carries the per-request ID.
const RequestIDHeader = "X-Request-ID"

// DependencyRequest is the body of POST /get_dependencies/.
type DependencyRequest struct {
	ProgramName string `json:"program_name" binding:"required"`
	Environment string `json:"environment"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Router returns the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.observe())
	s.SetupRoutes(r)
	return r
}

// SetupRoutes registers the API on r.
func (s *Server) SetupRoutes(r *gin.Engine) {
	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	r.POST("/get_dependencies/", s.handleGetDependencies)
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.ObserveRequest(c.FullPath(), c.Writer.Status(), elapsed)
		}
		s.logger.Info("request",
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", elapsed)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"environments": s.cfg.EnvironmentNames(),
		"loaded":       s.Loaded(),
	})
}

func (s *Server) handleGetDependencies(c *gin.Context) {
	var req DependencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidRequest})
		return
	}
	program := strings.TrimSpace(req.ProgramName)
	if program == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "program_name is empty", Code: CodeInvalidRequest})
		return
	}
	env := s.environment(req.Environment)

	ds, err := s.dataset(c.Request.Context(), env)
	if err != nil {
		status, code := classify(err)
		s.logger.Error("dataset unavailable",
			"request_id", c.GetString("request_id"),
			"environment", env,
			"error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	tree := s.builder(ds).Build(c.Request.Context(), program)
	c.JSON(http.StatusOK, tree)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, config.ErrUnknownEnvironment):
		return http.StatusBadRequest, CodeUnknownEnvironment
	case errors.Is(err, dataset.ErrNoData):
		return http.StatusBadRequest, CodeMissingData
	default:
		return http.StatusInternalServerError, CodeLoadFailed
	}
}
