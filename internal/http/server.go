package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/maintrack/internal/apperrors"
	"github.com/example/maintrack/internal/logger"
	"github.com/example/maintrack/internal/metrics"
	"github.com/example/maintrack/internal/models"
	"github.com/example/maintrack/internal/service"
)

// Server wraps the gin engine and collaborators needed to handle API requests.
type Server struct {
	Engine  *gin.Engine
	board   *service.BoardService
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewServer constructs a new API server and registers routes. m may be nil.
func NewServer(board *service.BoardService, m *metrics.Metrics, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	router := gin.New()
	router.Use(gin.Recovery(), logger.GinMiddleware(log), instrument(m))
	srv := &Server{Engine: router, board: board, metrics: m, logger: log}
	srv.registerRoutes()
	return srv
}

func (s *Server) registerRoutes() {
	s.Engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if s.metrics != nil {
		s.Engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := s.Engine.Group("/api")
	api.GET("/requests", s.listRequests)
	api.GET("/requests/calendar", s.calendar)
	api.POST("/requests", s.createRequest)
	api.GET("/requests/:id", s.getRequest)
	api.PUT("/requests/:id", s.updateRequest)
	api.DELETE("/requests/:id", s.deleteRequest)
	api.PATCH("/requests/:id/stage", s.changeStage)
	api.POST("/refresh", s.refresh)

	api.GET("/equipment", s.listEquipment)
	api.GET("/teams", s.listTeams)

	analytics := api.Group("/analytics")
	analytics.GET("/dashboard", s.dashboard)
	analytics.GET("/requests-by-category", s.byCategory)
	analytics.GET("/requests-by-team", s.byTeam)
	analytics.GET("/team-counts", s.teamCounts)
}

func (s *Server) listRequests(c *gin.Context) {
	filter := models.RequestFilter{
		Stage:       models.Stage(c.Query("stage")),
		RequestType: models.RequestType(c.Query("request_type")),
		EquipmentID: c.Query("equipment_id"),
	}
	requests, err := s.board.ListRequests(filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (s *Server) calendar(c *gin.Context) {
	days, err := s.board.Calendar(models.RequestType(c.Query("request_type")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, days)
}

func (s *Server) getRequest(c *gin.Context) {
	request, err := s.board.GetRequest(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

func (s *Server) createRequest(c *gin.Context) {
	var payload service.CreateRequestInput
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := s.board.CreateRequest(c.Request.Context(), payload, c.GetHeader("X-User-ID"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) updateRequest(c *gin.Context) {
	var payload service.UpdateRequestInput
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := s.board.UpdateRequest(c.Request.Context(), c.Param("id"), payload)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteRequest(c *gin.Context) {
	if err := s.board.DeleteRequest(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) changeStage(c *gin.Context) {
	var payload struct {
		Stage models.Stage `json:"stage" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated, err := s.board.ChangeStage(c.Request.Context(), c.Param("id"), payload.Stage)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) refresh(c *gin.Context) {
	if err := s.board.Refresh(c.Request.Context()); err != nil {
		s.fail(c, apperrors.Wrap(err, apperrors.ErrSyncFailed, "reload failed"))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listEquipment(c *gin.Context) {
	equipment, err := s.board.Equipment(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, equipment)
}

func (s *Server) listTeams(c *gin.Context) {
	teams, err := s.board.Teams(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, teams)
}

func (s *Server) dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, s.board.Dashboard(c.Request.Context()))
}

func (s *Server) byCategory(c *gin.Context) {
	c.JSON(http.StatusOK, s.board.ByCategory())
}

func (s *Server) byTeam(c *gin.Context) {
	c.JSON(http.StatusOK, s.board.ByTeam())
}

func (s *Server) teamCounts(c *gin.Context) {
	c.JSON(http.StatusOK, s.board.TeamCounts(c.Request.Context()))
}

// fail writes err as {"error": message, "code": code} with the status its code maps to.
func (s *Server) fail(c *gin.Context, err error) {
	appErr := apperrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(appErr.Status, gin.H{"error": appErr.Message, "code": appErr.Code})
}

func instrument(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
