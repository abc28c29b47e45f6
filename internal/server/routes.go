package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/canvas"
	"github.com/zerob13/canvas-sketchpad-mcp/internal/toolserver"
)

type submitRequest struct {
	Commands  string `json:"commands"`
	SessionID string `json:"sessionId"`
}

type statusRequest struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func (s *Server) registerRoutes(wsHandler http.Handler) {
	r := s.router
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": s.cfg.Name,
			"version": Version,
		})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":   true,
			"uptime":  time.Since(s.appeared).String(),
			"service": s.cfg.Name,
			"version": Version,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET(WebsocketPath, gin.WrapH(wsHandler))

	if strings.EqualFold(s.cfg.MCPTransport, toolserver.TransportHTTP) {
		r.Any(s.cfg.MCPPath, gin.WrapH(s.tools.HTTPHandler()))
	}

	api := r.Group("/api")
	api.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.svc.Status())
	})
	api.GET("/commands/pending", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"commands": s.svc.Pending()})
	})
	api.GET("/commands/:id", func(c *gin.Context) {
		cmd, ok := s.svc.Command(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "command not found"})
			return
		}
		c.JSON(http.StatusOK, cmd)
	})
	api.POST("/commands", s.handleSubmit)
	api.POST("/commands/:id/consume", func(c *gin.Context) {
		id := c.Param("id")
		c.JSON(http.StatusOK, gin.H{"commandId": id, "success": s.svc.Consume(id)})
	})
	api.POST("/commands/:id/status", s.handleStatus)
}

func (s *Server) handleSubmit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	res, err := s.svc.Submit(c.Request.Context(), req.Commands, req.SessionID)
	if err != nil {
		var verr *canvas.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": canvas.ErrValidation.Error(), "errors": verr.Errors})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"result": res, "summary": res.Summary()})
}

func (s *Server) handleStatus(c *gin.Context) {
	id := c.Param("id")
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ok, err := s.svc.ReportStatus(id, req.Status, req.Error)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"commandId": id, "success": ok})
}
