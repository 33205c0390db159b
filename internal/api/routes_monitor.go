package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/brickd-project/brickd/internal/server"
	"github.com/brickd-project/brickd/internal/util"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// handleGetStatus returns the current status snapshot.
func (s *Server) handleGetStatus(c *gin.Context) {
	status, err := s.manager.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"memory": util.FormatBytes(status.MemoryBytes),
		"uptime": util.FormatDuration(s.manager.World().Uptime()),
	})
}

// handleGetPlayers lists connected players.
func (s *Server) handleGetPlayers(c *gin.Context) {
	players, err := s.manager.Players(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(players),
		"players": players,
	})
}

// handleGetConnections lists open sockets with masked addresses.
func (s *Server) handleGetConnections(c *gin.Context) {
	conns := s.manager.Connections()
	c.JSON(http.StatusOK, gin.H{
		"count":       len(conns),
		"connections": conns,
	})
}

// handleGetWorld returns a summary of the world state.
func (s *Server) handleGetWorld(c *gin.Context) {
	info, err := s.manager.WorldInfo(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

// handleGetLag returns world round trip statistics.
func (s *Server) handleGetLag(c *gin.Context) {
	if s.lag == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "lag monitor disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stats": s.lag.Stats(),
		"alert": s.lag.CheckThresholds(),
	})
}

// handleGetHealth returns the latest health check results. The status code
// is 503 while any check is critical.
func (s *Server) handleGetHealth(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "health checks disabled"})
		return
	}
	code := http.StatusOK
	if !s.health.Healthy() {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"healthy": code == http.StatusOK,
		"checks":  s.health.Report(),
	})
}

// handleGetChat returns the newest chat log lines.
func (s *Server) handleGetChat(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	lines, err := s.manager.RecentChat(c.Request.Context(), limit)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(lines), "chat": lines})
}

// handleGetSessions returns the newest join records.
func (s *Server) handleGetSessions(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	sessions, err := s.manager.RecentSessions(c.Request.Context(), limit)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(sessions), "sessions": sessions})
}

// handleGetMemoryUsage returns host memory usage.
func (s *Server) handleGetMemoryUsage(c *gin.Context) {
	mem, err := util.GetMemoryUsage()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, mem)
}

// parseLimit reads the optional ?limit= query value. It writes a 400
// response and returns false when the value is invalid.
func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return 0, false
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, true
}

// storeError maps store failures to a response.
func storeError(c *gin.Context, err error) {
	if errors.Is(err, server.ErrNoDatabase) {
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
