package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brickd-project/brickd/internal/util"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "brickd",
		"version": s.version,
	})
}

// handleGetServerInfo returns basic server information.
func (s *Server) handleGetServerInfo(c *gin.Context) {
	gd := s.cfg.GetGameData()
	sysInfo := util.GetSystemInfo()

	status, err := s.manager.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"server_name":     gd.ServerName,
		"game_id":         gd.GameID,
		"port":            gd.Port,
		"client_version":  gd.ClientVersion,
		"players":         status.Players,
		"uptime":          util.FormatDuration(s.manager.World().Uptime()),
		"os":              sysInfo.OS,
		"cpu_model":       sysInfo.CPUModel,
		"cpu_cores":       sysInfo.CPUCores,
		"total_memory_mb": sysInfo.TotalMemory,
	})
}
