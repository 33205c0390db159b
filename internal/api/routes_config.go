package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/brickd-project/brickd/internal/config"
)

const redacted = "********"

type fieldRequest struct {
	Key   string      `json:"key" binding:"required"`
	Value interface{} `json:"value"`
}

// handleGetConfig returns the current configuration with secrets hidden.
func (s *Server) handleGetConfig(c *gin.Context) {
	app := s.cfg.GetApplicationData()
	if app.API.Token != "" {
		app.API.Token = redacted
	}
	if app.Discord.WebhookURL != "" {
		app.Discord.WebhookURL = redacted
	}
	c.JSON(http.StatusOK, gin.H{
		"game_data":        s.cfg.GetGameData(),
		"application_data": app,
	})
}

// handleSetGameField updates one game_data key, validates the result and
// saves it. Changes apply on the next start.
func (s *Server) handleSetGameField(c *gin.Context) {
	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	previous := s.cfg.GetGameData()
	if err := s.cfg.UpdateGameField(req.Key, req.Value); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if result := config.Validate(s.cfg); !result.IsValid() {
		s.cfg.SetGameData(previous)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "invalid configuration",
			"errors": result.Errors,
		})
		return
	}

	if err := s.cfg.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save config"})
		return
	}

	log.Info().Str("by", operator(c)).Str("key", req.Key).Msg("API: game data updated")
	c.JSON(http.StatusOK, gin.H{
		"status":           "updated",
		"restart_required": true,
		"data":             s.cfg.GetGameData(),
	})
}
