package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/brickd-project/brickd/internal/server"
)

type kickRequest struct {
	Reason string `json:"reason"`
}

type messageRequest struct {
	Message string `json:"message" binding:"required"`
}

type banRequest struct {
	UserID uint32 `json:"user_id" binding:"required"`
	Reason string `json:"reason"`
}

// handleKick kicks a player by network id.
func (s *Server) handleKick(c *gin.Context) {
	netID, err := strconv.ParseUint(c.Param("net_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid net id"})
		return
	}

	var req kickRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	info, err := s.manager.Kick(c.Request.Context(), uint32(netID), req.Reason, operator(c))
	if err != nil {
		if errors.Is(err, server.ErrPlayerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "player not found", "net_id": netID})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "kicked",
		"player": info,
	})
}

// handleMessage broadcasts a chat line to every player.
func (s *Server) handleMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.manager.Say(c.Request.Context(), req.Message); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log.Info().Str("by", operator(c)).Str("text", req.Message).Msg("API: message sent")
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// handleGetBans lists all bans.
func (s *Server) handleGetBans(c *gin.Context) {
	bans, err := s.manager.Bans(c.Request.Context())
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(bans), "bans": bans})
}

// handleBan bans an account and kicks it if online.
func (s *Server) handleBan(c *gin.Context) {
	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.manager.Ban(c.Request.Context(), req.UserID, req.Reason, operator(c)); err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "banned", "user_id": req.UserID})
}

// handleUnban lifts a ban.
func (s *Server) handleUnban(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	ok, err := s.manager.Unban(c.Request.Context(), uint32(userID))
	if err != nil {
		storeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "ban not found", "user_id": userID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unbanned", "user_id": userID})
}
