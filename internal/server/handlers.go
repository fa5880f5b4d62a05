package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type createRoomRequest struct {
	PlaylistURL string `json:"playlist_url" binding:"required,playlisturl"`
}

type claimRequest struct {
	DisplayName string `json:"display_name" binding:"required,displayname"`
	Handle      string `json:"handle" binding:"required"`
}

type guessRequest struct {
	Choice string `json:"choice" binding:"required"`
}

func (s *Server) handleCreateRoom(c *gin.Context) {
	var req createRoomRequest
	if !bindJSON(c, &req, "a valid playlist URL is required") {
		return
	}
	room, err := s.CreateRoom(c.Request.Context(), currentUserID(c), req.PlaylistURL)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	snapshot, err := s.buildSnapshot(c.Request.Context(), room)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}
	c.JSON(http.StatusCreated, snapshot)
}

func (s *Server) handleGetRoom(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	room, err := s.findRoom(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	snapshot, err := s.buildSnapshot(c.Request.Context(), room)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleJoinRoom(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	snapshot, err := s.JoinRoom(c.Request.Context(), roomID, currentUserID(c))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleClaimHandle(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	var req claimRequest
	if !bindJSON(c, &req, "display_name and handle are required") {
		return
	}
	if err := s.ClaimHandle(c.Request.Context(), roomID, currentUserID(c), req.DisplayName, req.Handle); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"handle": req.Handle, "display_name": req.DisplayName})
}

func (s *Server) handleListMembers(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	members, err := s.ListMembers(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (s *Server) handleStartGame(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	if err := s.StartGame(c.Request.Context(), roomID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "playing"})
}

func (s *Server) handleSubmitGuess(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	var req guessRequest
	if !bindJSON(c, &req, "choice is required") {
		return
	}
	if err := s.SubmitGuess(c.Request.Context(), roomID, currentUserID(c), req.Choice); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"choice": req.Choice})
}

func (s *Server) handleResolveRound(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	resolution, err := s.ResolveRound(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	s.hub.Broadcast(roomID, outboundEvent{Type: eventRoundResolved, RoomID: roomID, Resolution: resolution})
	s.broadcastStanding(c.Request.Context(), roomID)
	c.JSON(http.StatusOK, resolution)
}

func (s *Server) handleAdvanceRound(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	next, err := s.AdvanceRound(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"current_round": next})
}

func (s *Server) handleStanding(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	standing, err := s.CurrentStanding(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, standing)
}

func roomIDParam(c *gin.Context) (uint, bool) {
	raw := c.Param("id")
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return 0, false
	}
	return uint(value), true
}
