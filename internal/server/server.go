package server

import (
	"context"
	"net/http"

	"whosetune/internal/config"
	"whosetune/internal/spotify"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CatalogImporter resolves an external playlist reference into an ordered
// track list with contributor identities. *spotify.Client satisfies it.
type CatalogImporter interface {
	ResolvePlaylist(ctx context.Context, reference string) (*spotify.Playlist, error)
}

type Server struct {
	db       *gorm.DB
	cfg      config.Config
	importer CatalogImporter
	hub      *wsHub
	locks    *roomLocks
}

func New(conn *gorm.DB, cfg config.Config, importer CatalogImporter) *Server {
	return &Server{
		db:       conn,
		cfg:      cfg,
		importer: importer,
		hub:      newWSHub(),
		locks:    newRoomLocks(),
	}
}

func (s *Server) Handler() http.Handler {
	registerValidators()
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealth)
	router.POST("/api/register", s.handleRegister)
	router.POST("/api/login", s.handleLogin)
	router.GET("/ws", s.handleWebsocket)

	authed := router.Group("/api", s.requireAuth)
	authed.POST("/rooms", s.handleCreateRoom)
	authed.GET("/rooms/:id", s.handleGetRoom)
	authed.POST("/rooms/:id/join", s.handleJoinRoom)
	authed.POST("/rooms/:id/claim", s.handleClaimHandle)
	authed.GET("/rooms/:id/members", s.handleListMembers)
	authed.POST("/rooms/:id/start", s.handleStartGame)
	authed.POST("/rooms/:id/guesses", s.handleSubmitGuess)
	authed.POST("/rooms/:id/resolve", s.handleResolveRound)
	authed.POST("/rooms/:id/advance", s.handleAdvanceRound)
	authed.GET("/rooms/:id/standing", s.handleStanding)

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
