// Package server exposes the HTTP API: auth, user, task and collection
// CRUD plus the chat endpoint. Handlers bind input, delegate to the store
// and translate the error taxonomy to status codes in one place.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taskhub/internal/apperr"
	"taskhub/internal/auth"
	"taskhub/internal/storage/sqlite"
)

// Chatter handles one chat turn for an authenticated user. conversationID
// may be empty to start a fresh conversation.
type Chatter interface {
	Chat(ctx context.Context, userID int64, conversationID, message string) (reply, convID string, err error)
}

// Server provides HTTP handlers for the task manager backend.
type Server struct {
	engine  *gin.Engine
	store   *sqlite.Store
	issuer  *auth.TokenIssuer
	chatter Chatter
	logger  *slog.Logger
}

// New constructs the HTTP server with routes and middleware configured.
// chatter may be nil, in which case the chat endpoint reports the bot as
// unavailable.
func New(store *sqlite.Store, issuer *auth.TokenIssuer, chatter Chatter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz"))

	srv := &Server{
		engine:  router,
		store:   store,
		issuer:  issuer,
		chatter: chatter,
		logger:  logger,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)
		api.POST("/auth/token", s.handleIssueToken)
		api.POST("/users", s.handleCreateUser)

		authed := api.Group("", auth.Middleware(s.issuer, s.store))
		{
			authed.GET("/users/me", s.handleCurrentUser)
			authed.POST("/users/me/password", s.handleChangePassword)

			tasks := authed.Group("/tasks")
			{
				tasks.POST("", s.handleCreateTask)
				tasks.GET("", s.handleListTasks)
				tasks.GET(":id", s.handleGetTask)
				tasks.PATCH(":id", s.handleUpdateTask)
				tasks.DELETE(":id", s.handleDeleteTask)
			}

			collections := authed.Group("/collections")
			{
				collections.POST("", s.handleCreateCollection)
				collections.GET("", s.handleListCollections)
				collections.GET(":id", s.handleGetCollection)
				collections.PATCH(":id", s.handleUpdateCollection)
				collections.DELETE(":id", s.handleDeleteCollection)
				collections.PUT(":id/tasks/:taskID", s.handleAttachTask)
				collections.DELETE(":id/tasks/:taskID", s.handleDetachTask)
			}

			authed.POST("/chat", s.handleChat)
		}
	}
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID converts a path parameter to int64 with error handling.
func parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return 0, false
	}
	return id, true
}

// respondError logs the error and returns the taxonomy-mapped status with a
// body-safe message.
func (s *Server) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

// principal fetches the authenticated user or aborts with 401. The
// middleware guarantees it is set on authed routes.
func (s *Server) principal(c *gin.Context) (int64, bool) {
	user, ok := auth.Principal(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return 0, false
	}
	return user.ID, true
}
