package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskhub/internal/apperr"
	"taskhub/internal/models"
)

type collectionRequest struct {
	Name  *string `json:"name"`
	Tasks []int64 `json:"tasks"`
}

// handleCreateCollection creates a collection and optionally pulls existing
// tasks into it.
func (s *Server) handleCreateCollection(c *gin.Context) {
	userID, ok := s.principal(c)
	if !ok {
		return
	}

	var req collectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperr.Wrap(apperr.Validation, "invalid request body", err))
		return
	}
	if req.Name == nil || *req.Name == "" {
		s.respondError(c, apperr.E(apperr.Validation, "name is required"))
		return
	}

	collection, err := s.store.CreateCollection(c.Request.Context(), userID, *req.Name, req.Tasks)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"collection": collection})
}

// handleGetCollection fetches an owned collection with its tasks.
func (s *Server) handleGetCollection(c *gin.Context) {
	userID, ok := s.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	collection, err := s.store.GetCollection(c.Request.Context(), userID, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collection": collection})
}

// handleListCollections returns the caller's collections.
func (s *Server) handleListCollections(c *gin.Context) {
	userID, ok := s.principal(c)
	if !ok {
		return
	}

	page := models.Page{
		Offset: queryInt(c, "offset", 0),
		Limit:  queryInt(c, "limit", models.MaxPageLimit),
	}
	collections, err := s.store.ListCollections(c.Request.Context(), userID, page)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collections": collections})
}

// handleUpdateCollection renames an owned collection.
func (s *Server) handleUpdateCollection(c *gin.Context) {
	userID, ok := s.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req collectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperr.Wrap(apperr.Validation, "invalid request body", err))
		return
	}

	collection, err := s.store.UpdateCollection(c.Request.Context(), userID, id, models.CollectionPatch{Name: req.Name})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collection": collection})
}

// handleDeleteCollection removes an owned collection along with its tasks.
func (s *Server) handleDeleteCollection(c *gin.Context) {
	userID, ok := s.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteCollection(c.Request.Context(), userID, id); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "success": true})
}

// handleAttachTask moves an owned task into an owned collection.
func (s *Server) handleAttachTask(c *gin.Context) {
	userID, ok := s.principal(c)
	if !ok {
		return
	}
	collectionID, ok := parseID(c, "id")
	if !ok {
		return
	}
	taskID, ok := parseID(c, "taskID")
	if !ok {
		return
	}
	if err := s.store.AttachTask(c.Request.Context(), userID, collectionID, taskID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collection_id": collectionID, "task_id": taskID, "success": true})
}

// handleDetachTask removes a task from a collection without deleting it.
func (s *Server) handleDetachTask(c *gin.Context) {
	userID, ok := s.principal(c)
	if !ok {
		return
	}
	collectionID, ok := parseID(c, "id")
	if !ok {
		return
	}
	taskID, ok := parseID(c, "taskID")
	if !ok {
		return
	}
	if err := s.store.DetachTask(c.Request.Context(), userID, collectionID, taskID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collection_id": collectionID, "task_id": taskID, "success": true})
}
