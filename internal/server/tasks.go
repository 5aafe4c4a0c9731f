package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"taskhub/internal/apperr"
	"taskhub/internal/models"
)

type taskRequest struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	Completed       *bool   `json:"completed"`
	Deadline        *string `json:"deadline"`
	CollectionID    *int64  `json:"collection_id"`
	ClearCollection bool    `json:"clear_collection"`
}

// handleCreateTask inserts a new task owned by the caller.
func (s *Server) handleCreateTask(c *gin.Context) {
	userID, ok := s.principal(c)
	if !ok {
		return
	}

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperr.Wrap(apperr.Validation, "invalid request body", err))
		return
	}
	if req.Title == nil || *req.Title == "" {
		s.respondError(c, apperr.E(apperr.Validation, "title is required"))
		return
	}
	deadline, err := parseDeadline(req.Deadline)
	if err != nil {
		s.respondError(c, err)
		return
	}

	task := models.Task{
		Title:        *req.Title,
		Description:  getString(req.Description),
		CollectionID: req.CollectionID,
		Deadline:     deadline,
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
	}

	created, err := s.store.CreateTask(c.Request.Context(), userID, task)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": created})
}

// handleGetTask fetches a single owned task.
func (s *Server) handleGetTask(c *gin.Context) {
	userID, ok := s.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	task, err := s.store.GetTask(c.Request.Context(), userID, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

// handleListTasks returns the caller's tasks with pagination and the
// completed/deadline filters.
func (s *Server) handleListTasks(c *gin.Context) {
	userID, ok := s.principal(c)
	if !ok {
		return
	}

	page := models.Page{
		Offset: queryInt(c, "offset", 0),
		Limit:  queryInt(c, "limit", models.MaxPageLimit),
	}
	filter := models.TaskFilter{
		Completed: c.Query("completed") == "true",
	}
	if raw := c.Query("deadline"); raw != "" {
		due, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.respondError(c, apperr.E(apperr.Validation, "deadline must be RFC 3339"))
			return
		}
		filter.DueBy = &due
	}

	tasks, err := s.store.ListTasks(c.Request.Context(), userID, filter, page)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// handleUpdateTask applies a partial update to an owned task.
func (s *Server) handleUpdateTask(c *gin.Context) {
	userID, ok := s.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperr.Wrap(apperr.Validation, "invalid request body", err))
		return
	}
	deadline, err := parseDeadline(req.Deadline)
	if err != nil {
		s.respondError(c, err)
		return
	}

	patch := models.TaskPatch{
		Title:           req.Title,
		Description:     req.Description,
		Completed:       req.Completed,
		Deadline:        deadline,
		CollectionID:    req.CollectionID,
		ClearCollection: req.ClearCollection,
	}

	task, err := s.store.UpdateTask(c.Request.Context(), userID, id, patch)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

// handleDeleteTask removes an owned task.
func (s *Server) handleDeleteTask(c *gin.Context) {
	userID, ok := s.principal(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.store.DeleteTask(c.Request.Context(), userID, id); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "success": true})
}

func getString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func parseDeadline(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	deadline, err := models.ParseDeadline(*raw)
	if err != nil {
		return nil, apperr.E(apperr.Validation, err.Error())
	}
	return deadline, nil
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
