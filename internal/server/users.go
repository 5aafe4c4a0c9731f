package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskhub/internal/apperr"
	"taskhub/internal/auth"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	Password    string `json:"password"`
}

// handleIssueToken checks credentials and mints a bearer token. Wrong
// username and wrong password are indistinguishable to the caller.
func (s *Server) handleIssueToken(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperr.Wrap(apperr.Validation, "invalid request body", err))
		return
	}

	user, err := s.store.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil || !auth.CheckPassword(req.Password, user.PasswordHash) {
		s.respondError(c, apperr.E(apperr.Auth, "incorrect username or password"))
		return
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// handleCreateUser registers a new account.
func (s *Server) handleCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperr.Wrap(apperr.Validation, "invalid request body", err))
		return
	}

	if err := auth.ValidatePassword(req.Password); err != nil {
		s.respondError(c, err)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}

	user, err := s.store.CreateUser(c.Request.Context(), req.Username, req.Email, hash)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// handleCurrentUser returns the authenticated account.
func (s *Server) handleCurrentUser(c *gin.Context) {
	user, ok := auth.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// handleChangePassword rotates the password after verifying the old one.
func (s *Server) handleChangePassword(c *gin.Context) {
	user, ok := auth.Principal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, apperr.Wrap(apperr.Validation, "invalid request body", err))
		return
	}

	if !auth.CheckPassword(req.OldPassword, user.PasswordHash) {
		s.respondError(c, apperr.E(apperr.Validation, "password doesn't match"))
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		s.respondError(c, err)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.store.UpdateUserPassword(c.Request.Context(), user.ID, hash); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
