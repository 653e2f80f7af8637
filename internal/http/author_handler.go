package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"jomat-backend/internal/domain"
	"jomat-backend/internal/repository"
)

// AuthorHandler resuelve candidatos a coautor contra el registro de usuarios.
type AuthorHandler struct {
	logger *zap.Logger
	users  repository.UserRepository
}

func NewAuthorHandler(logger *zap.Logger, users repository.UserRepository) *AuthorHandler {
	return &AuthorHandler{logger: logger, users: users}
}

// AddAuthorByEmail maneja POST /api/authors/add-author.
func (h *AuthorHandler) AddAuthorByEmail(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email is required."})
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found."})
			return
		}
		h.logger.Error("author lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Database error.", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "User found.",
		"user": domain.AuthorInfo{
			ID:        user.ID,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Email:     user.Email,
		},
	})
}
