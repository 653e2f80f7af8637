package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"jomat-backend/internal/repository"
	"jomat-backend/internal/service"
)

// AuthHandler mantiene dependencias para los endpoints de autenticación.
type AuthHandler struct {
	logger   *zap.Logger
	authServ *service.AuthService
	users    repository.UserRepository
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, authServ *service.AuthService, users repository.UserRepository) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		authServ: authServ,
		users:    users,
	}
}

// Register maneja POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Title               string `json:"title"`
		FirstName           string `json:"first_name"`
		Middle              string `json:"middle"`
		LastName            string `json:"last_name"`
		Degree              string `json:"degree"`
		Specialty           string `json:"specialty"`
		Phone               string `json:"phone"`
		Country             string `json:"country"`
		ORCID               string `json:"orcid"`
		Email               string `json:"email"`
		ConfirmEmail        string `json:"confirm_email"`
		AlternativeEmail    string `json:"alternative_email"`
		Username            string `json:"username"`
		Password            string `json:"password"`
		AvailableAsReviewer bool   `json:"available_as_reviewer"`
		ReceiveNews         bool   `json:"receive_news"`
		Comments            string `json:"comments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
		return
	}

	user, err := h.authServ.Register(c.Request.Context(), service.RegisterInput{
		Title:               req.Title,
		FirstName:           req.FirstName,
		Middle:              req.Middle,
		LastName:            req.LastName,
		Degree:              req.Degree,
		Specialty:           req.Specialty,
		Phone:               req.Phone,
		Country:             req.Country,
		ORCID:               req.ORCID,
		Email:               req.Email,
		ConfirmEmail:        req.ConfirmEmail,
		AlternativeEmail:    req.AlternativeEmail,
		Username:            req.Username,
		Password:            req.Password,
		AvailableAsReviewer: req.AvailableAsReviewer,
		ReceiveNews:         req.ReceiveNews,
		Comments:            req.Comments,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields):
			c.JSON(http.StatusBadRequest, gin.H{"message": "All required fields must be filled out."})
		case errors.Is(err, service.ErrEmailMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Emails do not match."})
		case errors.Is(err, service.ErrDuplicateEmail):
			c.JSON(http.StatusBadRequest, gin.H{"message": "User already exists."})
		default:
			h.logger.Error("register failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Database error.", "error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered! Please verify your email.",
		"user":    user,
	})
}

// Login maneja POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		// Credenciales ausentes responden igual que credenciales incorrectas.
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid credentials"})
		return
	}

	user, pair, err := h.authServ.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid credentials"})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":        pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresAt":    pair.ExpiresAt,
		"user":         user,
	})
}

// Refresh maneja POST /api/auth/refresh. El refresh token viaja como bearer.
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}

	pair, err := h.authServ.Refresh(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRefreshToken):
			c.JSON(http.StatusForbidden, gin.H{"message": "Invalid refresh token"})
		case errors.Is(err, service.ErrTokenVerificationFailed):
			c.JSON(http.StatusForbidden, gin.H{"message": "Token Verification Failed"})
		default:
			h.logger.Error("refresh failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Database error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":        pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresAt":    pair.ExpiresAt,
	})
}

// VerifyEmail maneja GET /api/auth/verify/:token.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	err := h.authServ.VerifyEmail(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidVerification) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid or expired token."})
			return
		}
		h.logger.Error("verify email failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Database error."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email verified successfully!"})
}

// ResendVerification maneja POST /api/auth/resend-verification.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email is required."})
		return
	}

	err := h.authServ.ResendVerification(c.Request.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found."})
		case errors.Is(err, service.ErrAlreadyVerified):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Email is already verified."})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"message": "Too many requests."})
		case errors.Is(err, service.ErrMissingFields):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Email is required."})
		default:
			h.logger.Error("resend verification failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Database error.", "error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Verification email resent successfully."})
}

// ListUsers maneja GET /api/auth/users.
func (h *AuthHandler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list users failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, users)
}

// GetUserByID maneja GET /api/auth/users/:id.
func (h *AuthHandler) GetUserByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		h.logger.Error("get user failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": user.ID, "email": user.Email})
}
