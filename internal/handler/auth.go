package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/auth-api/internal/model"
	"github.com/kube-rca/auth-api/internal/service"
	"go.uber.org/zap"
)

type AuthHandler struct {
	svc *service.AuthService
	log *zap.Logger
}

func NewAuthHandler(svc *service.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log}
}

// Register godoc
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.AuthRequest true "Email and password"
// @Success 201 {object} model.AuthResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Failure 429 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	const route = "[POST /auth/register]"
	h.log.Info(route + " Registration attempt")

	email, password, ok := bindCredentials(c)
	if !ok {
		h.log.Info(route + " Missing email or password")
		return
	}

	result, err := h.svc.Register(c.Request.Context(), email, password)
	if err != nil {
		h.writeAuthError(c, route, err)
		return
	}

	h.log.Info(route+" User registered successfully", zap.String("user_id", result.User.ID))
	c.JSON(http.StatusCreated, model.AuthResponse{
		OK:    true,
		Token: result.Token,
		User:  result.User.View(),
	})
}

// Login godoc
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.AuthRequest true "Email and password"
// @Success 200 {object} model.AuthResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 429 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	const route = "[POST /auth/login]"
	h.log.Info(route + " Login attempt")

	email, password, ok := bindCredentials(c)
	if !ok {
		h.log.Info(route + " Missing email or password")
		return
	}

	result, err := h.svc.Login(c.Request.Context(), email, password)
	if err != nil {
		h.writeAuthError(c, route, err)
		return
	}

	h.log.Info(route+" Login successful", zap.String("user_id", result.User.ID))
	c.JSON(http.StatusOK, model.AuthResponse{
		OK:    true,
		Token: result.Token,
		User:  result.User.View(),
	})
}

// Me godoc
// @Summary Get current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.AuthMeResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	const route = "[GET /auth/me]"
	h.log.Info(route + " User profile requested")

	claims := GetAuthClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, errorBody("Unauthorized"))
		return
	}

	user, err := h.svc.Me(c.Request.Context(), claims)
	if err != nil {
		h.writeAuthError(c, route, err)
		return
	}

	c.JSON(http.StatusOK, model.AuthMeResponse{
		OK:   true,
		User: user.View(),
	})
}

// bindCredentials writes the 400 itself when the body is not an object with
// string email and password.
func bindCredentials(c *gin.Context) (string, string, bool) {
	var req model.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == nil || req.Password == nil {
		c.JSON(http.StatusBadRequest, errorBody("Email and password are required"))
		return "", "", false
	}
	return *req.Email, *req.Password, true
}

func (h *AuthHandler) writeAuthError(c *gin.Context, route string, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		h.log.Info(route+" Rejected input", zap.String("reason", validationErr.Reason))
		c.JSON(http.StatusBadRequest, errorBody(validationErr.Reason))
	case errors.Is(err, service.ErrUnauthorized):
		h.log.Info(route + " Authentication failed")
		c.JSON(http.StatusUnauthorized, errorBody("Invalid credentials"))
	case errors.Is(err, service.ErrConflict):
		h.log.Info(route + " Duplicate email rejected")
		c.JSON(http.StatusConflict, errorBody("Email is already registered"))
	case errors.Is(err, service.ErrNotFound):
		h.log.Info(route + " User not found")
		c.JSON(http.StatusNotFound, errorBody("User not found"))
	default:
		h.log.Error(route+" Error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody("Internal server error"))
	}
}
