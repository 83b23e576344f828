package handler

import (
	"context"
	"net/http"
	"time"

	model "vehicle-auction/internal/models"
	"vehicle-auction/services/auction/dto"
	"vehicle-auction/services/auction/helpers"
	"vehicle-auction/utils"

	"github.com/gin-gonic/gin"
)

//go:generate mockgen -package=handler -destination=mock_handler.go -source=auth_handler.go
//go:generate mockgen -package=handler -destination=mock_auction_handler.go -source=auction_handler.go

type SessionServiceInterface interface {
	Register(ctx context.Context, username, email, password string) (model.User, error)
	Login(ctx context.Context, username, password string) (model.User, string, error)
	Logout(ctx context.Context, token string) error
}

type AuthHandler struct {
	service      SessionServiceInterface
	sessionTTL   time.Duration
	secureCookie bool
}

func NewAuthHandler(service SessionServiceInterface, sessionTTL time.Duration, secureCookie bool) *AuthHandler {
	return &AuthHandler{service: service, sessionTTL: sessionTTL, secureCookie: secureCookie}
}

// CheckAuthHandler handles GET /api/check-auth
func (h *AuthHandler) CheckAuthHandler(c *gin.Context) {
	user, ok := helpers.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status":  http.StatusUnauthorized,
			"message": "not authenticated",
			"data":    dto.AuthResponse{Authenticated: false},
		})
		return
	}
	utils.JSONResponse(c, http.StatusOK, dto.AuthResponse{Authenticated: true, User: &user}, "authenticated")
}

// LoginHandler handles POST /api/login
func (h *AuthHandler) LoginHandler(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "LoginHandler", err)
		return
	}

	user, token, err := h.service.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		helpers.HandleServiceError(c, "LoginHandler", err, map[string]any{"username": req.Username})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(helpers.SessionCookie, token, int(h.sessionTTL.Seconds()), "/", "", h.secureCookie, true)
	utils.JSONResponse(c, http.StatusOK, dto.LoginResponse{User: user, Token: token}, "login successful")
	helpers.LogSuccess("LoginHandler", "login successful", map[string]any{"user_id": user.ID})
}

// RegisterHandler handles POST /api/register. Registration does not log the user in.
func (h *AuthHandler) RegisterHandler(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "RegisterHandler", err)
		return
	}

	user, err := h.service.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		helpers.HandleServiceError(c, "RegisterHandler", err, map[string]any{"username": req.Username})
		return
	}

	utils.JSONResponse(c, http.StatusOK, user, "registration successful")
	helpers.LogSuccess("RegisterHandler", "user registered", map[string]any{"user_id": user.ID})
}

// LogoutHandler handles POST /api/logout
func (h *AuthHandler) LogoutHandler(c *gin.Context) {
	token := helpers.SessionToken(c)
	if err := h.service.Logout(c.Request.Context(), token); err != nil {
		helpers.HandleServiceError(c, "LogoutHandler", err, nil)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(helpers.SessionCookie, "", -1, "/", "", h.secureCookie, true)
	utils.JSONResponse(c, http.StatusOK, nil, "logged out")
}
