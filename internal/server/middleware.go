package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"vehicle-auction/internal/auctionerrors"
	model "vehicle-auction/internal/models"
	"vehicle-auction/services/auction/helpers"
	"vehicle-auction/utils"

	"github.com/gin-gonic/gin"
)

// SessionResolver turns a session token into the user it belongs to
type SessionResolver interface {
	CurrentSession(ctx context.Context, token string) (model.User, error)
}

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	fields := map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	}
	if user, ok := helpers.CurrentUser(c); ok {
		fields["user_id"] = user.ID
	}
	utils.Info("HTTP Request", fields)
}

// SessionMiddleware attaches the session's user to the context when the request carries a valid token.
// Requests without one continue anonymously; RequireAuth decides whether that is acceptable.
func SessionMiddleware(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := helpers.SessionToken(c)
		if token == "" {
			c.Next()
			return
		}

		user, err := resolver.CurrentSession(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, auctionerrors.ErrUnauthenticated) {
				utils.Warn("SessionMiddleware: session lookup failed", map[string]any{"error": err.Error()})
			}
			c.Next()
			return
		}
		helpers.SetCurrentUser(c, user)
		c.Next()
	}
}

// RequireAuth rejects requests without a resolved session
func RequireAuth(c *gin.Context) {
	if _, ok := helpers.CurrentUser(c); !ok {
		utils.AbortJSONError(c, http.StatusUnauthorized, auctionerrors.ErrUnauthenticated, "not authenticated")
		return
	}
	c.Next()
}

// RequireAdmin rejects requests whose session user is not an admin
func RequireAdmin(c *gin.Context) {
	user, ok := helpers.CurrentUser(c)
	if !ok {
		utils.AbortJSONError(c, http.StatusUnauthorized, auctionerrors.ErrUnauthenticated, "not authenticated")
		return
	}
	if !user.IsAdmin() {
		utils.AbortJSONError(c, http.StatusForbidden, auctionerrors.ErrUnauthorized, "unauthorized")
		return
	}
	c.Next()
}
