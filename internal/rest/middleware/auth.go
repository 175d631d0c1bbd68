package middleware

import (
	"strings"

	"github.com/freelanceflow/freelanceflow/internal/auth"
	"github.com/freelanceflow/freelanceflow/internal/config"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/logger"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/gin-gonic/gin"
)

// AuthenticateMiddleware validates the bearer JWT in the Authorization header and sets the
// freelancer from its freelancer_id claim in the request context
func AuthenticateMiddleware(cfg *config.Configuration, logger *logger.Logger) gin.HandlerFunc {
	authProvider := auth.NewProvider(cfg)

	return func(c *gin.Context) {
		authHeader := c.GetHeader(types.HeaderAuthorization)
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header is required")
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(tokenString) == "" {
			abortUnauthorized(c, "Invalid authorization header format")
			return
		}

		claims, err := authProvider.ValidateToken(c.Request.Context(), strings.TrimSpace(tokenString))
		if err != nil {
			logger.Debugw("failed to validate token", "error", err)
			c.Error(err)
			c.Abort()
			return
		}

		ctx := types.SetFreelancerID(c.Request.Context(), claims.FreelancerID)
		ctx = types.SetJWT(ctx, tokenString)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, hint string) {
	c.Error(ierr.NewError("unauthorized").
		WithHint(hint).
		Mark(ierr.ErrUnauthenticated))
	c.Abort()
}
