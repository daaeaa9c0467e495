package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ringnet/hazardcore/internal/models"
	"github.com/ringnet/hazardcore/internal/repository"
)

// userHeader carries the identity already verified by the auth gateway in
// front of this service. The handler layer resolves it to a profile once
// and passes it down explicitly; nothing below reads ambient session state.
const userHeader = "X-RingNet-User"

const userContextKey = "ringnet.user"

// RequireUser resolves the caller's profile and aborts with 401/404 when
// the header is missing or unknown.
func RequireUser(users repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(userHeader)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing " + userHeader + " header",
			})
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), id)
		if errors.Is(err, repository.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown user"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.UserProfile {
	u, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	return u.(*models.UserProfile)
}
