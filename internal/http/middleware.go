package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fairyhunter13/product-catalog-service/internal/model"
	"github.com/fairyhunter13/product-catalog-service/internal/obs"
)

// Identity headers set by the gateway after it verified the caller.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserName  = "X-User-Name"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRoles = "X-User-Roles"
)

const actorKey = "actor"

// WithRequestID propagates or assigns X-Request-Id.
func WithRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header("X-Request-Id", reqID)
		c.Request = c.Request.WithContext(obs.WithRequestID(c.Request.Context(), reqID))
		c.Next()
	}
}

func WithLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		lat := time.Since(start)
		obs.Logger.Info("http_request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"latency_ms", float64(lat.Microseconds())/1000.0,
			"request_id", obs.RequestID(c.Request.Context()),
		)
	}
}

// Authenticate turns the identity headers into a model.Actor. Requests
// without a user id are rejected.
func Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if id == "" {
			WriteJSONError(c, http.StatusUnauthorized, "unauthenticated", "missing "+HeaderUserID)
			return
		}
		var roles []string
		for _, r := range strings.Split(c.GetHeader(HeaderUserRoles), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, strings.ToLower(r))
			}
		}
		c.Set(actorKey, model.Actor{
			ID:       id,
			Username: c.GetHeader(HeaderUserName),
			Email:    c.GetHeader(HeaderUserEmail),
			Roles:    roles,
		})
		c.Next()
	}
}

func actorFrom(c *gin.Context) model.Actor {
	a, _ := c.Get(actorKey)
	actor, _ := a.(model.Actor)
	return actor
}
