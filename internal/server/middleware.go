package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nutrisync/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
)

const userIDKey = "userID"

// AuthMiddleware validates an HS256 bearer token and stores its subject as
// the user id. The websocket route may pass the token as ?token= since
// browsers cannot set headers on upgrade requests.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server misconfigured: JWT secret not set"})
			return
		}

		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			return
		}

		userID := subject(claims)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "subject claim missing"})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// wsRoute is the only route that reads the token from the query string.
const wsRoute = "/api/ws"

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c.FullPath() == wsRoute {
		return c.Query("token")
	}
	return ""
}

// subject prefers the standard sub claim and falls back to userId, which
// may be numeric.
func subject(claims jwt.MapClaims) string {
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub
	}
	switch id := claims["userId"].(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(id, 10)
	}
	return ""
}

func currentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}

var requestCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "nutrisync_http_requests_total",
		Help: "HTTP requests by route and status",
	},
	[]string{"method", "route", "status"},
)

// Collectors returns the server's metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{requestCounter}
}

// RequestLogger logs each request through zap and counts it.
func RequestLogger(l *logger.Logger) gin.HandlerFunc {
	log := logger.OrNop(l).Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		requestCounter.WithLabelValues(c.Request.Method, route, fmt.Sprint(status)).Inc()

		fields := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
		}
		if user := currentUser(c); user != "" {
			fields = append(fields, "user_id", user)
		}
		if status >= http.StatusInternalServerError {
			log.Errorw("request failed", fields...)
			return
		}
		log.Infow("request", fields...)
	}
}
