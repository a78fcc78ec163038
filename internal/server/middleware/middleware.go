package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tuncanbit/qrpay/internal/application/authservice"
	"github.com/tuncanbit/qrpay/internal/domain"
)

const (
	ContextClientID = "client_id"
	ContextUsername = "username"
	headerRequestID = "X-Request-ID"
)

type Middleware struct {
	AuthSvc authservice.IAuthService
	logger  zerolog.Logger
}

func NewMiddleware(AuthSvc authservice.IAuthService, logger zerolog.Logger) *Middleware {
	return &Middleware{
		logger:  logger.With().Str("component", "http").Logger(),
		AuthSvc: AuthSvc,
	}
}

func (m *Middleware) SetupMiddleware(router *gin.Engine) {
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.Use(m.RequestLogger())

	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		m.logger.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("Recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, domain.ApiResponse{
			Message: domain.MsgUnknownError,
			Success: false,
			Status:  http.StatusInternalServerError,
		})
	}))

	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Next()
	})
}

// RequestLogger tags every request with an id and logs it once it completes.
func (m *Middleware) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(headerRequestID, requestID)

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		m.logger.Info().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP Request")
	}
}

// AuthMiddleware accepts a companion token as a Bearer header or, for
// websocket upgrades, as the token query parameter.
func (m *Middleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				m.logger.Warn().Msg("Invalid Authorization header format")
				c.AbortWithStatusJSON(http.StatusUnauthorized, domain.ApiResponse{
					Message: "Invalid Authorization header format, expected 'Bearer <token>'",
					Success: false,
					Status:  http.StatusUnauthorized,
				})
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
			if tokenString == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, domain.ApiResponse{
					Message: "Authorization token required via Authorization header or token query parameter",
					Success: false,
					Status:  http.StatusUnauthorized,
				})
				return
			}
		}

		claims, err := m.AuthSvc.VerifyToken(c.Request.Context(), tokenString)
		if err != nil {
			m.logger.Warn().Err(err).Msg("Failed to verify token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, domain.ApiResponse{
				Message: err.Error(),
				Success: false,
				Status:  http.StatusUnauthorized,
			})
			return
		}

		c.Set(ContextClientID, claims.ClientID.String())
		c.Set(ContextUsername, claims.Username)

		c.Next()
	}
}
