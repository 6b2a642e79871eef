package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"accounts-api/internal/domain"
	"accounts-api/internal/metrics"
)

// Pinger reporta si el store responde. Lo implementa *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	authH *AuthHandler,
	accountH *AccountHandler,
	verifier TokenVerifier,
	health Pinger,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, metricas, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), metricsMiddleware(), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/healthz", healthHandler(health))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authn := JWTAuthMiddleware(verifier)

	auth := r.Group("/auth")
	auth.GET("", authH.Liveness)
	auth.POST("/register", authH.Register)
	auth.POST("/login", authH.Login)
	auth.POST("/verify-2fa", authH.VerifyTwoFactor)
	auth.GET("/me", authn, Require(AnyAuthenticated()), authH.Me)
	auth.GET("/profile", authn, Require(AnyAuthenticated()), authH.Me)
	auth.GET("/provider-profile", authn, Require(RoleEquals(domain.RoleProvider)), authH.Me)

	users := r.Group("/users")
	users.GET("/test", accountH.Liveness)
	users.POST("/referral/test", authH.Register)

	adminOnly := Require(RoleEquals(domain.RoleAdmin))
	users.GET("/all-users", authn, adminOnly, accountH.List)
	users.GET("/admin/users", authn, adminOnly, accountH.List)
	users.PUT("/admin/users/:id", authn, adminOnly, accountH.Update)
	users.DELETE("/admin/users/:id", authn, adminOnly, accountH.Delete)

	ownerOrAdmin := Require(OwnerOrAdmin("id"))
	users.GET("/:id", authn, Require(AnyAuthenticated()), accountH.Get)
	users.PUT("/:id", authn, ownerOrAdmin, accountH.Update)
	users.DELETE("/:id", authn, ownerOrAdmin, accountH.Delete)
	users.GET("/:id/referrals", authn, ownerOrAdmin, accountH.Referrals)
	users.POST("/:id/favorite-provider", authn, ownerOrAdmin, accountH.AddFavoriteProvider)

	return r
}

func healthHandler(health Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := health.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"message": "database unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	}
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// metricsMiddleware usa la ruta registrada (no la URL) como label para
// acotar la cardinalidad.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
