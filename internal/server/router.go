package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httplog/v2"

	"shortly/internal/controllers"
	"shortly/internal/middleware"
	"shortly/internal/ratelimit"
)

// Handlers groups what the router dispatches to
type Handlers struct {
	Shortener  *controllers.ShortenerController
	Auth       *controllers.AuthController
	QRCode     *controllers.QRCodeController
	Moderation *controllers.ModerationController
}

// NewRouter builds the HTTP handler of the service
func NewRouter(logger *httplog.Logger, tokens middleware.TokenValidator, users middleware.StateReader, limiter *ratelimit.Limiter, h Handlers) http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	requireAuth := middleware.AuthMiddleware(tokens, users)
	optionalAuth := middleware.OptionalAuth(tokens, users)
	limits := middleware.NewRateLimiter(limiter)

	// Health check endpoint (no rate limiting)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	router.GET("/:shortCode", limits.LimitMiddleware(ratelimit.Click), h.Shortener.RedirectToURL)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		auth.Use(limits.LimitMiddleware(ratelimit.Auth))
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
		}

		// Anonymous creation is allowed; a token makes the caller the owner
		api.POST("/shorten", optionalAuth, limits.LimitMiddleware(ratelimit.Create), h.Shortener.CreateShortURL)

		api.GET("/redirect/:shortCode", optionalAuth, limits.LimitMiddleware(ratelimit.Click), h.Shortener.GetOriginalURLPublic)
		api.GET("/qrcode/:shortCode", h.QRCode.GenerateQRCode)

		protected := api.Group("")
		protected.Use(requireAuth)
		{
			protected.GET("/urls", h.Shortener.GetUserURLs)
			protected.GET("/url/:shortCode", h.Shortener.GetURLStats)
			protected.PATCH("/url/:shortCode", limits.LimitMiddleware(ratelimit.Modify), h.Shortener.UpdateURL)
			protected.DELETE("/url/:shortCode", limits.LimitMiddleware(ratelimit.Modify), h.Shortener.DeleteURL)
		}

		admin := api.Group("/admin")
		admin.Use(requireAuth, middleware.AdminOnly())
		{
			admin.GET("/urls/flagged", h.Moderation.ListFlagged)
			admin.PATCH("/url/:shortCode/status", h.Moderation.SetURLStatus)
			admin.POST("/url/:shortCode/approve", h.Moderation.ApproveURL)
			admin.DELETE("/url/:shortCode", h.Moderation.DeleteURL)
			admin.PATCH("/users/:id/status", h.Moderation.SetUserStatus)
			admin.PATCH("/users/:id/role", h.Moderation.SetUserRole)
		}
	}

	return httplog.RequestLogger(logger)(router)
}
