package routes

import (
	"net/http"

	"access-approval-api/controllers"
	"access-approval-api/middleware"
	"access-approval-api/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers bundles the controllers mounted under /api/v1.
type Handlers struct {
	AccessRequests *controllers.AccessRequestController
	Signatures     *controllers.SignatureController
}

func SetupRoutes(router *gin.Engine, h Handlers) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{
					"status":  "ok",
					"message": "Access Approval API is running",
				})
			})
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// Access requests
			requests := protected.Group("/access-requests")
			{
				requests.POST("", h.AccessRequests.Create)

				// Approver queues; registered before /:id so the static paths win
				requests.GET("/hod-queue",
					middleware.RequireRole(services.RoleHeadOfDepartment, services.RoleAdmin),
					h.AccessRequests.HODQueue)
				requests.GET("/queues/:stage", h.AccessRequests.StageQueue)

				requests.GET("/:id", h.AccessRequests.Get)
				requests.GET("/:id/history", h.AccessRequests.History)
				requests.GET("/:id/visibility", h.AccessRequests.Visibility)
				requests.POST("/:id/status", h.AccessRequests.ChangeStatus)
			}

			// Document signatures
			documents := protected.Group("/documents")
			{
				documents.POST("/sign", h.Signatures.SignDocument)
				documents.GET("/:id/signatures", h.Signatures.ListDocumentSignatures)
			}
			protected.GET("/signatures/:id/verify", h.Signatures.VerifySignature)
		}
	}
}
