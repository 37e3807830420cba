package api

import (
	"net/http"

	"mailsift-backend/internal/auth/delivery"
	authUsecase "mailsift-backend/internal/auth/usecase"
	categoryRepo "mailsift-backend/internal/category/repository"
	emailDelivery "mailsift-backend/internal/email/delivery"
	emailUsecase "mailsift-backend/internal/email/usecase"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, emailUc emailUsecase.EmailUsecase, syncService *emailUsecase.SyncService, categories categoryRepo.CategoryRepository) {
	authHandler := delivery.NewAuthHandler(authUsecase)
	emailHandler := emailDelivery.NewEmailHandler(emailUc, syncService, categories)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/register", authHandler.Register)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", delivery.AuthMiddleware(authUsecase), authHandler.Me)
		}

		// Settings routes (protected)
		settings := api.Group("/settings")
		settings.Use(delivery.AuthMiddleware(authUsecase))
		{
			settings.POST("/mailbox", authHandler.ConnectMailbox)
			settings.PUT("/sync-interval", authHandler.UpdateSyncInterval)
		}

		// Email routes (protected)
		emails := api.Group("/emails")
		emails.Use(delivery.AuthMiddleware(authUsecase))
		{
			emails.GET("", emailHandler.ListEmails)
			emails.GET("/:id", emailHandler.GetEmailByID)
			emails.PATCH("/:id/read", emailHandler.SetReadState)
			emails.PUT("/:id/categories", emailHandler.SetCategories)
		}

		// Sync routes (protected)
		sync := api.Group("/sync")
		sync.Use(delivery.AuthMiddleware(authUsecase))
		{
			sync.POST("/trigger", emailHandler.TriggerSync)
			sync.GET("/jobs/:id", emailHandler.GetSyncJob)
			sync.GET("/status", emailHandler.GetSyncStatus)
		}

		// Category routes (protected)
		categoryRoutes := api.Group("/categories")
		categoryRoutes.Use(delivery.AuthMiddleware(authUsecase))
		{
			categoryRoutes.GET("", emailHandler.ListCategories)
			categoryRoutes.POST("", emailHandler.CreateCategory)
			categoryRoutes.PUT("/:id", emailHandler.UpdateCategory)
			categoryRoutes.DELETE("/:id", emailHandler.DeleteCategory)
		}
	}
}
