package main

import (
	"log"
	"os"

	api "mailsift-backend/cmd/api"
	authdomain "mailsift-backend/internal/auth/domain"
	authRepo "mailsift-backend/internal/auth/repository"
	authUsecase "mailsift-backend/internal/auth/usecase"
	categorydomain "mailsift-backend/internal/category/domain"
	"mailsift-backend/internal/category/matcher"
	categoryRepo "mailsift-backend/internal/category/repository"
	emaildomain "mailsift-backend/internal/email/domain"
	emailRepo "mailsift-backend/internal/email/repository"
	emailUsecase "mailsift-backend/internal/email/usecase"
	"mailsift-backend/pkg/config"
	"mailsift-backend/pkg/database"
	"mailsift-backend/pkg/gmail"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(&authdomain.User{}, &authdomain.RefreshToken{}, &emaildomain.Email{}, &categorydomain.Category{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	userRepo := authRepo.NewUserRepository(db)
	emailRepository := emailRepo.NewEmailRepository(db)
	categoryRepository := categoryRepo.NewCategoryRepository(db)

	// Initialize Gmail service
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret)

	// Initialize category matcher and fetch pipeline
	keywordMatcher := matcher.NewKeywordMatcher(categoryRepository)
	fetcher := emailUsecase.NewFetcher(emailRepository, keywordMatcher)

	// Initialize background sync
	syncService := emailUsecase.NewSyncService(userRepo, emailRepository, fetcher, gmailService, cfg)
	syncService.Start()
	defer syncService.Stop()

	// Initialize use cases (dependency injection)
	authUsecaseInstance := authUsecase.NewAuthUsecase(userRepo, cfg)
	emailUsecaseInstance := emailUsecase.NewEmailUsecase(emailRepository, categoryRepository)

	// Initialize HTTP handler
	handler := api.NewHandler(authUsecaseInstance, emailUsecaseInstance, syncService, categoryRepository, cfg)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}

	log.Printf("Server starting on port %s", port)
	if err := handler.Start(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
