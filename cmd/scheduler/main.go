package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/botbattle/backend/internal/config"
	"github.com/botbattle/backend/internal/database"
	"github.com/botbattle/backend/internal/scheduler"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	service := scheduler.NewService(db, cfg)
	service.SetupRoutes(router)

	log.Printf("Starting botbattle scheduler on port %s", cfg.SchedulerPort)
	if err := router.Run(":" + cfg.SchedulerPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
