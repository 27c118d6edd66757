package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/botbattle/backend/internal/bots"
	"github.com/botbattle/backend/internal/config"
	"github.com/botbattle/backend/internal/runner"
	"github.com/botbattle/backend/internal/sandbox"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Pick the bot loader: child processes when a runtime command is
	// configured, the in-process registry otherwise.
	var loader sandbox.Loader
	if cmd := cfg.RuntimeCmd(); len(cmd) > 0 {
		log.Printf("[RUNNER] Using process sandbox: %v", cmd)
		loader = &sandbox.ProcessLoader{Cmd: cmd}
	} else {
		log.Println("[RUNNER] BOT_RUNTIME_CMD not set, using builtin bots")
		loader = bots.NewLocalLoader()
	}

	executor := sandbox.NewExecutor(loader, cfg.InitTimeout(), cfg.MoveTimeout())

	poster := runner.NewPoster()
	poster.Start(context.Background())

	service := runner.NewService(executor, poster)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})
	service.SetupRoutes(router)

	log.Printf("Starting botbattle runner on port %s", cfg.RunnerPort)
	if err := router.Run(":" + cfg.RunnerPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
