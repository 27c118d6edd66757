package main

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/botbattle/backend/internal/admin"
	"github.com/botbattle/backend/internal/config"
	"github.com/botbattle/backend/internal/database"
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

	username := os.Getenv("BOT_USERNAME")
	if username == "" {
		log.Fatal("BOT_USERNAME is required")
	}

	token := os.Getenv("BOT_TOKEN")
	if token == "" {
		token = randomToken()
	}

	var botID int
	err = db.QueryRowx(`
		INSERT INTO bots (username, token)
		VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET token = EXCLUDED.token
		RETURNING id
	`, username, token).Scan(&botID)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	log.Printf("✓ Bot created/updated successfully")
	log.Printf("  ID: %d", botID)
	log.Printf("  Username: %s", username)
	log.Printf("  Token: %s", token)

	// Optionally seed an admin account alongside
	if adminUser := os.Getenv("ADMIN_USERNAME"); adminUser != "" {
		adminToken := os.Getenv("ADMIN_TOKEN")
		if adminToken == "" {
			adminToken = "change-me-in-production"
			log.Printf("WARNING: Using default admin token. Set ADMIN_TOKEN env var in production!")
		}
		if err := admin.CreateAdminAccount(db, adminUser, "Admin", adminToken); err != nil {
			log.Fatalf("Failed to create admin account: %v", err)
		}
		log.Printf("✓ Admin account %s created/updated", adminUser)
	}
}

func randomToken() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}
	return hex.EncodeToString(b)
}
