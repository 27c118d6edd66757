package middleware

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/botbattle/backend/internal/models"
)

const botContextKey = "bot"

// BotAuth authenticates SDK requests by bearer token and stashes the
// matching bot on the request context. Suspended bots still
// authenticate; suspension only removes them from matchmaking.
func BotAuth(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			c.Abort()
			return
		}

		bot, err := models.BotByToken(db, token)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}
		if err != nil {
			log.Printf("[AUTH] Token lookup failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
			c.Abort()
			return
		}

		c.Set(botContextKey, bot)
		c.Next()
	}
}

// BotFromContext returns the authenticated bot set by BotAuth.
func BotFromContext(c *gin.Context) *models.Bot {
	value, ok := c.Get(botContextKey)
	if !ok {
		return nil
	}
	bot, _ := value.(*models.Bot)
	return bot
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
