package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/botbattle/backend/internal/config"
	"github.com/botbattle/backend/internal/events"
	"github.com/botbattle/backend/internal/middleware"
	"github.com/botbattle/backend/internal/models"
	"github.com/botbattle/backend/internal/protocol"
)

// UpdateCode stores a new code version for the calling bot. Resubmitting
// identical code is a no-op; anything new also lifts a suspension and
// kicks the scheduler.
func UpdateCode(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		bot := middleware.BotFromContext(c)

		var code protocol.Code
		if err := c.ShouldBindJSON(&code); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if strings.TrimSpace(code.Source) == "" || strings.TrimSpace(code.ClsName) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "source and cls_name are required"})
			return
		}

		latest, err := models.LatestCodeVersion(db, bot.ID)
		if err != nil && !errors.Is(err, models.ErrNoCode) {
			log.Printf("[DISPATCHER] Failed to load latest code for bot %d: %v", bot.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load code"})
			return
		}

		if latest != nil && latest.Source == code.Source && latest.ClsName == code.ClsName {
			c.JSON(http.StatusOK, protocol.UpdateResponse{Updated: false})
			return
		}

		if err := saveNewVersion(db, bot.ID, code); err != nil {
			log.Printf("[DISPATCHER] Failed to save code for bot %d: %v", bot.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save code"})
			return
		}

		log.Printf("[DISPATCHER] Bot %d submitted new code (%d loc)", bot.ID, code.Loc())

		events.Publish(c.Request.Context(), events.CodeUpdated, map[string]any{
			"bot_id":   bot.ID,
			"username": bot.Username,
			"loc":      code.Loc(),
		})

		go triggerScheduler(cfg.SchedulerURL)

		c.JSON(http.StatusOK, protocol.UpdateResponse{Updated: true})
	}
}

func saveNewVersion(db *sqlx.DB, botID int, code protocol.Code) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO code_versions (bot_id, source, cls_name)
		VALUES ($1, $2, $3)
	`, botID, code.Source, code.ClsName)
	if err != nil {
		return err
	}

	// New code gets a clean slate.
	if _, err := tx.Exec(`UPDATE bots SET suspended=false WHERE id=$1`, botID); err != nil {
		return err
	}

	return tx.Commit()
}

func triggerScheduler(schedulerURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, schedulerURL, nil)
	if err != nil {
		log.Printf("[DISPATCHER] Failed to build scheduler trigger: %v", err)
		return
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("[DISPATCHER] Failed to trigger scheduler at %s: %v", schedulerURL, err)
		return
	}
	resp.Body.Close()
}
