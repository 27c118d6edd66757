package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/botbattle/backend/internal/events"
	"github.com/botbattle/backend/internal/game"
	"github.com/botbattle/backend/internal/models"
	"github.com/botbattle/backend/internal/protocol"
)

// GameResult accepts a runner's game log and resolves it in the
// background. The runner only needs delivery confirmation.
func GameResult(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var gameLog protocol.GameLog
		if err := c.ShouldBindJSON(&gameLog); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid game log"})
			return
		}

		go func() {
			if err := SaveGameResult(db, &gameLog); err != nil {
				log.Printf("[DISPATCHER] Failed to save game %s result: %v", gameLog.GameID, err)
			}
		}()

		c.Status(http.StatusAccepted)
	}
}

// outcome is the resolution of one side of a finished game.
type outcome struct {
	result    string
	exception *string
	suspend   bool
}

// resolveOutcomes maps wire side values to their outcomes. A log carries
// either an exception, a winner, or neither (a tie).
func resolveOutcomes(gameLog *protocol.GameLog) (map[int]outcome, error) {
	outcomes := map[int]outcome{}

	switch {
	case gameLog.Exception != nil:
		offender := game.Side(gameLog.Exception.CausedBySide)
		if !offender.Valid() {
			return nil, fmt.Errorf("invalid caused_by_side %d", gameLog.Exception.CausedBySide)
		}
		encoded, err := json.Marshal(gameLog.Exception)
		if err != nil {
			return nil, fmt.Errorf("failed to encode exception: %w", err)
		}
		text := string(encoded)
		outcomes[int(offender)] = outcome{result: models.ResultCrashed, exception: &text, suspend: true}
		outcomes[int(offender.Other())] = outcome{result: models.ResultOpponentCrashed}

	case gameLog.Winner != nil:
		winner := game.Side(*gameLog.Winner)
		if !winner.Valid() {
			return nil, fmt.Errorf("invalid winner %d", *gameLog.Winner)
		}
		outcomes[int(winner)] = outcome{result: models.ResultVictory}
		outcomes[int(winner.Other())] = outcome{result: models.ResultLoss}

	default:
		outcomes[int(game.Red)] = outcome{result: models.ResultTie}
		outcomes[int(game.Blue)] = outcome{result: models.ResultTie}
	}

	return outcomes, nil
}

// SaveGameResult resolves a game log into participant results, stored
// states and, for a crash, a suspension. Re-delivery of an already
// resolved game is a no-op.
func SaveGameResult(db *sqlx.DB, gameLog *protocol.GameLog) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var participants []models.Participant
	err = tx.Select(&participants, `
		SELECT id, created_at, game_id, bot_id, side, result, exception
		FROM participants
		WHERE game_id=$1
		ORDER BY side
		FOR UPDATE
	`, gameLog.GameID)
	if err != nil {
		return fmt.Errorf("failed to load participants: %w", err)
	}
	if len(participants) != 2 {
		return fmt.Errorf("game %s has %d participant(s), want 2", gameLog.GameID, len(participants))
	}

	// Already resolved; the runner re-delivered.
	if participants[0].Result.Valid || participants[1].Result.Valid {
		return nil
	}

	outcomes, err := resolveOutcomes(gameLog)
	if err != nil {
		return err
	}

	var suspendedBotID int
	for _, participant := range participants {
		o, ok := outcomes[participant.Side]
		if !ok {
			return fmt.Errorf("game %s has unexpected side %d", gameLog.GameID, participant.Side)
		}

		_, err := tx.Exec(`
			UPDATE participants SET result=$1, exception=$2 WHERE id=$3
		`, o.result, o.exception, participant.ID)
		if err != nil {
			return fmt.Errorf("failed to update participant %d: %w", participant.ID, err)
		}

		if o.result == models.ResultVictory {
			_, err := tx.Exec(`UPDATE games SET winner_id=$1 WHERE id=$2`, participant.BotID, gameLog.GameID)
			if err != nil {
				return fmt.Errorf("failed to set winner: %w", err)
			}
		}

		if o.suspend {
			if _, err := tx.Exec(`UPDATE bots SET suspended=true WHERE id=$1`, participant.BotID); err != nil {
				return fmt.Errorf("failed to suspend bot %d: %w", participant.BotID, err)
			}
			suspendedBotID = participant.BotID
		}
	}

	for i, state := range gameLog.States {
		board, err := json.Marshal(state.Board)
		if err != nil {
			return fmt.Errorf("failed to encode state %d: %w", i, err)
		}
		_, err = tx.Exec(`
			INSERT INTO states (game_id, serial_no_within_game, board, next_side)
			VALUES ($1, $2, $3, $4)
		`, gameLog.GameID, i, board, state.NextSide)
		if err != nil {
			return fmt.Errorf("failed to insert state %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit game result: %w", err)
	}

	ctx := context.Background()
	events.Publish(ctx, events.GameFinished, map[string]any{
		"game_id": gameLog.GameID.String(),
	})
	if suspendedBotID != 0 {
		events.Publish(ctx, events.BotSuspended, map[string]any{
			"bot_id":  suspendedBotID,
			"game_id": gameLog.GameID.String(),
		})
	}

	return nil
}
