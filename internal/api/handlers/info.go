package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/botbattle/backend/internal/middleware"
	"github.com/botbattle/backend/internal/models"
	"github.com/botbattle/backend/internal/protocol"
)

const infoPageSize = 20

// GetPartInfo lists the calling bot's most recent resolved games,
// oldest first, optionally only those after a timestamp.
func GetPartInfo(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		bot := middleware.BotFromContext(c)

		var after *time.Time
		if raw := c.Query("after"); raw != "" {
			ts, err := parseTimestamp(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid after timestamp"})
				return
			}
			after = &ts
		}

		var participants []models.Participant
		err := db.Select(&participants, `
			SELECT id, created_at, game_id, bot_id, side, result, exception
			FROM participants
			WHERE bot_id=$1 AND result IS NOT NULL
			AND ($2::timestamptz IS NULL OR created_at > $2)
			ORDER BY created_at DESC
			LIMIT $3
		`, bot.ID, after, infoPageSize)
		if err != nil {
			log.Printf("[DISPATCHER] Failed to load participations for bot %d: %v", bot.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load games"})
			return
		}

		// Fetched newest-first; reply oldest-first so the latest is last.
		infos := make([]protocol.ParticipantInfo, 0, len(participants))
		for i := len(participants) - 1; i >= 0; i-- {
			p := participants[i]
			infos = append(infos, protocol.ParticipantInfo{
				CreatedAt: p.CreatedAt,
				Result:    p.Result.String,
				Exception: decodeException(p.Exception),
			})
		}

		c.JSON(http.StatusOK, infos)
	}
}

// LatestVersionsInfo summarizes the bot's last code versions, oldest
// first. A version that crashed reports the exception; otherwise its
// win/loss/tie record over the games played on it.
func LatestVersionsInfo(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		bot := middleware.BotFromContext(c)

		var versions []models.CodeVersion
		err := db.Select(&versions, `
			SELECT id, bot_id, created_at, source, cls_name
			FROM code_versions
			WHERE bot_id=$1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, bot.ID, infoPageSize)
		if err != nil {
			log.Printf("[DISPATCHER] Failed to load versions for bot %d: %v", bot.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load versions"})
			return
		}

		// Oldest first; each version's window ends where the next begins.
		infos := make([]protocol.VersionInfo, 0, len(versions))
		for i := len(versions) - 1; i >= 0; i-- {
			version := versions[i]

			var windowEnd *time.Time
			if i > 0 {
				windowEnd = &versions[i-1].CreatedAt
			}

			info, err := versionInfo(db, bot.ID, version, windowEnd)
			if err != nil {
				log.Printf("[DISPATCHER] Failed to summarize version %d: %v", version.ID, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load versions"})
				return
			}
			infos = append(infos, info)
		}

		c.JSON(http.StatusOK, infos)
	}
}

func versionInfo(db *sqlx.DB, botID int, version models.CodeVersion, windowEnd *time.Time) (protocol.VersionInfo, error) {
	code := protocol.Code{Source: version.Source, ClsName: version.ClsName}
	info := protocol.VersionInfo{
		CreatedAt: version.CreatedAt,
		Loc:       code.Loc(),
	}

	// A crash on this version trumps its record.
	var exception sql.NullString
	err := db.Get(&exception, `
		SELECT p.exception
		FROM participants p
		JOIN games g ON g.id = p.game_id
		WHERE p.bot_id=$1 AND p.result=$2
		  AND g.created_at > $3
		  AND ($4::timestamptz IS NULL OR g.created_at <= $4)
		ORDER BY p.created_at DESC
		LIMIT 1
	`, botID, models.ResultCrashed, version.CreatedAt, windowEnd)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return info, err
	}
	if err == nil {
		info.Exception = decodeException(exception)
		if info.Exception == nil {
			info.Exception = &protocol.ExceptionInfo{}
		}
		return info, nil
	}

	rows, err := db.Queryx(`
		SELECT p.result, COUNT(*) AS n
		FROM participants p
		JOIN games g ON g.id = p.game_id
		WHERE p.bot_id=$1 AND p.result IS NOT NULL
		  AND g.created_at > $2
		  AND ($3::timestamptz IS NULL OR g.created_at <= $3)
		GROUP BY p.result
	`, botID, version.CreatedAt, windowEnd)
	if err != nil {
		return info, err
	}
	defer rows.Close()

	stats := protocol.VersionStats{}
	for rows.Next() {
		var result string
		var n int
		if err := rows.Scan(&result, &n); err != nil {
			return info, err
		}
		switch result {
		case models.ResultVictory:
			stats.Victories = n
		case models.ResultLoss:
			stats.Losses = n
		case models.ResultTie:
			stats.Ties = n
		}
	}
	if err := rows.Err(); err != nil {
		return info, err
	}

	info.Stats = &stats
	return info, nil
}

// decodeException rebuilds the stored exception JSON; legacy plain-text
// rows come back as a bare message.
func decodeException(stored sql.NullString) *protocol.ExceptionInfo {
	if !stored.Valid || stored.String == "" {
		return nil
	}
	var info protocol.ExceptionInfo
	if err := json.Unmarshal([]byte(stored.String), &info); err != nil {
		return &protocol.ExceptionInfo{Msg: stored.String}
	}
	return &info
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.New("unrecognized timestamp")
}
