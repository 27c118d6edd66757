package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/botbattle/backend/internal/admin"
	"github.com/botbattle/backend/internal/config"
	"github.com/botbattle/backend/internal/models"
)

const adminSessionTTL = 4 * time.Hour

// AdminLogin validates operator credentials and issues a session JWT
func AdminLogin(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		username := strings.TrimSpace(req.Username)
		password := strings.TrimSpace(req.Password)

		adminAcc, err := admin.ValidateAdminCredentials(db, username, password)
		if err != nil {
			log.Printf("[ADMIN] Login failed for username %s: %v", username, err)
			admin.LogAdminAction(db, username, "/admin/login", "login", map[string]interface{}{"username": username}, false)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}

		exp := time.Now().Add(adminSessionTTL)
		claims := jwt.MapClaims{"admin": adminAcc.Username, "exp": exp.Unix()}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte(cfg.JWTSecret))
		if err != nil {
			log.Printf("[ADMIN] Failed to sign token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		admin.LogAdminAction(db, username, "/admin/login", "login", map[string]interface{}{"username": username}, true)
		c.JSON(http.StatusOK, gin.H{
			"token": signed,
			"admin": gin.H{"username": adminAcc.Username, "display_name": adminAcc.DisplayName},
		})
	}
}

// AdminAuth verifies the session JWT and stashes the admin username
func AdminAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing session token"})
			c.Abort()
			return
		}

		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session token"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session token"})
			c.Abort()
			return
		}
		username, _ := claims["admin"].(string)
		if username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session token"})
			c.Abort()
			return
		}

		c.Set("admin_username", username)
		c.Next()
	}
}

// AdminListBots lists all bots with their latest version and record
func AdminListBots(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var bots []struct {
			models.Bot
			Versions int `db:"versions" json:"versions"`
			Games    int `db:"games" json:"games"`
		}
		err := db.Select(&bots, `
			SELECT b.id, b.username, b.token, b.suspended, b.created_at,
			       (SELECT COUNT(*) FROM code_versions cv WHERE cv.bot_id = b.id) AS versions,
			       (SELECT COUNT(*) FROM participants p WHERE p.bot_id = b.id) AS games
			FROM bots b
			ORDER BY b.id
		`)
		if err != nil {
			log.Printf("[ADMIN] Failed to list bots: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list bots"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"bots": bots})
	}
}

// AdminCreateBot registers a new bot identity. The bearer token is
// generated server-side and returned in this response only.
func AdminCreateBot(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		username := strings.TrimSpace(req.Username)
		if username == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username required"})
			return
		}

		token, err := newBotToken()
		if err != nil {
			log.Printf("[ADMIN] Failed to generate token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		var id int
		err = db.Get(&id, `
			INSERT INTO bots (username, token) VALUES ($1, $2) RETURNING id
		`, username, token)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				c.JSON(http.StatusConflict, gin.H{"error": "Username already taken"})
				return
			}
			log.Printf("[ADMIN] Failed to create bot %s: %v", username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create bot"})
			return
		}

		admin.LogAdminAction(db, c.GetString("admin_username"), c.FullPath(), "create_bot", map[string]interface{}{"bot_id": id, "username": username}, true)

		c.JSON(http.StatusCreated, gin.H{"id": id, "username": username, "token": token})
	}
}

func newBotToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// AdminSetSuspended flips a bot's suspension flag
func AdminSetSuspended(db *sqlx.DB, suspended bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		botID, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bot id"})
			return
		}

		result, err := db.Exec(`UPDATE bots SET suspended=$1 WHERE id=$2`, suspended, botID)
		if err != nil {
			log.Printf("[ADMIN] Failed to update bot %d: %v", botID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update bot"})
			return
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Bot not found"})
			return
		}

		action := "unsuspend_bot"
		if suspended {
			action = "suspend_bot"
		}
		admin.LogAdminAction(db, c.GetString("admin_username"), c.FullPath(), action, map[string]interface{}{"bot_id": botID}, true)

		c.JSON(http.StatusOK, gin.H{"id": botID, "suspended": suspended})
	}
}

// AdminListGames lists recent games with participants
func AdminListGames(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit < 1 || limit > 500 {
			limit = 50
		}

		var games []struct {
			models.Game
			Blue       string `db:"blue" json:"blue"`
			Red        string `db:"red" json:"red"`
			BlueResult string `db:"blue_result" json:"blue_result"`
			RedResult  string `db:"red_result" json:"red_result"`
		}
		err = db.Select(&games, `
			SELECT g.id, g.created_at, g.winner_id,
			       bb.username AS blue, rb.username AS red,
			       COALESCE(bp.result, '') AS blue_result,
			       COALESCE(rp.result, '') AS red_result
			FROM games g
			JOIN participants bp ON bp.game_id = g.id AND bp.side = 1
			JOIN participants rp ON rp.game_id = g.id AND rp.side = 0
			JOIN bots bb ON bb.id = bp.bot_id
			JOIN bots rb ON rb.id = rp.bot_id
			ORDER BY g.created_at DESC
			LIMIT $1
		`, limit)
		if err != nil {
			log.Printf("[ADMIN] Failed to list games: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list games"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"games": games})
	}
}

// AdminAuditLogs returns the recent audit trail
func AdminAuditLogs(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		if limit < 1 || limit > 1000 {
			limit = 100
		}
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if offset < 0 {
			offset = 0
		}

		logs, err := admin.GetAdminAuditLogs(db, limit, offset)
		if err != nil {
			log.Printf("[ADMIN] Failed to load audit logs: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audit logs"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": logs})
	}
}
