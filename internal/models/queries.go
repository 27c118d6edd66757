package models

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/botbattle/backend/internal/protocol"
)

var ErrNoCode = errors.New("bot has no code versions")

// BotByToken resolves a bearer token to its bot.
func BotByToken(db *sqlx.DB, token string) (*Bot, error) {
	var bot Bot
	err := db.Get(&bot, `SELECT id, username, token, suspended, created_at FROM bots WHERE token=$1`, token)
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

// LatestCodeVersion returns a bot's newest code version row.
func LatestCodeVersion(db *sqlx.DB, botID int) (*CodeVersion, error) {
	var version CodeVersion
	err := db.Get(&version, `
		SELECT id, bot_id, created_at, source, cls_name
		FROM code_versions
		WHERE bot_id=$1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, botID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoCode
	}
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// LoadLatestCode returns the wire form of a bot's newest code version.
func LoadLatestCode(db *sqlx.DB, botID int) (protocol.Code, error) {
	version, err := LatestCodeVersion(db, botID)
	if err != nil {
		return protocol.Code{}, err
	}
	return protocol.Code{Source: version.Source, ClsName: version.ClsName}, nil
}
