package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Participant result values.
const (
	ResultVictory         = "victory"
	ResultLoss            = "loss"
	ResultTie             = "tie"
	ResultCrashed         = "crashed"
	ResultOpponentCrashed = "opponent_crashed"
)

// Bot is a durable identity owning successive code versions. The token
// is the bearer credential presented by its author's SDK.
type Bot struct {
	ID        int       `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Token     string    `db:"token" json:"-"`
	Suspended bool      `db:"suspended" json:"suspended"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CodeVersion is one immutable snapshot of a bot's submitted code.
type CodeVersion struct {
	ID        int       `db:"id" json:"id"`
	BotID     int       `db:"bot_id" json:"bot_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Source    string    `db:"source" json:"source"`
	ClsName   string    `db:"cls_name" json:"cls_name"`
}

// Game is one match between two participants.
type Game struct {
	ID        uuid.UUID     `db:"id" json:"id"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	WinnerID  sql.NullInt64 `db:"winner_id" json:"winner_id,omitempty"`
}

// Participant joins a bot to a game on one side. Result and Exception
// stay null until the game log is resolved.
type Participant struct {
	ID        int            `db:"id" json:"id"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	GameID    uuid.UUID      `db:"game_id" json:"game_id"`
	BotID     int            `db:"bot_id" json:"bot_id"`
	Side      int            `db:"side" json:"side"`
	Result    sql.NullString `db:"result" json:"result,omitempty"`
	Exception sql.NullString `db:"exception" json:"exception,omitempty"`
}

// StoredState is one position of a game; the state at serial N is the
// position before move N.
type StoredState struct {
	ID                 int       `db:"id" json:"id"`
	GameID             uuid.UUID `db:"game_id" json:"game_id"`
	SerialNoWithinGame int       `db:"serial_no_within_game" json:"serial_no_within_game"`
	Board              []byte    `db:"board" json:"board"`
	NextSide           int       `db:"next_side" json:"next_side"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// AdminAccount is an operator login for the admin surface.
type AdminAccount struct {
	Username    string    `db:"username" json:"username"`
	DisplayName string    `db:"display_name" json:"display_name"`
	TokenHash   string    `db:"token_hash" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// AdminAudit is one recorded admin action.
type AdminAudit struct {
	ID            int       `db:"id" json:"id"`
	AdminUsername string    `db:"admin_username" json:"admin_username"`
	Route         string    `db:"route" json:"route"`
	Action        string    `db:"action" json:"action"`
	Details       []byte    `db:"details" json:"details"`
	Success       bool      `db:"success" json:"success"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
