// Package protocol defines the JSON wire types shared by the dispatcher,
// scheduler, runner and the client SDK.
package protocol

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/botbattle/backend/internal/game"
)

// Code is one submitted bot implementation: source text plus the name of
// the class to instantiate.
type Code struct {
	Source  string `json:"source"`
	ClsName string `json:"cls_name"`
}

// Loc counts the source lines of the submission.
func (c Code) Loc() int {
	if c.Source == "" {
		return 0
	}
	n := 1
	for _, r := range c.Source {
		if r == '\n' {
			n++
		}
	}
	return n
}

// RunGameTask instructs a runner to play one game and post the log back.
type RunGameTask struct {
	GameID   uuid.UUID `json:"game_id"`
	Callback string    `json:"callback"`
	BlueCode Code      `json:"blue_code"`
	RedCode  Code      `json:"red_code"`
}

// State is the wire form of a game position. Cells are nullable side
// values (RED=0, BLUE=1).
type State struct {
	Board    [][]*int `json:"board"`
	NextSide int      `json:"next_side"`
}

// ExceptionInfo describes a bot fault, attributed to one side. Move holds
// the offending move value when the fault was caused by one, else null.
type ExceptionInfo struct {
	Msg          string `json:"msg"`
	CausedBySide int    `json:"caused_by_side"`
	Move         any    `json:"move"`
}

// GameLog is the runner's report of a finished or crashed game. Winner
// and Exception are mutually exclusive; neither set means a tie.
type GameLog struct {
	GameID    uuid.UUID      `json:"game_id"`
	States    []State        `json:"states"`
	Winner    *int           `json:"winner,omitempty"`
	Exception *ExceptionInfo `json:"exception,omitempty"`
}

// UpdateResponse is the reply to /update_code.
type UpdateResponse struct {
	Updated bool `json:"updated"`
}

// ParticipantInfo is one resolved participation row of the calling bot.
type ParticipantInfo struct {
	CreatedAt time.Time      `json:"created_at"`
	Result    string         `json:"result"`
	Exception *ExceptionInfo `json:"exception,omitempty"`
}

// VersionStats aggregates outcomes within one code version's window.
type VersionStats struct {
	Victories int `json:"victories"`
	Losses    int `json:"losses"`
	Ties      int `json:"ties"`
}

// VersionInfo summarizes one code version: either the exception that
// suspended it or its win/loss/tie record.
type VersionInfo struct {
	CreatedAt time.Time      `json:"created_at"`
	Loc       int            `json:"loc"`
	Exception *ExceptionInfo `json:"exception,omitempty"`
	Stats     *VersionStats  `json:"stats,omitempty"`
}

// SideRef returns a pointer to the wire value of side, for optional
// winner fields.
func SideRef(side game.Side) *int {
	v := int(side)
	return &v
}

// EncodeState converts an engine state to its wire form.
func EncodeState(s *game.State) State {
	board := make([][]*int, s.LenY())
	for y := 0; y < s.LenY(); y++ {
		row := make([]*int, s.LenX())
		for x := 0; x < s.LenX(); x++ {
			if side, ok := s.Board[y][x].Side(); ok {
				v := int(side)
				row[x] = &v
			}
		}
		board[y] = row
	}
	return State{Board: board, NextSide: int(s.NextSide)}
}

// EncodeStates converts a slice of engine states.
func EncodeStates(states []*game.State) []State {
	wire := make([]State, 0, len(states))
	for _, s := range states {
		wire = append(wire, EncodeState(s))
	}
	return wire
}

// Decode converts a wire state back to an engine state, restoring enums.
func (s State) Decode() (*game.State, error) {
	next := game.Side(s.NextSide)
	if !next.Valid() {
		return nil, fmt.Errorf("invalid next_side %d", s.NextSide)
	}

	board := make([][]game.Cell, len(s.Board))
	for y, row := range s.Board {
		cells := make([]game.Cell, len(row))
		for x, v := range row {
			if v == nil {
				cells[x] = game.CellEmpty
				continue
			}
			side := game.Side(*v)
			if !side.Valid() {
				return nil, fmt.Errorf("invalid cell value %d at (%d,%d)", *v, x, y)
			}
			cells[x] = game.CellOf(side)
		}
		board[y] = cells
	}
	return &game.State{Board: board, NextSide: next}, nil
}
