package models

import (
	"encoding/json"
	"fmt"

	"github.com/botbattle/backend/internal/game"
	"github.com/botbattle/backend/internal/protocol"
)

// EncodeBoard serializes a board as a nested list of nullable side
// values, the storage form of the states table.
func EncodeBoard(s *game.State) ([]byte, error) {
	return json.Marshal(protocol.EncodeState(s).Board)
}

// DecodeStoredState rebuilds an engine state from a stored row,
// restoring the side enums.
func DecodeStoredState(row *StoredState) (*game.State, error) {
	var board [][]*int
	if err := json.Unmarshal(row.Board, &board); err != nil {
		return nil, fmt.Errorf("failed to decode stored board: %w", err)
	}
	wire := protocol.State{Board: board, NextSide: row.NextSide}
	return wire.Decode()
}
