package runner

import (
	"context"

	"github.com/google/uuid"

	"github.com/botbattle/backend/internal/game"
	"github.com/botbattle/backend/internal/protocol"
	"github.com/botbattle/backend/internal/sandbox"
)

// GameResult is the outcome of one driven game: the per-half-move state
// snapshots plus either the winning sides or an attributed fault.
type GameResult struct {
	States  []*game.State
	Winners []game.Side
	Fault   *sandbox.Fault
}

// PlayGame instantiates both bots and drives the turn loop to a terminal
// state or to the first bot failure. A failing bot never aborts the loop
// with a panic or error; it terminates the game with an attributed fault.
func PlayGame(ctx context.Context, ex *sandbox.Executor, blueCode, redCode protocol.Code) *GameResult {
	blue, fault := ex.Init(ctx, blueCode, game.Blue)
	if fault != nil {
		return &GameResult{Fault: fault}
	}
	defer blue.Close()

	red, fault := ex.Init(ctx, redCode, game.Red)
	if fault != nil {
		return &GameResult{Fault: fault}
	}
	defer red.Close()

	state := game.NewState(game.Blue)
	curBot, curSide := blue, game.Blue
	var states []*game.State

	for {
		// Snapshot before the move so bot-side mutation cannot reach
		// the log.
		states = append(states, state.Clone())

		if winners := state.Winners(); len(winners) > 0 {
			return &GameResult{States: states, Winners: winners}
		}

		move, fault := ex.InvokeMove(ctx, curBot, curSide, state)
		if fault != nil {
			return &GameResult{States: states, Fault: fault}
		}
		if err := state.DropToken(move); err != nil {
			return &GameResult{States: states, Fault: sandbox.RulesFault(curSide, move, err)}
		}

		if curSide == game.Blue {
			curBot, curSide = red, game.Red
		} else {
			curBot, curSide = blue, game.Blue
		}
	}
}

// BuildLog converts a game result to its wire log. Exactly one of winner
// and exception is set; neither means a tie.
func BuildLog(gameID uuid.UUID, result *GameResult) protocol.GameLog {
	log := protocol.GameLog{
		GameID: gameID,
		States: protocol.EncodeStates(result.States),
	}
	switch {
	case result.Fault != nil:
		log.Exception = result.Fault.ExceptionInfo()
	case len(result.Winners) == 1:
		log.Winner = protocol.SideRef(result.Winners[0])
	}
	return log
}
