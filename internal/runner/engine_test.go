package runner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/botbattle/backend/internal/game"
	"github.com/botbattle/backend/internal/protocol"
	"github.com/botbattle/backend/internal/sandbox"
)

type funcBot struct {
	move func(state *game.State) (int, error)
}

func (b *funcBot) MakeMove(_ context.Context, state *game.State) (int, error) {
	return b.move(state)
}

func (b *funcBot) Close() error { return nil }

// scriptLoader hands out bots by class name.
type scriptLoader struct {
	bots map[string]func() sandbox.BotInstance
}

func (l *scriptLoader) Load(_ context.Context, code protocol.Code, _ game.Side) (sandbox.BotInstance, error) {
	ctor, ok := l.bots[code.ClsName]
	if !ok {
		return nil, fmt.Errorf("unknown class %q", code.ClsName)
	}
	return ctor(), nil
}

func alwaysColumn(col int) func() sandbox.BotInstance {
	return func() sandbox.BotInstance {
		return &funcBot{move: func(*game.State) (int, error) { return col, nil }}
	}
}

func firstFree() sandbox.BotInstance {
	return &funcBot{move: func(state *game.State) (int, error) {
		for col := 0; col < state.LenX(); col++ {
			if !state.ColumnFull(col) {
				return col, nil
			}
		}
		return 0, errors.New("board full")
	}}
}

func testExecutor(loader sandbox.Loader) *sandbox.Executor {
	return sandbox.NewExecutor(loader, 100*time.Millisecond, 100*time.Millisecond)
}

func TestPlayGameVerticalWin(t *testing.T) {
	loader := &scriptLoader{bots: map[string]func() sandbox.BotInstance{
		"Stacker": alwaysColumn(0),
		"Spread": func() sandbox.BotInstance {
			col := 0
			return &funcBot{move: func(*game.State) (int, error) {
				col++
				return col, nil
			}}
		},
	}}

	result := PlayGame(context.Background(), testExecutor(loader),
		protocol.Code{ClsName: "Stacker"}, protocol.Code{ClsName: "Spread"})

	if result.Fault != nil {
		t.Fatalf("unexpected fault: %+v", result.Fault)
	}
	if len(result.Winners) != 1 || result.Winners[0] != game.Blue {
		t.Fatalf("winners = %v, want [BLUE]", result.Winners)
	}
	// Blue stacks column 0: B R B R B R B is 7 moves, so 8 snapshots
	// including the terminal position.
	if len(result.States) != 8 {
		t.Errorf("recorded %d states, want 8", len(result.States))
	}
	// The last snapshot holds the winning line.
	last := result.States[len(result.States)-1]
	if lines := last.FindAllLines(4, game.Blue); len(lines) == 0 {
		t.Errorf("terminal state has no blue 4-line")
	}
}

func TestPlayGameCrashAttribution(t *testing.T) {
	loader := &scriptLoader{bots: map[string]func() sandbox.BotInstance{
		"Fine": alwaysColumn(0),
		"Crasher": func() sandbox.BotInstance {
			return &funcBot{move: func(*game.State) (int, error) {
				return 0, errors.New("boom")
			}}
		},
	}}

	result := PlayGame(context.Background(), testExecutor(loader),
		protocol.Code{ClsName: "Fine"}, protocol.Code{ClsName: "Crasher"})

	if result.Fault == nil {
		t.Fatal("expected a fault")
	}
	if result.Fault.Kind != sandbox.FaultRaises {
		t.Errorf("fault kind = %s, want RAISES", result.Fault.Kind)
	}
	if result.Fault.Side != game.Red {
		t.Errorf("fault side = %s, want RED", result.Fault.Side)
	}
	// Blue moved once, so two snapshots were taken before red crashed.
	if len(result.States) != 2 {
		t.Errorf("recorded %d states, want 2", len(result.States))
	}
}

func TestPlayGameIllegalMoveEndsGame(t *testing.T) {
	loader := &scriptLoader{bots: map[string]func() sandbox.BotInstance{
		"Stubborn": alwaysColumn(0),
	}}

	result := PlayGame(context.Background(), testExecutor(loader),
		protocol.Code{ClsName: "Stubborn"}, protocol.Code{ClsName: "Stubborn"})

	if result.Fault == nil {
		t.Fatal("expected a fault")
	}
	if result.Fault.Kind != sandbox.FaultMoveBreaksRule {
		t.Errorf("fault kind = %s, want MOVE_BREAKS_RULES", result.Fault.Kind)
	}
	// Column 0 fills after 7 alternating drops; the 8th mover is red.
	if result.Fault.Side != game.Red {
		t.Errorf("fault side = %s, want RED", result.Fault.Side)
	}
	if result.Fault.Move != 0 {
		t.Errorf("fault move = %v, want 0", result.Fault.Move)
	}
}

func TestPlayGameInitFault(t *testing.T) {
	loader := &scriptLoader{bots: map[string]func() sandbox.BotInstance{
		"Fine": alwaysColumn(0),
	}}

	result := PlayGame(context.Background(), testExecutor(loader),
		protocol.Code{ClsName: "Missing"}, protocol.Code{ClsName: "Fine"})

	if result.Fault == nil || result.Fault.Kind != sandbox.FaultInitFailed {
		t.Fatalf("fault = %+v, want INIT_FAILED", result.Fault)
	}
	if result.Fault.Side != game.Blue {
		t.Errorf("fault side = %s, want BLUE", result.Fault.Side)
	}
	if len(result.States) != 0 {
		t.Errorf("states recorded before init completed: %d", len(result.States))
	}
}

func TestPlayGameFullGameBetweenFirstFreeBots(t *testing.T) {
	loader := &scriptLoader{bots: map[string]func() sandbox.BotInstance{
		"FirstFree": firstFree,
	}}

	result := PlayGame(context.Background(), testExecutor(loader),
		protocol.Code{ClsName: "FirstFree"}, protocol.Code{ClsName: "FirstFree"})

	if result.Fault != nil {
		t.Fatalf("unexpected fault: %+v", result.Fault)
	}
	if len(result.Winners) == 0 {
		t.Fatal("game between deterministic bots must terminate with winners or a tie")
	}
}

func TestBuildLog(t *testing.T) {
	gameID := uuid.New()
	states := []*game.State{game.NewState(game.Blue)}

	win := BuildLog(gameID, &GameResult{States: states, Winners: []game.Side{game.Red}})
	if win.Winner == nil || *win.Winner != int(game.Red) {
		t.Errorf("winner = %v, want RED", win.Winner)
	}
	if win.Exception != nil {
		t.Errorf("winner log carries an exception")
	}
	if len(win.States) != 1 {
		t.Errorf("states = %d, want 1", len(win.States))
	}

	tie := BuildLog(gameID, &GameResult{States: states, Winners: []game.Side{game.Red, game.Blue}})
	if tie.Winner != nil || tie.Exception != nil {
		t.Errorf("tie log must carry neither winner nor exception")
	}

	fault := sandbox.RulesFault(game.Blue, 9, game.ErrOutOfBounds)
	crash := BuildLog(gameID, &GameResult{States: states, Fault: fault})
	if crash.Exception == nil {
		t.Fatal("fault log missing exception")
	}
	if crash.Winner != nil {
		t.Errorf("fault log carries a winner")
	}
	if crash.Exception.CausedBySide != int(game.Blue) {
		t.Errorf("caused_by_side = %d, want BLUE", crash.Exception.CausedBySide)
	}
}
