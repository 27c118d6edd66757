package sandbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botbattle/backend/internal/game"
	"github.com/botbattle/backend/internal/protocol"
)

type fakeBot struct {
	move func(ctx context.Context, state *game.State) (int, error)
}

func (b *fakeBot) MakeMove(ctx context.Context, state *game.State) (int, error) {
	return b.move(ctx, state)
}

func (b *fakeBot) Close() error { return nil }

type fakeLoader struct {
	load func(ctx context.Context, code protocol.Code, side game.Side) (BotInstance, error)
}

func (l *fakeLoader) Load(ctx context.Context, code protocol.Code, side game.Side) (BotInstance, error) {
	return l.load(ctx, code, side)
}

func newTestExecutor(loader Loader) *Executor {
	return NewExecutor(loader, 50*time.Millisecond, 50*time.Millisecond)
}

func staticBot(move int) *fakeBot {
	return &fakeBot{move: func(context.Context, *game.State) (int, error) { return move, nil }}
}

func TestInitSuccess(t *testing.T) {
	ex := newTestExecutor(&fakeLoader{load: func(context.Context, protocol.Code, game.Side) (BotInstance, error) {
		return staticBot(0), nil
	}})

	bot, fault := ex.Init(context.Background(), protocol.Code{ClsName: "Ok"}, game.Blue)
	require.Nil(t, fault)
	require.NotNil(t, bot)
}

func TestInitFailure(t *testing.T) {
	ex := newTestExecutor(&fakeLoader{load: func(context.Context, protocol.Code, game.Side) (BotInstance, error) {
		return nil, errors.New("constructor exploded")
	}})

	_, fault := ex.Init(context.Background(), protocol.Code{ClsName: "Broken"}, game.Red)
	require.NotNil(t, fault)
	assert.Equal(t, FaultInitFailed, fault.Kind)
	assert.Equal(t, game.Red, fault.Side)
	assert.True(t, strings.HasPrefix(fault.Msg, "INIT_FAILED: "), "msg = %q", fault.Msg)
	assert.Nil(t, fault.Move)
}

func TestInitTimeout(t *testing.T) {
	ex := newTestExecutor(&fakeLoader{load: func(ctx context.Context, _ protocol.Code, _ game.Side) (BotInstance, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}})

	_, fault := ex.Init(context.Background(), protocol.Code{ClsName: "Sleepy"}, game.Blue)
	require.NotNil(t, fault)
	assert.Equal(t, FaultInitTimedOut, fault.Kind)
	assert.True(t, strings.HasPrefix(fault.Msg, "INIT_TIMED_OUT: "), "msg = %q", fault.Msg)
}

func TestInvokeMoveSuccess(t *testing.T) {
	ex := newTestExecutor(nil)
	move, fault := ex.InvokeMove(context.Background(), staticBot(4), game.Blue, game.NewState(game.Blue))
	require.Nil(t, fault)
	assert.Equal(t, 4, move)
}

func TestInvokeMoveReceivesSnapshot(t *testing.T) {
	state := game.NewState(game.Blue)
	bot := &fakeBot{move: func(_ context.Context, seen *game.State) (int, error) {
		// Scribbling on the handed-in state must not reach the caller.
		seen.Board[0][0] = game.CellOf(game.Red)
		return 0, nil
	}}

	ex := newTestExecutor(nil)
	_, fault := ex.InvokeMove(context.Background(), bot, game.Blue, state)
	require.Nil(t, fault)
	assert.Equal(t, game.CellEmpty, state.Board[0][0])
}

func TestInvokeMoveHang(t *testing.T) {
	bot := &fakeBot{move: func(ctx context.Context, _ *game.State) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}}

	ex := newTestExecutor(nil)
	_, fault := ex.InvokeMove(context.Background(), bot, game.Red, game.NewState(game.Red))
	require.NotNil(t, fault)
	assert.Equal(t, FaultHangs, fault.Kind)
	assert.Equal(t, game.Red, fault.Side)
	assert.True(t, strings.HasPrefix(fault.Msg, "HANGS: "), "msg = %q", fault.Msg)
}

func TestInvokeMoveRaises(t *testing.T) {
	bot := &fakeBot{move: func(context.Context, *game.State) (int, error) {
		return 0, errors.New("division by zero")
	}}

	ex := newTestExecutor(nil)
	_, fault := ex.InvokeMove(context.Background(), bot, game.Blue, game.NewState(game.Blue))
	require.NotNil(t, fault)
	assert.Equal(t, FaultRaises, fault.Kind)
	assert.Contains(t, fault.Msg, "division by zero")
	assert.Nil(t, fault.Move)
}

func TestInvokeMoveNotAnInteger(t *testing.T) {
	bot := &fakeBot{move: func(context.Context, *game.State) (int, error) {
		return 0, &InvalidMoveError{Value: "banana"}
	}}

	ex := newTestExecutor(nil)
	_, fault := ex.InvokeMove(context.Background(), bot, game.Blue, game.NewState(game.Blue))
	require.NotNil(t, fault)
	assert.Equal(t, FaultInvalidMove, fault.Kind)
	assert.Equal(t, "banana", fault.Move)
	assert.True(t, strings.HasPrefix(fault.Msg, "INVALID_MOVE: "), "msg = %q", fault.Msg)
}

func TestInvokeMoveOutOfRange(t *testing.T) {
	ex := newTestExecutor(nil)
	for _, col := range []int{-1, game.Width} {
		_, fault := ex.InvokeMove(context.Background(), staticBot(col), game.Red, game.NewState(game.Red))
		require.NotNil(t, fault, "col %d", col)
		assert.Equal(t, FaultInvalidMove, fault.Kind)
		assert.Equal(t, col, fault.Move)
	}
}

func TestRulesFault(t *testing.T) {
	fault := RulesFault(game.Blue, 3, game.ErrColumnFull)
	assert.Equal(t, FaultMoveBreaksRule, fault.Kind)
	assert.Equal(t, 3, fault.Move)
	assert.True(t, strings.HasPrefix(fault.Msg, "MOVE_BREAKS_RULES: "), "msg = %q", fault.Msg)

	info := fault.ExceptionInfo()
	assert.Equal(t, int(game.Blue), info.CausedBySide)
	assert.Equal(t, fault.Msg, info.Msg)
}
