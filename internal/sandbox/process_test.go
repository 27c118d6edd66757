package sandbox

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botbattle/backend/internal/game"
	"github.com/botbattle/backend/internal/protocol"
)

// shLoader builds a ProcessLoader whose "runtime" is an inline shell
// script speaking the child protocol.
func shLoader(t *testing.T, script string) *ProcessLoader {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	return &ProcessLoader{Cmd: []string{"sh", "-c", script, "bot"}, Dir: t.TempDir()}
}

func TestProcessBotPlaysMoves(t *testing.T) {
	loader := shLoader(t, `
		echo '{"ready":true}'
		while read line; do echo '{"move":3}'; done
	`)

	bot, err := loader.Load(context.Background(), protocol.Code{Source: "src", ClsName: "Bot"}, game.Blue)
	require.NoError(t, err)
	defer bot.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	move, err := bot.MakeMove(ctx, game.NewState(game.Blue))
	require.NoError(t, err)
	assert.Equal(t, 3, move)

	// The bot keeps answering across turns.
	move, err = bot.MakeMove(ctx, game.NewState(game.Red))
	require.NoError(t, err)
	assert.Equal(t, 3, move)
}

func TestProcessBotErrorReply(t *testing.T) {
	loader := shLoader(t, `
		echo '{"ready":true}'
		while read line; do echo '{"error":"ZeroDivisionError: division by zero"}'; done
	`)

	bot, err := loader.Load(context.Background(), protocol.Code{Source: "src", ClsName: "Bot"}, game.Red)
	require.NoError(t, err)
	defer bot.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = bot.MakeMove(ctx, game.NewState(game.Red))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZeroDivisionError")

	var invalid *InvalidMoveError
	assert.False(t, errors.As(err, &invalid), "a raised error is not an invalid move")
}

func TestProcessBotNonIntegerMove(t *testing.T) {
	loader := shLoader(t, `
		echo '{"ready":true}'
		while read line; do echo '{"move":"left"}'; done
	`)

	bot, err := loader.Load(context.Background(), protocol.Code{Source: "src", ClsName: "Bot"}, game.Blue)
	require.NoError(t, err)
	defer bot.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = bot.MakeMove(ctx, game.NewState(game.Blue))

	var invalid *InvalidMoveError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "left", invalid.Value)
}

func TestProcessLoaderConstructorFailure(t *testing.T) {
	loader := shLoader(t, `echo '{"error":"SyntaxError: invalid syntax"}'`)

	_, err := loader.Load(context.Background(), protocol.Code{Source: "src", ClsName: "Bot"}, game.Blue)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SyntaxError")
}

func TestProcessBotCloseRemovesWorkspace(t *testing.T) {
	dir := t.TempDir()
	loader := shLoader(t, `
		echo '{"ready":true}'
		while read line; do echo '{"move":0}'; done
	`)
	loader.Dir = dir

	bot, err := loader.Load(context.Background(), protocol.Code{Source: "src", ClsName: "Bot"}, game.Blue)
	require.NoError(t, err)
	require.NoError(t, bot.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "workspace should be cleaned up")
}
