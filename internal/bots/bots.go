// Package bots provides builtin in-process bot implementations. They are
// used to seed fresh installations with opponents and to exercise the
// engine in tests without a bot runtime.
package bots

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/botbattle/backend/internal/game"
	"github.com/botbattle/backend/internal/protocol"
	"github.com/botbattle/backend/internal/sandbox"
)

// RandomBot plays a uniformly random non-full column.
type RandomBot struct {
	side game.Side
	rng  *rand.Rand
}

func NewRandomBot(side game.Side) *RandomBot {
	return &RandomBot{side: side, rng: rand.New(rand.NewSource(rand.Int63()))}
}

func (b *RandomBot) MakeMove(ctx context.Context, state *game.State) (int, error) {
	var open []int
	for col := 0; col < state.LenX(); col++ {
		if !state.ColumnFull(col) {
			open = append(open, col)
		}
	}
	if len(open) == 0 {
		return 0, fmt.Errorf("no open columns")
	}
	return open[b.rng.Intn(len(open))], nil
}

func (b *RandomBot) Close() error { return nil }

// FirstFreeBot always plays the lowest-index non-full column.
type FirstFreeBot struct {
	side game.Side
}

func NewFirstFreeBot(side game.Side) *FirstFreeBot {
	return &FirstFreeBot{side: side}
}

func (b *FirstFreeBot) MakeMove(ctx context.Context, state *game.State) (int, error) {
	for col := 0; col < state.LenX(); col++ {
		if !state.ColumnFull(col) {
			return col, nil
		}
	}
	return 0, fmt.Errorf("no open columns")
}

func (b *FirstFreeBot) Close() error { return nil }

// LocalLoader constructs bots from a registry of in-process constructors,
// keyed by class name. The submitted source text is ignored.
type LocalLoader struct {
	Registry map[string]func(side game.Side) sandbox.BotInstance
}

// NewLocalLoader returns a loader pre-populated with the builtin bots.
func NewLocalLoader() *LocalLoader {
	return &LocalLoader{Registry: map[string]func(side game.Side) sandbox.BotInstance{
		"RandomBot":    func(s game.Side) sandbox.BotInstance { return NewRandomBot(s) },
		"FirstFreeBot": func(s game.Side) sandbox.BotInstance { return NewFirstFreeBot(s) },
	}}
}

func (l *LocalLoader) Load(ctx context.Context, code protocol.Code, side game.Side) (sandbox.BotInstance, error) {
	ctor, ok := l.Registry[code.ClsName]
	if !ok {
		return nil, fmt.Errorf("unknown bot class %q", code.ClsName)
	}
	return ctor(side), nil
}
