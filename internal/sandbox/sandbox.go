// Package sandbox isolates untrusted bot code behind hard per-call
// deadlines and maps every way a bot can misbehave to an attributed
// fault. Bots run out-of-process by default (see ProcessLoader); tests
// and builtins may supply in-process instances.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/botbattle/backend/internal/game"
	"github.com/botbattle/backend/internal/protocol"
)

// Default deadlines, overridable through config.
const (
	DefaultInitTimeout = 200 * time.Millisecond
	DefaultMoveTimeout = 100 * time.Millisecond
)

// BotInstance is one loaded bot bound to a side. MakeMove must honor ctx
// cancellation promptly for cooperative implementations; uncooperative
// ones are abandoned (and killed, for process bots) by the Executor.
type BotInstance interface {
	MakeMove(ctx context.Context, state *game.State) (int, error)
	Close() error
}

// Loader prepares a BotInstance from submitted code.
type Loader interface {
	Load(ctx context.Context, code protocol.Code, side game.Side) (BotInstance, error)
}

// FaultKind enumerates the bot failure taxonomy.
type FaultKind string

const (
	FaultHangs          FaultKind = "HANGS"
	FaultRaises         FaultKind = "RAISES"
	FaultInvalidMove    FaultKind = "INVALID_MOVE"
	FaultMoveBreaksRule FaultKind = "MOVE_BREAKS_RULES"
	FaultInitFailed     FaultKind = "INIT_FAILED"
	FaultInitTimedOut   FaultKind = "INIT_TIMED_OUT"
)

// Fault is a classified bot failure attributed to one side. Move carries
// the offending move value for INVALID_MOVE and MOVE_BREAKS_RULES, nil
// otherwise.
type Fault struct {
	Kind FaultKind
	Msg  string
	Side game.Side
	Move any
}

func (f *Fault) Error() string { return f.Msg }

// ExceptionInfo converts the fault to its wire form.
func (f *Fault) ExceptionInfo() *protocol.ExceptionInfo {
	return &protocol.ExceptionInfo{
		Msg:          f.Msg,
		CausedBySide: int(f.Side),
		Move:         f.Move,
	}
}

func newFault(kind FaultKind, side game.Side, move any, format string, args ...any) *Fault {
	return &Fault{
		Kind: kind,
		Msg:  fmt.Sprintf("%s: %s", kind, fmt.Sprintf(format, args...)),
		Side: side,
		Move: move,
	}
}

// RulesFault classifies a move the rules engine rejected.
func RulesFault(side game.Side, move int, err error) *Fault {
	return newFault(FaultMoveBreaksRule, side, move, "move %d rejected: %v", move, err)
}

// InvalidMoveError is returned by bot adapters when the bot produced
// something that is not a usable column index.
type InvalidMoveError struct {
	Value any
}

func (e *InvalidMoveError) Error() string {
	return fmt.Sprintf("move is not an integer column index: %v", e.Value)
}

// Executor enforces deadlines around one bot call at a time.
type Executor struct {
	loader      Loader
	initTimeout time.Duration
	moveTimeout time.Duration
}

// NewExecutor builds an executor over loader. Zero timeouts select the
// defaults.
func NewExecutor(loader Loader, initTimeout, moveTimeout time.Duration) *Executor {
	if initTimeout <= 0 {
		initTimeout = DefaultInitTimeout
	}
	if moveTimeout <= 0 {
		moveTimeout = DefaultMoveTimeout
	}
	return &Executor{loader: loader, initTimeout: initTimeout, moveTimeout: moveTimeout}
}

type loadResult struct {
	bot BotInstance
	err error
}

// Init loads and constructs a bot for side under the init deadline.
func (e *Executor) Init(ctx context.Context, code protocol.Code, side game.Side) (BotInstance, *Fault) {
	initCtx, cancel := context.WithTimeout(ctx, e.initTimeout)
	defer cancel()

	results := make(chan loadResult, 1)
	go func() {
		bot, err := e.loader.Load(initCtx, code, side)
		results <- loadResult{bot, err}
	}()

	select {
	case res := <-results:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return nil, newFault(FaultInitTimedOut, side, nil,
					"bot %s not ready within %v", code.ClsName, e.initTimeout)
			}
			return nil, newFault(FaultInitFailed, side, nil,
				"bot %s failed to initialize: %v", code.ClsName, res.err)
		}
		return res.bot, nil
	case <-initCtx.Done():
		// Straggler: discard whatever the load produces later.
		go func() {
			if res := <-results; res.bot != nil {
				res.bot.Close()
			}
		}()
		return nil, newFault(FaultInitTimedOut, side, nil,
			"bot %s not ready within %v", code.ClsName, e.initTimeout)
	}
}

type moveResult struct {
	move int
	err  error
}

// InvokeMove requests one move under the move deadline and validates the
// returned column index against the board width. A bot that overruns the
// deadline is abandoned, not awaited.
func (e *Executor) InvokeMove(ctx context.Context, bot BotInstance, side game.Side, state *game.State) (int, *Fault) {
	moveCtx, cancel := context.WithTimeout(ctx, e.moveTimeout)
	defer cancel()

	results := make(chan moveResult, 1)
	go func() {
		move, err := bot.MakeMove(moveCtx, state.Clone())
		results <- moveResult{move, err}
	}()

	select {
	case res := <-results:
		return e.classifyMove(res, side, state)
	case <-moveCtx.Done():
		// Whatever the straggler eventually returns is discarded.
		go bot.Close()
		return 0, newFault(FaultHangs, side, nil,
			"no move within %v", e.moveTimeout)
	}
}

func (e *Executor) classifyMove(res moveResult, side game.Side, state *game.State) (int, *Fault) {
	if res.err != nil {
		var invalid *InvalidMoveError
		switch {
		case errors.As(res.err, &invalid):
			return 0, newFault(FaultInvalidMove, side, invalid.Value, "%v", invalid)
		case errors.Is(res.err, context.DeadlineExceeded):
			// Deadline raced the result channel; still a hang.
			return 0, newFault(FaultHangs, side, nil, "no move within %v", e.moveTimeout)
		default:
			return 0, newFault(FaultRaises, side, nil, "bot raised: %v", res.err)
		}
	}
	if res.move < 0 || res.move >= state.LenX() {
		return 0, newFault(FaultInvalidMove, side, res.move,
			"column %d outside [0, %d)", res.move, state.LenX())
	}
	return res.move, nil
}

// MoveTimeout exposes the configured per-move deadline.
func (e *Executor) MoveTimeout() time.Duration { return e.moveTimeout }
