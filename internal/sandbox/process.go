package sandbox

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/botbattle/backend/internal/game"
	"github.com/botbattle/backend/internal/protocol"
)

// ProcessLoader runs each bot in its own child process: the submitted
// source is written to a scratch directory and handed to the configured
// runtime command, which must speak newline-delimited JSON on
// stdin/stdout. Killing the child is the only reliable deadline
// enforcement against uncooperative code.
//
// Child protocol:
//
//	startup   -> {"ready": true}            or {"error": "..."}
//	request   <- {"state": <wire state>}
//	response  -> {"move": 3}                or {"error": "traceback..."}
type ProcessLoader struct {
	// Cmd is the runtime invocation, e.g. ["python3", "-u", "harness.py"].
	// The source path, class name and side are appended as arguments.
	Cmd []string
	// Dir is the scratch root for bot workspaces; os.TempDir if empty.
	Dir string
}

func (l *ProcessLoader) Load(ctx context.Context, code protocol.Code, side game.Side) (BotInstance, error) {
	if len(l.Cmd) == 0 {
		return nil, fmt.Errorf("bot runtime command not configured")
	}

	dir := l.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	workspace := filepath.Join(dir, "bot-"+uuid.NewString()[:8])
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bot workspace: %w", err)
	}

	srcPath := filepath.Join(workspace, "source")
	if err := os.WriteFile(srcPath, []byte(code.Source), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write bot source: %w", err)
	}

	procCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	args := append(append([]string(nil), l.Cmd[1:]...),
		srcPath, code.ClsName, strconv.Itoa(int(side)))
	cmd := exec.CommandContext(procCtx, l.Cmd[0], args...)
	cmd.Dir = workspace

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	bot := &processBot{
		cmd:       cmd,
		cancel:    cancel,
		stdin:     stdin,
		replies:   bufio.NewScanner(stdout),
		workspace: workspace,
		exited:    make(chan struct{}),
	}
	bot.replies.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if err := cmd.Start(); err != nil {
		cancel()
		os.RemoveAll(workspace)
		return nil, fmt.Errorf("failed to start bot runtime: %w", err)
	}
	go bot.drainStderr(stderr)
	go func() {
		cmd.Wait()
		close(bot.exited)
	}()

	if err := bot.awaitReady(ctx); err != nil {
		bot.Close()
		return nil, err
	}
	return bot, nil
}

type processBot struct {
	cmd       *exec.Cmd
	cancel    context.CancelFunc
	stdin     io.WriteCloser
	replies   *bufio.Scanner
	workspace string

	mu        sync.Mutex
	stderrBuf []string
	exited    chan struct{}
	closeOnce sync.Once
}

type childMessage struct {
	Ready bool            `json:"ready"`
	Move  json.RawMessage `json:"move"`
	Error *string         `json:"error"`
}

type moveRequest struct {
	State protocol.State `json:"state"`
}

func (b *processBot) awaitReady(ctx context.Context) error {
	type readyResult struct {
		msg childMessage
		err error
	}
	results := make(chan readyResult, 1)
	go func() {
		msg, err := b.readMessage()
		results <- readyResult{msg, err}
	}()

	select {
	case res := <-results:
		if res.err != nil {
			return fmt.Errorf("bot runtime handshake failed: %w%s", res.err, b.stderrTail())
		}
		if res.msg.Error != nil {
			return fmt.Errorf("bot constructor raised: %s", *res.msg.Error)
		}
		if !res.msg.Ready {
			return fmt.Errorf("bot runtime sent unexpected handshake")
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *processBot) MakeMove(ctx context.Context, state *game.State) (int, error) {
	type moveReply struct {
		move int
		err  error
	}
	results := make(chan moveReply, 1)
	go func() {
		move, err := b.exchange(state)
		results <- moveReply{move, err}
	}()

	select {
	case res := <-results:
		return res.move, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (b *processBot) exchange(state *game.State) (int, error) {
	req, err := json.Marshal(moveRequest{State: protocol.EncodeState(state)})
	if err != nil {
		return 0, err
	}
	if _, err := b.stdin.Write(append(req, '\n')); err != nil {
		return 0, fmt.Errorf("bot process not accepting input: %w%s", err, b.stderrTail())
	}

	msg, err := b.readMessage()
	if err != nil {
		return 0, fmt.Errorf("bot process produced no move: %w%s", err, b.stderrTail())
	}
	if msg.Error != nil {
		return 0, fmt.Errorf("%s", *msg.Error)
	}

	var move int
	if err := json.Unmarshal(msg.Move, &move); err != nil {
		// Not an integer; surface the raw value for attribution.
		var raw any
		json.Unmarshal(msg.Move, &raw)
		return 0, &InvalidMoveError{Value: raw}
	}
	return move, nil
}

func (b *processBot) readMessage() (childMessage, error) {
	for b.replies.Scan() {
		line := strings.TrimSpace(b.replies.Text())
		if line == "" {
			continue
		}
		var msg childMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return childMessage{}, fmt.Errorf("unparseable bot output %q", line)
		}
		return msg, nil
	}
	if err := b.replies.Err(); err != nil {
		return childMessage{}, err
	}
	return childMessage{}, fmt.Errorf("bot process closed its output")
}

func (b *processBot) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		b.mu.Lock()
		b.stderrBuf = append(b.stderrBuf, scanner.Text())
		if len(b.stderrBuf) > 40 {
			b.stderrBuf = b.stderrBuf[len(b.stderrBuf)-40:]
		}
		b.mu.Unlock()
	}
}

func (b *processBot) stderrTail() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.stderrBuf) == 0 {
		return ""
	}
	return "\n" + strings.Join(b.stderrBuf, "\n")
}

// Close kills the child and removes its workspace.
func (b *processBot) Close() error {
	b.closeOnce.Do(func() {
		b.cancel()
		<-b.exited
		os.RemoveAll(b.workspace)
	})
	return nil
}
