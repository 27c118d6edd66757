package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/botbattle/backend/internal/protocol"
)

// Callback retry policy: initial 3s, multiplier 1.5, jitter of up to
// +/-1s, retried indefinitely while the dispatcher is unreachable.
const (
	defaultInitialDelay = 3 * time.Second
	defaultMultiplier   = 1.5
	defaultJitter       = time.Second
	callbackTimeout     = 10 * time.Second
)

type postJob struct {
	callback string
	log      protocol.GameLog
}

// Poster owns the runner's result queue: a single FIFO drained by one
// consumer, so retries on one log never reorder or parallelize outbound
// callbacks.
type Poster struct {
	queue  chan postJob
	client *http.Client

	// Retry tuning; exposed for tests.
	InitialDelay time.Duration
	Multiplier   float64
	Jitter       time.Duration
}

func NewPoster() *Poster {
	return &Poster{
		queue:        make(chan postJob, 256),
		client:       &http.Client{Timeout: callbackTimeout},
		InitialDelay: defaultInitialDelay,
		Multiplier:   defaultMultiplier,
		Jitter:       defaultJitter,
	}
}

// Start launches the single consumer. It returns immediately.
func (p *Poster) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-p.queue:
				p.deliver(ctx, job)
			}
		}
	}()
}

// Enqueue appends a result to the FIFO.
func (p *Poster) Enqueue(callback string, gameLog protocol.GameLog) {
	p.queue <- postJob{callback: callback, log: gameLog}
}

// deliver posts one log, retrying with backoff until an HTTP response
// arrives. Any response counts as delivered; the dispatcher owns
// idempotence on game_id.
func (p *Poster) deliver(ctx context.Context, job postJob) {
	body, err := json.Marshal(job.log)
	if err != nil {
		log.Printf("[RUNNER] Failed to encode log for game %s: %v", job.log.GameID, err)
		return
	}

	delay := p.InitialDelay
	for attempt := 1; ; attempt++ {
		resp, err := p.client.Post(job.callback, "application/json", bytes.NewReader(body))
		if err == nil {
			resp.Body.Close()
			log.Printf("[RUNNER] Posted result for game %s (attempt %d, status %d)",
				job.log.GameID, attempt, resp.StatusCode)
			return
		}

		wait := delay + jitterDuration(p.Jitter)
		if wait < 0 {
			wait = 0
		}
		log.Printf("[RUNNER] Callback to %s failed (attempt %d): %v; retrying in %v",
			job.callback, attempt, err, wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		delay = time.Duration(float64(delay) * p.Multiplier)
	}
}

func jitterDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(2*max))) - max
}
