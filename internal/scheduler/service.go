package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/botbattle/backend/internal/config"
	"github.com/botbattle/backend/internal/game"
	"github.com/botbattle/backend/internal/models"
	"github.com/botbattle/backend/internal/protocol"
	"github.com/botbattle/backend/internal/throttle"
)

// Service runs scheduling passes on demand. A pass pairs under-played
// bots, records the games and submits them to the runner.
type Service struct {
	db     *sqlx.DB
	cfg    *config.Config
	client *http.Client

	// done collapses a burst of triggers into at most one extra pass:
	// a trigger clears it, the next pass entry claims it.
	done atomic.Bool
}

func NewService(db *sqlx.DB, cfg *config.Config) *Service {
	s := &Service{
		db:     db,
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	s.done.Store(true)
	return s
}

// SetupRoutes registers the scheduler's endpoints.
func (s *Service) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.POST("/", s.Trigger)
}

// Trigger requests a scheduling pass and returns immediately.
func (s *Service) Trigger(c *gin.Context) {
	s.done.Store(false)
	go s.Schedule(context.Background())
	c.Status(http.StatusAccepted)
}

// Schedule runs one pass unless another invocation already claimed the
// pending trigger.
func (s *Service) Schedule(ctx context.Context) {
	if !s.done.CompareAndSwap(false, true) {
		return
	}

	log.Printf("[SCHEDULER] Starting schedule pass")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	pairs, err := SchedulePairs(s.db, s.cfg.MinGamesPerVersion, s.cfg.MaxBotsToSchedule, s.cfg.MaxGamesToSchedule, rng)
	if err != nil {
		log.Printf("[SCHEDULER] Matchmaking failed: %v", err)
		return
	}

	log.Printf("[SCHEDULER] Matched %d game(s)", len(pairs))

	bucket := throttle.NewLeakyBucket(s.cfg.BucketSize, s.cfg.RequestsPerMinute)

	started := 0
	for _, pair := range pairs {
		// Belt and braces; SchedulePairs already rejects self-matches.
		if pair.Blue.ID == pair.Red.ID {
			continue
		}

		if err := bucket.Throttle(ctx); err != nil {
			log.Printf("[SCHEDULER] Pass aborted: %v", err)
			return
		}

		gameID, err := s.saveNewGame(pair)
		if err != nil {
			log.Printf("[SCHEDULER] Failed to record game %s vs %s: %v", pair.Blue.Username, pair.Red.Username, err)
			continue
		}

		task, err := s.prepRunGameTask(pair, gameID)
		if err != nil {
			log.Printf("[SCHEDULER] Failed to prepare game %s: %v", gameID, err)
			continue
		}

		// A single unreachable runner must not abort the pass.
		if err := s.submit(task); err != nil {
			log.Printf("[SCHEDULER] Failed to submit to runner at %s: %v", s.cfg.RunnerURL, err)
			continue
		}

		started++
	}

	log.Printf("[SCHEDULER] Pass complete: %d game(s) started", started)
}

// saveNewGame records the game and its two participants before dispatch.
func (s *Service) saveNewGame(pair Pair) (uuid.UUID, error) {
	gameID := uuid.New()

	tx, err := s.db.Beginx()
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO games (id) VALUES ($1)`, gameID); err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert game: %w", err)
	}

	for _, p := range []struct {
		bot  models.Bot
		side game.Side
	}{
		{pair.Blue, game.Blue},
		{pair.Red, game.Red},
	} {
		_, err := tx.Exec(`
			INSERT INTO participants (game_id, bot_id, side)
			VALUES ($1, $2, $3)
		`, gameID, p.bot.ID, int(p.side))
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit game: %w", err)
	}
	return gameID, nil
}

func (s *Service) prepRunGameTask(pair Pair, gameID uuid.UUID) (*protocol.RunGameTask, error) {
	blueCode, err := models.LoadLatestCode(s.db, pair.Blue.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load code for bot %d: %w", pair.Blue.ID, err)
	}
	redCode, err := models.LoadLatestCode(s.db, pair.Red.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load code for bot %d: %w", pair.Red.ID, err)
	}

	return &protocol.RunGameTask{
		GameID:   gameID,
		Callback: s.cfg.Callback(),
		BlueCode: blueCode,
		RedCode:  redCode,
	}, nil
}

func (s *Service) submit(task *protocol.RunGameTask) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}

	resp, err := s.client.Post(s.cfg.RunnerURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("runner returned %d", resp.StatusCode)
	}
	return nil
}
