package runner

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/botbattle/backend/internal/protocol"
	"github.com/botbattle/backend/internal/sandbox"
)

// Service accepts RunGameTasks, plays them and posts logs back through
// the poster queue.
type Service struct {
	executor *sandbox.Executor
	poster   *Poster
}

func NewService(executor *sandbox.Executor, poster *Poster) *Service {
	return &Service{executor: executor, poster: poster}
}

// SetupRoutes registers the runner's single endpoint.
func (s *Service) SetupRoutes(router *gin.Engine) {
	router.POST("/", s.AcceptTask)
}

// AcceptTask acknowledges a task immediately and plays it in the
// background. The result reaches the dispatcher via the callback, never
// via this response.
func (s *Service) AcceptTask(c *gin.Context) {
	var task protocol.RunGameTask
	if err := c.ShouldBindJSON(&task); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run game task"})
		return
	}

	log.Printf("[RUNNER] Accepted game %s: %s vs %s",
		task.GameID, task.BlueCode.ClsName, task.RedCode.ClsName)
	go s.runGame(task)

	c.Status(http.StatusAccepted)
}

func (s *Service) runGame(task protocol.RunGameTask) {
	result := PlayGame(context.Background(), s.executor, task.BlueCode, task.RedCode)

	if result.Fault != nil {
		log.Printf("[RUNNER] Game %s ended with fault %s (side=%s)",
			task.GameID, result.Fault.Kind, result.Fault.Side)
	} else {
		log.Printf("[RUNNER] Game %s finished after %d states (winners=%v)",
			task.GameID, len(result.States), result.Winners)
	}

	s.poster.Enqueue(task.Callback, BuildLog(task.GameID, result))
}
