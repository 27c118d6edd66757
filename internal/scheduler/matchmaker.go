package scheduler

import (
	"fmt"
	"math/rand"

	"github.com/jmoiron/sqlx"

	"github.com/botbattle/backend/internal/models"
)

// Pair is one scheduled match. The under-played bot takes blue.
type Pair struct {
	Blue models.Bot
	Red  models.Bot
}

// UnderPlayedBots returns eligible bots (not suspended, with code) whose
// latest code version has played fewer than minGames games. A game
// counts toward a version when it was created after that version.
func UnderPlayedBots(db *sqlx.DB, minGames, limit int) ([]models.Bot, error) {
	var bots []models.Bot
	err := db.Select(&bots, `
		SELECT b.id, b.username, b.token, b.suspended, b.created_at
		FROM bots b
		JOIN LATERAL (
			SELECT created_at
			FROM code_versions
			WHERE bot_id = b.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) latest ON true
		WHERE NOT b.suspended
		  AND (
			SELECT COUNT(*)
			FROM participants p
			JOIN games g ON g.id = p.game_id
			WHERE p.bot_id = b.id AND g.created_at > latest.created_at
		  ) < $1
		ORDER BY b.id
		LIMIT $2
	`, minGames, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select under-played bots: %w", err)
	}
	return bots, nil
}

// OpponentBots returns eligible bots outside the exclusion set, most
// experienced first, so fill-in opponents are the established ones.
func OpponentBots(db *sqlx.DB, exclude []int, limit int) ([]models.Bot, error) {
	if limit <= 0 {
		return nil, nil
	}
	if len(exclude) == 0 {
		exclude = []int{-1}
	}

	query, args, err := sqlx.In(`
		SELECT b.id, b.username, b.token, b.suspended, b.created_at
		FROM bots b
		LEFT JOIN participants p ON p.bot_id = b.id
		WHERE NOT b.suspended
		  AND EXISTS (SELECT 1 FROM code_versions cv WHERE cv.bot_id = b.id)
		  AND b.id NOT IN (?)
		GROUP BY b.id
		ORDER BY COUNT(p.id) DESC, b.id
		LIMIT ?
	`, exclude, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to build opponent query: %w", err)
	}

	var bots []models.Bot
	if err := db.Select(&bots, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to select opponents: %w", err)
	}
	return bots, nil
}

// SelectPairs pairs every bot in toRun with minGames opponents sampled
// with replacement from toMatch, never with itself, capped at maxGames
// pairs overall.
func SelectPairs(toRun, toMatch []models.Bot, minGames, maxGames int, rng *rand.Rand) []Pair {
	toRun = shuffled(toRun, rng)
	toMatch = shuffled(toMatch, rng)

	var pairs []Pair
	for _, bot := range toRun {
		candidates := withoutBot(toMatch, bot.ID)
		if len(candidates) == 0 {
			continue
		}
		for i := 0; i < minGames; i++ {
			if len(pairs) >= maxGames {
				return pairs
			}
			opponent := candidates[rng.Intn(len(candidates))]
			pairs = append(pairs, Pair{Blue: bot, Red: opponent})
		}
	}
	return pairs
}

// SchedulePairs runs the full selection against the database.
func SchedulePairs(db *sqlx.DB, minGames, maxBots, maxGames int, rng *rand.Rand) ([]Pair, error) {
	toRun, err := UnderPlayedBots(db, minGames, maxBots)
	if err != nil {
		return nil, err
	}

	// New bots play each other first.
	toMatch := make([]models.Bot, len(toRun))
	copy(toMatch, toRun)

	if len(toMatch) < minGames {
		ids := make([]int, 0, len(toMatch))
		for _, bot := range toMatch {
			ids = append(ids, bot.ID)
		}
		extra, err := OpponentBots(db, ids, minGames-len(toMatch))
		if err != nil {
			return nil, err
		}
		toMatch = append(toMatch, extra...)
	}

	pairs := SelectPairs(toRun, toMatch, minGames, maxGames, rng)
	for _, pair := range pairs {
		if pair.Blue.ID == pair.Red.ID {
			return nil, fmt.Errorf("matchmaker paired bot %d with itself", pair.Blue.ID)
		}
	}
	return pairs, nil
}

func shuffled(bots []models.Bot, rng *rand.Rand) []models.Bot {
	out := make([]models.Bot, len(bots))
	copy(out, bots)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

func withoutBot(bots []models.Bot, id int) []models.Bot {
	out := make([]models.Bot, 0, len(bots))
	for _, bot := range bots {
		if bot.ID != id {
			out = append(out, bot)
		}
	}
	return out
}
