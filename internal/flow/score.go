package flow

import (
	"math"
	"strings"

	"github.com/friendmatch/FriendQuiz/internal/models"
)

// Score compares an owner's stored answers against a guesser's answers.
// A key counts as a match only when both values are non-empty after trimming
// and equal case-insensitively. Percent is computed against total with
// standard rounding; a zero total yields zero percent.
func Score(total int, ownerAnswers, guesses map[string]string) models.ScoreResult {
	matches := 0
	for key, owner := range ownerAnswers {
		real := strings.ToLower(strings.TrimSpace(owner))
		guessed := strings.ToLower(strings.TrimSpace(guesses[key]))
		if real != "" && guessed != "" && real == guessed {
			matches++
		}
	}

	percent := 0
	if total > 0 {
		percent = int(math.Round(float64(matches) / float64(total) * 100))
	}
	return models.ScoreResult{Matches: matches, Total: total, Percent: percent}
}

// FunComment maps a match percentage to one of five fixed commentary tiers,
// highest threshold first.
func FunComment(percent int) string {
	switch {
	case percent >= 90:
		return commentTier90
	case percent >= 70:
		return commentTier70
	case percent >= 50:
		return commentTier50
	case percent >= 30:
		return commentTier30
	default:
		return commentTierDefault
	}
}
