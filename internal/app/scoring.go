package app

import "planet-quiz-service/internal/domain"

// Score normalizes the number of correct answers to a 0-10 scale.
func Score(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(correct) / float64(total) * 10
}

// PerfectScore reports whether every question was answered correctly.
// An attempt with no questions never counts as perfect.
func PerfectScore(correct, total int) bool {
	return total > 0 && correct == total
}

func countCorrect(details []domain.AttemptDetail) int {
	n := 0
	for _, d := range details {
		if d.IsCorrect {
			n++
		}
	}
	return n
}
