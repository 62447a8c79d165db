package app

// RewardDecision is the outcome of the XP gate for a finished attempt.
type RewardDecision struct {
	XpEarned        int
	FirstCompletion bool
	Perfect         bool
}

// decideReward gates XP on a perfect score achieved on the user's first
// completion of the quiz. previousCompletions counts the user's other
// finished attempts at the quiz, excluding the one being finalized, so a
// replay of an already-completed quiz never re-issues XP.
func decideReward(rewardXp, correct, total, previousCompletions int) RewardDecision {
	d := RewardDecision{
		FirstCompletion: previousCompletions == 0,
		Perfect:         PerfectScore(correct, total),
	}
	if d.Perfect && d.FirstCompletion {
		d.XpEarned = rewardXp
	}
	return d
}
