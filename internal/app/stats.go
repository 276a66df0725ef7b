package app

// Stats are the process-local counters. Shot counters cover the human's
// shots in the current game; games counters are lifetime totals.
type Stats struct {
	TotalShots      int     `json:"total_shots"`
	Hits            int     `json:"hits"`
	Misses          int     `json:"misses"`
	GamesPlayed     int     `json:"games_played"`
	GamesWon        int     `json:"games_won"`
	AIShots         int     `json:"ai_shots"`
	AIHits          int     `json:"ai_hits"`
	Accuracy        float64 `json:"accuracy"`
	DurationSeconds int     `json:"current_game_duration"`
}

// Totals seed the lifetime counters for a returning player.
type Totals struct {
	GamesPlayed int
	GamesWon    int
}

// accuracy is a percentage, 0 with no shots.
func accuracy(hits, shots int) float64 {
	if shots == 0 {
		return 0
	}
	return float64(hits) * 100 / float64(shots)
}
