package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// PlayerStatistics summarises a player's history.
type PlayerStatistics struct {
	GamesPlayed  int     `json:"games_played"`
	GamesWon     int     `json:"games_won"`
	TotalShots   int     `json:"total_shots"`
	TotalHits    int     `json:"total_hits"`
	Accuracy     float64 `json:"accuracy"`
	BestGame     int     `json:"best_game"`  // fewest moves, 0 with no games
	WorstGame    int     `json:"worst_game"` // most moves
	AvgDuration  float64 `json:"avg_duration"`
	QuickWins    int     `json:"quick_wins"`
	WinRate      float64 `json:"win_rate"`
	AccuracyRate float64 `json:"accuracy_rate"` // mean of per-game accuracy
}

// LeaderboardEntry is one ranked player.
type LeaderboardEntry struct {
	Name          string  `json:"name"`
	GamesPlayed   int     `json:"games_played"`
	GamesWon      int     `json:"games_won"`
	WinRatio      float64 `json:"win_ratio"`
	Accuracy      float64 `json:"accuracy"`
	BestGame      int     `json:"best_game"`
	QuickWins     int     `json:"quick_wins"`
	QuickWinRatio float64 `json:"quick_win_ratio"`
}

// periods maps a leaderboard window to a SQLite datetime modifier.
var periods = map[string]string{
	"week":  "-7 days",
	"month": "-1 month",
	"year":  "-1 year",
}

func percent(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return float64(n) * 100 / float64(of)
}

// PlayerStatistics aggregates the players row with its game history.
func (s *Store) PlayerStatistics(playerID int64) (PlayerStatistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		st           PlayerStatistics
		best, worst  sql.NullInt64
		avgDur, mAcc sql.NullFloat64
	)
	err := s.conn.QueryRow(`
		SELECT
			p.games_played,
			p.games_won,
			p.total_shots,
			p.total_hits,
			p.accuracy,
			MIN(g.moves),
			MAX(g.moves),
			AVG(g.duration),
			COUNT(CASE WHEN g.result = 'win' AND g.moves <= ? THEN 1 END),
			AVG(g.accuracy)
		FROM players p
		LEFT JOIN game_history g ON p.id = g.player_id
		WHERE p.id = ?
		GROUP BY p.id`,
		quickWinMoves, playerID,
	).Scan(&st.GamesPlayed, &st.GamesWon, &st.TotalShots, &st.TotalHits, &st.Accuracy,
		&best, &worst, &avgDur, &st.QuickWins, &mAcc)
	if errors.Is(err, sql.ErrNoRows) {
		return st, fmt.Errorf("%w: %d", ErrPlayerNotFound, playerID)
	}
	if err != nil {
		return st, err
	}

	st.BestGame = int(best.Int64)
	st.WorstGame = int(worst.Int64)
	st.AvgDuration = avgDur.Float64
	st.AccuracyRate = mAcc.Float64
	st.WinRate = percent(st.GamesWon, st.GamesPlayed)
	return st, nil
}

// Leaderboard ranks players by win ratio, then accuracy, over period
// ("all", "week", "month" or "year"). Players without games in the window
// are left out.
func (s *Store) Leaderboard(limit int, period string) ([]LeaderboardEntry, error) {
	filter := ""
	args := []any{quickWinMoves}
	if mod, ok := periods[period]; ok {
		filter = "AND g.played_at >= datetime('now', ?)"
		args = append(args, mod)
	} else if period != "" && period != "all" {
		return nil, fmt.Errorf("unknown period %q", period)
	}
	args = append(args, limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(`
		SELECT
			p.name,
			COUNT(g.id) AS games_played,
			SUM(CASE WHEN g.result = 'win' THEN 1 ELSE 0 END) AS games_won,
			COALESCE(AVG(g.accuracy), 0) AS accuracy,
			COALESCE(MIN(g.moves), 0) AS best_game,
			COUNT(CASE WHEN g.result = 'win' AND g.moves <= ? THEN 1 END) AS quick_wins
		FROM players p
		JOIN game_history g ON p.id = g.player_id
		WHERE 1=1 `+filter+`
		GROUP BY p.id, p.name
		HAVING games_played > 0
		ORDER BY CAST(games_won AS REAL) / games_played DESC, accuracy DESC, p.name
		LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var board []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Name, &e.GamesPlayed, &e.GamesWon, &e.Accuracy, &e.BestGame, &e.QuickWins); err != nil {
			return nil, err
		}
		e.WinRatio = percent(e.GamesWon, e.GamesPlayed)
		e.QuickWinRatio = percent(e.QuickWins, e.GamesWon)
		board = append(board, e)
	}
	return board, rows.Err()
}
