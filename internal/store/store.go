package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"battleship/internal/codec"
)

var (
	ErrPlayerExists   = errors.New("player already exists")
	ErrPlayerNotFound = errors.New("player not found")
)

// quickWinMoves is the most shots a win may take to count as quick.
const quickWinMoves = 30

// Store wraps the SQLite connection with thread-safe operations
type Store struct {
	conn *sql.DB
	mu   sync.Mutex
}

// Player is one row of the players table.
type Player struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	GamesPlayed int        `json:"games_played"`
	GamesWon    int        `json:"games_won"`
	TotalShots  int        `json:"total_shots"`
	TotalHits   int        `json:"total_hits"`
	Accuracy    float64    `json:"accuracy"`
	CreatedAt   time.Time  `json:"created_at"`
	LastPlayed  *time.Time `json:"last_played,omitempty"`
}

// GameRecord is one finished round.
type GameRecord struct {
	ID       int64     `json:"id"`
	RoundID  string    `json:"round_id"`
	Result   string    `json:"result"`
	GridSize int       `json:"grid_size"`
	Moves    int       `json:"moves"`
	Hits     int       `json:"hits"`
	Misses   int       `json:"misses"`
	Accuracy float64   `json:"accuracy"`
	Duration int       `json:"duration"`
	PlayedAt time.Time `json:"played_at"`
}

type Settings struct {
	GridSize int `json:"grid_size"`
}

// New opens (or creates) the database at path and initializes the schema
func New(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1) // SQLite only supports one writer
	conn.SetMaxIdleConns(1)

	s := &Store{conn: conn}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.conn.Close() }

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE,
		games_played INTEGER NOT NULL DEFAULT 0,
		games_won INTEGER NOT NULL DEFAULT 0,
		total_shots INTEGER NOT NULL DEFAULT 0,
		total_hits INTEGER NOT NULL DEFAULT 0,
		accuracy REAL NOT NULL DEFAULT 0.0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_played TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS player_settings (
		player_id INTEGER PRIMARY KEY,
		grid_size INTEGER NOT NULL DEFAULT 10,
		FOREIGN KEY (player_id) REFERENCES players (id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS game_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		round_id TEXT NOT NULL UNIQUE,
		player_id INTEGER NOT NULL,
		result TEXT NOT NULL,          -- win, loss or forfeit
		grid_size INTEGER NOT NULL DEFAULT 10,
		moves INTEGER NOT NULL,
		hits INTEGER NOT NULL,
		misses INTEGER NOT NULL,
		accuracy REAL NOT NULL,
		duration INTEGER NOT NULL,     -- seconds
		played_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (player_id) REFERENCES players (id) ON DELETE CASCADE
	);

	-- one resumable game per player
	CREATE TABLE IF NOT EXISTS saved_games (
		player_id INTEGER PRIMARY KEY,
		data BLOB NOT NULL,
		saved_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (player_id) REFERENCES players (id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_game_history_player ON game_history(player_id, played_at);
	`

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// CreatePlayer inserts a new player with zeroed totals. Names are unique
// regardless of case.
func (s *Store) CreatePlayer(name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("player name is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.conn.QueryRow("SELECT 1 FROM players WHERE name = ?", name).Scan(&exists)
	if err == nil {
		return 0, fmt.Errorf("%w: %s", ErrPlayerExists, name)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	res, err := s.conn.Exec("INSERT INTO players (name) VALUES (?)", name)
	if err != nil {
		return 0, fmt.Errorf("failed to insert player: %w", err)
	}
	return res.LastInsertId()
}

const playerColumns = "id, name, games_played, games_won, total_shots, total_hits, accuracy, created_at, last_played"

func scanPlayer(row *sql.Row) (*Player, error) {
	var (
		p    Player
		last sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Name, &p.GamesPlayed, &p.GamesWon, &p.TotalShots, &p.TotalHits, &p.Accuracy, &p.CreatedAt, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if last.Valid {
		p.LastPlayed = &last.Time
	}
	return &p, nil
}

// GetPlayer returns nil when no player has that id.
func (s *Store) GetPlayer(id int64) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return scanPlayer(s.conn.QueryRow("SELECT "+playerColumns+" FROM players WHERE id = ?", id))
}

// FindPlayerByName matches case-insensitively and returns nil when nobody does.
func (s *Store) FindPlayerByName(name string) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return scanPlayer(s.conn.QueryRow("SELECT "+playerColumns+" FROM players WHERE name = ?", strings.TrimSpace(name)))
}

// FindOrCreatePlayer is the login step: an unknown name gets a new player.
func (s *Store) FindOrCreatePlayer(name string) (*Player, error) {
	p, err := s.FindPlayerByName(name)
	if err != nil || p != nil {
		return p, err
	}
	id, err := s.CreatePlayer(name)
	if err != nil {
		return nil, err
	}
	return s.GetPlayer(id)
}

// SaveRoundResult records a finished round and folds it into the player's
// lifetime totals in one transaction.
func (s *Store) SaveRoundResult(playerID int64, r codec.RoundResult) error {
	var acc float64
	if r.Shots > 0 {
		acc = float64(r.Hits) * 100 / float64(r.Shots)
	}
	won := 0
	if r.Outcome == codec.OutcomeWin {
		won = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE players
		SET games_played = games_played + 1,
			games_won = games_won + ?,
			total_shots = total_shots + ?,
			total_hits = total_hits + ?,
			accuracy = COALESCE((total_hits + ?) * 100.0 / NULLIF(total_shots + ?, 0), 0),
			last_played = CURRENT_TIMESTAMP
		WHERE id = ?`,
		won, r.Shots, r.Hits, r.Hits, r.Shots, playerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update player: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrPlayerNotFound, playerID)
	}

	_, err = tx.Exec(`
		INSERT INTO game_history (round_id, player_id, result, grid_size, moves, hits, misses, accuracy, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), playerID, r.Outcome, r.GridSize, r.Shots, r.Hits, r.Misses, acc, r.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to insert game: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GameHistory returns the player's latest rounds, newest first.
func (s *Store) GameHistory(playerID int64, limit int) ([]GameRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(`
		SELECT id, round_id, result, grid_size, moves, hits, misses, accuracy, duration, played_at
		FROM game_history
		WHERE player_id = ?
		ORDER BY played_at DESC, id DESC
		LIMIT ?`,
		playerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []GameRecord
	for rows.Next() {
		var g GameRecord
		if err := rows.Scan(&g.ID, &g.RoundID, &g.Result, &g.GridSize, &g.Moves, &g.Hits, &g.Misses, &g.Accuracy, &g.Duration, &g.PlayedAt); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// SaveSettings upserts the player's preferences.
func (s *Store) SaveSettings(playerID int64, st Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.Exec("INSERT OR REPLACE INTO player_settings (player_id, grid_size) VALUES (?, ?)", playerID, st.GridSize)
	return err
}

// LoadSettings falls back to a 10x10 grid when nothing was saved.
func (s *Store) LoadSettings(playerID int64) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Settings{GridSize: 10}
	err := s.conn.QueryRow("SELECT grid_size FROM player_settings WHERE player_id = ?", playerID).Scan(&st.GridSize)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	return st, err
}

// DeletePlayerData removes the player and, by cascade, everything they own.
func (s *Store) DeletePlayerData(playerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.Exec("DELETE FROM players WHERE id = ?", playerID)
	return err
}

// SaveState keeps one resumable game per player.
func (s *Store) SaveState(playerID int64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.Exec("INSERT OR REPLACE INTO saved_games (player_id, data, saved_at) VALUES (?, ?, CURRENT_TIMESTAMP)", playerID, data)
	if err != nil {
		return fmt.Errorf("failed to save game: %w", err)
	}
	return nil
}

// LoadState returns nil data when the player has nothing saved.
func (s *Store) LoadState(playerID int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err := s.conn.QueryRow("SELECT data FROM saved_games WHERE player_id = ?", playerID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return data, err
}

func (s *Store) ClearState(playerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.Exec("DELETE FROM saved_games WHERE player_id = ?", playerID)
	return err
}
