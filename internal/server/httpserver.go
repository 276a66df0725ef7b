package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/rs/zerolog"

	"battleship/internal/app"
	"battleship/internal/codec"
	"battleship/internal/game"
	"battleship/internal/merkle"
	"battleship/internal/zk"
)

// Server exposes one Controller over JSON. The controller is single-threaded,
// so every handler holds mu while it touches it.
type Server struct {
	mu  sync.Mutex
	ctl *app.Controller
	log zerolog.Logger

	lastAI *app.ShotResult

	// Milliseconds since epoch when THIS server booted
	startAt int64
}

func New(ctl *app.Controller, log zerolog.Logger) *Server {
	return &Server{
		ctl:     ctl,
		log:     log,
		startAt: time.Now().UnixMilli(),
	}
}

func (s *Server) Routes(mux *http.ServeMux) {
	// Setup
	mux.HandleFunc("/v1/new", s.handleNew)
	mux.HandleFunc("/v1/place", s.handlePlace)
	mux.HandleFunc("/v1/place/random", s.handlePlaceRandom)

	// Play
	mux.HandleFunc("/v1/shoot", s.handleShoot)
	mux.HandleFunc("/v1/ai-turn", s.handleAITurn)
	mux.HandleFunc("/v1/forfeit", s.handleForfeit)

	// Resume
	mux.HandleFunc("/v1/save", s.handleSave)
	mux.HandleFunc("/v1/resume", s.handleResume)

	// Consolidated READ
	mux.HandleFunc("/v1/status", s.handleStatus)

	// Fair play
	mux.HandleFunc("/v1/vk", s.handleVK)
	mux.HandleFunc("/v1/verify", s.handleVerify)
}

// Handler is the full stack: CORS, request logging, routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Routes(mux)
	return WithCORS(requestLogger(s.log, mux))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// allow answers preflight and wrong-method requests. It reports whether the
// handler should go on.
func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return false
	}
	if r.Method != method {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// decode reads an optional JSON body. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// === Setup ===

type newReq struct {
	GridSize int `json:"grid_size,omitempty"`
}

func (s *Server) handleNew(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req newReq
	if err := decode(r, &req); err != nil {
		writeJSON(w, 400, map[string]string{"error": "bad json"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if req.GridSize != 0 && req.GridSize != s.ctl.Config().GridSize {
		err = s.ctl.UpdateSettings(req.GridSize)
	} else {
		err = s.ctl.NewGame()
	}
	if err != nil {
		writeJSON(w, 400, map[string]string{"error": err.Error()})
		return
	}
	s.lastAI = nil
	writeJSON(w, 200, s.statusPayload())
}

type placeReq struct {
	Name        string `json:"name"`
	Row         int    `json:"row"`
	Col         int    `json:"col"`
	Orientation string `json:"orientation"`
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req placeReq
	if err := decode(r, &req); err != nil {
		writeJSON(w, 400, map[string]string{"error": "bad json"})
		return
	}
	o, err := game.ParseOrientation(req.Orientation)
	if err != nil {
		writeJSON(w, 400, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ctl.PlacePlayerShip(req.Name, game.Coord{Row: req.Row, Col: req.Col}, o) {
		writeJSON(w, 409, map[string]any{
			"error": "placement rejected",
			"state": s.ctl.GameState(),
			"name":  req.Name,
			"row":   req.Row,
			"col":   req.Col,
		})
		return
	}
	writeJSON(w, 200, s.statusPayload())
}

func (s *Server) handlePlaceRandom(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ctl.PlacePlayerShipsRandomly() {
		writeJSON(w, 409, map[string]any{"error": "random placement failed", "state": s.ctl.GameState()})
		return
	}
	writeJSON(w, 200, s.statusPayload())
}

// === Play ===

type shootReq struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (s *Server) handleShoot(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req shootReq
	if err := decode(r, &req); err != nil {
		writeJSON(w, 400, map[string]string{"error": "bad json"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.ctl.ProcessPlayerShot(game.Coord{Row: req.Row, Col: req.Col})
	if !res.Valid {
		writeJSON(w, 409, res)
		return
	}
	writeJSON(w, 200, res)
}

func (s *Server) handleAITurn(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.ctl.ProcessAITurn()
	if !res.Valid {
		writeJSON(w, 409, res)
		return
	}
	s.lastAI = &res
	writeJSON(w, 200, res)
}

func (s *Server) handleForfeit(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ctl.ForceEndGame() {
		writeJSON(w, 409, map[string]string{"error": "game is over"})
		return
	}
	writeJSON(w, 200, s.statusPayload())
}

// === Save / Resume ===

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ctl.Save(); err != nil {
		code := 500
		if errors.Is(err, app.ErrNoPersistence) {
			code = 409
		}
		writeJSON(w, code, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, 200, map[string]any{"saved": true, "gameId": s.ctl.GameID()})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.ctl.Resume()
	if err != nil {
		code := 500
		if errors.Is(err, app.ErrNoPersistence) {
			code = 409
		}
		writeJSON(w, code, map[string]string{"error": err.Error()})
		return
	}
	s.lastAI = nil
	payload := s.statusPayload()
	payload["resumed"] = ok
	writeJSON(w, 200, payload)
}

// === Consolidated STATUS ===

// cells renders a grid as cell-state names. On the AI grid unhit ships read
// as empty.
func (s *Server) cells(playerGrid bool) [][]game.CellState {
	n := s.ctl.Config().GridSize
	out := make([][]game.CellState, n)
	for r := range n {
		out[r] = make([]game.CellState, n)
		for c := range n {
			st := s.ctl.CellState(playerGrid, game.Coord{Row: r, Col: c})
			if !playerGrid && st == game.CellShip {
				st = game.CellEmpty
			}
			out[r][c] = st
		}
	}
	return out
}

func (s *Server) statusPayload() map[string]any {
	p := map[string]any{
		"startedAt": s.startAt,
		"gameId":    s.ctl.GameID(),
		"player":    s.ctl.PlayerName(),
		"state":     s.ctl.GameState(),
		"turn":      s.ctl.CurrentTurn(),
		"winner":    s.ctl.Winner(),
		"gridSize":  s.ctl.Config().GridSize,
		"stats":     s.ctl.Stats(),

		"playerGrid":     s.cells(true),
		"aiGrid":         s.cells(false),
		"playerShips":    s.ctl.PlayerShips(),
		"remainingShips": s.ctl.RemainingPlayerShips(),
		"aiShips":        s.ctl.AIShips(),
		"aiLast":         s.lastAI,
	}
	if commit, ok := s.ctl.Commitment(); ok {
		p["commitment"] = commit
	}
	if occ, _, ok := s.ctl.Reveal(); ok {
		bits := make([]int, len(occ))
		for i, b := range occ {
			bits[i] = int(b)
		}
		p["reveal"] = bits
	}
	return p
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, 200, s.statusPayload())
}

// === Fair play ===

func (s *Server) fairPlay() *app.FairPlay {
	if f := s.ctl.FairPlay(); f != nil && f.Proving() {
		return f
	}
	return nil
}

func (s *Server) handleVK(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	fair := s.fairPlay()
	if fair == nil {
		writeJSON(w, 404, map[string]string{"error": "proofs are disabled"})
		return
	}
	data, err := fair.VerifyingKeyBytes()
	if err != nil {
		writeJSON(w, 500, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, 200, map[string]string{"vkB64": base64.StdEncoding.EncodeToString(data)})
}

type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type verifyReq struct {
	RootHex string                 `json:"rootHex,omitempty"`
	RootDec flexString             `json:"rootDec,omitempty"`
	Payload codec.ShotProofPayload `json:"payload"`
	VKB64   string                 `json:"vkB64,omitempty"`
}

// handleVerify checks a shot proof. Root and VK default to this server's
// current commitment and key.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req verifyReq
	if err := decode(r, &req); err != nil {
		writeJSON(w, 400, map[string]string{"error": "bad json: " + err.Error()})
		return
	}

	var vk groth16.VerifyingKey
	if strings.TrimSpace(req.VKB64) != "" {
		rawVK, err := base64.StdEncoding.DecodeString(req.VKB64)
		if err != nil || len(rawVK) == 0 {
			writeJSON(w, 400, map[string]string{"error": "invalid vkB64"})
			return
		}
		if vk, err = zk.ReadVK(bytes.NewReader(rawVK)); err != nil {
			writeJSON(w, 400, map[string]string{"error": "invalid vkB64: " + err.Error()})
			return
		}
	} else if fair := s.fairPlay(); fair != nil {
		vk = fair.VerifyingKey()
	} else {
		writeJSON(w, 400, map[string]string{"error": "vkB64 required (proofs are disabled here)"})
		return
	}

	var rootInt *big.Int
	switch {
	case strings.TrimSpace(req.RootHex) != "":
		h := req.RootHex
		if !strings.HasPrefix(h, "0x") && !strings.HasPrefix(h, "0X") {
			h = "0x" + h
		}
		n, err := merkle.ParseHex(h)
		if err != nil {
			writeJSON(w, 400, map[string]string{"error": "invalid rootHex"})
			return
		}
		rootInt = n
	case strings.TrimSpace(string(req.RootDec)) != "":
		n, ok := new(big.Int).SetString(string(req.RootDec), 10)
		if !ok {
			writeJSON(w, 400, map[string]string{"error": "invalid rootDec"})
			return
		}
		rootInt = n
	default:
		s.mu.Lock()
		commit, ok := s.ctl.Commitment()
		s.mu.Unlock()
		if !ok {
			writeJSON(w, 400, map[string]string{"error": "must provide rootHex or rootDec"})
			return
		}
		n, err := merkle.ParseHex(commit.RootHex)
		if err != nil {
			writeJSON(w, 500, map[string]string{"error": err.Error()})
			return
		}
		rootInt = n
	}

	// the root inside the payload is ignored in favour of the one asked for
	req.Payload.Public.Root = nil
	res, err := app.VerifyWithRoot(vk, rootInt, req.Payload)
	if err != nil {
		writeJSON(w, 400, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, 200, res)
}

// === CORS ===

func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// In dev we allow any origin. For production, set this to the specific origin(s).
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// === Request log ===

// statusWriter captures HTTP status and bytes written.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func requestLogger(log zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Int("bytes", sw.bytes).
			Dur("dur", time.Since(start).Round(time.Millisecond)).
			Msg("http")
	})
}
