package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battleship/internal/app"
	"battleship/internal/game"
)

func newTestServer(t *testing.T, opts ...app.Option) *httptest.Server {
	t.Helper()
	cfg := game.DefaultConfig()
	cfg.Seed = 21
	ctl, err := app.New(cfg, opts...)
	require.NoError(t, err)
	ts := httptest.NewServer(New(ctl, zerolog.Nop()).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func call(t *testing.T, ts *httptest.Server, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.ContentLength != 0 && resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func countCells(grid any, state string) int {
	n := 0
	for _, row := range grid.([]any) {
		for _, c := range row.([]any) {
			if c == state {
				n++
			}
		}
	}
	return n
}

func TestStatus_HidesAIShips(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := call(t, ts, http.MethodPost, "/v1/place/random", nil)
	require.Equal(t, 200, resp.StatusCode)

	resp, st := call(t, ts, http.MethodGet, "/v1/status", nil)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "playing", st["state"])
	assert.Equal(t, "player", st["turn"])
	assert.Equal(t, 17, countCells(st["playerGrid"], "ship"))
	assert.Zero(t, countCells(st["aiGrid"], "ship"))
	assert.Empty(t, st["aiShips"])
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestPlayFlow(t *testing.T) {
	ts := newTestServer(t)

	resp, body := call(t, ts, http.MethodPost, "/v1/shoot", map[string]int{"row": 0, "col": 0})
	assert.Equal(t, 409, resp.StatusCode, "still in setup")
	assert.Equal(t, false, body["valid"])

	resp, _ = call(t, ts, http.MethodPost, "/v1/place", map[string]any{
		"name": "Aircraft Carrier", "row": 0, "col": 0, "orientation": "horizontal",
	})
	require.Equal(t, 200, resp.StatusCode)

	resp, _ = call(t, ts, http.MethodPost, "/v1/place", map[string]any{
		"name": "Battleship", "row": 1, "col": 0, "orientation": "h",
	})
	assert.Equal(t, 409, resp.StatusCode, "touches the carrier")

	resp, _ = call(t, ts, http.MethodPost, "/v1/place", map[string]any{
		"name": "Battleship", "row": 2, "col": 0, "orientation": "diagonal",
	})
	assert.Equal(t, 400, resp.StatusCode)

	resp, st := call(t, ts, http.MethodPost, "/v1/place/random", nil)
	require.Equal(t, 200, resp.StatusCode)
	assert.Empty(t, st["remainingShips"])

	resp, shot := call(t, ts, http.MethodPost, "/v1/shoot", map[string]int{"row": 4, "col": 4})
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, true, shot["valid"])
	assert.Equal(t, "player", shot["side"])

	resp, _ = call(t, ts, http.MethodPost, "/v1/shoot", map[string]int{"row": 5, "col": 5})
	assert.Equal(t, 409, resp.StatusCode, "ai to move")

	resp, ai := call(t, ts, http.MethodPost, "/v1/ai-turn", nil)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "ai", ai["side"])
	assert.Contains(t, ai, "position")

	resp, dup := call(t, ts, http.MethodPost, "/v1/shoot", map[string]int{"row": 4, "col": 4})
	assert.Equal(t, 409, resp.StatusCode)
	assert.Equal(t, "Position already targeted", dup["message"])

	_, st = call(t, ts, http.MethodGet, "/v1/status", nil)
	assert.NotNil(t, st["aiLast"])
	stats := st["stats"].(map[string]any)
	assert.Equal(t, float64(1), stats["total_shots"])

	resp, st = call(t, ts, http.MethodPost, "/v1/forfeit", nil)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "ended", st["state"])
	assert.Equal(t, "ai", st["winner"])
	assert.Len(t, st["aiShips"], 5)

	resp, _ = call(t, ts, http.MethodPost, "/v1/forfeit", nil)
	assert.Equal(t, 409, resp.StatusCode)
}

func TestNew_GridSize(t *testing.T) {
	ts := newTestServer(t)

	resp, st := call(t, ts, http.MethodPost, "/v1/new", map[string]int{"grid_size": 15})
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, float64(15), st["gridSize"])
	assert.Len(t, st["playerGrid"], 15)

	resp, _ = call(t, ts, http.MethodPost, "/v1/new", map[string]int{"grid_size": 11})
	assert.Equal(t, 400, resp.StatusCode)

	resp, st = call(t, ts, http.MethodPost, "/v1/new", nil)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "setup", st["state"])
}

func TestMethodsAndBadInput(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := call(t, ts, http.MethodGet, "/v1/shoot", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = call(t, ts, http.MethodPost, "/v1/status", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = call(t, ts, http.MethodOptions, "/v1/shoot", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/shoot", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, 400, r.StatusCode)

	resp, _ = call(t, ts, http.MethodPost, "/v1/shoot", map[string]any{"row": 1, "col": 1, "extra": true})
	assert.Equal(t, 400, resp.StatusCode)
}

func TestSaveResume_NeedsPlayer(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := call(t, ts, http.MethodPost, "/v1/save", nil)
	assert.Equal(t, 409, resp.StatusCode)
	resp, _ = call(t, ts, http.MethodPost, "/v1/resume", nil)
	assert.Equal(t, 409, resp.StatusCode)
}

func TestFairPlay_CommitmentWithoutProofs(t *testing.T) {
	fair, err := app.NewFairPlay("")
	require.NoError(t, err)
	ts := newTestServer(t, app.WithFairPlay(fair))

	_, st := call(t, ts, http.MethodGet, "/v1/status", nil)
	commit := st["commitment"].(map[string]any)
	assert.NotEmpty(t, commit["root"])

	resp, _ := call(t, ts, http.MethodGet, "/v1/vk", nil)
	assert.Equal(t, 404, resp.StatusCode)

	resp, _ = call(t, ts, http.MethodPost, "/v1/verify", map[string]any{"payload": map[string]any{}})
	assert.Equal(t, 400, resp.StatusCode)

	call(t, ts, http.MethodPost, "/v1/place/random", nil)
	_, st = call(t, ts, http.MethodPost, "/v1/forfeit", nil)
	assert.Len(t, st["reveal"], 100)
}

func TestFairPlay_ProveAndVerify(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}
	fair, err := app.NewFairPlay(t.TempDir())
	require.NoError(t, err)
	ts := newTestServer(t, app.WithFairPlay(fair))

	resp, vk := call(t, ts, http.MethodGet, "/v1/vk", nil)
	require.Equal(t, 200, resp.StatusCode)
	assert.NotEmpty(t, vk["vkB64"])

	call(t, ts, http.MethodPost, "/v1/place/random", nil)
	resp, shot := call(t, ts, http.MethodPost, "/v1/shoot", map[string]int{"row": 3, "col": 3})
	require.Equal(t, 200, resp.StatusCode)
	require.NotNil(t, shot["proof"])

	resp, res := call(t, ts, http.MethodPost, "/v1/verify", map[string]any{"payload": shot["proof"]})
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, true, res["Valid"])
	assert.Equal(t, float64(33), res["Index"])

	resp, _ = call(t, ts, http.MethodPost, "/v1/verify", map[string]any{
		"payload": shot["proof"],
		"rootDec": "12345",
	})
	assert.Equal(t, 400, resp.StatusCode)
}
