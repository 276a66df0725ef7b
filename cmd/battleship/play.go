package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"battleship/internal/app"
	"battleship/internal/game"
	"battleship/internal/merkle"
)

var glyphs = map[game.CellState]string{
	game.CellEmpty: ".",
	game.CellShip:  "S",
	game.CellHit:   "X",
	game.CellMiss:  "o",
}

const help = `commands:
  R C                      fire at row R, column C
  place NAME R C h|v       place one of your ships
  random                   place the remaining ships randomly
  board | stats | save | new | help
  quit                     forfeit and leave`

// session is the text front end over one controller.
type session struct {
	ctl       *app.Controller
	out       io.Writer
	proofsOut string
	proofs    int
}

func play(ctl *app.Controller, in io.Reader, out io.Writer, proofsOut string) error {
	s := &session{ctl: ctl, out: out, proofsOut: proofsOut}
	s.render()
	fmt.Fprintln(out, help)
	s.prompt()

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		done, err := s.exec(strings.Fields(sc.Text()))
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		s.prompt()
	}
	return sc.Err()
}

func (s *session) prompt() {
	switch s.ctl.GameState() {
	case app.StateSetup:
		left := s.ctl.RemainingPlayerShips()
		names := make([]string, len(left))
		for i, sp := range left {
			names[i] = fmt.Sprintf("%s(%d)", sp.Name, sp.Length)
		}
		fmt.Fprintf(s.out, "place: %s\n> ", strings.Join(names, ", "))
	case app.StateEnded:
		fmt.Fprint(s.out, "game over, new or quit\n> ")
	default:
		fmt.Fprint(s.out, "> ")
	}
}

func (s *session) exec(args []string) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}
	switch args[0] {
	case "help":
		fmt.Fprintln(s.out, help)
	case "board":
		s.render()
	case "stats":
		st := s.ctl.Stats()
		fmt.Fprintf(s.out, "shots %d, hits %d, misses %d, accuracy %.1f%%, games %d won %d, %ds\n",
			st.TotalShots, st.Hits, st.Misses, st.Accuracy, st.GamesPlayed, st.GamesWon, st.DurationSeconds)
	case "random":
		if !s.ctl.PlacePlayerShipsRandomly() {
			fmt.Fprintln(s.out, "cannot place ships now")
			break
		}
		s.started()
	case "place":
		s.place(args[1:])
	case "save":
		if err := s.ctl.Save(); err != nil {
			if !errors.Is(err, app.ErrNoPersistence) {
				return false, err
			}
			fmt.Fprintln(s.out, "saving needs a database and a player")
			break
		}
		fmt.Fprintln(s.out, "saved")
	case "new":
		if err := s.ctl.NewGame(); err != nil {
			return false, err
		}
		s.render()
	case "quit", "exit":
		if s.ctl.ForceEndGame() {
			fmt.Fprintln(s.out, "you forfeit")
			s.gameOver()
		}
		return true, nil
	default:
		pos, err := parseCoord(args)
		if err != nil {
			fmt.Fprintln(s.out, "unknown command, try help")
			break
		}
		s.fire(pos)
	}
	return false, nil
}

func (s *session) place(args []string) {
	if len(args) < 4 {
		fmt.Fprintln(s.out, "usage: place NAME R C h|v")
		return
	}
	n := len(args)
	name := strings.Join(args[:n-3], " ")
	pos, err := parseCoord(args[n-3 : n-1])
	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	o, err := game.ParseOrientation(args[n-1])
	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	if !s.ctl.PlacePlayerShip(name, pos, o) {
		fmt.Fprintf(s.out, "cannot place %s at %v\n", name, pos)
		return
	}
	if s.ctl.GameState() == app.StatePlaying {
		s.started()
		return
	}
	s.render()
}

func (s *session) started() {
	s.render()
	if c, ok := s.ctl.Commitment(); ok {
		fmt.Fprintln(s.out, "AI fleet commitment:", c.RootHex)
	}
	fmt.Fprintln(s.out, "your turn")
}

func (s *session) fire(pos game.Coord) {
	res := s.ctl.ProcessPlayerShot(pos)
	fmt.Fprintln(s.out, res.Message)
	if !res.Valid {
		return
	}
	s.keepProof(res)
	if res.GameOver {
		s.gameOver()
		return
	}

	ai := s.ctl.ProcessAITurn()
	fmt.Fprintf(s.out, "AI fires at %v: %s\n", ai.Position, ai.Message)
	s.render()
	if ai.GameOver {
		s.gameOver()
	}
}

func (s *session) keepProof(res app.ShotResult) {
	if s.proofsOut == "" || res.Proof == nil {
		return
	}
	s.proofs++
	path := filepath.Join(s.proofsOut, fmt.Sprintf("shot-%03d.json", s.proofs))
	if err := saveJSON(path, res.Proof); err != nil {
		fmt.Fprintln(s.out, "proof not written:", err)
		return
	}
	fmt.Fprintln(s.out, "✓ wrote", path)
}

func (s *session) gameOver() {
	s.render()
	if s.ctl.Winner() == app.SidePlayer {
		fmt.Fprintln(s.out, "You win!")
	} else {
		fmt.Fprintln(s.out, "The AI wins.")
	}
	occ, c, ok := s.ctl.Reveal()
	if !ok {
		return
	}
	valid, err := merkle.VerifyReveal(occ, c.SaltHex, c.RootHex)
	switch {
	case err != nil:
		fmt.Fprintln(s.out, "reveal check failed:", err)
	case valid:
		fmt.Fprintln(s.out, "✓ AI fleet matches commitment", c.RootHex, "salt", c.SaltHex)
	default:
		fmt.Fprintln(s.out, "✗ AI fleet does not match its commitment")
	}
}

// render prints the player's grid next to the AI grid as seen by the player.
func (s *session) render() {
	size := s.ctl.Config().GridSize
	header := "   "
	for c := range size {
		header += fmt.Sprintf("%3d", c)
	}
	fmt.Fprintf(s.out, "%-*s   %s\n", len(header), "you", "ai")
	fmt.Fprintf(s.out, "%s   %s\n", header, header)

	var b strings.Builder
	for r := range size {
		b.Reset()
		for _, own := range []bool{true, false} {
			fmt.Fprintf(&b, "%3d", r)
			for c := range size {
				st := s.ctl.CellState(own, game.Coord{Row: r, Col: c})
				if !own && st == game.CellShip {
					st = game.CellEmpty
				}
				fmt.Fprintf(&b, "%3s", glyphs[st])
			}
			if own {
				b.WriteString("   ")
			}
		}
		fmt.Fprintln(s.out, b.String())
	}
}

func parseCoord(args []string) (game.Coord, error) {
	if len(args) != 2 {
		return game.None, fmt.Errorf("want R C")
	}
	r, err := strconv.Atoi(args[0])
	if err != nil {
		return game.None, fmt.Errorf("bad row %q", args[0])
	}
	c, err := strconv.Atoi(args[1])
	if err != nil {
		return game.None, fmt.Errorf("bad col %q", args[1])
	}
	return game.Coord{Row: r, Col: c}, nil
}
