package chessrules

import (
	"encoding/json"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/game-arena/internal/domain"
	"github.com/park285/game-arena/internal/rules"
)

const (
	seatWhite = 0
	seatBlack = 1
)

// State is the chess snapshot. Moves is authoritative: the position is
// always reconstructed by replaying the UCI list from the start position.
// FEN and the flags are carried for presentation and auditing.
type State struct {
	MovesUCI  []string `json:"moves_uci"`
	FEN       string   `json:"fen"`
	Checkmate bool     `json:"checkmate"`
	Stalemate bool     `json:"stalemate"`
}

// Move accepts UCI ("e2e4"), SAN ("Nf3"), or from/to squares with an
// optional promotion piece.
type Move struct {
	UCI       string `json:"uci,omitempty"`
	SAN       string `json:"san,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`
}

type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) GameType() domain.GameType { return domain.GameChess }

func (a *Adapter) SeatBounds() (int, int) { return 2, 2 }

func (a *Adapter) InitialState(seats int) (json.RawMessage, error) {
	if seats != 2 {
		return nil, fmt.Errorf("chess requires exactly 2 seats, got %d", seats)
	}
	game := nchess.NewGame()
	return marshalState(&State{MovesUCI: []string{}, FEN: game.FEN()})
}

func (a *Adapter) LegalMoves(raw json.RawMessage, seat int) ([]json.RawMessage, error) {
	_, game, err := reconstruct(raw)
	if err != nil {
		return nil, err
	}
	if seatFromTurn(game.Position().Turn()) != seat {
		return nil, nil
	}
	valid := game.ValidMoves()
	out := make([]json.RawMessage, 0, len(valid))
	for _, mv := range valid {
		enc, err := json.Marshal(Move{UCI: mv.String()})
		if err != nil {
			return nil, err
		}
		out = append(out, enc)
	}
	return out, nil
}

func (a *Adapter) Apply(raw json.RawMessage, seat int, payload json.RawMessage) (json.RawMessage, error) {
	st, game, err := reconstruct(raw)
	if err != nil {
		return nil, err
	}
	if seatFromTurn(game.Position().Turn()) != seat {
		return nil, rules.ErrIllegalMove
	}

	mv, err := decodeMove(payload)
	if err != nil {
		return nil, rules.ErrIllegalMove
	}

	pos := game.Position()
	uci := strings.ToLower(strings.TrimSpace(mv.UCI))
	if uci == "" && mv.From != "" && mv.To != "" {
		uci = strings.ToLower(mv.From + mv.To + mv.Promotion)
	}

	if uci != "" {
		decoded, derr := nchess.UCINotation{}.Decode(pos, uci)
		if derr != nil {
			return nil, rules.ErrIllegalMove
		}
		if err := game.Move(decoded, nil); err != nil {
			return nil, rules.ErrIllegalMove
		}
		st.MovesUCI = append(st.MovesUCI, uci)
	} else if san := strings.TrimSpace(mv.SAN); san != "" {
		if err := game.PushNotationMove(san, nchess.AlgebraicNotation{}, nil); err != nil {
			return nil, rules.ErrIllegalMove
		}
		last := lastMove(game)
		if last == nil {
			return nil, rules.ErrIllegalMove
		}
		st.MovesUCI = append(st.MovesUCI, last.String())
	} else {
		return nil, rules.ErrIllegalMove
	}

	st.FEN = game.FEN()
	method := game.Method()
	st.Checkmate = method == nchess.Checkmate
	st.Stalemate = method == nchess.Stalemate
	return marshalState(st)
}

func (a *Adapter) IsTerminal(raw json.RawMessage) (bool, int, error) {
	_, game, err := reconstruct(raw)
	if err != nil {
		return false, -1, err
	}
	switch game.Outcome() {
	case nchess.WhiteWon:
		return true, seatWhite, nil
	case nchess.BlackWon:
		return true, seatBlack, nil
	case nchess.Draw:
		return true, -1, nil
	default:
		return false, -1, nil
	}
}

func (a *Adapter) NextSeat(raw json.RawMessage) (int, error) {
	_, game, err := reconstruct(raw)
	if err != nil {
		return 0, err
	}
	return seatFromTurn(game.Position().Turn()), nil
}

// Notate renders a payload in SAN against the pre-move position.
func (a *Adapter) Notate(raw json.RawMessage, seat int, payload json.RawMessage) (string, error) {
	_, game, err := reconstruct(raw)
	if err != nil {
		return "", err
	}
	mv, err := decodeMove(payload)
	if err != nil {
		return "", err
	}
	if san := strings.TrimSpace(mv.SAN); san != "" {
		return san, nil
	}
	uci := strings.ToLower(strings.TrimSpace(mv.UCI))
	if uci == "" && mv.From != "" && mv.To != "" {
		uci = strings.ToLower(mv.From + mv.To + mv.Promotion)
	}
	pos := game.Position()
	decoded, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return "", err
	}
	return nchess.AlgebraicNotation{}.Encode(pos, decoded), nil
}

func decodeMove(payload json.RawMessage) (*Move, error) {
	var mv Move
	if err := json.Unmarshal(payload, &mv); err != nil {
		// bare string payloads ("e2e4" or "Nf3") are accepted too
		var s string
		if serr := json.Unmarshal(payload, &s); serr != nil {
			return nil, err
		}
		if looksLikeUCI(s) {
			mv.UCI = s
		} else {
			mv.SAN = s
		}
	}
	return &mv, nil
}

func looksLikeUCI(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return false
	}
	return s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8' &&
		s[2] >= 'a' && s[2] <= 'h' && s[3] >= '1' && s[3] <= '8'
}

// reconstruct rebuilds the game by replaying stored UCI moves from the
// start position. Applying the stored FEN instead can double-apply moves.
func reconstruct(raw json.RawMessage) (*State, *nchess.Game, error) {
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, nil, fmt.Errorf("decode chess state: %w", err)
	}
	game := nchess.NewGame()
	for _, mv := range st.MovesUCI {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, nil, fmt.Errorf("replay move %q: %w", mv, err)
		}
	}
	return &st, game, nil
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

func seatFromTurn(c nchess.Color) int {
	if c == nchess.White {
		return seatWhite
	}
	return seatBlack
}

func marshalState(st *State) (json.RawMessage, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
