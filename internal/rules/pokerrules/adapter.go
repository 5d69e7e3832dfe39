package pokerrules

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/park285/game-arena/internal/domain"
	"github.com/park285/game-arena/internal/rules"
)

const (
	minSeats = 2
	maxSeats = 10

	defaultStartingChips = 1000

	// raiseUnit is the smallest raise increment offered in the legal-move
	// set. Actual raises accept any positive amount up to the stack.
	raiseUnit = 20
)

// Stage is the betting-round progression of a hand.
type Stage string

const (
	StagePreflop  Stage = "preflop"
	StageFlop     Stage = "flop"
	StageTurn     Stage = "turn"
	StageRiver    Stage = "river"
	StageShowdown Stage = "showdown"
)

// SeatState is per-seat chip and betting bookkeeping.
type SeatState struct {
	HoleCards []Card `json:"hole_cards"`
	Chips     int    `json:"chips"`
	Bet       int    `json:"bet"` // contribution in the current betting round
	Folded    bool   `json:"folded"`
	AllIn     bool   `json:"all_in"`
	Acted     bool   `json:"acted"` // acted since the last raise this round
}

// State is the full hand snapshot. Deck order is fixed at deal time and is
// part of the state, so every transition is a pure function of its inputs.
type State struct {
	Seats      []SeatState `json:"seats"`
	Deck       []Card      `json:"deck"`
	Community  []Card      `json:"community"`
	Pot        int         `json:"pot"`
	CurrentBet int         `json:"current_bet"`
	Dealer     int         `json:"dealer"`
	ToAct      int         `json:"to_act"`
	Stage      Stage       `json:"stage"`
	HandOver   bool        `json:"hand_over"`
	WinnerSeat int         `json:"winner_seat"` // -1 while running, and for split pots
	BestHand   string      `json:"best_hand,omitempty"`
}

// Action is a poker move payload.
type Action struct {
	Kind   string `json:"action"` // fold | check | call | raise
	Amount int    `json:"amount,omitempty"`
}

type Adapter struct {
	randMu        sync.Mutex
	rand          *rand.Rand
	startingChips int
}

func New() *Adapter {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded builds an adapter with a deterministic deck shuffle, used by
// tests and replay tooling.
func NewSeeded(seed int64) *Adapter {
	return &Adapter{
		rand:          rand.New(rand.NewSource(seed)),
		startingChips: defaultStartingChips,
	}
}

// SetStartingChips overrides the per-seat starting stack.
func (a *Adapter) SetStartingChips(chips int) {
	if chips > 0 {
		a.startingChips = chips
	}
}

func (a *Adapter) GameType() domain.GameType { return domain.GamePoker }

func (a *Adapter) SeatBounds() (int, int) { return minSeats, maxSeats }

func (a *Adapter) InitialState(seats int) (json.RawMessage, error) {
	if seats < minSeats || seats > maxSeats {
		return nil, fmt.Errorf("poker requires %d-%d seats, got %d", minSeats, maxSeats, seats)
	}

	deck := newDeck()
	a.randMu.Lock()
	a.rand.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	a.randMu.Unlock()

	st := &State{
		Seats:      make([]SeatState, seats),
		Community:  []Card{},
		Stage:      StagePreflop,
		Dealer:     0,
		ToAct:      1 % seats,
		WinnerSeat: -1,
	}
	for i := range st.Seats {
		st.Seats[i] = SeatState{
			HoleCards: []Card{deck[0], deck[1]},
			Chips:     a.startingChips,
		}
		deck = deck[2:]
	}
	st.Deck = deck
	return json.Marshal(st)
}

func (a *Adapter) LegalMoves(raw json.RawMessage, seat int) ([]json.RawMessage, error) {
	st, err := decodeState(raw)
	if err != nil {
		return nil, err
	}
	if st.HandOver || seat != st.ToAct || seat < 0 || seat >= len(st.Seats) {
		return nil, nil
	}
	ss := st.Seats[seat]
	if ss.Folded || ss.AllIn {
		return nil, nil
	}

	var actions []Action
	actions = append(actions, Action{Kind: "fold"})
	toCall := st.CurrentBet - ss.Bet
	if toCall <= 0 {
		actions = append(actions, Action{Kind: "check"})
	} else {
		actions = append(actions, Action{Kind: "call"})
	}
	if ss.Chips > toCall {
		headroom := ss.Chips - toCall
		seen := map[int]bool{}
		for _, amount := range []int{raiseUnit, st.Pot, headroom} {
			if amount <= 0 || amount > headroom || seen[amount] {
				continue
			}
			seen[amount] = true
			actions = append(actions, Action{Kind: "raise", Amount: amount})
		}
	}

	out := make([]json.RawMessage, 0, len(actions))
	for _, act := range actions {
		enc, err := json.Marshal(act)
		if err != nil {
			return nil, err
		}
		out = append(out, enc)
	}
	return out, nil
}

func (a *Adapter) Apply(raw json.RawMessage, seat int, payload json.RawMessage) (json.RawMessage, error) {
	st, err := decodeState(raw)
	if err != nil {
		return nil, err
	}
	if st.HandOver || seat != st.ToAct || seat < 0 || seat >= len(st.Seats) {
		return nil, rules.ErrIllegalMove
	}
	ss := &st.Seats[seat]
	if ss.Folded || ss.AllIn {
		return nil, rules.ErrIllegalMove
	}

	var act Action
	if err := json.Unmarshal(payload, &act); err != nil {
		return nil, rules.ErrIllegalMove
	}

	switch strings.ToLower(strings.TrimSpace(act.Kind)) {
	case "fold":
		ss.Folded = true
		ss.Acted = true
	case "check":
		if st.CurrentBet > ss.Bet {
			return nil, rules.ErrIllegalMove
		}
		ss.Acted = true
	case "call":
		toCall := st.CurrentBet - ss.Bet
		if toCall <= 0 {
			return nil, rules.ErrIllegalMove
		}
		st.commitChips(seat, toCall)
		ss.Acted = true
	case "raise":
		if act.Amount <= 0 {
			return nil, rules.ErrIllegalMove
		}
		toCall := st.CurrentBet - ss.Bet
		if ss.Chips <= toCall {
			// cannot raise, only call all-in
			return nil, rules.ErrIllegalMove
		}
		st.commitChips(seat, toCall+act.Amount)
		if ss.Bet > st.CurrentBet {
			st.CurrentBet = ss.Bet
			st.resetActedExcept(seat)
		}
		ss.Acted = true
	default:
		return nil, rules.ErrIllegalMove
	}

	if err := st.settle(); err != nil {
		return nil, err
	}
	return json.Marshal(st)
}

func (a *Adapter) IsTerminal(raw json.RawMessage) (bool, int, error) {
	st, err := decodeState(raw)
	if err != nil {
		return false, -1, err
	}
	if !st.HandOver {
		return false, -1, nil
	}
	return true, st.WinnerSeat, nil
}

func (a *Adapter) NextSeat(raw json.RawMessage) (int, error) {
	st, err := decodeState(raw)
	if err != nil {
		return 0, err
	}
	return st.ToAct, nil
}

// Notate renders an action for display ("raise to 40", "call 20").
func (a *Adapter) Notate(raw json.RawMessage, seat int, payload json.RawMessage) (string, error) {
	st, err := decodeState(raw)
	if err != nil {
		return "", err
	}
	var act Action
	if err := json.Unmarshal(payload, &act); err != nil {
		return "", err
	}
	kind := strings.ToLower(strings.TrimSpace(act.Kind))
	switch kind {
	case "call":
		if seat >= 0 && seat < len(st.Seats) {
			return fmt.Sprintf("call %d", st.CurrentBet-st.Seats[seat].Bet), nil
		}
		return "call", nil
	case "raise":
		return fmt.Sprintf("raise to %d", st.CurrentBet+act.Amount), nil
	default:
		return kind, nil
	}
}

// commitChips moves up to amount from the seat's stack into the pot,
// flagging all-in when the stack runs out.
func (st *State) commitChips(seat, amount int) {
	ss := &st.Seats[seat]
	if amount >= ss.Chips {
		amount = ss.Chips
		ss.AllIn = true
	}
	ss.Chips -= amount
	ss.Bet += amount
	st.Pot += amount
}

func (st *State) resetActedExcept(seat int) {
	for i := range st.Seats {
		if i == seat {
			continue
		}
		if !st.Seats[i].Folded && !st.Seats[i].AllIn {
			st.Seats[i].Acted = false
		}
	}
}

// settle advances the turn pointer and, when the betting round is complete,
// deals the next street. Folding down to one seat or resolving a showdown
// ends the hand.
func (st *State) settle() error {
	if active := st.activeSeats(); len(active) == 1 {
		st.WinnerSeat = active[0]
		st.Seats[active[0]].Chips += st.Pot
		st.HandOver = true
		return nil
	}

	advanced := false
	for st.roundComplete() && !st.HandOver {
		if err := st.nextStage(); err != nil {
			return err
		}
		advanced = true
	}
	// nextStage already pointed ToAct at the new street's first actor
	if !st.HandOver && !advanced {
		st.ToAct = st.nextActor(st.ToAct)
	}
	return nil
}

// activeSeats lists non-folded seats.
func (st *State) activeSeats() []int {
	var out []int
	for i := range st.Seats {
		if !st.Seats[i].Folded {
			out = append(out, i)
		}
	}
	return out
}

// roundComplete reports whether every non-folded, non-all-in seat has acted
// and matched the current bet.
func (st *State) roundComplete() bool {
	for i := range st.Seats {
		ss := &st.Seats[i]
		if ss.Folded || ss.AllIn {
			continue
		}
		if !ss.Acted || ss.Bet != st.CurrentBet {
			return false
		}
	}
	return true
}

// nextActor returns the next seat after from that can still act, skipping
// folded and all-in seats.
func (st *State) nextActor(from int) int {
	n := len(st.Seats)
	for i := 1; i <= n; i++ {
		seat := (from + i) % n
		ss := &st.Seats[seat]
		if !ss.Folded && !ss.AllIn {
			return seat
		}
	}
	return from
}

func (st *State) nextStage() error {
	switch st.Stage {
	case StagePreflop:
		st.dealCommunity(3)
		st.Stage = StageFlop
	case StageFlop:
		st.dealCommunity(1)
		st.Stage = StageTurn
	case StageTurn:
		st.dealCommunity(1)
		st.Stage = StageRiver
	case StageRiver:
		st.Stage = StageShowdown
		return st.resolveShowdown()
	default:
		return fmt.Errorf("cannot advance from stage %s", st.Stage)
	}

	st.CurrentBet = 0
	for i := range st.Seats {
		st.Seats[i].Bet = 0
		st.Seats[i].Acted = false
	}
	st.ToAct = st.nextActor(st.Dealer)
	return nil
}

func (st *State) dealCommunity(n int) {
	for i := 0; i < n && len(st.Deck) > 0; i++ {
		st.Community = append(st.Community, st.Deck[0])
		st.Deck = st.Deck[1:]
	}
}

// resolveShowdown scores every non-folded seat's best 7-card hand and awards
// the pot. Ties split the pot evenly and leave WinnerSeat at -1.
func (st *State) resolveShowdown() error {
	st.HandOver = true
	st.WinnerSeat = -1

	best := int16(-1)
	var winners []int
	for _, seat := range st.activeSeats() {
		score, err := score7(st.Community, st.Seats[seat].HoleCards)
		if err != nil {
			return err
		}
		switch {
		case score > best:
			best = score
			winners = []int{seat}
		case score == best:
			winners = append(winners, seat)
		}
	}
	if len(winners) == 0 {
		return fmt.Errorf("showdown with no eligible seats")
	}

	share := st.Pot / len(winners)
	for _, w := range winners {
		st.Seats[w].Chips += share
	}
	if len(winners) == 1 {
		st.WinnerSeat = winners[0]
		if desc, err := describe7(st.Community, st.Seats[winners[0]].HoleCards); err == nil {
			st.BestHand = desc
		}
	}
	return nil
}

func decodeState(raw json.RawMessage) (*State, error) {
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode poker state: %w", err)
	}
	return &st, nil
}
