package pokerrules

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/park285/game-arena/internal/rules"
)

func mustState(t *testing.T, raw json.RawMessage) *State {
	t.Helper()
	st, err := decodeState(raw)
	if err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return st
}

func act(t *testing.T, a *Adapter, raw json.RawMessage, seat int, action Action) json.RawMessage {
	t.Helper()
	payload, err := json.Marshal(action)
	if err != nil {
		t.Fatalf("marshal action: %v", err)
	}
	next, err := a.Apply(raw, seat, payload)
	if err != nil {
		t.Fatalf("Apply %s by seat %d: %v", action.Kind, seat, err)
	}
	return next
}

func TestInitialState_Bounds(t *testing.T) {
	a := NewSeeded(1)
	for _, seats := range []int{0, 1, 11} {
		if _, err := a.InitialState(seats); err == nil {
			t.Fatalf("InitialState(%d) accepted", seats)
		}
	}
	raw, err := a.InitialState(4)
	if err != nil {
		t.Fatalf("InitialState(4): %v", err)
	}
	st := mustState(t, raw)
	if len(st.Seats) != 4 {
		t.Fatalf("seats = %d", len(st.Seats))
	}
	if len(st.Deck) != 52-8 {
		t.Fatalf("deck after deal = %d, want 44", len(st.Deck))
	}
	for i, ss := range st.Seats {
		if len(ss.HoleCards) != 2 || ss.Chips != defaultStartingChips {
			t.Fatalf("seat %d: cards=%d chips=%d", i, len(ss.HoleCards), ss.Chips)
		}
	}
	if st.Stage != StagePreflop || st.ToAct != 1 {
		t.Fatalf("stage=%s to_act=%d", st.Stage, st.ToAct)
	}
}

func TestApply_TurnSkipsFoldedSeat(t *testing.T) {
	a := NewSeeded(7)
	raw, err := a.InitialState(4)
	if err != nil {
		t.Fatalf("InitialState: %v", err)
	}

	// seat 1 opens, seat 2 folds
	raw = act(t, a, raw, 1, Action{Kind: "check"})
	raw = act(t, a, raw, 2, Action{Kind: "fold"})
	raw = act(t, a, raw, 3, Action{Kind: "check"})
	raw = act(t, a, raw, 0, Action{Kind: "check"})

	// round complete, flop dealt, rotation must skip the folded seat 2
	st := mustState(t, raw)
	if st.Stage != StageFlop {
		t.Fatalf("stage = %s, want flop", st.Stage)
	}
	raw = act(t, a, raw, st.ToAct, Action{Kind: "check"})
	seen := map[int]bool{st.ToAct: true}
	for i := 0; i < 2; i++ {
		st = mustState(t, raw)
		if st.ToAct == 2 {
			t.Fatalf("rotation reached folded seat 2")
		}
		seen[st.ToAct] = true
		raw = act(t, a, raw, st.ToAct, Action{Kind: "check"})
	}
	if seen[2] {
		t.Fatalf("folded seat acted")
	}
}

func TestApply_BettingValidation(t *testing.T) {
	a := NewSeeded(3)
	raw, err := a.InitialState(2)
	if err != nil {
		t.Fatalf("InitialState: %v", err)
	}

	// seat 1 acts first (after dealer 0)
	raw = act(t, a, raw, 1, Action{Kind: "raise", Amount: 40})
	st := mustState(t, raw)
	if st.CurrentBet != 40 || st.Pot != 40 {
		t.Fatalf("bet=%d pot=%d after raise", st.CurrentBet, st.Pot)
	}

	// facing a bet, check is illegal
	if _, err := a.Apply(raw, 0, mustMarshal(t, Action{Kind: "check"})); !errors.Is(err, rules.ErrIllegalMove) {
		t.Fatalf("check against a bet: %v", err)
	}
	// acting out of turn is illegal
	if _, err := a.Apply(raw, 1, mustMarshal(t, Action{Kind: "call"})); !errors.Is(err, rules.ErrIllegalMove) {
		t.Fatalf("out of turn action: %v", err)
	}

	raw = act(t, a, raw, 0, Action{Kind: "call"})
	st = mustState(t, raw)
	if st.Stage != StageFlop {
		t.Fatalf("stage = %s after matched bets, want flop", st.Stage)
	}
	if st.Pot != 80 {
		t.Fatalf("pot = %d, want 80", st.Pot)
	}
	if len(st.Community) != 3 {
		t.Fatalf("community = %d, want 3", len(st.Community))
	}
}

func TestApply_FoldEndsHand(t *testing.T) {
	a := NewSeeded(11)
	raw, err := a.InitialState(2)
	if err != nil {
		t.Fatalf("InitialState: %v", err)
	}

	raw = act(t, a, raw, 1, Action{Kind: "raise", Amount: 100})
	raw = act(t, a, raw, 0, Action{Kind: "fold"})

	terminal, winner, err := a.IsTerminal(raw)
	if err != nil {
		t.Fatalf("IsTerminal: %v", err)
	}
	if !terminal || winner != 1 {
		t.Fatalf("terminal=%v winner=%d, want seat 1 by fold", terminal, winner)
	}
	st := mustState(t, raw)
	if st.Seats[1].Chips != defaultStartingChips {
		t.Fatalf("winner stack = %d, want pot returned", st.Seats[1].Chips)
	}
}

func TestApply_ShowdownAwardsPot(t *testing.T) {
	a := NewSeeded(42)
	raw, err := a.InitialState(2)
	if err != nil {
		t.Fatalf("InitialState: %v", err)
	}

	// check every street down to the river
	for street := 0; street < 4; street++ {
		st := mustState(t, raw)
		first := st.ToAct
		raw = act(t, a, raw, first, Action{Kind: "check"})
		st = mustState(t, raw)
		if !st.HandOver {
			raw = act(t, a, raw, st.ToAct, Action{Kind: "check"})
		}
	}

	terminal, winner, err := a.IsTerminal(raw)
	if err != nil {
		t.Fatalf("IsTerminal: %v", err)
	}
	if !terminal {
		t.Fatalf("hand not terminal after river betting")
	}
	st := mustState(t, raw)
	if st.Stage != StageShowdown {
		t.Fatalf("stage = %s, want showdown", st.Stage)
	}
	if len(st.Community) != 5 {
		t.Fatalf("community = %d, want 5", len(st.Community))
	}
	if winner >= 0 && st.BestHand == "" {
		t.Fatalf("winning hand has no description")
	}
	total := st.Seats[0].Chips + st.Seats[1].Chips
	if total != 2*defaultStartingChips {
		t.Fatalf("chips not conserved: %d", total)
	}
}

func TestApply_PureAndDeterministic(t *testing.T) {
	a := NewSeeded(5)
	raw, err := a.InitialState(3)
	if err != nil {
		t.Fatalf("InitialState: %v", err)
	}
	before := append(json.RawMessage(nil), raw...)

	payload := mustMarshal(t, Action{Kind: "raise", Amount: 60})
	next1, err := a.Apply(raw, 1, payload)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !bytes.Equal(raw, before) {
		t.Fatalf("Apply mutated its input")
	}
	next2, err := a.Apply(raw, 1, payload)
	if err != nil {
		t.Fatalf("Apply again: %v", err)
	}
	if !bytes.Equal(next1, next2) {
		t.Fatalf("Apply is not deterministic")
	}
}

func TestLegalMoves_ChoiceSet(t *testing.T) {
	a := NewSeeded(9)
	raw, err := a.InitialState(2)
	if err != nil {
		t.Fatalf("InitialState: %v", err)
	}

	moves, err := a.LegalMoves(raw, 1)
	if err != nil {
		t.Fatalf("LegalMoves: %v", err)
	}
	kinds := map[string]bool{}
	for _, mv := range moves {
		var action Action
		if err := json.Unmarshal(mv, &action); err != nil {
			t.Fatalf("decode option: %v", err)
		}
		kinds[action.Kind] = true
	}
	if !kinds["fold"] || !kinds["check"] || !kinds["raise"] {
		t.Fatalf("missing options: %v", kinds)
	}
	if kinds["call"] {
		t.Fatalf("call offered with no bet outstanding")
	}

	// out-of-turn seat gets no choices
	moves, err = a.LegalMoves(raw, 0)
	if err != nil || len(moves) != 0 {
		t.Fatalf("out-of-turn choices = %d, %v", len(moves), err)
	}
}

func TestNotate_Actions(t *testing.T) {
	a := NewSeeded(2)
	raw, err := a.InitialState(2)
	if err != nil {
		t.Fatalf("InitialState: %v", err)
	}
	text, err := a.Notate(raw, 1, mustMarshal(t, Action{Kind: "raise", Amount: 40}))
	if err != nil || text != "raise to 40" {
		t.Fatalf("notate raise = %q, %v", text, err)
	}
	text, err = a.Notate(raw, 1, mustMarshal(t, Action{Kind: "fold"}))
	if err != nil || text != "fold" {
		t.Fatalf("notate fold = %q, %v", text, err)
	}
}

func mustMarshal(t *testing.T, action Action) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(action)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}
