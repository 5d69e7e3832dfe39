package pokerrules

import (
	"fmt"

	"github.com/paulhankin/poker"
)

// Suits use the ♣ → ♦ → ♥ → ♠ order; ranks run A=1 .. K=13. Both map
// one-to-one onto the evaluator's Suit/Rank values.
const (
	Club    = 0
	Diamond = 1
	Heart   = 2
	Spade   = 3
)

const (
	Ace   = 1
	Jack  = 11
	Queen = 12
	King  = 13
)

type Card struct {
	Suit uint8 `json:"s"`
	Rank uint8 `json:"r"`
}

func (c Card) String() string {
	suits := [...]string{"c", "d", "h", "s"}
	suit := "?"
	if int(c.Suit) < len(suits) {
		suit = suits[c.Suit]
	}
	var rank string
	switch c.Rank {
	case Ace:
		rank = "A"
	case 10:
		rank = "T"
	case Jack:
		rank = "J"
	case Queen:
		rank = "Q"
	case King:
		rank = "K"
	default:
		rank = fmt.Sprintf("%d", c.Rank)
	}
	return rank + suit
}

func (c Card) eval() (poker.Card, error) {
	return poker.MakeCard(poker.Suit(c.Suit), poker.Rank(c.Rank))
}

// newDeck returns all 52 cards in canonical order.
func newDeck() []Card {
	deck := make([]Card, 0, 52)
	for suit := uint8(0); suit <= 3; suit++ {
		for rank := uint8(1); rank <= 13; rank++ {
			deck = append(deck, Card{Suit: suit, Rank: rank})
		}
	}
	return deck
}

// score7 evaluates a 7-card hand (5 community + 2 hole); higher is better.
func score7(community []Card, hole []Card) (int16, error) {
	if len(community) != 5 || len(hole) != 2 {
		return 0, fmt.Errorf("showdown needs 5 community and 2 hole cards, got %d/%d", len(community), len(hole))
	}
	var hand [7]poker.Card
	for i, c := range community {
		pc, err := c.eval()
		if err != nil {
			return 0, fmt.Errorf("invalid community card %s: %w", c, err)
		}
		hand[i] = pc
	}
	for i, c := range hole {
		pc, err := c.eval()
		if err != nil {
			return 0, fmt.Errorf("invalid hole card %s: %w", c, err)
		}
		hand[5+i] = pc
	}
	return poker.Eval7(&hand), nil
}

// describe7 renders the best hand class for display at showdown.
func describe7(community []Card, hole []Card) (string, error) {
	if len(community) != 5 || len(hole) != 2 {
		return "", fmt.Errorf("hand not complete")
	}
	cards := make([]poker.Card, 0, 7)
	for _, c := range append(append([]Card{}, community...), hole...) {
		pc, err := c.eval()
		if err != nil {
			return "", err
		}
		cards = append(cards, pc)
	}
	return poker.Describe(cards)
}
