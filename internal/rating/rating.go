// Package rating implements Elo updates for completed sessions.
package rating

import "math"

const (
	// DefaultK is the rating sensitivity used when no override is configured.
	DefaultK = 32

	// DefaultRating seeds new participants.
	DefaultRating = 1200
)

// Outcome of a two-sided pairing, from A's perspective.
type Outcome int

const (
	AWins Outcome = iota
	BWins
	Draw
)

func (o Outcome) scoreA() float64 {
	switch o {
	case AWins:
		return 1
	case BWins:
		return 0
	default:
		return 0.5
	}
}

// Calculator is a pure Elo updater with a fixed K-factor.
type Calculator struct {
	k float64
}

func NewCalculator(k float64) *Calculator {
	if k <= 0 {
		k = DefaultK
	}
	return &Calculator{k: k}
}

// Expected returns the logistic expected score for a rated ratingA against
// ratingB.
func Expected(ratingA, ratingB int) float64 {
	return 1 / (1 + math.Pow(10, float64(ratingB-ratingA)/400))
}

// Update maps two ratings and an outcome to the updated pair. Both deltas
// are bounded by K and a draw between equal ratings is a no-op.
func (c *Calculator) Update(ratingA, ratingB int, outcome Outcome) (int, int) {
	expectedA := Expected(ratingA, ratingB)
	scoreA := outcome.scoreA()
	newA := float64(ratingA) + c.k*(scoreA-expectedA)
	newB := float64(ratingB) + c.k*((1-scoreA)-(1-expectedA))
	return int(math.Round(newA)), int(math.Round(newB))
}

// K reports the configured K-factor.
func (c *Calculator) K() float64 { return c.k }
