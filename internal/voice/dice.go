package voice

import "math/rand/v2"

// Dice draws the contention roll for a voice request. Roll returns a value in
// [1, 5]; a draw of 3 denies the request.
type Dice interface {
	Roll() int
}

// DiceFunc adapts a function to Dice.
type DiceFunc func() int

func (f DiceFunc) Roll() int {
	return f()
}

const (
	diceFaces   = 5
	denyingRoll = 3
)

type randomDice struct{}

func (randomDice) Roll() int {
	return rand.IntN(diceFaces) + 1
}

// RandomDice returns the production dice backed by math/rand/v2.
func RandomDice() Dice {
	return randomDice{}
}
