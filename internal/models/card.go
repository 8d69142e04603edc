// internal/models/card.go
package models

import "fmt"

// Color is the suit of a card. Quarte uses a four-color deck rather than
// traditional french suits.
type Color string

const (
	ColorRed    Color = "red"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
)

// ColorNone marks the absence of a trump color (without-trump rounds, or
// betting not yet resolved).
const ColorNone Color = ""

// Rank bounds for the deck. 4 colors x 8 ranks = 32 cards, 8 per hand.
const (
	MinRank = 1
	MaxRank = 8
)

// Colors returns the full color palette in deal order.
func Colors() []Color {
	return []Color{ColorRed, ColorBlue, ColorGreen, ColorYellow}
}

// Card is a single playing card. Two ranks are special-cased for scoring;
// which ones (and their values) is configuration, not a property of the card.
type Card struct {
	Color Color `json:"color"`
	Rank  int   `json:"rank"`
}

// Valid reports whether the card could exist in a Quarte deck.
func (c Card) Valid() bool {
	switch c.Color {
	case ColorRed, ColorBlue, ColorGreen, ColorYellow:
	default:
		return false
	}
	return c.Rank >= MinRank && c.Rank <= MaxRank
}

func (c Card) String() string {
	return fmt.Sprintf("%s-%d", c.Color, c.Rank)
}

// NewDeck builds the full 32-card deck in canonical order. Shuffling is the
// caller's responsibility.
func NewDeck() []Card {
	deck := make([]Card, 0, len(Colors())*MaxRank)
	for _, color := range Colors() {
		for rank := MinRank; rank <= MaxRank; rank++ {
			deck = append(deck, Card{Color: color, Rank: rank})
		}
	}
	return deck
}
