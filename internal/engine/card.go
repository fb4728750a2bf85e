package engine

import (
	"fmt"
	"math/rand"
	"strings"

	appErr "cardtable-service/pkg/errors"
)

type Suit string

const (
	Spades   Suit = "s"
	Hearts   Suit = "h"
	Diamonds Suit = "d"
	Clubs    Suit = "c"
)

var suits = []Suit{Spades, Hearts, Diamonds, Clubs}

// Rank 6..14 for the trimmed 36-card decks, 15 for jokers.
// Ace is always high.
type Rank int

const (
	Six   Rank = 6
	Seven Rank = 7
	Eight Rank = 8
	Nine  Rank = 9
	Ten   Rank = 10
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
	Ace   Rank = 14
	Joker Rank = 15
)

// Card is an immutable rank+suit value. Equality is by value; the two
// jokers carry distinct suits so they stay distinguishable in the
// conservation check.
type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

func (c Card) IsJoker() bool { return c.Rank == Joker }

// Code renders the usual short form: "As", "Td", "6c". Jokers render as
// "Xs"/"Xc".
func (c Card) Code() string {
	return c.rankCode() + string(c.Suit)
}

func (c Card) rankCode() string {
	switch c.Rank {
	case Ten:
		return "T"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	case Joker:
		return "X"
	default:
		return fmt.Sprintf("%d", int(c.Rank))
	}
}

// ParseCard is the inverse of Code. Used by the API layer when a client
// submits a played card.
func ParseCard(code string) (Card, error) {
	code = strings.TrimSpace(code)
	if len(code) != 2 {
		return Card{}, fmt.Errorf("%w: %q", appErr.ErrInvalidCardCode, code)
	}
	var rank Rank
	switch code[0] {
	case '6', '7', '8', '9':
		rank = Rank(code[0] - '0')
	case 'T', 't':
		rank = Ten
	case 'J', 'j':
		rank = Jack
	case 'Q', 'q':
		rank = Queen
	case 'K', 'k':
		rank = King
	case 'A', 'a':
		rank = Ace
	case 'X', 'x':
		rank = Joker
	default:
		return Card{}, fmt.Errorf("%w: bad rank in %q", appErr.ErrInvalidCardCode, code)
	}
	suit := Suit(strings.ToLower(code[1:]))
	switch suit {
	case Spades, Hearts, Diamonds, Clubs:
	default:
		return Card{}, fmt.Errorf("%w: bad suit in %q", appErr.ErrInvalidCardCode, code)
	}
	return Card{Rank: rank, Suit: suit}, nil
}

// BuildDeck returns the variant's full card set in canonical order.
// Durak and Bura use the trimmed 36-card deck. Joker uses the Georgian
// layout: 36 cards with the two black sixes replaced by jokers.
func BuildDeck(variant Variant) []Card {
	deck := make([]Card, 0, 36)
	for _, suit := range suits {
		for rank := Six; rank <= Ace; rank++ {
			deck = append(deck, Card{Rank: rank, Suit: suit})
		}
	}
	if variant == VariantJoker {
		for i := range deck {
			if deck[i].Rank == Six && (deck[i].Suit == Spades || deck[i].Suit == Clubs) {
				deck[i] = Card{Rank: Joker, Suit: deck[i].Suit}
			}
		}
	}
	return deck
}

// ShuffleDeck is a Fisher-Yates shuffle seeded explicitly so deals are
// reproducible in tests. It returns a new slice and never adds, drops
// or duplicates a card.
func ShuffleDeck(deck []Card, seed int64) []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
