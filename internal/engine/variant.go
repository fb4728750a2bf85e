package engine

import (
	"fmt"

	appErr "cardtable-service/pkg/errors"
)

type Variant string

const (
	VariantDurak Variant = "durak"
	VariantBura  Variant = "bura"
	VariantJoker Variant = "joker_khishti"
)

func ParseVariant(v string) (Variant, error) {
	switch Variant(v) {
	case VariantDurak, VariantBura, VariantJoker:
		return Variant(v), nil
	default:
		return "", fmt.Errorf("%w: %q", appErr.ErrUnknownVariant, v)
	}
}

// SeatBounds reports the seat counts a variant can be played with, for
// validation outside the engine (room configuration, matchmaking).
func SeatBounds(v Variant) (min, max int, err error) {
	rules, err := rulesFor(v)
	if err != nil {
		return 0, 0, err
	}
	return rules.MinSeats(), rules.MaxSeats(), nil
}

type TrumpMethod string

const (
	TrumpFlip TrumpMethod = "flip" // reveal the bottom card of the stock
	TrumpNone TrumpMethod = "none"
)

// RuleSet parameterizes the shared engine per variant. The engine is
// otherwise variant-agnostic: every deal/trick transition asks the rule
// set instead of duplicating per-game logic.
type RuleSet interface {
	MinSeats() int
	MaxSeats() int
	// HandSize for a given 1-based deal number.
	HandSize(dealNumber int) int
	TrumpMethod() TrumpMethod
	HasBidding() bool
	// AttackDefend switches the trick loop to Durak's attacker/defender
	// flow instead of one-card-per-seat trick taking.
	AttackDefend() bool
	// RefillsHands: whether hands draw back up from the stock after
	// each trick (Durak, Bura) or play out what was dealt (Joker).
	RefillsHands() bool
	// IsLegalFollow validates a candidate play against the live trick.
	IsLegalFollow(s *Session, seatIdx int, c Card) error
	// ResolveTrickWinner returns the seat that wins the completed trick.
	ResolveTrickWinner(t Trick, trump Suit) int
	// CardPoints is the point value of a captured card (zero in the
	// variants that only count tricks).
	CardPoints(c Card) int
	// ComputeDealScore fills rec.Awarded and updates cumulative seat
	// scores from this deal's counters.
	ComputeDealScore(s *Session, rec *DealRecord)
	IsGameOver(s *Session) bool
	// DefaultAction is submitted on a seat's behalf when its turn times
	// out.
	DefaultAction(s *Session, seatIdx int) Action
}

func rulesFor(v Variant) (RuleSet, error) {
	switch v {
	case VariantDurak:
		return durakRules{}, nil
	case VariantBura:
		return buraRules{}, nil
	case VariantJoker:
		return jokerRules{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", appErr.ErrUnknownVariant, v)
	}
}

// beats reports whether candidate wins over incumbent given the led and
// trump suits. Jokers beat everything; between two jokers the earlier
// play stands, which callers express by only replacing the incumbent
// when beats is true.
func beats(candidate, incumbent Card, led, trump Suit) bool {
	if incumbent.IsJoker() {
		return false
	}
	if candidate.IsJoker() {
		return true
	}
	if candidate.Suit == incumbent.Suit {
		return candidate.Rank > incumbent.Rank
	}
	if candidate.Suit == trump {
		return true
	}
	// Off-suit, non-trump cards never win.
	_ = led
	return false
}

// highestBySuit is the shared trick resolution for the plain
// trick-taking variants: highest trump wins, else highest card of the
// led suit, with jokers above all.
func highestBySuit(t Trick, trump Suit) int {
	if len(t.Cards) == 0 {
		return -1
	}
	led, _ := t.ledSuit()
	best := t.Cards[0]
	for _, pc := range t.Cards[1:] {
		if beats(pc.Card, best.Card, led, trump) {
			best = pc
		}
	}
	return best.Seat
}

// nextActiveSeat walks clockwise from the given seat, skipping seats
// that are out, wrapping around.
func nextActiveSeat(s *Session, from int) (int, error) {
	rules, err := rulesFor(s.Variant)
	if err != nil {
		return -1, err
	}
	active := 0
	for _, seat := range s.Seats {
		if !seat.Out {
			active++
		}
	}
	if active < rules.MinSeats() && active < 2 {
		return -1, appErr.ErrNoActiveSeats
	}
	n := len(s.Seats)
	for step := 1; step <= n; step++ {
		idx := (from + step) % n
		if !s.Seats[idx].Out {
			return idx, nil
		}
	}
	return -1, appErr.ErrNoActiveSeats
}

// rankFromDealer orders seats by clockwise distance from the dealer's
// left; it is the deterministic tie-break for final standings.
func rankFromDealer(s *Session, seatIdx int) int {
	n := len(s.Seats)
	return ((seatIdx-s.DealerSeat-1)%n + n) % n
}
