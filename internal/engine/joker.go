package engine

import (
	"fmt"

	appErr "cardtable-service/pkg/errors"
)

// Joker (Khishti scoring): four seats, rising hand sizes, a bid per
// seat per deal, jokers above all trumps. Hitting the bid exactly pays
// a premium; taking nothing on a positive bid is the khishti penalty.
type jokerRules struct{}

const (
	jokerSeats      = 4
	jokerTotalDeals = 8
	jokerMaxHand    = 8

	khishtiPenalty = -200
)

func (jokerRules) MinSeats() int { return jokerSeats }
func (jokerRules) MaxSeats() int { return jokerSeats }

// Deals 1..8 grow from one card to eight, leaving stock to flip trump
// from.
func (jokerRules) HandSize(dealNumber int) int {
	if dealNumber < 1 {
		return 1
	}
	if dealNumber > jokerMaxHand {
		return jokerMaxHand
	}
	return dealNumber
}

func (jokerRules) TrumpMethod() TrumpMethod { return TrumpFlip }
func (jokerRules) HasBidding() bool         { return true }
func (jokerRules) AttackDefend() bool       { return false }
func (jokerRules) RefillsHands() bool       { return false }

// Led suit must be followed when held; jokers are always legal.
func (jokerRules) IsLegalFollow(s *Session, seatIdx int, c Card) error {
	if c.IsJoker() {
		return nil
	}
	led, ok := s.Trick.ledSuit()
	if !ok {
		return nil
	}
	if c.Suit == led {
		return nil
	}
	for _, hc := range s.Seats[seatIdx].Hand {
		if !hc.IsJoker() && hc.Suit == led {
			return fmt.Errorf("%w: must follow %s", appErr.ErrIllegalMove, led)
		}
	}
	return nil
}

func (jokerRules) ResolveTrickWinner(t Trick, trump Suit) int {
	return highestBySuit(t, trump)
}

func (jokerRules) CardPoints(_ Card) int { return 0 }

func (jokerRules) ComputeDealScore(s *Session, rec *DealRecord) {
	for i, seat := range s.Seats {
		var awarded int
		switch {
		case seat.TricksWon == seat.Bid:
			awarded = 50 + 50*seat.Bid
		case seat.TricksWon == 0 && seat.Bid > 0:
			awarded = khishtiPenalty
		default:
			awarded = 10 * seat.TricksWon
		}
		rec.Awarded[i] = awarded
		s.Seats[i].Score += awarded
	}
}

func (jokerRules) IsGameOver(s *Session) bool {
	return len(s.Deals) >= jokerTotalDeals
}

func (r jokerRules) DefaultAction(s *Session, seatIdx int) Action {
	if s.Phase == PhaseBidding {
		return Action{Type: ActionBid, Seat: seatIdx, Bid: defaultLegalBid(s, r, seatIdx)}
	}
	if c, ok := firstLegalCard(s, r, seatIdx); ok {
		return Action{Type: ActionPlayCard, Seat: seatIdx, Card: c}
	}
	return Action{Type: ActionPass, Seat: seatIdx}
}

// validateBid enforces the range and the dealer restriction: the last
// bidder may not bring the total to exactly the number of tricks, so
// someone always misses.
func validateBid(s *Session, rules RuleSet, seatIdx, bid int) error {
	handSize := rules.HandSize(s.DealNumber)
	if bid < 0 || bid > handSize {
		return fmt.Errorf("%w: bid %d out of range 0..%d", appErr.ErrInvalidBid, bid, handSize)
	}
	if seatIdx != s.DealerSeat {
		return nil
	}
	total := bid
	for i, seat := range s.Seats {
		if i != seatIdx && seat.Bid >= 0 {
			total += seat.Bid
		}
	}
	if total == handSize {
		return fmt.Errorf("%w: dealer cannot close bids at %d", appErr.ErrInvalidBid, handSize)
	}
	return nil
}

func defaultLegalBid(s *Session, rules RuleSet, seatIdx int) int {
	for bid := 0; bid <= rules.HandSize(s.DealNumber); bid++ {
		if validateBid(s, rules, seatIdx, bid) == nil {
			return bid
		}
	}
	return 0
}
