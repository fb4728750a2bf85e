package engine

import (
	"fmt"
	"time"

	appErr "cardtable-service/pkg/errors"
)

// Durak: attacker leads, defender beats each attack card with a higher
// card of the same suit or any trump. The loser is the last player
// still holding cards once the stock runs dry, so the "winner" of the
// session is everyone else.
type durakRules struct{}

const (
	durakHandSize = 6
	// durakMaxAttacks caps one bout: at most six attack cards reach the
	// table regardless of how the bout ends.
	durakMaxAttacks = 6
)

// MaxSeats stops at 5: a sixth seat would consume the whole 36-card
// stock on the first deal, leaving no bottom card to flip for trump.
func (durakRules) MinSeats() int            { return 2 }
func (durakRules) MaxSeats() int            { return 5 }
func (durakRules) HandSize(_ int) int       { return durakHandSize }
func (durakRules) TrumpMethod() TrumpMethod { return TrumpFlip }
func (durakRules) HasBidding() bool         { return false }
func (durakRules) AttackDefend() bool       { return true }
func (durakRules) RefillsHands() bool       { return true }

func (durakRules) IsLegalFollow(s *Session, seatIdx int, c Card) error {
	switch seatIdx {
	case s.Attacker:
		if len(s.Trick.Cards) == 0 {
			return nil
		}
		if !rankOnTable(s, c.Rank) {
			return fmt.Errorf("%w: attack rank must match a card on the table", appErr.ErrIllegalMove)
		}
		if attacksInTrick(s) >= durakMaxAttacks {
			return fmt.Errorf("%w: attack limit reached", appErr.ErrIllegalMove)
		}
		if s.Trick.Conceded {
			// Throw-ins onto a conceded trick go straight to the
			// taker's hand, so the hand-size cap below does not apply.
			return nil
		}
		if uncoveredAttack(s) >= 0 {
			// The previous attack must be dealt with before piling on.
			return fmt.Errorf("%w: defender has not answered", appErr.ErrIllegalMove)
		}
		if attacksInTrick(s) >= len(s.Seats[s.Defender].Hand)+coveredAttacks(s) {
			return fmt.Errorf("%w: defender cannot cover more cards", appErr.ErrIllegalMove)
		}
		return nil
	case s.Defender:
		if s.Trick.Conceded {
			return fmt.Errorf("%w: trick already conceded", appErr.ErrIllegalMove)
		}
		idx := uncoveredAttack(s)
		if idx < 0 {
			return fmt.Errorf("%w: nothing to defend", appErr.ErrIllegalMove)
		}
		attack := s.Trick.Cards[idx].Card
		if !durakBeats(c, attack, s.TrumpSuit) {
			return fmt.Errorf("%w: %s does not beat %s", appErr.ErrIllegalMove, c.Code(), attack.Code())
		}
		return nil
	default:
		return appErr.ErrNotYourTurn
	}
}

// ResolveTrickWinner: a fully beaten attack is the defender's trick.
// The take case never reaches resolution; the engine routes it through
// durakTake.
func (durakRules) ResolveTrickWinner(t Trick, _ Suit) int {
	for _, pc := range t.Cards {
		if pc.Covers >= 0 {
			return pc.Seat
		}
	}
	if len(t.Cards) > 0 {
		return t.Cards[0].Seat
	}
	return -1
}

func (durakRules) ComputeDealScore(s *Session, rec *DealRecord) {
	for i := range s.Seats {
		if i == s.LoserSeat {
			rec.Awarded[i] = 0
		} else {
			rec.Awarded[i] = 1
			s.Seats[i].Score++
		}
	}
}

func (durakRules) IsGameOver(s *Session) bool {
	if len(s.Deck) > 0 {
		return false
	}
	holding := 0
	for _, seat := range s.Seats {
		if len(seat.Hand) > 0 {
			holding++
		}
	}
	return holding <= 1
}

func (durakRules) CardPoints(_ Card) int { return 0 }

func (r durakRules) DefaultAction(s *Session, seatIdx int) Action {
	if seatIdx == s.Defender && !s.Trick.Conceded && uncoveredAttack(s) >= 0 {
		return Action{Type: ActionTakeTrick, Seat: seatIdx}
	}
	if seatIdx == s.Attacker && (len(s.Trick.Cards) == 0 || s.Trick.Conceded) {
		if c, ok := firstLegalCard(s, r, seatIdx); ok {
			return Action{Type: ActionPlayCard, Seat: seatIdx, Card: c}
		}
	}
	return Action{Type: ActionPass, Seat: seatIdx}
}

// durakBeats is the defend rule: higher rank of the same suit, or any
// trump over a non-trump.
func durakBeats(candidate, attack Card, trump Suit) bool {
	if candidate.Suit == attack.Suit {
		return candidate.Rank > attack.Rank
	}
	return candidate.Suit == trump && attack.Suit != trump
}

func uncoveredAttack(s *Session) int {
	covered := make(map[int]bool)
	for _, pc := range s.Trick.Cards {
		if pc.Covers >= 0 {
			covered[pc.Covers] = true
		}
	}
	for i, pc := range s.Trick.Cards {
		if pc.Covers < 0 && !covered[i] {
			return i
		}
	}
	return -1
}

func attacksInTrick(s *Session) int {
	n := 0
	for _, pc := range s.Trick.Cards {
		if pc.Covers < 0 {
			n++
		}
	}
	return n
}

func coveredAttacks(s *Session) int {
	n := 0
	for _, pc := range s.Trick.Cards {
		if pc.Covers >= 0 {
			n++
		}
	}
	return n
}

func rankOnTable(s *Session, r Rank) bool {
	for _, pc := range s.Trick.Cards {
		if pc.Card.Rank == r {
			return true
		}
	}
	return false
}

// durakPlay routes a played card to the attack or defend slot.
func durakPlay(s *Session, rules RuleSet, seatIdx int, c Card, now time.Time) error {
	if seatIdx != s.Attacker && seatIdx != s.Defender {
		return appErr.ErrNotYourTurn
	}
	if seatIdx != s.Current {
		return appErr.ErrNotYourTurn
	}
	if err := rules.IsLegalFollow(s, seatIdx, c); err != nil {
		return err
	}
	if !s.removeFromHand(seatIdx, c) {
		return appErr.ErrCardNotInHand
	}
	covers := -1
	if seatIdx == s.Defender {
		covers = uncoveredAttack(s)
	}
	s.Trick.Cards = append(s.Trick.Cards, PlayedCard{Card: c, Seat: seatIdx, Covers: covers})
	if len(s.Trick.Cards) == 1 {
		s.Trick.LeadSeat = seatIdx
	}
	touchSeat(s, seatIdx, now)

	switch {
	case s.Trick.Conceded:
		// Piling onto a conceded trick; the attacker keeps the turn
		// until they pass the pickup out.
		s.Current = s.Attacker
	case seatIdx == s.Attacker:
		s.Current = s.Defender
	default:
		// Fully answered: attacker may pile on or pass the trick out.
		s.Current = s.Attacker
	}
	s.TurnStart = now
	return nil
}

// durakPass by the attacker closes the trick: on a conceded take the
// defender picks everything up, on a fully beaten attack the cards go
// to the discard pile and the defender leads next.
func durakPass(s *Session, rules RuleSet, seatIdx int, now time.Time) error {
	if seatIdx != s.Attacker {
		return appErr.ErrNotYourTurn
	}
	if len(s.Trick.Cards) == 0 {
		return fmt.Errorf("%w: nothing to pass on", appErr.ErrIllegalMove)
	}
	if s.Trick.Conceded {
		taker := s.Defender
		for _, pc := range s.Trick.Cards {
			s.Seats[taker].Hand = append(s.Seats[taker].Hand, pc.Card)
		}
		s.Trick = Trick{LeadSeat: taker}
		touchSeat(s, seatIdx, now)
		return durakAfterTrick(s, rules, taker, now)
	}
	if uncoveredAttack(s) >= 0 {
		return fmt.Errorf("%w: attack not yet beaten", appErr.ErrIllegalMove)
	}
	winner := rules.ResolveTrickWinner(s.Trick, s.TrumpSuit)
	for _, pc := range s.Trick.Cards {
		s.Discard = append(s.Discard, pc.Card)
	}
	s.Seats[winner].TricksWon++
	s.Trick = Trick{LeadSeat: winner}
	touchSeat(s, seatIdx, now)
	return durakAfterTrick(s, rules, winner, now)
}

// durakTake: the defender concedes the trick. The cards stay on the
// table until the attacker has finished throwing in matching-rank
// cards and passes; only then does the pickup resolve. Allowed out of
// strict turn order, since the attacker may be deciding whether to
// pile on.
func durakTake(s *Session, rules RuleSet, seatIdx int, now time.Time) error {
	if seatIdx != s.Defender {
		return appErr.ErrNotYourTurn
	}
	if len(s.Trick.Cards) == 0 {
		return fmt.Errorf("%w: nothing to take", appErr.ErrIllegalMove)
	}
	if s.Trick.Conceded {
		return fmt.Errorf("%w: trick already conceded", appErr.ErrIllegalMove)
	}
	s.Trick.Conceded = true
	s.Current = s.Attacker
	touchSeat(s, seatIdx, now)
	s.TurnStart = now
	return nil
}

// durakAfterTrick refills hands from the stock, retires emptied seats
// and either ends the deal or rotates attacker/defender with the trick
// winner leading.
func durakAfterTrick(s *Session, rules RuleSet, leader int, now time.Time) error {
	refillHands(s, s.Attacker, durakHandSize)
	for i := range s.Seats {
		if len(s.Seats[i].Hand) == 0 && len(s.Deck) == 0 {
			s.Seats[i].Out = true
		}
	}

	if rules.IsGameOver(s) {
		s.LoserSeat = -1
		for i := range s.Seats {
			if len(s.Seats[i].Hand) > 0 {
				s.LoserSeat = i
			}
		}
		return completeDeal(s, rules, now)
	}

	if s.Seats[leader].Out {
		next, err := nextActiveSeat(s, leader)
		if err != nil {
			return err
		}
		leader = next
	}
	s.Attacker = leader
	defender, err := nextActiveSeat(s, leader)
	if err != nil {
		return err
	}
	s.Defender = defender
	s.Current = s.Attacker
	s.TurnStart = now
	return nil
}
