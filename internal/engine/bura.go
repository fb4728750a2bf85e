package engine

// Bura: three-card hands over the 36-card deck, tricks collect point
// cards (A=11, 10=10, K=4, Q=3, J=2), the seat with the most card
// points takes the deal and the first seat to three deal wins takes the
// game.
type buraRules struct{}

const (
	buraHandSize   = 3
	buraTargetWins = 3
)

func (buraRules) MinSeats() int            { return 2 }
func (buraRules) MaxSeats() int            { return 4 }
func (buraRules) HandSize(_ int) int       { return buraHandSize }
func (buraRules) TrumpMethod() TrumpMethod { return TrumpFlip }
func (buraRules) HasBidding() bool         { return false }
func (buraRules) AttackDefend() bool       { return false }
func (buraRules) RefillsHands() bool       { return true }

// Any held card may be thrown; Bura has no follow obligation.
func (buraRules) IsLegalFollow(_ *Session, _ int, _ Card) error { return nil }

func (buraRules) ResolveTrickWinner(t Trick, trump Suit) int {
	return highestBySuit(t, trump)
}

func (buraRules) CardPoints(c Card) int { return buraCardPoints(c) }

func buraCardPoints(c Card) int {
	switch c.Rank {
	case Ace:
		return 11
	case Ten:
		return 10
	case King:
		return 4
	case Queen:
		return 3
	case Jack:
		return 2
	default:
		return 0
	}
}

func (buraRules) ComputeDealScore(s *Session, rec *DealRecord) {
	winner := -1
	for i, seat := range s.Seats {
		rec.CardPoints[i] = seat.DealPoints
		if winner < 0 ||
			seat.DealPoints > s.Seats[winner].DealPoints ||
			(seat.DealPoints == s.Seats[winner].DealPoints &&
				rankFromDealer(s, i) < rankFromDealer(s, winner)) {
			winner = i
		}
	}
	if winner >= 0 {
		rec.Awarded[winner] = 1
		s.Seats[winner].Score++
	}
}

func (buraRules) IsGameOver(s *Session) bool {
	for _, seat := range s.Seats {
		if seat.Score >= buraTargetWins {
			return true
		}
	}
	return false
}

func (r buraRules) DefaultAction(s *Session, seatIdx int) Action {
	if c, ok := firstLegalCard(s, r, seatIdx); ok {
		return Action{Type: ActionPlayCard, Seat: seatIdx, Card: c}
	}
	return Action{Type: ActionPass, Seat: seatIdx}
}
