package engine

import (
	"fmt"
	"time"

	appErr "cardtable-service/pkg/errors"
)

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusDealing    Status = "dealing"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
	StatusError      Status = "error"
)

// Phase refines in_progress.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseBidding  Phase = "bidding"
	PhaseTrick    Phase = "trick"
	PhaseDealDone Phase = "deal_done"
	PhaseGameOver Phase = "game_over"
)

// Seat binds a player to a fixed turn-order position for the whole
// session. Hand is private to the seat; ProjectForSeat strips it from
// every other viewer.
type Seat struct {
	SeatIndex    int       `json:"seatIndex"`
	UserID       int64     `json:"userId,string"`
	Alias        string    `json:"alias"`
	Hand         []Card    `json:"hand"`
	Ready        bool      `json:"ready"`
	Connected    bool      `json:"connected"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	TricksWon    int       `json:"tricksWon"`
	DealPoints   int       `json:"dealPoints"` // card points this deal (Bura)
	Score        int       `json:"score"`      // cumulative across deals
	Bid          int       `json:"bid"`        // -1 until placed
	Taken        []Card    `json:"taken"`      // won pile this deal
	Out          bool      `json:"out"`        // emptied hand (Durak) or forfeited
}

// PlayedCard tags a trick card with the seat that played it. In Durak,
// Covers points at the attack card this card beats (-1 for attacks).
type PlayedCard struct {
	Card   Card `json:"card"`
	Seat   int  `json:"seat"`
	Covers int  `json:"covers"`
}

type Trick struct {
	LeadSeat int          `json:"leadSeat"`
	Cards    []PlayedCard `json:"cards"`
	// Conceded: the defender has declared a take. The attacker may still
	// throw in matching-rank cards before the pickup resolves.
	Conceded bool `json:"conceded,omitempty"`
}

func (t Trick) ledSuit() (Suit, bool) {
	for _, pc := range t.Cards {
		if !pc.Card.IsJoker() {
			return pc.Card.Suit, true
		}
	}
	return "", false
}

// DealRecord is immutable history of one completed deal, used only for
// scoring aggregation and audit.
type DealRecord struct {
	DealNumber int   `json:"dealNumber"`
	TrumpSuit  Suit  `json:"trumpSuit"`
	Bids       []int `json:"bids"`
	TricksWon  []int `json:"tricksWon"`
	CardPoints []int `json:"cardPoints"`
	Awarded    []int `json:"awarded"`
}

// Session is the whole persisted game state. It is mutated only through
// Apply/CheckTurnTimeout, which operate on a clone; the optimistic
// version counter lives on the store row, not here.
type Session struct {
	ID         string       `json:"id"`
	Variant    Variant      `json:"variant"`
	Status     Status       `json:"status"`
	Phase      Phase        `json:"phase"`
	Seats      []Seat       `json:"seats"`
	DealerSeat int          `json:"dealerSeat"`
	Current    int          `json:"current"`  // seat expected to act
	Attacker   int          `json:"attacker"` // Durak only
	Defender   int          `json:"defender"` // Durak only
	Deck       []Card       `json:"deck"`
	TrumpCard  *Card        `json:"trumpCard,omitempty"`
	TrumpSuit  Suit         `json:"trumpSuit"`
	Discard    []Card       `json:"discard"`
	Trick      Trick        `json:"trick"`
	DealNumber int          `json:"dealNumber"`
	Deals      []DealRecord `json:"deals"`
	Seed       int64        `json:"seed"`
	TurnStart  time.Time    `json:"turnStart"`
	WinnerSeat int          `json:"winnerSeat"` // -1 until decided
	LoserSeat  int          `json:"loserSeat"`  // Durak's inverse win condition
	Frozen     string       `json:"frozen,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

func (s *Session) seat(idx int) *Seat {
	if idx < 0 || idx >= len(s.Seats) {
		return nil
	}
	return &s.Seats[idx]
}

func (s *Session) seatByUser(userID int64) *Seat {
	for i := range s.Seats {
		if s.Seats[i].UserID == userID {
			return &s.Seats[i]
		}
	}
	return nil
}

// SeatIndexForUser maps an authenticated user to their seat, for the
// authorization check outside the engine boundary.
func (s *Session) SeatIndexForUser(userID int64) (int, bool) {
	if seat := s.seatByUser(userID); seat != nil {
		return seat.SeatIndex, true
	}
	return -1, false
}

func (s *Session) handIndex(seatIdx int, c Card) int {
	seat := s.seat(seatIdx)
	if seat == nil {
		return -1
	}
	for i, hc := range seat.Hand {
		if hc == c {
			return i
		}
	}
	return -1
}

func (s *Session) removeFromHand(seatIdx int, c Card) bool {
	i := s.handIndex(seatIdx, c)
	if i < 0 {
		return false
	}
	seat := &s.Seats[seatIdx]
	seat.Hand = append(seat.Hand[:i], seat.Hand[i+1:]...)
	return true
}

// Clone deep-copies the session so Apply can mutate freely and return
// the caller's state untouched on rejection.
func (s *Session) Clone() *Session {
	out := *s
	out.Seats = make([]Seat, len(s.Seats))
	for i, seat := range s.Seats {
		cp := seat
		cp.Hand = append([]Card(nil), seat.Hand...)
		cp.Taken = append([]Card(nil), seat.Taken...)
		out.Seats[i] = cp
	}
	out.Deck = append([]Card(nil), s.Deck...)
	out.Discard = append([]Card(nil), s.Discard...)
	out.Trick.Cards = append([]PlayedCard(nil), s.Trick.Cards...)
	out.Deals = make([]DealRecord, len(s.Deals))
	for i, d := range s.Deals {
		cp := d
		cp.Bids = append([]int(nil), d.Bids...)
		cp.TricksWon = append([]int(nil), d.TricksWon...)
		cp.CardPoints = append([]int(nil), d.CardPoints...)
		cp.Awarded = append([]int(nil), d.Awarded...)
		out.Deals[i] = cp
	}
	if s.TrumpCard != nil {
		tc := *s.TrumpCard
		out.TrumpCard = &tc
	}
	return &out
}

// checkConservation verifies the core invariant: deck, hands, trick,
// discard and won piles partition the variant's full deck exactly.
func (s *Session) checkConservation() error {
	want := make(map[Card]int, 36)
	for _, c := range BuildDeck(s.Variant) {
		want[c]++
	}
	got := make(map[Card]int, 36)
	count := func(cards []Card) {
		for _, c := range cards {
			got[c]++
		}
	}
	count(s.Deck)
	count(s.Discard)
	for _, seat := range s.Seats {
		count(seat.Hand)
		count(seat.Taken)
	}
	for _, pc := range s.Trick.Cards {
		got[pc.Card]++
	}
	if s.TrumpCard != nil {
		// Trump card sits face up under the deck; it is counted as
		// part of Deck, never separately.
		_ = s.TrumpCard
	}
	for c, n := range want {
		if got[c] != n {
			return fmt.Errorf("%w: card %s count %d, want %d", appErr.ErrInvariantViolation, c.Code(), got[c], n)
		}
	}
	for c, n := range got {
		if want[c] != n {
			return fmt.Errorf("%w: unexpected card %s", appErr.ErrInvariantViolation, c.Code())
		}
	}
	return nil
}

// freeze marks the session unrecoverable. Silent auto-repair could
// award points unfairly, so the state is preserved for inspection.
func (s *Session) freeze(reason string) {
	s.Status = StatusError
	s.Frozen = reason
}
