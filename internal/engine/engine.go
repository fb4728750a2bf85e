package engine

import (
	"fmt"
	"time"

	appErr "cardtable-service/pkg/errors"
)

type ActionType string

const (
	ActionReady     ActionType = "ready"
	ActionBid       ActionType = "bid"
	ActionPlayCard  ActionType = "play_card"
	ActionPass      ActionType = "pass"
	ActionTakeTrick ActionType = "take_trick"
)

// Action is one player input. Card is read only for play_card, Bid only
// for bid.
type Action struct {
	Type ActionType `json:"type"`
	Seat int        `json:"seat"`
	Card Card       `json:"card"`
	Bid  int        `json:"bid"`
}

type SeatUser struct {
	UserID int64
	Alias  string
}

// NewSession builds a waiting session with seats pre-filled by the
// lobby. The deck is built and shuffled immediately so the conservation
// invariant holds from the first persisted state.
func NewSession(id string, variant Variant, users []SeatUser, seed int64, now time.Time) (*Session, error) {
	rules, err := rulesFor(variant)
	if err != nil {
		return nil, err
	}
	if len(users) < rules.MinSeats() {
		return nil, fmt.Errorf("%w: need at least %d seats", appErr.ErrNoActiveSeats, rules.MinSeats())
	}
	s := &Session{
		ID:         id,
		Variant:    variant,
		Status:     StatusWaiting,
		Phase:      PhaseWaiting,
		DealerSeat: 0,
		Current:    -1,
		Attacker:   -1,
		Defender:   -1,
		Deck:       ShuffleDeck(BuildDeck(variant), seed),
		DealNumber: 1,
		Seed:       seed,
		WinnerSeat: -1,
		LoserSeat:  -1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, u := range users {
		if _, err := RegisterSeat(s, u, now); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RegisterSeat adds a late joiner to a waiting session.
func RegisterSeat(s *Session, user SeatUser, now time.Time) (*Seat, error) {
	rules, err := rulesFor(s.Variant)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusWaiting {
		return nil, appErr.ErrSessionFinished
	}
	if len(s.Seats) >= rules.MaxSeats() {
		return nil, appErr.ErrSeatsFull
	}
	if s.seatByUser(user.UserID) != nil {
		return nil, appErr.ErrAlreadySeated
	}
	s.Seats = append(s.Seats, Seat{
		SeatIndex:    len(s.Seats),
		UserID:       user.UserID,
		Alias:        user.Alias,
		Connected:    true,
		LastActiveAt: now,
		Bid:          -1,
	})
	return &s.Seats[len(s.Seats)-1], nil
}

// MarkConnected records presence. It never changes turn order by
// itself; the timeout sweeper decides what to do with an absent seat.
func MarkConnected(s *Session, seatIdx int, connected bool, now time.Time) error {
	seat := s.seat(seatIdx)
	if seat == nil {
		return appErr.ErrSeatAccessDenied
	}
	seat.Connected = connected
	if connected {
		seat.LastActiveAt = now
	}
	return nil
}

// Apply is the pure transition function: it validates the action against
// a clone of the session and returns the new state, leaving the input
// untouched. Validation failures return (nil, err). A conservation
// violation returns the frozen state together with ErrInvariantViolation
// so the caller can persist the freeze.
func Apply(s *Session, act Action, now time.Time) (*Session, error) {
	rules, err := rulesFor(s.Variant)
	if err != nil {
		return nil, err
	}
	switch s.Status {
	case StatusError:
		return nil, appErr.ErrSessionFrozen
	case StatusFinished:
		return nil, appErr.ErrSessionFinished
	}
	if s.seat(act.Seat) == nil {
		return nil, appErr.ErrSeatAccessDenied
	}

	next := s.Clone()
	next.UpdatedAt = now

	switch act.Type {
	case ActionReady:
		err = applyReady(next, rules, act.Seat, now)
	case ActionBid:
		err = applyBid(next, rules, act.Seat, act.Bid, now)
	case ActionPlayCard:
		err = applyPlay(next, rules, act.Seat, act.Card, now)
	case ActionPass:
		err = applyPass(next, rules, act.Seat, now)
	case ActionTakeTrick:
		err = applyTake(next, rules, act.Seat, now)
	default:
		err = fmt.Errorf("%w: unknown action %q", appErr.ErrIllegalMove, act.Type)
	}
	if err != nil {
		return nil, err
	}

	if next.Status == StatusInProgress || next.Status == StatusFinished {
		if invErr := next.checkConservation(); invErr != nil {
			next.freeze(invErr.Error())
			return next, invErr
		}
	}
	return next, nil
}

func applyReady(s *Session, rules RuleSet, seatIdx int, now time.Time) error {
	if s.Status != StatusWaiting {
		return fmt.Errorf("%w: session already started", appErr.ErrIllegalMove)
	}
	seat := s.seat(seatIdx)
	seat.Ready = true
	seat.Connected = true
	seat.LastActiveAt = now
	for _, st := range s.Seats {
		if !st.Ready {
			return nil
		}
	}
	if len(s.Seats) < rules.MinSeats() {
		return nil
	}
	return startDeal(s, rules, now)
}

// startDeal consumes HandSize cards per seat in seat order from the
// shuffled stock, reveals trump, and opens bidding or the first trick.
func startDeal(s *Session, rules RuleSet, now time.Time) error {
	handSize := rules.HandSize(s.DealNumber)
	if len(s.Deck) < handSize*len(s.Seats) {
		return appErr.ErrInsufficientCards
	}
	s.Status = StatusDealing
	first, err := nextActiveSeat(s, s.DealerSeat)
	if err != nil {
		return err
	}
	for off := 0; off < len(s.Seats); off++ {
		idx := (first + off) % len(s.Seats)
		s.Seats[idx].Hand = append(s.Seats[idx].Hand, s.Deck[:handSize]...)
		s.Deck = s.Deck[handSize:]
	}

	if rules.TrumpMethod() == TrumpFlip && len(s.Deck) > 0 {
		// Bottom card of the stock, face up; drawn last.
		tc := s.Deck[len(s.Deck)-1]
		s.TrumpCard = &tc
		s.TrumpSuit = tc.Suit
		if tc.IsJoker() {
			s.TrumpSuit = ""
		}
	} else {
		s.TrumpCard = nil
		s.TrumpSuit = ""
	}

	s.Status = StatusInProgress
	s.Trick = Trick{LeadSeat: first}
	s.Current = first
	if rules.AttackDefend() {
		s.Attacker = first
		defender, err := nextActiveSeat(s, first)
		if err != nil {
			return err
		}
		s.Defender = defender
	}
	if rules.HasBidding() {
		s.Phase = PhaseBidding
	} else {
		s.Phase = PhaseTrick
	}
	s.TurnStart = now
	return nil
}

func applyBid(s *Session, rules RuleSet, seatIdx, bid int, now time.Time) error {
	if s.Phase != PhaseBidding {
		return fmt.Errorf("%w: not in bidding", appErr.ErrIllegalMove)
	}
	if seatIdx != s.Current {
		return appErr.ErrNotYourTurn
	}
	if err := validateBid(s, rules, seatIdx, bid); err != nil {
		return err
	}
	s.Seats[seatIdx].Bid = bid
	touchSeat(s, seatIdx, now)

	for _, seat := range s.Seats {
		if !seat.Out && seat.Bid < 0 {
			next, err := nextActiveSeat(s, seatIdx)
			if err != nil {
				return err
			}
			s.Current = next
			s.TurnStart = now
			return nil
		}
	}
	// Everyone has bid; the seat left of the dealer leads.
	first, err := nextActiveSeat(s, s.DealerSeat)
	if err != nil {
		return err
	}
	s.Phase = PhaseTrick
	s.Trick = Trick{LeadSeat: first}
	s.Current = first
	s.TurnStart = now
	return nil
}

func applyPlay(s *Session, rules RuleSet, seatIdx int, c Card, now time.Time) error {
	if s.Phase != PhaseTrick {
		return fmt.Errorf("%w: not in trick play", appErr.ErrIllegalMove)
	}
	if rules.AttackDefend() {
		return durakPlay(s, rules, seatIdx, c, now)
	}
	if seatIdx != s.Current {
		return appErr.ErrNotYourTurn
	}
	if s.handIndex(seatIdx, c) < 0 {
		return appErr.ErrCardNotInHand
	}
	if err := rules.IsLegalFollow(s, seatIdx, c); err != nil {
		return err
	}
	s.removeFromHand(seatIdx, c)
	if len(s.Trick.Cards) == 0 {
		s.Trick.LeadSeat = seatIdx
	}
	s.Trick.Cards = append(s.Trick.Cards, PlayedCard{Card: c, Seat: seatIdx, Covers: -1})
	touchSeat(s, seatIdx, now)

	if len(s.Trick.Cards) >= activeSeatCount(s) {
		return resolveTrick(s, rules, now)
	}
	next, err := nextActiveSeat(s, seatIdx)
	if err != nil {
		return err
	}
	s.Current = next
	s.TurnStart = now
	return nil
}

func applyPass(s *Session, rules RuleSet, seatIdx int, now time.Time) error {
	if s.Phase != PhaseTrick {
		return fmt.Errorf("%w: not in trick play", appErr.ErrIllegalMove)
	}
	if rules.AttackDefend() {
		return durakPass(s, rules, seatIdx, now)
	}
	return fmt.Errorf("%w: pass is not a move in this variant", appErr.ErrIllegalMove)
}

func applyTake(s *Session, rules RuleSet, seatIdx int, now time.Time) error {
	if s.Phase != PhaseTrick {
		return fmt.Errorf("%w: not in trick play", appErr.ErrIllegalMove)
	}
	if rules.AttackDefend() {
		return durakTake(s, rules, seatIdx, now)
	}
	return fmt.Errorf("%w: take is not a move in this variant", appErr.ErrIllegalMove)
}

// resolveTrick settles a completed trick in the plain trick-taking
// variants: the winner collects the cards, counters advance, hands
// refill, and the winner leads the next trick — or the deal completes
// when every hand is empty.
func resolveTrick(s *Session, rules RuleSet, now time.Time) error {
	winner := rules.ResolveTrickWinner(s.Trick, s.TrumpSuit)
	if winner < 0 {
		s.freeze("trick resolved without a winner")
		return appErr.ErrInvariantViolation
	}
	seat := &s.Seats[winner]
	for _, pc := range s.Trick.Cards {
		seat.Taken = append(seat.Taken, pc.Card)
		seat.DealPoints += rules.CardPoints(pc.Card)
	}
	seat.TricksWon++
	s.Trick = Trick{LeadSeat: winner}

	if rules.RefillsHands() {
		refillHands(s, winner, rules.HandSize(s.DealNumber))
	}

	handsEmpty := true
	for _, st := range s.Seats {
		if !st.Out && len(st.Hand) > 0 {
			handsEmpty = false
			break
		}
	}
	if handsEmpty {
		return completeDeal(s, rules, now)
	}
	s.Current = winner
	s.TurnStart = now
	return nil
}

// completeDeal snapshots the deal into an immutable record, applies
// variant scoring, and either redeals or finishes the game.
func completeDeal(s *Session, rules RuleSet, now time.Time) error {
	n := len(s.Seats)
	rec := DealRecord{
		DealNumber: s.DealNumber,
		TrumpSuit:  s.TrumpSuit,
		Bids:       make([]int, n),
		TricksWon:  make([]int, n),
		CardPoints: make([]int, n),
		Awarded:    make([]int, n),
	}
	for i, seat := range s.Seats {
		rec.Bids[i] = seat.Bid
		rec.TricksWon[i] = seat.TricksWon
	}
	rules.ComputeDealScore(s, &rec)
	s.Deals = append(s.Deals, rec)
	s.Phase = PhaseDealDone

	if rules.IsGameOver(s) {
		return finishGame(s, now)
	}
	return resetForNextDeal(s, rules, now)
}

func resetForNextDeal(s *Session, rules RuleSet, now time.Time) error {
	s.DealNumber++
	dealer, err := nextActiveSeat(s, s.DealerSeat)
	if err != nil {
		return err
	}
	s.DealerSeat = dealer
	for i := range s.Seats {
		s.Seats[i].Hand = nil
		s.Seats[i].Taken = nil
		s.Seats[i].TricksWon = 0
		s.Seats[i].DealPoints = 0
		s.Seats[i].Bid = -1
		s.Seats[i].Out = false
	}
	s.Discard = nil
	s.Trick = Trick{}
	s.TrumpCard = nil
	s.TrumpSuit = ""
	// Re-shuffle the full deck with a per-deal seed so every deal is
	// reproducible from the session seed alone.
	s.Deck = ShuffleDeck(BuildDeck(s.Variant), s.Seed+int64(s.DealNumber))
	return startDeal(s, rules, now)
}

func finishGame(s *Session, now time.Time) error {
	s.Status = StatusFinished
	s.Phase = PhaseGameOver
	s.Current = -1
	board := Tally(s)
	if len(board.Ranking) > 0 {
		s.WinnerSeat = board.Ranking[0]
	}
	s.UpdatedAt = now
	return nil
}

// CheckTurnTimeout auto-submits the variant default move for the seat
// whose turn has exceeded the timeout. Returns the advanced state and
// true when a move was applied.
func CheckTurnTimeout(s *Session, now time.Time, timeout time.Duration) (*Session, bool, error) {
	if s.Status != StatusInProgress || s.Current < 0 {
		return nil, false, nil
	}
	if s.TurnStart.IsZero() || now.Sub(s.TurnStart) <= timeout {
		return nil, false, nil
	}
	rules, err := rulesFor(s.Variant)
	if err != nil {
		return nil, false, err
	}
	act := rules.DefaultAction(s, s.Current)
	next, err := Apply(s, act, now)
	if err != nil {
		return next, false, err
	}
	// The seat did not act on its own; record it as absent.
	next.Seats[act.Seat].Connected = false
	return next, true, nil
}

func activeSeatCount(s *Session) int {
	n := 0
	for _, seat := range s.Seats {
		if !seat.Out {
			n++
		}
	}
	return n
}

func touchSeat(s *Session, seatIdx int, now time.Time) {
	s.Seats[seatIdx].LastActiveAt = now
	s.Seats[seatIdx].Connected = true
}

// refillHands tops hands back up to the deal's hand size, starting at
// the given seat and going clockwise, while stock remains.
func refillHands(s *Session, from int, handSize int) {
	n := len(s.Seats)
	for off := 0; off < n; off++ {
		idx := (from + off) % n
		seat := &s.Seats[idx]
		if seat.Out {
			continue
		}
		for len(seat.Hand) < handSize && len(s.Deck) > 0 {
			seat.Hand = append(seat.Hand, s.Deck[0])
			s.Deck = s.Deck[1:]
		}
	}
}

// firstLegalCard is the default-move fallback: the first card in hand
// the variant accepts right now.
func firstLegalCard(s *Session, rules RuleSet, seatIdx int) (Card, bool) {
	seat := s.seat(seatIdx)
	if seat == nil {
		return Card{}, false
	}
	for _, c := range seat.Hand {
		if rules.IsLegalFollow(s, seatIdx, c) == nil {
			return c, true
		}
	}
	return Card{}, false
}
