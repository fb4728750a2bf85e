package engine

import "time"

// SeatView is a seat as any viewer may see it: hands other than the
// viewer's own are reduced to a count.
type SeatView struct {
	SeatIndex int    `json:"seatIndex"`
	UserID    int64  `json:"userId,string"`
	Alias     string `json:"alias"`
	HandCount int    `json:"handCount"`
	Hand      []Card `json:"hand,omitempty"` // viewer's own seat only
	Ready     bool   `json:"ready"`
	Connected bool   `json:"connected"`
	TricksWon int    `json:"tricksWon"`
	Score     int    `json:"score"`
	Bid       int    `json:"bid"`
	Out       bool   `json:"out"`
}

// SessionView is the only shape ever sent to a client: other seats'
// hands and the face-down stock are stripped, trump/trick/discard and
// scores stay visible.
type SessionView struct {
	ID         string       `json:"id"`
	Variant    Variant      `json:"variant"`
	Status     Status       `json:"status"`
	Phase      Phase        `json:"phase"`
	Seats      []SeatView   `json:"seats"`
	ViewerSeat int          `json:"viewerSeat"`
	DealerSeat int          `json:"dealerSeat"`
	Current    int          `json:"current"`
	Attacker   int          `json:"attacker"`
	Defender   int          `json:"defender"`
	DeckCount  int          `json:"deckCount"`
	TrumpCard  *Card        `json:"trumpCard,omitempty"`
	TrumpSuit  Suit         `json:"trumpSuit"`
	Discard    []Card       `json:"discard"`
	Trick      Trick        `json:"trick"`
	DealNumber int          `json:"dealNumber"`
	Deals      []DealRecord `json:"deals"`
	WinnerSeat int          `json:"winnerSeat"`
	LoserSeat  int          `json:"loserSeat"`
	TurnStart  time.Time    `json:"turnStart"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// ProjectForSeat redacts the session for one viewer. Pass a negative
// viewerSeat for a fully redacted projection.
func ProjectForSeat(s *Session, viewerSeat int) SessionView {
	view := SessionView{
		ID:         s.ID,
		Variant:    s.Variant,
		Status:     s.Status,
		Phase:      s.Phase,
		Seats:      make([]SeatView, len(s.Seats)),
		ViewerSeat: viewerSeat,
		DealerSeat: s.DealerSeat,
		Current:    s.Current,
		Attacker:   s.Attacker,
		Defender:   s.Defender,
		DeckCount:  len(s.Deck),
		TrumpSuit:  s.TrumpSuit,
		Discard:    append([]Card(nil), s.Discard...),
		Trick:      Trick{LeadSeat: s.Trick.LeadSeat, Cards: append([]PlayedCard(nil), s.Trick.Cards...)},
		DealNumber: s.DealNumber,
		Deals:      append([]DealRecord(nil), s.Deals...),
		WinnerSeat: s.WinnerSeat,
		LoserSeat:  s.LoserSeat,
		TurnStart:  s.TurnStart,
		UpdatedAt:  s.UpdatedAt,
	}
	if s.TrumpCard != nil {
		tc := *s.TrumpCard
		view.TrumpCard = &tc
	}
	for i, seat := range s.Seats {
		sv := SeatView{
			SeatIndex: seat.SeatIndex,
			UserID:    seat.UserID,
			Alias:     seat.Alias,
			HandCount: len(seat.Hand),
			Ready:     seat.Ready,
			Connected: seat.Connected,
			TricksWon: seat.TricksWon,
			Score:     seat.Score,
			Bid:       seat.Bid,
			Out:       seat.Out,
		}
		if i == viewerSeat {
			sv.Hand = append([]Card(nil), seat.Hand...)
		}
		view.Seats[i] = sv
	}
	return view
}
