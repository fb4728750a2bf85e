package engine

import "sort"

type ScoreEntry struct {
	Seat       int    `json:"seat"`
	UserID     int64  `json:"userId,string"`
	Alias      string `json:"alias"`
	Score      int    `json:"score"`
	TricksWon  int    `json:"tricksWon"`
	DealPoints int    `json:"dealPoints"`
}

// ScoreBoard is a pure projection: safe to compute at any time, always
// identical for identical deal history.
type ScoreBoard struct {
	Variant   Variant      `json:"variant"`
	Deals     []DealRecord `json:"deals"`
	Entries   []ScoreEntry `json:"entries"`
	Ranking   []int        `json:"ranking"` // seat indexes, best first
	LoserSeat int          `json:"loserSeat"`
}

// Tally aggregates the deal records and live counters into an ordered
// scoreboard. Ties are broken by clockwise proximity to the dealer's
// left, so a single winner can always be named.
func Tally(s *Session) ScoreBoard {
	board := ScoreBoard{
		Variant:   s.Variant,
		Deals:     append([]DealRecord(nil), s.Deals...),
		Entries:   make([]ScoreEntry, len(s.Seats)),
		Ranking:   make([]int, len(s.Seats)),
		LoserSeat: s.LoserSeat,
	}
	for i, seat := range s.Seats {
		board.Entries[i] = ScoreEntry{
			Seat:       i,
			UserID:     seat.UserID,
			Alias:      seat.Alias,
			Score:      seat.Score,
			TricksWon:  seat.TricksWon,
			DealPoints: seat.DealPoints,
		}
		board.Ranking[i] = i
	}
	sort.SliceStable(board.Ranking, func(a, b int) bool {
		sa, sb := board.Ranking[a], board.Ranking[b]
		if s.Seats[sa].Score != s.Seats[sb].Score {
			return s.Seats[sa].Score > s.Seats[sb].Score
		}
		return rankFromDealer(s, sa) < rankFromDealer(s, sb)
	})
	return board
}
