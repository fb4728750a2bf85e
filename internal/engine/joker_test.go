package engine_test

import (
	"errors"
	"testing"

	"cardtable-service/internal/engine"
	appErr "cardtable-service/pkg/errors"
)

func newJokerTable(t *testing.T, seed int64) *engine.Session {
	t.Helper()
	sess, err := engine.NewSession("sess-joker", engine.VariantJoker, []engine.SeatUser{
		{UserID: 301, Alias: "giorgi"},
		{UserID: 302, Alias: "lile"},
		{UserID: 303, Alias: "zura"},
		{UserID: 304, Alias: "keti"},
	}, seed, testNow)
	if err != nil {
		t.Fatalf("new session failed: %v", err)
	}
	return sess
}

func TestJokerRequiresExactlyFourSeats(t *testing.T) {
	_, err := engine.NewSession("s", engine.VariantJoker, []engine.SeatUser{
		{UserID: 1}, {UserID: 2},
	}, 1, testNow)
	if err == nil {
		t.Fatal("expected error for a two-seat joker table")
	}
}

func TestJokerBiddingOpensFirstDeal(t *testing.T) {
	sess := readyAll(t, newJokerTable(t, 99))

	if sess.Phase != engine.PhaseBidding {
		t.Fatalf("expected bidding, got %s", sess.Phase)
	}
	for i, seat := range sess.Seats {
		if len(seat.Hand) != 1 {
			t.Fatalf("deal 1 seat %d hand %d, want 1", i, len(seat.Hand))
		}
		if seat.Bid != -1 {
			t.Fatalf("seat %d bid pre-set to %d", i, seat.Bid)
		}
	}
	if len(sess.Deck) != 32 {
		t.Fatalf("deck %d, want 32", len(sess.Deck))
	}
	// Bidding starts left of the dealer.
	if sess.Current != 1 {
		t.Fatalf("expected seat 1 to open bidding, current=%d", sess.Current)
	}
}

func TestJokerDealerBidRestriction(t *testing.T) {
	sess := readyAll(t, newJokerTable(t, 99))

	// Seats 1..3 bid zero; the dealer may not close the total at the
	// hand size.
	for _, seatIdx := range []int{1, 2, 3} {
		next, err := engine.Apply(sess, engine.Action{Type: engine.ActionBid, Seat: seatIdx, Bid: 0}, testNow)
		if err != nil {
			t.Fatalf("bid by seat %d failed: %v", seatIdx, err)
		}
		sess = next
	}
	if sess.Current != 0 {
		t.Fatalf("dealer should bid last, current=%d", sess.Current)
	}

	if _, err := engine.Apply(sess, engine.Action{Type: engine.ActionBid, Seat: 0, Bid: 1}, testNow); !errors.Is(err, appErr.ErrInvalidBid) {
		t.Fatalf("expected ErrInvalidBid for forbidden dealer bid, got %v", err)
	}
	if _, err := engine.Apply(sess, engine.Action{Type: engine.ActionBid, Seat: 0, Bid: 5}, testNow); !errors.Is(err, appErr.ErrInvalidBid) {
		t.Fatalf("expected ErrInvalidBid for out-of-range bid, got %v", err)
	}

	next, err := engine.Apply(sess, engine.Action{Type: engine.ActionBid, Seat: 0, Bid: 0}, testNow)
	if err != nil {
		t.Fatalf("legal dealer bid failed: %v", err)
	}
	if next.Phase != engine.PhaseTrick {
		t.Fatalf("bidding should be closed, phase=%s", next.Phase)
	}
	if next.Current != 1 {
		t.Fatalf("seat left of dealer leads, current=%d", next.Current)
	}
}

// Runs all eight deals with a brute-force legal-move search and checks
// the khishti scoring table against what the engine recorded.
func TestJokerFullGameScoring(t *testing.T) {
	sess := readyAll(t, newJokerTable(t, 99))

	for i := 0; sess.Status == engine.StatusInProgress; i++ {
		if i > 10000 {
			t.Fatal("game did not terminate")
		}
		cur := sess.Current

		if sess.Phase == engine.PhaseBidding {
			placed := false
			for bid := 0; bid <= sess.DealNumber && !placed; bid++ {
				next, err := engine.Apply(sess, engine.Action{Type: engine.ActionBid, Seat: cur, Bid: bid}, testNow)
				if err == nil {
					sess = next
					placed = true
				}
			}
			if !placed {
				t.Fatalf("seat %d found no legal bid in deal %d", cur, sess.DealNumber)
			}
			continue
		}

		played := false
		for _, c := range sess.Seats[cur].Hand {
			next, err := engine.Apply(sess, engine.Action{Type: engine.ActionPlayCard, Seat: cur, Card: c}, testNow)
			if err == nil {
				sess = next
				played = true
				break
			}
		}
		if !played {
			t.Fatalf("seat %d found no legal card in deal %d", cur, sess.DealNumber)
		}
	}

	if sess.Status != engine.StatusFinished {
		t.Fatalf("unexpected terminal status %s", sess.Status)
	}
	if len(sess.Deals) != 8 {
		t.Fatalf("recorded %d deals, want 8", len(sess.Deals))
	}

	finalScores := make([]int, len(sess.Seats))
	for _, rec := range sess.Deals {
		tricks := 0
		for seatIdx := range sess.Seats {
			tricks += rec.TricksWon[seatIdx]

			var want int
			switch {
			case rec.TricksWon[seatIdx] == rec.Bids[seatIdx]:
				want = 50 + 50*rec.Bids[seatIdx]
			case rec.TricksWon[seatIdx] == 0 && rec.Bids[seatIdx] > 0:
				want = -200
			default:
				want = 10 * rec.TricksWon[seatIdx]
			}
			if rec.Awarded[seatIdx] != want {
				t.Fatalf("deal %d seat %d awarded %d, want %d (bid=%d tricks=%d)",
					rec.DealNumber, seatIdx, rec.Awarded[seatIdx], want,
					rec.Bids[seatIdx], rec.TricksWon[seatIdx])
			}
			finalScores[seatIdx] += rec.Awarded[seatIdx]
		}
		// Every trick of the deal has exactly one winner.
		if tricks != rec.DealNumber {
			t.Fatalf("deal %d distributed %d tricks, want %d", rec.DealNumber, tricks, rec.DealNumber)
		}
	}
	for i, seat := range sess.Seats {
		if seat.Score != finalScores[i] {
			t.Fatalf("seat %d score %d, expected %d from deal records", i, seat.Score, finalScores[i])
		}
	}

	board := engine.Tally(sess)
	if board.Ranking[0] != sess.WinnerSeat {
		t.Fatalf("tally ranks %d first, winner is %d", board.Ranking[0], sess.WinnerSeat)
	}
}
