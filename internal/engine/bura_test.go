package engine_test

import (
	"testing"

	"cardtable-service/internal/engine"
)

func newBuraPair(t *testing.T, seed int64) *engine.Session {
	t.Helper()
	sess, err := engine.NewSession("sess-bura", engine.VariantBura, []engine.SeatUser{
		{UserID: 201, Alias: "nino"},
		{UserID: 202, Alias: "dato"},
	}, seed, testNow)
	if err != nil {
		t.Fatalf("new session failed: %v", err)
	}
	return sess
}

func buraPoints(c engine.Card) int {
	switch c.Rank {
	case engine.Ace:
		return 11
	case engine.Ten:
		return 10
	case engine.King:
		return 4
	case engine.Queen:
		return 3
	case engine.Jack:
		return 2
	default:
		return 0
	}
}

func TestBuraDealSetup(t *testing.T) {
	sess := readyAll(t, newBuraPair(t, 7))

	if sess.Phase != engine.PhaseTrick {
		t.Fatalf("bura has no bidding, phase=%s", sess.Phase)
	}
	for i, seat := range sess.Seats {
		if len(seat.Hand) != 3 {
			t.Fatalf("seat %d hand %d, want 3", i, len(seat.Hand))
		}
	}
	if len(sess.Deck) != 30 {
		t.Fatalf("deck %d, want 30", len(sess.Deck))
	}
	if sess.TrumpCard == nil {
		t.Fatal("trump not revealed")
	}
}

func TestBuraTrickCollectsPointsAndRefills(t *testing.T) {
	sess := readyAll(t, newBuraPair(t, 7))

	first := sess.Current
	lead := sess.Seats[first].Hand[0]
	sess, err := engine.Apply(sess, engine.Action{Type: engine.ActionPlayCard, Seat: first, Card: lead}, testNow)
	if err != nil {
		t.Fatalf("lead failed: %v", err)
	}

	second := sess.Current
	if second == first {
		t.Fatalf("turn did not advance past seat %d", first)
	}
	reply := sess.Seats[second].Hand[0]
	sess, err = engine.Apply(sess, engine.Action{Type: engine.ActionPlayCard, Seat: second, Card: reply}, testNow)
	if err != nil {
		t.Fatalf("reply failed: %v", err)
	}

	winner := sess.Current
	if sess.Seats[winner].TricksWon != 1 {
		t.Fatalf("winner %d tricks=%d, want 1", winner, sess.Seats[winner].TricksWon)
	}
	if len(sess.Seats[winner].Taken) != 2 {
		t.Fatalf("winner took %d cards, want 2", len(sess.Seats[winner].Taken))
	}
	if want := buraPoints(lead) + buraPoints(reply); sess.Seats[winner].DealPoints != want {
		t.Fatalf("winner deal points %d, want %d", sess.Seats[winner].DealPoints, want)
	}
	for i, seat := range sess.Seats {
		if len(seat.Hand) != 3 {
			t.Fatalf("seat %d hand %d after refill, want 3", i, len(seat.Hand))
		}
	}
	if len(sess.Deck) != 28 {
		t.Fatalf("deck %d after refill, want 28", len(sess.Deck))
	}
}

// Plays whole deals with a trivial strategy until the match ends: the
// deal winner counter must reach three and the scoreboard must agree.
func TestBuraPlaysToThreeDealWins(t *testing.T) {
	sess := readyAll(t, newBuraPair(t, 7))

	for i := 0; sess.Status == engine.StatusInProgress; i++ {
		if i > 10000 {
			t.Fatal("game did not terminate")
		}
		cur := sess.Current
		card := sess.Seats[cur].Hand[0]
		next, err := engine.Apply(sess, engine.Action{Type: engine.ActionPlayCard, Seat: cur, Card: card}, testNow)
		if err != nil {
			t.Fatalf("move %d by seat %d failed: %v", i, cur, err)
		}
		sess = next
	}

	if sess.Status != engine.StatusFinished {
		t.Fatalf("unexpected terminal status %s", sess.Status)
	}
	if sess.WinnerSeat < 0 {
		t.Fatal("no winner recorded")
	}
	if sess.Seats[sess.WinnerSeat].Score < 3 {
		t.Fatalf("winner score %d, want >= 3", sess.Seats[sess.WinnerSeat].Score)
	}
	if len(sess.Deals) < 3 {
		t.Fatalf("only %d deals recorded", len(sess.Deals))
	}

	board := engine.Tally(sess)
	if board.Ranking[0] != sess.WinnerSeat {
		t.Fatalf("tally ranks %d first, winner is %d", board.Ranking[0], sess.WinnerSeat)
	}
	// Every deal awards exactly one win.
	for _, rec := range sess.Deals {
		total := 0
		for _, a := range rec.Awarded {
			total += a
		}
		if total != 1 {
			t.Fatalf("deal %d awarded %d wins, want 1", rec.DealNumber, total)
		}
	}
}
