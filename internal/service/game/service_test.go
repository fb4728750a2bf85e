package game_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"cardtable-service/internal/config"
	"cardtable-service/internal/engine"
	"cardtable-service/internal/model"
	"cardtable-service/internal/repo"
	gamesvc "cardtable-service/internal/service/game"
	"cardtable-service/internal/service/lobby"
	"cardtable-service/internal/store"
	appErr "cardtable-service/pkg/errors"
	"cardtable-service/pkg/logger"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newGameService(t *testing.T) (*gorm.DB, *gamesvc.Service) {
	t.Helper()
	logger.InitTestLogger()
	config.LoadTestDefaults()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := repo.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return db, gamesvc.NewService(db, store.New(db, nil))
}

func seedTable(t *testing.T, db *gorm.DB, svc *gamesvc.Service) string {
	t.Helper()
	ctx := context.Background()

	room := model.Room{Name: "Durak", Variant: "durak", SeatCount: 2, TurnTimeoutSeconds: 30, Status: "enabled"}
	if err := db.WithContext(ctx).Create(&room).Error; err != nil {
		t.Fatalf("seed room failed: %v", err)
	}

	publicID, err := svc.CreateSession(ctx, room, []lobby.SeatedMember{
		{UserID: 11, Nickname: "anna"},
		{UserID: 12, Nickname: "boris"},
	})
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	return publicID
}

func TestSubmitMoveRunsDealStart(t *testing.T) {
	db, svc := newGameService(t)
	ctx := context.Background()
	publicID := seedTable(t, db, svc)

	view, err := svc.SubmitMove(ctx, gamesvc.MoveRequest{
		SessionID: publicID,
		UserID:    11,
		Type:      engine.ActionReady,
	})
	if err != nil {
		t.Fatalf("first ready failed: %v", err)
	}
	if view.Status != engine.StatusWaiting {
		t.Fatalf("one ready should not start the deal, status=%s", view.Status)
	}

	view, err = svc.SubmitMove(ctx, gamesvc.MoveRequest{
		SessionID: publicID,
		UserID:    12,
		Type:      engine.ActionReady,
	})
	if err != nil {
		t.Fatalf("second ready failed: %v", err)
	}
	if view.Status != engine.StatusInProgress || view.Phase != engine.PhaseTrick {
		t.Fatalf("deal did not start: %s/%s", view.Status, view.Phase)
	}
	// The view is redacted for the caller, seat 1.
	if view.ViewerSeat != 1 {
		t.Fatalf("viewer seat %d, want 1", view.ViewerSeat)
	}
	if view.Seats[0].Hand != nil {
		t.Fatal("opponent hand leaked through the move response")
	}
	if len(view.Seats[1].Hand) != 6 {
		t.Fatalf("caller hand %d, want 6", len(view.Seats[1].Hand))
	}
}

func TestSubmitMoveRejectsStrangers(t *testing.T) {
	db, svc := newGameService(t)
	ctx := context.Background()
	publicID := seedTable(t, db, svc)

	_, err := svc.SubmitMove(ctx, gamesvc.MoveRequest{
		SessionID: publicID,
		UserID:    999,
		Type:      engine.ActionReady,
	})
	if !errors.Is(err, appErr.ErrSeatAccessDenied) {
		t.Fatalf("expected ErrSeatAccessDenied, got %v", err)
	}

	if _, err := svc.GetView(ctx, publicID, 999); !errors.Is(err, appErr.ErrSeatAccessDenied) {
		t.Fatalf("expected ErrSeatAccessDenied on view, got %v", err)
	}
	if _, err := svc.GetView(ctx, "missing", 11); !errors.Is(err, appErr.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSubmitMoveSurfacesRuleErrors(t *testing.T) {
	db, svc := newGameService(t)
	ctx := context.Background()
	publicID := seedTable(t, db, svc)

	for _, userID := range []int64{11, 12} {
		if _, err := svc.SubmitMove(ctx, gamesvc.MoveRequest{
			SessionID: publicID,
			UserID:    userID,
			Type:      engine.ActionReady,
		}); err != nil {
			t.Fatalf("ready failed: %v", err)
		}
	}

	// Seat 0 defends first and may not lead.
	view, err := svc.GetView(ctx, publicID, 11)
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
	card := view.Seats[view.ViewerSeat].Hand[0]
	_, err = svc.SubmitMove(ctx, gamesvc.MoveRequest{
		SessionID: publicID,
		UserID:    11,
		Type:      engine.ActionPlayCard,
		Card:      card.Code(),
	})
	if !errors.Is(err, appErr.ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}

	_, err = svc.SubmitMove(ctx, gamesvc.MoveRequest{
		SessionID: publicID,
		UserID:    12,
		Type:      engine.ActionPlayCard,
		Card:      "banana",
	})
	if !errors.Is(err, appErr.ErrInvalidCardCode) {
		t.Fatalf("expected ErrInvalidCardCode, got %v", err)
	}
}

func TestGetScoreBoard(t *testing.T) {
	db, svc := newGameService(t)
	ctx := context.Background()
	publicID := seedTable(t, db, svc)

	board, err := svc.GetScoreBoard(ctx, publicID, 11)
	if err != nil {
		t.Fatalf("score board failed: %v", err)
	}
	if len(board.Entries) != 2 || board.Variant != engine.VariantDurak {
		t.Fatalf("unexpected board: %+v", board)
	}
	if _, err := svc.GetScoreBoard(ctx, publicID, 999); !errors.Is(err, appErr.ErrSeatAccessDenied) {
		t.Fatalf("expected ErrSeatAccessDenied, got %v", err)
	}
}

func TestSetConnectedTracksPresence(t *testing.T) {
	db, svc := newGameService(t)
	ctx := context.Background()
	publicID := seedTable(t, db, svc)

	if err := svc.SetConnected(ctx, publicID, 11, false); err != nil {
		t.Fatalf("mark disconnected failed: %v", err)
	}
	view, err := svc.GetView(ctx, publicID, 11)
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
	if view.Seats[view.ViewerSeat].Connected {
		t.Fatal("seat still shown as connected")
	}

	if err := svc.SetConnected(ctx, publicID, 11, true); err != nil {
		t.Fatalf("mark connected failed: %v", err)
	}
	view, err = svc.GetView(ctx, publicID, 11)
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
	if !view.Seats[view.ViewerSeat].Connected {
		t.Fatal("reconnect not recorded")
	}

	if err := svc.SetConnected(ctx, publicID, 999, true); !errors.Is(err, appErr.ErrSeatAccessDenied) {
		t.Fatalf("expected ErrSeatAccessDenied, got %v", err)
	}
}
