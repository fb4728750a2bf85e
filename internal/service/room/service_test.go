package room_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"cardtable-service/internal/model"
	roomsvc "cardtable-service/internal/service/room"
	appErr "cardtable-service/pkg/errors"
	"cardtable-service/pkg/logger"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newRoomService(t *testing.T) (*gorm.DB, *roomsvc.Service) {
	t.Helper()
	logger.InitTestLogger()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Room{}); err != nil {
		t.Fatalf("failed to migrate room model: %v", err)
	}

	return db, roomsvc.NewService(db)
}

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()
	_, svc := newRoomService(t)

	created, err := svc.Create(ctx, roomsvc.MutationParams{
		Name:               "Durak 2p",
		Variant:            "durak",
		SeatCount:          2,
		TurnTimeoutSeconds: 20,
	})
	if err != nil {
		t.Fatalf("create room failed: %v", err)
	}
	if created.ID == 0 || created.Status != "enabled" {
		t.Fatalf("unexpected room: %+v", created)
	}
	if created.TurnTimeoutSeconds != 20 {
		t.Fatalf("turn timeout %d, want 20", created.TurnTimeoutSeconds)
	}
}

func TestCreateRoomRejectsUnknownVariant(t *testing.T) {
	ctx := context.Background()
	_, svc := newRoomService(t)

	_, err := svc.Create(ctx, roomsvc.MutationParams{
		Name:      "poker",
		Variant:   "texas_holdem",
		SeatCount: 6,
	})
	if !errors.Is(err, appErr.ErrUnknownVariant) {
		t.Fatalf("expected ErrUnknownVariant, got %v", err)
	}
}

func TestListEnabledSkipsDisabledRooms(t *testing.T) {
	ctx := context.Background()
	db, svc := newRoomService(t)

	rooms := []model.Room{
		{Name: "A", Variant: "durak", SeatCount: 2, Status: "enabled"},
		{Name: "B", Variant: "bura", SeatCount: 2, Status: "disabled"},
		{Name: "C", Variant: "joker_khishti", SeatCount: 4, Status: "enabled"},
	}
	if err := db.WithContext(ctx).Create(&rooms).Error; err != nil {
		t.Fatalf("seed rooms failed: %v", err)
	}

	visible, err := svc.ListEnabled(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("expected 2 enabled rooms, got %d", len(visible))
	}

	all, err := svc.AdminList(ctx, 1, 2)
	if err != nil {
		t.Fatalf("admin list failed: %v", err)
	}
	if all.Total != 3 {
		t.Fatalf("expected total=3, got %d", all.Total)
	}
	if len(all.Items) != 2 {
		t.Fatalf("expected page size 2, got %d", len(all.Items))
	}
}

func TestUpdateRoomNotFound(t *testing.T) {
	ctx := context.Background()
	_, svc := newRoomService(t)

	_, err := svc.Update(ctx, 999, roomsvc.MutationParams{Name: "missing"})
	if !errors.Is(err, appErr.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestRoomMutationRejectsUnplayableSeatCount(t *testing.T) {
	ctx := context.Background()
	_, svc := newRoomService(t)

	// A composed table goes straight to the engine, which would refuse
	// these seat counts and leave the queue stuck.
	_, err := svc.Create(ctx, roomsvc.MutationParams{
		Name:      "Joker 3p",
		Variant:   "joker_khishti",
		SeatCount: 3,
	})
	if !errors.Is(err, appErr.ErrInvalidSeatCount) {
		t.Fatalf("expected ErrInvalidSeatCount, got %v", err)
	}
	_, err = svc.Create(ctx, roomsvc.MutationParams{
		Name:      "Durak 6p",
		Variant:   "durak",
		SeatCount: 6,
	})
	if !errors.Is(err, appErr.ErrInvalidSeatCount) {
		t.Fatalf("expected ErrInvalidSeatCount, got %v", err)
	}

	created, err := svc.Create(ctx, roomsvc.MutationParams{
		Name:      "Durak 2p",
		Variant:   "durak",
		SeatCount: 2,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	// A variant switch is checked against the seat count it lands with.
	_, err = svc.Update(ctx, created.ID, roomsvc.MutationParams{Variant: "joker_khishti"})
	if !errors.Is(err, appErr.ErrInvalidSeatCount) {
		t.Fatalf("expected ErrInvalidSeatCount on variant switch, got %v", err)
	}
	_, err = svc.Update(ctx, created.ID, roomsvc.MutationParams{Variant: "joker_khishti", SeatCount: 4})
	if err != nil {
		t.Fatalf("variant switch with matching seats failed: %v", err)
	}
}

func TestUpdateRoomPartial(t *testing.T) {
	ctx := context.Background()
	_, svc := newRoomService(t)

	created, err := svc.Create(ctx, roomsvc.MutationParams{
		Name:      "Bura",
		Variant:   "bura",
		SeatCount: 2,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := svc.Update(ctx, created.ID, roomsvc.MutationParams{Status: "disabled"})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Status != "disabled" {
		t.Fatalf("status %q, want disabled", updated.Status)
	}
	if updated.Name != "Bura" || updated.Variant != "bura" {
		t.Fatalf("untouched fields changed: %+v", updated)
	}
}
