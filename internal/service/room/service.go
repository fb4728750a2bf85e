package room

import (
	"context"
	"errors"
	"fmt"

	"cardtable-service/internal/engine"
	"cardtable-service/internal/model"
	appErr "cardtable-service/pkg/errors"

	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type MutationParams struct {
	Name               string
	Variant            string
	SeatCount          int
	TurnTimeoutSeconds int
	Status             string
}

type ListResult struct {
	Items []model.Room `json:"items"`
	Total int64        `json:"total"`
}

// validateSeatCount keeps room configs playable: a composed table is
// handed straight to engine.NewSession, which rejects seat counts
// outside the variant's bounds, so a bad config would strand every
// queued player.
func validateSeatCount(variant engine.Variant, seatCount int) error {
	min, max, err := engine.SeatBounds(variant)
	if err != nil {
		return err
	}
	if seatCount < min || seatCount > max {
		return fmt.Errorf("%w: %s takes %d-%d seats, got %d",
			appErr.ErrInvalidSeatCount, variant, min, max, seatCount)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, params MutationParams) (*model.Room, error) {
	variant, err := engine.ParseVariant(params.Variant)
	if err != nil {
		return nil, err
	}
	if err := validateSeatCount(variant, params.SeatCount); err != nil {
		return nil, err
	}
	room := model.Room{
		Name:               params.Name,
		Variant:            string(variant),
		SeatCount:          params.SeatCount,
		TurnTimeoutSeconds: params.TurnTimeoutSeconds,
		Status:             params.Status,
	}
	if room.Status == "" {
		room.Status = "enabled"
	}
	if room.TurnTimeoutSeconds <= 0 {
		room.TurnTimeoutSeconds = 30
	}
	if err := s.db.WithContext(ctx).Create(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Service) Update(ctx context.Context, id int64, params MutationParams) (*model.Room, error) {
	var room model.Room
	if err := s.db.WithContext(ctx).First(&room, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrRoomNotFound
		}
		return nil, err
	}
	if params.Variant != "" {
		variant, err := engine.ParseVariant(params.Variant)
		if err != nil {
			return nil, err
		}
		room.Variant = string(variant)
	}
	if params.Name != "" {
		room.Name = params.Name
	}
	if params.SeatCount > 0 {
		room.SeatCount = params.SeatCount
	}
	if params.TurnTimeoutSeconds > 0 {
		room.TurnTimeoutSeconds = params.TurnTimeoutSeconds
	}
	if params.Status != "" {
		room.Status = params.Status
	}
	if err := validateSeatCount(engine.Variant(room.Variant), room.SeatCount); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*model.Room, error) {
	var room model.Room
	if err := s.db.WithContext(ctx).First(&room, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

// ListEnabled is the player-facing room list.
func (s *Service) ListEnabled(ctx context.Context) ([]model.Room, error) {
	var rooms []model.Room
	err := s.db.WithContext(ctx).Where("status = ?", "enabled").Order("id").Find(&rooms).Error
	return rooms, err
}

// AdminList pages through every room regardless of status.
func (s *Service) AdminList(ctx context.Context, page, pageSize int) (*ListResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	var result ListResult
	if err := s.db.WithContext(ctx).Model(&model.Room{}).Count(&result.Total).Error; err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).
		Order("id").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&result.Items).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}
