package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"cardtable-service/internal/config"
	"cardtable-service/internal/model"
	appErr "cardtable-service/pkg/errors"
	"cardtable-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errQueueMemberNotFound = errors.New("queue member not found")

type Config struct {
	QueueLockTTL     time.Duration
	QueueMemberTTL   time.Duration
	QueueTimeout     time.Duration
	SeatedNotifyTTL  time.Duration
	ComposerInterval time.Duration
}

func defaultConfig() Config {
	return Config{
		QueueLockTTL:     10 * time.Second,
		QueueMemberTTL:   3 * time.Minute,
		QueueTimeout:     3 * time.Minute,
		SeatedNotifyTTL:  5 * time.Minute,
		ComposerInterval: 500 * time.Millisecond,
	}
}

// SessionCreator is how the composer hands a full table to the game
// layer; it returns the new session's public id.
type SessionCreator interface {
	CreateSession(ctx context.Context, room model.Room, members []SeatedMember) (string, error)
}

type SeatedMember struct {
	UserID   int64
	Nickname string
}

type Service struct {
	db      *gorm.DB
	rdb     *redis.Client
	creator SessionCreator
	cfg     Config

	startOnce sync.Once
	startErr  error
}

func NewService(db *gorm.DB, rdb *redis.Client, creator SessionCreator) *Service {
	cfg := defaultConfig()
	if gc := config.GlobalConfig; gc != nil {
		if gc.Game.LobbyIntervalMS > 0 {
			cfg.ComposerInterval = time.Duration(gc.Game.LobbyIntervalMS) * time.Millisecond
		}
		if gc.Game.QueueTimeoutSec > 0 {
			cfg.QueueTimeout = time.Duration(gc.Game.QueueTimeoutSec) * time.Second
		}
	}
	return &Service{
		db:      db,
		rdb:     rdb,
		creator: creator,
		cfg:     cfg,
	}
}

// Start spawns one composer per enabled room.
func (s *Service) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		var rooms []model.Room
		err := s.db.WithContext(ctx).Where("status = ?", "enabled").Find(&rooms).Error
		if err != nil {
			s.startErr = err
			return
		}
		for _, room := range rooms {
			roomCopy := room
			go s.runComposer(ctx, roomCopy)
		}
	})
	return s.startErr
}

func (s *Service) JoinQueue(ctx context.Context, req JoinQueueRequest) error {
	room, err := s.loadRoom(ctx, req.RoomID)
	if err != nil {
		return err
	}
	if room == nil {
		return appErr.ErrRoomNotFound
	}
	if room.Status != "enabled" {
		return appErr.ErrRoomDisabled
	}

	var user model.User
	if err := s.db.WithContext(ctx).First(&user, req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.ErrUnauthorized
		}
		return err
	}

	queueKey := buildQueueKey(room.ID)
	memberID := strconv.FormatInt(req.UserID, 10)

	if _, err := s.rdb.ZScore(ctx, queueKey, memberID).Result(); err == nil {
		return appErr.ErrAlreadyInQueue
	} else if err != redis.Nil {
		return err
	}

	lockKey := buildQueueLockKey(req.UserID)
	gotLock, err := s.rdb.SetNX(ctx, lockKey, room.ID, s.cfg.QueueLockTTL).Result()
	if err != nil {
		return err
	}
	if !gotLock {
		return appErr.ErrQueueProcessing
	}
	defer s.rdb.Del(ctx, lockKey)

	member := queueMember{
		UserID:   req.UserID,
		RoomID:   req.RoomID,
		Nickname: user.Nickname,
		JoinedAt: time.Now(),
	}
	if err := s.saveQueueMember(ctx, member); err != nil {
		return err
	}

	score := float64(time.Now().UnixMilli())
	if err := s.rdb.ZAdd(ctx, queueKey, redis.Z{
		Score:  score,
		Member: memberID,
	}).Err(); err != nil {
		s.removeQueueMember(ctx, member.RoomID, member.UserID)
		return err
	}

	logger.Log.Info("user joined lobby queue",
		zap.Int64("userID", req.UserID),
		zap.Int64("roomID", req.RoomID),
	)
	return nil
}

func (s *Service) CancelQueue(ctx context.Context, req CancelQueueRequest) error {
	queueKey := buildQueueKey(req.RoomID)
	memberID := strconv.FormatInt(req.UserID, 10)
	_, err := s.rdb.ZRem(ctx, queueKey, memberID).Result()
	if err != nil && err != redis.Nil {
		return err
	}

	s.removeQueueMember(ctx, req.RoomID, req.UserID)
	s.rdb.Del(ctx, buildSeatNotifyKey(req.UserID))

	reason := req.Reason
	if reason == "" {
		reason = "user"
	}
	logger.Log.Info("lobby queue cancelled",
		zap.Int64("userID", req.UserID),
		zap.Int64("roomID", req.RoomID),
		zap.String("reason", reason),
	)
	return nil
}

func (s *Service) GetStatus(ctx context.Context, userID, roomID int64) (*StatusResult, error) {
	notifyKey := buildSeatNotifyKey(userID)
	payloadStr, err := s.rdb.Get(ctx, notifyKey).Result()
	if err == nil {
		var payload seatNotifyPayload
		if jsonErr := json.Unmarshal([]byte(payloadStr), &payload); jsonErr == nil {
			seat := payload.SeatIndex
			return &StatusResult{
				Status:    QueueStatusSeated,
				RoomID:    payload.RoomID,
				SessionID: payload.SessionID,
				SeatIndex: &seat,
			}, nil
		}
	} else if err != redis.Nil {
		return nil, err
	}

	queueKey := buildQueueKey(roomID)
	memberID := strconv.FormatInt(userID, 10)
	if _, err := s.rdb.ZScore(ctx, queueKey, memberID).Result(); err == nil {
		var joinedAt *time.Time
		if member, err := s.loadQueueMember(ctx, roomID, userID); err == nil {
			joined := member.JoinedAt
			joinedAt = &joined
		}
		return &StatusResult{
			Status:   QueueStatusQueued,
			RoomID:   roomID,
			JoinedAt: joinedAt,
		}, nil
	} else if err != redis.Nil {
		return nil, err
	}

	return &StatusResult{Status: QueueStatusIdle, RoomID: roomID}, nil
}

func (s *Service) runComposer(ctx context.Context, room model.Room) {
	logger.Log.Info("lobby composer started",
		zap.Int64("roomID", room.ID),
		zap.String("variant", room.Variant),
		zap.Int("seatCount", room.SeatCount),
	)

	ticker := time.NewTicker(s.cfg.ComposerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("lobby composer stopped", zap.Int64("roomID", room.ID))
			return
		case <-ticker.C:
			if err := s.tryCompose(ctx, room); err != nil {
				logger.Log.Warn("lobby compose error",
					zap.Int64("roomID", room.ID),
					zap.Error(err),
				)
			}
		}
	}
}

func (s *Service) tryCompose(ctx context.Context, room model.Room) error {
	if err := s.cleanupExpiredQueue(ctx, room.ID); err != nil {
		logger.Log.Warn("queue cleanup error",
			zap.Int64("roomID", room.ID),
			zap.Error(err),
		)
	}

	queueKey := buildQueueKey(room.ID)
	members, err := s.rdb.ZRange(ctx, queueKey, 0, int64(room.SeatCount-1)).Result()
	if err != nil {
		return err
	}
	if len(members) < room.SeatCount {
		return nil
	}

	seated := make([]SeatedMember, 0, room.SeatCount)
	memberIDs := make([]interface{}, 0, room.SeatCount)
	for _, member := range members {
		userID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		qm, err := s.loadQueueMember(ctx, room.ID, userID)
		if err != nil {
			if err == errQueueMemberNotFound {
				s.rdb.ZRem(ctx, queueKey, member)
				continue
			}
			return err
		}
		seated = append(seated, SeatedMember{UserID: qm.UserID, Nickname: qm.Nickname})
		memberIDs = append(memberIDs, member)
	}
	if len(seated) < room.SeatCount {
		return nil
	}
	seated = seated[:room.SeatCount]
	memberIDs = memberIDs[:room.SeatCount]

	sessionID, err := s.creator.CreateSession(ctx, room, seated)
	if err != nil {
		return err
	}

	if err := s.rdb.ZRem(ctx, queueKey, memberIDs...).Err(); err != nil {
		logger.Log.Warn("queue trim after compose failed",
			zap.Int64("roomID", room.ID),
			zap.Error(err),
		)
	}
	for seatIdx, member := range seated {
		s.removeQueueMember(ctx, room.ID, member.UserID)
		payload, _ := json.Marshal(seatNotifyPayload{
			RoomID:    room.ID,
			SessionID: sessionID,
			SeatIndex: seatIdx,
		})
		if err := s.rdb.Set(ctx, buildSeatNotifyKey(member.UserID), payload, s.cfg.SeatedNotifyTTL).Err(); err != nil {
			logger.Log.Warn("seat notify failed",
				zap.Int64("userID", member.UserID),
				zap.Error(err),
			)
		}
	}

	logger.Log.Info("table composed",
		zap.Int64("roomID", room.ID),
		zap.String("sessionID", sessionID),
		zap.Int("seats", len(seated)),
	)
	return nil
}

func (s *Service) cleanupExpiredQueue(ctx context.Context, roomID int64) error {
	if s.cfg.QueueTimeout <= 0 {
		return nil
	}
	queueKey := buildQueueKey(roomID)
	deadline := time.Now().Add(-s.cfg.QueueTimeout).UnixMilli()
	maxScore := strconv.FormatFloat(float64(deadline), 'f', 0, 64)

	members, err := s.rdb.ZRangeByScore(ctx, queueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: maxScore,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return err
	}

	for _, member := range members {
		userID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		if err := s.CancelQueue(ctx, CancelQueueRequest{
			UserID: userID,
			RoomID: roomID,
			Reason: "timeout",
		}); err != nil {
			logger.Log.Warn("queue timeout cancel failed",
				zap.Int64("userID", userID),
				zap.Int64("roomID", roomID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *Service) saveQueueMember(ctx context.Context, member queueMember) error {
	data, err := json.Marshal(member)
	if err != nil {
		return err
	}
	key := buildQueueMemberKey(member.RoomID, member.UserID)
	return s.rdb.Set(ctx, key, data, s.cfg.QueueMemberTTL).Err()
}

func (s *Service) loadQueueMember(ctx context.Context, roomID, userID int64) (queueMember, error) {
	var member queueMember
	key := buildQueueMemberKey(roomID, userID)
	data, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return member, errQueueMemberNotFound
		}
		return member, err
	}
	if err := json.Unmarshal([]byte(data), &member); err != nil {
		return member, err
	}
	return member, nil
}

func (s *Service) removeQueueMember(ctx context.Context, roomID, userID int64) {
	s.rdb.Del(ctx, buildQueueMemberKey(roomID, userID))
}

func (s *Service) loadRoom(ctx context.Context, roomID int64) (*model.Room, error) {
	var room model.Room
	err := s.db.WithContext(ctx).First(&room, roomID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

func buildQueueKey(roomID int64) string {
	return fmt.Sprintf("lobby:queue:%d", roomID)
}

func buildQueueMemberKey(roomID, userID int64) string {
	return fmt.Sprintf("lobby:member:%d:%d", roomID, userID)
}

func buildQueueLockKey(userID int64) string {
	return fmt.Sprintf("lobby:lock:%d", userID)
}

func buildSeatNotifyKey(userID int64) string {
	return fmt.Sprintf("lobby:seated:%d", userID)
}
