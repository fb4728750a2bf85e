package game

import (
	"context"
	"errors"
	"time"

	"cardtable-service/internal/config"
	"cardtable-service/internal/engine"
	"cardtable-service/internal/model"
	"cardtable-service/internal/service/lobby"
	"cardtable-service/internal/store"
	appErr "cardtable-service/pkg/errors"
	"cardtable-service/pkg/logger"
	"cardtable-service/pkg/utils/random"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// writeRetries bounds how many times a move is re-applied onto a fresh
// read after losing the version race.
const writeRetries = 3

type MoveRequest struct {
	SessionID string            `json:"-"`
	UserID    int64             `json:"-"`
	Type      engine.ActionType `json:"type" binding:"required"`
	Card      string            `json:"card"`
	Bid       *int              `json:"bid"`
}

type Service struct {
	db    *gorm.DB
	store store.SessionStore
}

func NewService(db *gorm.DB, st store.SessionStore) *Service {
	return &Service{db: db, store: st}
}

// CreateSession seats a composed lobby batch at a fresh table. Seat
// order follows queue order.
func (s *Service) CreateSession(ctx context.Context, room model.Room, members []lobby.SeatedMember) (string, error) {
	variant, err := engine.ParseVariant(room.Variant)
	if err != nil {
		return "", err
	}
	users := make([]engine.SeatUser, len(members))
	for i, m := range members {
		users[i] = engine.SeatUser{UserID: m.UserID, Alias: m.Nickname}
	}

	publicID := uuid.NewString()
	sess, err := engine.NewSession(publicID, variant, users, random.Seed(), time.Now())
	if err != nil {
		return "", err
	}
	if err := s.store.Create(ctx, room.ID, sess); err != nil {
		return "", err
	}

	logger.Log.Info("session created",
		zap.String("sessionID", publicID),
		zap.Int64("roomID", room.ID),
		zap.String("variant", room.Variant),
		zap.Int("seats", len(members)),
	)
	return publicID, nil
}

// SubmitMove validates the caller's seat, applies the action through
// the engine and commits it with a version-conditioned write. A lost
// version race is retried on a fresh read; the caller's action either
// lands on current state or fails for a real rule reason.
func (s *Service) SubmitMove(ctx context.Context, req MoveRequest) (engine.SessionView, error) {
	act := engine.Action{Type: req.Type}
	if req.Card != "" {
		card, err := engine.ParseCard(req.Card)
		if err != nil {
			return engine.SessionView{}, err
		}
		act.Card = card
	}
	if req.Bid != nil {
		act.Bid = *req.Bid
	} else {
		act.Bid = -1
	}

	var lastErr error
	for attempt := 0; attempt <= writeRetries; attempt++ {
		sess, version, err := s.store.Read(ctx, req.SessionID)
		if err != nil {
			return engine.SessionView{}, err
		}
		seatIdx, ok := sess.SeatIndexForUser(req.UserID)
		if !ok {
			return engine.SessionView{}, appErr.ErrSeatAccessDenied
		}
		act.Seat = seatIdx

		dealsBefore := len(sess.Deals)
		next, applyErr := engine.Apply(sess, act, time.Now())
		if applyErr != nil {
			if errors.Is(applyErr, appErr.ErrInvariantViolation) && next != nil {
				// Persist the frozen state so every later reader sees
				// the session is dead, then surface the violation.
				if werr := s.store.Write(ctx, req.SessionID, next, version); werr != nil && !errors.Is(werr, appErr.ErrStaleVersion) {
					logger.Log.Error("freeze persist failed",
						zap.String("sessionID", req.SessionID),
						zap.Error(werr),
					)
				}
				logger.Log.Error("session frozen on invariant violation",
					zap.String("sessionID", req.SessionID),
					zap.Int("seat", seatIdx),
				)
			}
			return engine.SessionView{}, applyErr
		}

		if err := s.store.Write(ctx, req.SessionID, next, version); err != nil {
			if errors.Is(err, appErr.ErrStaleVersion) {
				lastErr = err
				continue
			}
			return engine.SessionView{}, err
		}

		s.archiveNewDeals(ctx, req.SessionID, next, dealsBefore)
		return engine.ProjectForSeat(next, seatIdx), nil
	}
	return engine.SessionView{}, lastErr
}

// SetConnected records a seat's socket presence through the same
// version-checked write path as moves, so the timeout sweeper and other
// viewers see who is live. Finished and frozen sessions are left alone.
func (s *Service) SetConnected(ctx context.Context, publicID string, userID int64, connected bool) error {
	var lastErr error
	for attempt := 0; attempt <= writeRetries; attempt++ {
		sess, version, err := s.store.Read(ctx, publicID)
		if err != nil {
			return err
		}
		seatIdx, ok := sess.SeatIndexForUser(userID)
		if !ok {
			return appErr.ErrSeatAccessDenied
		}
		if sess.Status == engine.StatusFinished || sess.Status == engine.StatusError {
			return nil
		}
		if sess.Seats[seatIdx].Connected == connected {
			return nil
		}
		next := sess.Clone()
		if err := engine.MarkConnected(next, seatIdx, connected, time.Now()); err != nil {
			return err
		}
		if err := s.store.Write(ctx, publicID, next, version); err != nil {
			if errors.Is(err, appErr.ErrStaleVersion) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return lastErr
}

// GetView returns the session redacted for the calling user. Users not
// seated at the table are rejected.
func (s *Service) GetView(ctx context.Context, publicID string, userID int64) (engine.SessionView, error) {
	sess, _, err := s.store.Read(ctx, publicID)
	if err != nil {
		return engine.SessionView{}, err
	}
	seatIdx, ok := sess.SeatIndexForUser(userID)
	if !ok {
		return engine.SessionView{}, appErr.ErrSeatAccessDenied
	}
	return engine.ProjectForSeat(sess, seatIdx), nil
}

func (s *Service) GetScoreBoard(ctx context.Context, publicID string, userID int64) (engine.ScoreBoard, error) {
	sess, _, err := s.store.Read(ctx, publicID)
	if err != nil {
		return engine.ScoreBoard{}, err
	}
	if _, ok := sess.SeatIndexForUser(userID); !ok {
		return engine.ScoreBoard{}, appErr.ErrSeatAccessDenied
	}
	return engine.Tally(sess), nil
}

// StartSweeper runs the turn-timeout loop: every interval it visits
// active sessions and force-applies the variant default action for any
// seat whose turn clock ran out.
func (s *Service) StartSweeper(ctx context.Context) {
	interval := time.Second
	if gc := config.GlobalConfig; gc != nil && gc.Game.SweeperIntervalMS > 0 {
		interval = time.Duration(gc.Game.SweeperIntervalMS) * time.Millisecond
	}
	logger.Log.Info("turn timeout sweeper started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("turn timeout sweeper stopped")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Service) sweepOnce(ctx context.Context) {
	ids, err := s.store.ListActive(ctx)
	if err != nil {
		logger.Log.Warn("sweeper list failed", zap.Error(err))
		return
	}
	for _, id := range ids {
		if err := s.sweepSession(ctx, id); err != nil {
			logger.Log.Warn("sweep failed",
				zap.String("sessionID", id),
				zap.Error(err),
			)
		}
	}
}

func (s *Service) sweepSession(ctx context.Context, publicID string) error {
	sess, version, err := s.store.Read(ctx, publicID)
	if err != nil {
		if errors.Is(err, appErr.ErrSessionNotFound) {
			return nil
		}
		return err
	}

	timeout, err := s.turnTimeout(ctx, publicID)
	if err != nil {
		return err
	}

	dealsBefore := len(sess.Deals)
	next, fired, err := engine.CheckTurnTimeout(sess, time.Now(), timeout)
	if err != nil {
		if errors.Is(err, appErr.ErrInvariantViolation) && next != nil {
			if werr := s.store.Write(ctx, publicID, next, version); werr != nil && !errors.Is(werr, appErr.ErrStaleVersion) {
				return werr
			}
		}
		return err
	}
	if !fired {
		return nil
	}

	if err := s.store.Write(ctx, publicID, next, version); err != nil {
		// Somebody moved in time; their write wins and the clock resets.
		if errors.Is(err, appErr.ErrStaleVersion) {
			return nil
		}
		return err
	}
	s.archiveNewDeals(ctx, publicID, next, dealsBefore)

	logger.Log.Info("turn timed out",
		zap.String("sessionID", publicID),
		zap.Int("seat", sess.Current),
	)
	return nil
}

// turnTimeout resolves the pacing knob for a session from its room,
// falling back to the global default.
func (s *Service) turnTimeout(ctx context.Context, publicID string) (time.Duration, error) {
	var row struct {
		RoomID int64
	}
	err := s.db.WithContext(ctx).Model(&model.GameSession{}).
		Select("room_id").
		Where("public_id = ?", publicID).
		First(&row).Error
	if err != nil {
		return 0, err
	}

	seconds := 0
	if gc := config.GlobalConfig; gc != nil {
		seconds = gc.Game.TurnTimeoutSeconds
	}
	var room model.Room
	if err := s.db.WithContext(ctx).Select("turn_timeout_seconds").First(&room, row.RoomID).Error; err == nil {
		if room.TurnTimeoutSeconds > 0 {
			seconds = room.TurnTimeoutSeconds
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}
	if seconds <= 0 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second, nil
}

// archiveNewDeals appends any deal records completed by the last write
// to the audit log. Archive failures never fail the move.
func (s *Service) archiveNewDeals(ctx context.Context, publicID string, sess *engine.Session, dealsBefore int) {
	for i := dealsBefore; i < len(sess.Deals); i++ {
		if err := s.store.AppendDealLog(ctx, publicID, sess.Deals[i]); err != nil {
			logger.Log.Warn("deal log append failed",
				zap.String("sessionID", publicID),
				zap.Int("dealNumber", sess.Deals[i].DealNumber),
				zap.Error(err),
			)
		}
	}
}
