package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cardtable-service/internal/engine"
	"cardtable-service/internal/model"
	appErr "cardtable-service/pkg/errors"
	"cardtable-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SessionStore is the state-store boundary: versioned reads and
// version-conditioned writes over the persisted session, plus a
// change-feed for observers. There is no pessimistic locking anywhere;
// concurrent writers race on the version and exactly one wins.
type SessionStore interface {
	Create(ctx context.Context, roomID int64, sess *engine.Session) error
	// Read returns the session state and the version it was read at.
	Read(ctx context.Context, publicID string) (*engine.Session, int64, error)
	// Write commits newState if the row version still equals
	// expectedVersion; otherwise ErrStaleVersion and nothing changes.
	Write(ctx context.Context, publicID string, sess *engine.Session, expectedVersion int64) error
	// Subscribe delivers a tick whenever a write to the session
	// commits. The returned func cancels the subscription.
	Subscribe(ctx context.Context, publicID string) (<-chan struct{}, func(), error)
	// ListActive returns public ids of sessions the timeout sweeper
	// must visit.
	ListActive(ctx context.Context) ([]string, error)
	AppendDealLog(ctx context.Context, publicID string, rec engine.DealRecord) error
}

type gormStore struct {
	db  *gorm.DB
	rdb *redis.Client
}

// New builds the gorm+redis session store. rdb may be nil in tests;
// writes then skip the change-feed publish.
func New(db *gorm.DB, rdb *redis.Client) SessionStore {
	return &gormStore{db: db, rdb: rdb}
}

func (g *gormStore) Create(ctx context.Context, roomID int64, sess *engine.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	row := model.GameSession{
		PublicID:  sess.ID,
		RoomID:    roomID,
		Variant:   string(sess.Variant),
		Status:    string(sess.Status),
		Version:   1,
		StateJSON: raw,
	}
	return g.db.WithContext(ctx).Create(&row).Error
}

func (g *gormStore) Read(ctx context.Context, publicID string) (*engine.Session, int64, error) {
	var row model.GameSession
	err := g.db.WithContext(ctx).Where("public_id = ?", publicID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, appErr.ErrSessionNotFound
		}
		return nil, 0, err
	}
	var sess engine.Session
	if err := json.Unmarshal(row.StateJSON, &sess); err != nil {
		return nil, 0, fmt.Errorf("corrupt session state: %w", err)
	}
	return &sess, row.Version, nil
}

func (g *gormStore) Write(ctx context.Context, publicID string, sess *engine.Session, expectedVersion int64) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	res := g.db.WithContext(ctx).Model(&model.GameSession{}).
		Where("public_id = ? AND version = ?", publicID, expectedVersion).
		Updates(map[string]interface{}{
			"state_json": raw,
			"status":     string(sess.Status),
			"version":    expectedVersion + 1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Either the row is gone or another writer advanced it first.
		var count int64
		if err := g.db.WithContext(ctx).Model(&model.GameSession{}).
			Where("public_id = ?", publicID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return appErr.ErrSessionNotFound
		}
		return appErr.ErrStaleVersion
	}
	g.publish(ctx, publicID, expectedVersion+1)
	return nil
}

func (g *gormStore) publish(ctx context.Context, publicID string, version int64) {
	if g.rdb == nil {
		return
	}
	if err := g.rdb.Publish(ctx, changeChannel(publicID), version).Err(); err != nil {
		logger.Log.Warn("session change publish failed",
			zap.String("sessionID", publicID),
			zap.Error(err),
		)
	}
}

func (g *gormStore) Subscribe(ctx context.Context, publicID string) (<-chan struct{}, func(), error) {
	if g.rdb == nil {
		return nil, nil, errors.New("change feed unavailable without redis")
	}
	sub := g.rdb.Subscribe(ctx, changeChannel(publicID))
	ch := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		defer close(ch)
		msgs := sub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case ch <- struct{}{}:
				default: // observer will re-read anyway
				}
			}
		}
	}()
	cancel := func() {
		close(done)
		_ = sub.Close()
	}
	return ch, cancel, nil
}

func (g *gormStore) ListActive(ctx context.Context) ([]string, error) {
	var ids []string
	err := g.db.WithContext(ctx).Model(&model.GameSession{}).
		Where("status IN ?", []string{string(engine.StatusInProgress), string(engine.StatusDealing)}).
		Pluck("public_id", &ids).Error
	return ids, err
}

func (g *gormStore) AppendDealLog(ctx context.Context, publicID string, rec engine.DealRecord) error {
	var row model.GameSession
	if err := g.db.WithContext(ctx).Select("id").Where("public_id = ?", publicID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.ErrSessionNotFound
		}
		return err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return g.db.WithContext(ctx).Create(&model.DealLog{
		SessionID:  row.ID,
		DealNumber: rec.DealNumber,
		RecordJSON: raw,
	}).Error
}

func changeChannel(publicID string) string {
	return fmt.Sprintf("session:changed:%s", publicID)
}
