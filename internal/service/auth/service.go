package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"cardtable-service/internal/config"
	"cardtable-service/internal/model"
	pkgAuth "cardtable-service/pkg/auth"
	appErr "cardtable-service/pkg/errors"
	"cardtable-service/pkg/logger"
	"cardtable-service/pkg/utils/random"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type LoginResult struct {
	Token    string     `json:"token"`
	ExpireAt time.Time  `json:"expireAt"`
	User     model.User `json:"user"`
}

type AdminLoginResult struct {
	Token    string      `json:"token"`
	ExpireAt time.Time   `json:"expireAt"`
	Admin    model.Admin `json:"admin"`
}

// GuestLogin is the identity provider for players: a nickname is enough
// to get a user row and a token. Repeated logins with the same guest
// code resume the same identity.
func (s *Service) GuestLogin(ctx context.Context, nickname, guestCode string) (*LoginResult, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" || len(nickname) > 32 {
		return nil, appErr.ErrInvalidNickname
	}

	var user model.User
	if guestCode != "" {
		err := s.db.WithContext(ctx).Where("guest_code = ?", guestCode).First(&user).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	now := time.Now()
	if user.ID == 0 {
		user = model.User{
			Nickname:  nickname,
			GuestCode: random.Code(10),
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, err
		}
	} else {
		user.Nickname = nickname
	}
	user.LastSeenAt = &now
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, err
	}

	token, err := pkgAuth.GenerateToken(user.ID)
	if err != nil {
		return nil, err
	}
	logger.Log.Info("guest login",
		zap.Int64("userID", user.ID),
		zap.String("nickname", user.Nickname),
	)
	return &LoginResult{
		Token:    token,
		ExpireAt: now.Add(time.Duration(config.GlobalConfig.JWT.Expire) * time.Hour),
		User:     user,
	}, nil
}

func (s *Service) AdminLogin(ctx context.Context, username, password string) (*AdminLoginResult, error) {
	var admin model.Admin
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.ErrAdminNotFound
		}
		return nil, err
	}
	if admin.Status != "active" {
		return nil, appErr.ErrAdminDisabled
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return nil, appErr.ErrInvalidPassword
	}

	now := time.Now()
	admin.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Save(&admin).Error; err != nil {
		return nil, err
	}

	token, err := pkgAuth.GenerateAdminToken(admin.ID)
	if err != nil {
		return nil, err
	}
	admin.PasswordHash = ""
	return &AdminLoginResult{
		Token:    token,
		ExpireAt: now.Add(time.Duration(config.GlobalConfig.JWT.Expire) * time.Hour),
		Admin:    admin,
	}, nil
}

// EnsureDefaultAdmin seeds the configured admin account on first boot.
func (s *Service) EnsureDefaultAdmin(ctx context.Context) error {
	cfg := config.GlobalConfig.Admin
	if cfg.DefaultUsername == "" || cfg.DefaultPassword == "" {
		return nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Admin{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := model.Admin{
		Username:     cfg.DefaultUsername,
		PasswordHash: string(hash),
		DisplayName:  "Administrator",
	}
	if err := s.db.WithContext(ctx).Create(&admin).Error; err != nil {
		return err
	}
	logger.Log.Info("seeded default admin", zap.String("username", admin.Username))
	return nil
}
