package auth_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"cardtable-service/internal/config"
	"cardtable-service/internal/model"
	authsvc "cardtable-service/internal/service/auth"
	pkgAuth "cardtable-service/pkg/auth"
	appErr "cardtable-service/pkg/errors"
	"cardtable-service/pkg/logger"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newAuthService(t *testing.T) (*gorm.DB, *authsvc.Service) {
	t.Helper()
	logger.InitTestLogger()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Admin{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	config.GlobalConfig = &config.Config{
		JWT: config.JWTConfig{Secret: "test-secret", Expire: 1},
		Admin: config.AdminSeedConfig{
			DefaultUsername: "bootstrap",
			DefaultPassword: "Bootstrap@123",
		},
	}

	return db, authsvc.NewService(db)
}

func TestGuestLoginCreatesUser(t *testing.T) {
	ctx := context.Background()
	_, svc := newAuthService(t)

	res, err := svc.GuestLogin(ctx, "nino", "")
	if err != nil {
		t.Fatalf("guest login failed: %v", err)
	}
	if res.User.ID == 0 || res.User.GuestCode == "" || res.Token == "" {
		t.Fatalf("incomplete login result: %+v", res)
	}

	claims, err := pkgAuth.ParseUserToken(res.Token)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.SubjectID != res.User.ID {
		t.Fatalf("token subject %d, want %d", claims.SubjectID, res.User.ID)
	}
}

func TestGuestLoginResumesByGuestCode(t *testing.T) {
	ctx := context.Background()
	_, svc := newAuthService(t)

	first, err := svc.GuestLogin(ctx, "nino", "")
	if err != nil {
		t.Fatalf("first login failed: %v", err)
	}
	second, err := svc.GuestLogin(ctx, "nino n.", first.User.GuestCode)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if second.User.ID != first.User.ID {
		t.Fatalf("resume created a new user: %d vs %d", second.User.ID, first.User.ID)
	}
	if second.User.Nickname != "nino n." {
		t.Fatalf("nickname not updated: %q", second.User.Nickname)
	}
}

func TestGuestLoginRejectsBadNickname(t *testing.T) {
	ctx := context.Background()
	_, svc := newAuthService(t)

	for _, nickname := range []string{"", "   ", "this nickname is far far far too long to be allowed"} {
		if _, err := svc.GuestLogin(ctx, nickname, ""); !errors.Is(err, appErr.ErrInvalidNickname) {
			t.Fatalf("expected ErrInvalidNickname for %q, got %v", nickname, err)
		}
	}
}

func TestAdminLogin(t *testing.T) {
	ctx := context.Background()
	db, svc := newAuthService(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("S3cret!"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	admin := model.Admin{Username: "ops", PasswordHash: string(hash), Status: "active"}
	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		t.Fatalf("seed admin failed: %v", err)
	}

	res, err := svc.AdminLogin(ctx, "ops", "S3cret!")
	if err != nil {
		t.Fatalf("admin login failed: %v", err)
	}
	if res.Token == "" || res.Admin.PasswordHash != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := pkgAuth.ParseAdminToken(res.Token); err != nil {
		t.Fatalf("admin token does not parse: %v", err)
	}
	// Admin tokens are scoped and must not pass the user parser.
	if _, err := pkgAuth.ParseUserToken(res.Token); err == nil {
		t.Fatal("admin token accepted as a user token")
	}

	if _, err := svc.AdminLogin(ctx, "ops", "wrong"); !errors.Is(err, appErr.ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	if _, err := svc.AdminLogin(ctx, "ghost", "S3cret!"); !errors.Is(err, appErr.ErrAdminNotFound) {
		t.Fatalf("expected ErrAdminNotFound, got %v", err)
	}
}

func TestAdminLoginDisabled(t *testing.T) {
	ctx := context.Background()
	db, svc := newAuthService(t)

	hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.DefaultCost)
	admin := model.Admin{Username: "old", PasswordHash: string(hash), Status: "disabled"}
	if err := db.WithContext(ctx).Create(&admin).Error; err != nil {
		t.Fatalf("seed admin failed: %v", err)
	}
	if _, err := svc.AdminLogin(ctx, "old", "pw"); !errors.Is(err, appErr.ErrAdminDisabled) {
		t.Fatalf("expected ErrAdminDisabled, got %v", err)
	}
}

func TestEnsureDefaultAdminSeedsOnce(t *testing.T) {
	ctx := context.Background()
	db, svc := newAuthService(t)

	if err := svc.EnsureDefaultAdmin(ctx); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if err := svc.EnsureDefaultAdmin(ctx); err != nil {
		t.Fatalf("second seed failed: %v", err)
	}
	var count int64
	if err := db.WithContext(ctx).Model(&model.Admin{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one seeded admin, got %d", count)
	}
	if _, err := svc.AdminLogin(ctx, "bootstrap", "Bootstrap@123"); err != nil {
		t.Fatalf("seeded admin cannot log in: %v", err)
	}
}
