package model

import (
	"time"

	"gorm.io/datatypes"
)

type User struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	Nickname   string `gorm:"not null"`
	Avatar     string
	GuestCode  string `gorm:"unique"`
	Status     string `gorm:"default:normal;not null"` // normal/banned
	LastSeenAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Admin struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"unique;not null"`
	PasswordHash string `gorm:"not null"`
	DisplayName  string
	Status       string `gorm:"default:active;not null"` // active/disabled
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Room is a configurable table template: which variant is played there,
// how many seats, and the pacing knobs.
type Room struct {
	ID                 int64 `gorm:"primaryKey;autoIncrement"`
	Name               string
	Variant            string `gorm:"not null"` // durak/bura/joker_khishti
	SeatCount          int    `gorm:"not null"`
	TurnTimeoutSeconds int    `gorm:"default:30"`
	Status             string `gorm:"default:enabled"` // enabled/disabled
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// GameSession is the sole shared mutable resource per game: the full
// engine state as a JSON blob guarded by a monotonic version counter.
// Every write is conditioned on the expected version.
type GameSession struct {
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	PublicID  string         `gorm:"unique;not null"`
	RoomID    int64          `gorm:"index"`
	Variant   string         `gorm:"not null"`
	Status    string         `gorm:"index;not null"`
	Version   int64          `gorm:"not null;default:0"`
	StateJSON datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DealLog archives one completed deal per row for scoring audit. Rows
// are append-only and never mutated.
type DealLog struct {
	ID         int64 `gorm:"primaryKey;autoIncrement"`
	SessionID  int64 `gorm:"index"`
	DealNumber int
	RecordJSON datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time
}
