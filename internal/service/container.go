package service

import (
	"context"

	"cardtable-service/internal/service/auth"
	"cardtable-service/internal/service/game"
	"cardtable-service/internal/service/lobby"
	"cardtable-service/internal/service/room"
	"cardtable-service/internal/store"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Auth  *auth.Service
	Room  *room.Service
	Lobby *lobby.Service
	Game  *game.Service
	Store store.SessionStore
}

func NewContainer(db *gorm.DB, rdb *redis.Client) *Container {
	st := store.New(db, rdb)
	gameSvc := game.NewService(db, st)
	return &Container{
		Auth:  auth.NewService(db),
		Room:  room.NewService(db),
		Lobby: lobby.NewService(db, rdb, gameSvc),
		Game:  gameSvc,
		Store: st,
	}
}

func (c *Container) Start(ctx context.Context) error {
	if err := c.Auth.EnsureDefaultAdmin(ctx); err != nil {
		return err
	}
	if err := c.Lobby.Start(ctx); err != nil {
		return err
	}
	go c.Game.StartSweeper(ctx)
	return nil
}
