// File: internal/repository/room/interface.go
package room

import (
	"context"

	"github.com/iyunix/go-roomchat/internal/domain"
)

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) (*domain.Room, error)
	FindByID(ctx context.Context, roomID string) (*domain.Room, error)
	FindAll(ctx context.Context) ([]domain.Room, error)
	EnsureExists(ctx context.Context, roomID, name string) (*domain.Room, error)
}
