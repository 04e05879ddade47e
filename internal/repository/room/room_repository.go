// File: internal/repository/room/room_repository.go
package room

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"

	"github.com/iyunix/go-roomchat/internal/domain"
)

var ErrRoomNotFound = errors.New("room not found")

type gormRoomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &gormRoomRepository{db: db}
}

func (r *gormRoomRepository) Create(ctx context.Context, room *domain.Room) (*domain.Room, error) {
	if room == nil || room.ID == "" || room.Name == "" {
		return nil, errors.New("room ID and name are required")
	}

	err := r.db.WithContext(ctx).Create(room).Error
	if err != nil {
		log.Printf("[RoomRepository] database error creating room %s: %v", room.ID, err)
		return nil, errors.New("database error creating room")
	}
	return room, nil
}

func (r *gormRoomRepository) FindByID(ctx context.Context, roomID string) (*domain.Room, error) {
	if roomID == "" {
		return nil, errors.New("invalid room ID")
	}

	var room domain.Room
	err := r.db.WithContext(ctx).First(&room, "id = ?", roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, errors.New("database error fetching room")
	}
	return &room, nil
}

func (r *gormRoomRepository) FindAll(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.WithContext(ctx).Order("created_at asc").Find(&rooms).Error
	if err != nil {
		return nil, errors.New("database error fetching rooms")
	}
	return rooms, nil
}

// EnsureExists fetches the room, creating it first if missing. Used at
// startup to seed the default room.
func (r *gormRoomRepository) EnsureExists(ctx context.Context, roomID, name string) (*domain.Room, error) {
	existing, err := r.FindByID(ctx, roomID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrRoomNotFound) {
		return nil, err
	}
	return r.Create(ctx, &domain.Room{ID: roomID, Name: name})
}
