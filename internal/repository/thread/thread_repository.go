// File: internal/repository/thread/thread_repository.go
package thread

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/iyunix/go-roomchat/internal/domain"
)

var ErrThreadNotFound = errors.New("thread not found")

type gormThreadRepository struct {
	db *gorm.DB
}

func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &gormThreadRepository{db: db}
}

func (r *gormThreadRepository) Create(ctx context.Context, thread *domain.Thread) (*domain.Thread, error) {
	if thread == nil || thread.ID == "" || thread.RoomID == "" {
		return nil, errors.New("thread ID and room ID are required")
	}

	err := r.db.WithContext(ctx).Create(thread).Error
	if err != nil {
		log.Printf("[ThreadRepository] database error creating thread %s: %v", thread.ID, err)
		return nil, errors.New("database error creating thread")
	}
	return thread, nil
}

func (r *gormThreadRepository) FindByID(ctx context.Context, threadID string) (*domain.Thread, error) {
	if threadID == "" {
		return nil, errors.New("invalid thread ID")
	}

	var thread domain.Thread
	err := r.db.WithContext(ctx).First(&thread, "id = ?", threadID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, errors.New("database error fetching thread")
	}
	return &thread, nil
}

func (r *gormThreadRepository) FindByRoomID(ctx context.Context, roomID string) ([]domain.Thread, error) {
	if roomID == "" {
		return nil, errors.New("invalid room ID")
	}

	var threads []domain.Thread
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("updated_at desc").
		Find(&threads).Error
	if err != nil {
		return nil, errors.New("database error fetching threads")
	}
	return threads, nil
}

// TouchUpdatedAt bumps the thread's activity timestamp so room thread
// lists stay sorted by recency.
func (r *gormThreadRepository) TouchUpdatedAt(ctx context.Context, threadID string) error {
	if threadID == "" {
		return errors.New("invalid thread ID")
	}

	err := r.db.WithContext(ctx).Model(&domain.Thread{}).
		Where("id = ?", threadID).
		Update("updated_at", time.Now()).Error
	if err != nil {
		log.Printf("[ThreadRepository] database error touching thread %s: %v", threadID, err)
		return errors.New("database error updating thread")
	}
	return nil
}

func (r *gormThreadRepository) Delete(ctx context.Context, threadID string) error {
	if threadID == "" {
		return errors.New("invalid thread ID")
	}

	err := r.db.WithContext(ctx).Delete(&domain.Thread{}, "id = ?", threadID).Error
	if err != nil {
		log.Printf("[ThreadRepository] database error deleting thread %s: %v", threadID, err)
		return errors.New("database error deleting thread")
	}
	return nil
}
