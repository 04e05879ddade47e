// File: internal/repository/message/message_repository.go
package message

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/iyunix/go-roomchat/internal/domain"
)

var ErrMessageNotFound = errors.New("message not found")

const maxPageSize = 1000

type gormMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

func (r *gormMessageRepository) Create(ctx context.Context, message *domain.Message) (*domain.Message, error) {
	if err := r.validateMessageInput(message); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	err := r.db.WithContext(ctx).Create(message).Error
	if err != nil {
		log.Printf("[MessageRepository] database error creating message for thread %s: %v", message.ThreadID, err)
		return nil, errors.New("database error creating message")
	}
	return message, nil
}

func (r *gormMessageRepository) FindByThreadID(ctx context.Context, threadID string) ([]domain.Message, error) {
	if threadID == "" {
		return nil, errors.New("invalid thread ID")
	}

	var messages []domain.Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at asc, id asc").
		Find(&messages).Error
	if err != nil {
		log.Printf("[MessageRepository] database error fetching messages for thread %s: %v", threadID, err)
		return nil, errors.New("database error fetching messages")
	}
	return messages, nil
}

func (r *gormMessageRepository) FindByThreadIDWithPagination(ctx context.Context, threadID string, limit, offset int) ([]domain.Message, int64, error) {
	if threadID == "" {
		return nil, 0, errors.New("invalid thread ID")
	}
	if limit <= 0 || limit > maxPageSize {
		return nil, 0, fmt.Errorf("invalid limit: must be between 1 and %d", maxPageSize)
	}
	if offset < 0 {
		return nil, 0, errors.New("invalid offset: must be non-negative")
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("thread_id = ?", threadID).
		Count(&total).Error; err != nil {
		return nil, 0, errors.New("database error counting messages")
	}

	var messages []domain.Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at asc, id asc").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		log.Printf("[MessageRepository] database error fetching page for thread %s: %v", threadID, err)
		return nil, 0, errors.New("database error fetching messages")
	}
	return messages, total, nil
}

// FindRecent returns the newest messages restored to chronological order,
// feeding the context window builder.
func (r *gormMessageRepository) FindRecent(ctx context.Context, threadID string, limit int) ([]domain.Message, error) {
	if threadID == "" {
		return nil, errors.New("invalid thread ID")
	}
	if limit <= 0 || limit > maxPageSize {
		return nil, fmt.Errorf("invalid limit: must be between 1 and %d", maxPageSize)
	}

	var messages []domain.Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, errors.New("database error fetching recent messages")
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *gormMessageRepository) ExistsByID(ctx context.Context, messageID string) (bool, error) {
	if messageID == "" {
		return false, errors.New("invalid message ID")
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ?", messageID).
		Count(&count).Error
	if err != nil {
		return false, errors.New("database error checking message existence")
	}
	return count > 0, nil
}

func (r *gormMessageRepository) CountByThreadID(ctx context.Context, threadID string) (int64, error) {
	if threadID == "" {
		return 0, errors.New("invalid thread ID")
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("thread_id = ?", threadID).
		Count(&count).Error
	if err != nil {
		return 0, errors.New("database error counting messages")
	}
	return count, nil
}

func (r *gormMessageRepository) DeleteByThreadID(ctx context.Context, threadID string) error {
	if threadID == "" {
		return errors.New("invalid thread ID")
	}

	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Delete(&domain.Message{}).Error
	if err != nil {
		log.Printf("[MessageRepository] database error deleting messages for thread %s: %v", threadID, err)
		return errors.New("database error deleting messages")
	}
	return nil
}

func (r *gormMessageRepository) validateMessageInput(message *domain.Message) error {
	if message == nil {
		return errors.New("message cannot be nil")
	}
	if message.ID == "" {
		return errors.New("message ID is required")
	}
	if message.ThreadID == "" {
		return errors.New("thread ID is required")
	}
	if strings.TrimSpace(message.Content) == "" {
		return errors.New("message content cannot be empty")
	}
	if message.Role != domain.RoleUser && message.Role != domain.RoleAssistant {
		return fmt.Errorf("invalid message role: %s", message.Role)
	}
	return nil
}
