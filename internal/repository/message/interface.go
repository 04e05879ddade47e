// File: internal/repository/message/interface.go
package message

import (
	"context"

	"github.com/iyunix/go-roomchat/internal/domain"
)

type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) (*domain.Message, error)
	FindByThreadID(ctx context.Context, threadID string) ([]domain.Message, error)
	FindByThreadIDWithPagination(ctx context.Context, threadID string, limit, offset int) ([]domain.Message, int64, error)
	FindRecent(ctx context.Context, threadID string, limit int) ([]domain.Message, error)
	ExistsByID(ctx context.Context, messageID string) (bool, error)
	CountByThreadID(ctx context.Context, threadID string) (int64, error)
	DeleteByThreadID(ctx context.Context, threadID string) error
}
