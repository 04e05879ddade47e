// File: internal/repository/thread/interface.go
package thread

import (
	"context"

	"github.com/iyunix/go-roomchat/internal/domain"
)

type ThreadRepository interface {
	Create(ctx context.Context, thread *domain.Thread) (*domain.Thread, error)
	FindByID(ctx context.Context, threadID string) (*domain.Thread, error)
	FindByRoomID(ctx context.Context, roomID string) ([]domain.Thread, error)
	TouchUpdatedAt(ctx context.Context, threadID string) error
	Delete(ctx context.Context, threadID string) error
}
