package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/free99/internal/model"
)

type MessageRepository interface {
	// Append 写入消息并把 thread.last_message_at 只向前推进
	Append(ctx context.Context, m *model.Message) error
	// ListByThread 未删除的消息，created_at ASC
	ListByThread(ctx context.Context, threadID string) ([]*model.Message, error)
	GetByID(ctx context.Context, id string) (*model.Message, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository { return &messageRepository{db: db} }

func (r *messageRepository) Append(ctx context.Context, m *model.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		// max(last_message_at, created_at)：乱序提交不会把时间往回拨
		return tx.Model(&model.Thread{}).
			Where("id = ? AND last_message_at < ?", m.ThreadID, m.CreatedAt).
			Update("last_message_at", m.CreatedAt).Error
	})
}

func (r *messageRepository) ListByThread(ctx context.Context, threadID string) ([]*model.Message, error) {
	var res []*model.Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ? AND deleted_at IS NULL", threadID).
		Order("created_at ASC, id ASC").
		Find(&res).Error
	return res, err
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	var m model.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *messageRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", at).Error
}
