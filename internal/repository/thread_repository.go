package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/free99/internal/model"
)

type ThreadRepository interface {
	GetByID(ctx context.Context, id string) (*model.Thread, error)
	FindByDedupKey(ctx context.Context, key string) (*model.Thread, error)
	// FindDirect 查找参与者恰好为 {a, b} 的私聊会话；listing 会话（包括 listing 已删除的）不参与匹配
	FindDirect(ctx context.Context, a, b string) (*model.Thread, error)
	// CreateWithParticipants 事务内创建会话与参与者；DedupKey 冲突返回 ErrConflict
	CreateWithParticipants(ctx context.Context, t *model.Thread, userIDs []string) error

	GetParticipant(ctx context.Context, threadID, userID string) (*model.ThreadParticipant, error)
	ListForUser(ctx context.Context, userID string) ([]*model.Thread, error)
	ParticipantsFor(ctx context.Context, threadIDs []string) (map[string][]*model.ThreadParticipant, error)
	UpdateParticipant(ctx context.Context, threadID, userID string, fields map[string]interface{}) error
}

type threadRepository struct {
	db *gorm.DB
}

func NewThreadRepository(db *gorm.DB) ThreadRepository { return &threadRepository{db: db} }

func (r *threadRepository) GetByID(ctx context.Context, id string) (*model.Thread, error) {
	var t model.Thread
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *threadRepository) FindByDedupKey(ctx context.Context, key string) (*model.Thread, error) {
	var t model.Thread
	if err := r.db.WithContext(ctx).Where("dedup_key = ?", key).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *threadRepository) memberOf(userID string) *gorm.DB {
	return r.db.Model(&model.ThreadParticipant{}).Select("thread_id").Where("user_id = ?", userID)
}

func (r *threadRepository) FindDirect(ctx context.Context, a, b string) (*model.Thread, error) {
	var t model.Thread
	err := r.db.WithContext(ctx).
		Where("listing_id IS NULL").
		Where("dedup_key IS NULL OR dedup_key NOT LIKE ?", "listing:%").
		Where("id IN (?)", r.memberOf(a)).
		Where("id IN (?)", r.memberOf(b)).
		Where("(SELECT COUNT(*) FROM thread_participants tp WHERE tp.thread_id = threads.id) = 2").
		Order("created_at ASC, id ASC").
		First(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *threadRepository) CreateWithParticipants(ctx context.Context, t *model.Thread, userIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(t).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return err
		}
		parts := make([]model.ThreadParticipant, len(userIDs))
		for i, uid := range userIDs {
			parts[i] = model.ThreadParticipant{ThreadID: t.ID, UserID: uid}
		}
		if err := tx.Create(&parts).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return err
		}
		return nil
	})
}

func (r *threadRepository) GetParticipant(ctx context.Context, threadID, userID string) (*model.ThreadParticipant, error) {
	var p model.ThreadParticipant
	err := r.db.WithContext(ctx).
		Where("thread_id = ? AND user_id = ?", threadID, userID).
		First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// ListForUser 按 last_message_at DESC 返回用户参与的会话
func (r *threadRepository) ListForUser(ctx context.Context, userID string) ([]*model.Thread, error) {
	var res []*model.Thread
	err := r.db.WithContext(ctx).
		Where("id IN (?)", r.memberOf(userID)).
		Order("last_message_at DESC, id DESC").
		Find(&res).Error
	return res, err
}

func (r *threadRepository) ParticipantsFor(ctx context.Context, threadIDs []string) (map[string][]*model.ThreadParticipant, error) {
	out := make(map[string][]*model.ThreadParticipant, len(threadIDs))
	if len(threadIDs) == 0 {
		return out, nil
	}
	var parts []*model.ThreadParticipant
	err := r.db.WithContext(ctx).
		Where("thread_id IN ?", threadIDs).
		Order("id ASC").
		Find(&parts).Error
	if err != nil {
		return nil, err
	}
	for _, p := range parts {
		out[p.ThreadID] = append(out[p.ThreadID], p)
	}
	return out, nil
}

func (r *threadRepository) UpdateParticipant(ctx context.Context, threadID, userID string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.ThreadParticipant{}).
		Where("thread_id = ? AND user_id = ?", threadID, userID).
		Updates(fields).Error
}
