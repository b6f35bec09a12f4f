package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/free99/internal/model"
)

// Claim 在一个事务内完成 读状态 -> 比较 -> 写入：
//  1. SELECT ... FOR UPDATE 锁住单行 listing（sqlite 无行锁，由单写者串行化）
//  2. 条件 UPDATE，RowsAffected == 1 才算赢得认领
//  3. 追加 accepted 认领记录与 listing_claimed 事件
//
// 已认领或已关闭返回 ErrAlreadyClaimed，且不做任何写入。
// (listing_id, claimant_id) 唯一索引兜底，冲突同样转为 ErrAlreadyClaimed。
func (r *listingRepository) Claim(ctx context.Context, listingID, claimantID string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var l model.Listing
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "status", "claimed_by_user_id").
			Where("id = ?", listingID).
			First(&l).Error
		if err != nil {
			return translate(err)
		}
		if l.Status != model.ListingStatusActive || l.ClaimedByUserID != nil {
			return ErrAlreadyClaimed
		}

		res := tx.Model(&model.Listing{}).
			Where("id = ? AND status = ? AND claimed_by_user_id IS NULL", listingID, model.ListingStatusActive).
			Updates(map[string]interface{}{
				"status":             model.ListingStatusClaimed,
				"claimed_by_user_id": claimantID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrAlreadyClaimed
		}

		c := &model.Claim{
			ListingID:  listingID,
			ClaimantID: claimantID,
			Status:     model.ClaimStatusAccepted,
			CreatedAt:  at,
		}
		if err := tx.Create(c).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyClaimed
			}
			return err
		}

		ev := &model.ListingEvent{
			ListingID: listingID,
			ActorID:   claimantID,
			EventType: model.EventListingClaimed,
			CreatedAt: at,
		}
		return tx.Create(ev).Error
	})
}
