package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/FitPlan/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository 用户画像仓储
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository 创建仓储
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Upsert 插入或整体更新
func (r *ProfileRepository) Upsert(ctx context.Context, profile *schema.UserProfile) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(profile).Error
}

// Get 获取用户画像。没有返回 nil，不报错。
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*schema.UserProfile, error) {
	var profile schema.UserProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询用户画像失败: %w", err)
	}
	return &profile, nil
}
