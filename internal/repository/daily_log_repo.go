package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yuqie6/FitPlan/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DailyLogRepository 每日记录仓储
type DailyLogRepository struct {
	db *gorm.DB
}

// NewDailyLogRepository 创建仓储
func NewDailyLogRepository(db *gorm.DB) *DailyLogRepository {
	return &DailyLogRepository{db: db}
}

// Upsert 按 (user_id, date) 插入或整体更新，保证一天只有一条记录
func (r *DailyLogRepository) Upsert(ctx context.Context, log *schema.DailyLog) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
		UpdateAll: true,
	}).Create(log).Error
}

// GetByDate 按日期获取。没有记录返回 nil，不报错。
func (r *DailyLogRepository) GetByDate(ctx context.Context, userID string, date time.Time) (*schema.DailyLog, error) {
	var log schema.DailyLog
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		First(&log).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询每日记录失败: %w", err)
	}
	return &log, nil
}

// GetByDateRange 获取日期范围内的记录（两端闭区间），按日期升序
func (r *DailyLogRepository) GetByDateRange(ctx context.Context, userID string, start, end time.Time) ([]schema.DailyLog, error) {
	var logs []schema.DailyLog
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date <= ?", userID, start, end).
		Order("date ASC").
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("查询日期范围记录失败: %w", err)
	}
	return logs, nil
}

// Count 记录总数
func (r *DailyLogRepository) Count(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&schema.DailyLog{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计每日记录失败: %w", err)
	}
	return count, nil
}
