package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/FitPlan/internal/schema"
	"gorm.io/gorm"
)

// PlanRepository 计划仓储
type PlanRepository struct {
	db *gorm.DB
}

// NewPlanRepository 创建仓储
func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// Create 保存新计划
func (r *PlanRepository) Create(ctx context.Context, plan *schema.Plan) error {
	if err := r.db.WithContext(ctx).Create(plan).Error; err != nil {
		return fmt.Errorf("保存计划失败: %w", err)
	}
	return nil
}

// GetActive 获取当前生效的计划。没有返回 nil，不报错。
func (r *PlanRepository) GetActive(ctx context.Context, userID string, planType schema.PlanType) (*schema.Plan, error) {
	var plan schema.Plan
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND status = ?", userID, planType, schema.PlanStatusActive).
		Order("created_at DESC").
		First(&plan).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询生效计划失败: %w", err)
	}
	return &plan, nil
}

// GetByID 按 ID 获取。没有返回 nil。
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*schema.Plan, error) {
	var plan schema.Plan
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询计划失败: %w", err)
	}
	return &plan, nil
}

// SetStatus 更新计划状态
func (r *PlanRepository) SetStatus(ctx context.Context, id string, status schema.PlanStatus) error {
	err := r.db.WithContext(ctx).
		Model(&schema.Plan{}).
		Where("id = ?", id).
		Update("status", status).Error
	if err != nil {
		return fmt.Errorf("更新计划状态失败: %w", err)
	}
	return nil
}

// Replace 在一个事务内归档旧计划并保存新计划，避免出现没有生效计划的窗口
func (r *PlanRepository) Replace(ctx context.Context, oldID string, plan *schema.Plan) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if oldID != "" {
			res := tx.Model(&schema.Plan{}).
				Where("id = ?", oldID).
				Update("status", schema.PlanStatusArchived)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("旧计划不存在: %s", oldID)
			}
		}
		return tx.Create(plan).Error
	})
	if err != nil {
		return fmt.Errorf("替换计划失败: %w", err)
	}
	return nil
}

// ListByUser 按用户列出计划（新的在前）
func (r *PlanRepository) ListByUser(ctx context.Context, userID string, limit int) ([]schema.Plan, error) {
	var plans []schema.Plan
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&plans).Error
	if err != nil {
		return nil, fmt.Errorf("查询计划列表失败: %w", err)
	}
	return plans, nil
}
