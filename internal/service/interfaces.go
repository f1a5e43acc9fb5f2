package service

import (
	"context"
	"time"

	"github.com/yuqie6/FitPlan/internal/ai"
	"github.com/yuqie6/FitPlan/internal/schema"
)

// 仓储/外部依赖的最小接口集合（ISP）

type DailyLogRepository interface {
	Upsert(ctx context.Context, log *schema.DailyLog) error
	GetByDate(ctx context.Context, userID string, date time.Time) (*schema.DailyLog, error)
	GetByDateRange(ctx context.Context, userID string, start, end time.Time) ([]schema.DailyLog, error)
}

type PlanRepository interface {
	Create(ctx context.Context, plan *schema.Plan) error
	GetActive(ctx context.Context, userID string, planType schema.PlanType) (*schema.Plan, error)
	SetStatus(ctx context.Context, id string, status schema.PlanStatus) error
	Replace(ctx context.Context, oldID string, plan *schema.Plan) error
}

type ProfileRepository interface {
	Get(ctx context.Context, userID string) (*schema.UserProfile, error)
}

type PlanGenerator interface {
	GeneratePlan(ctx context.Context, req *ai.PlanRequest) (*ai.PlanResult, error)
}

// AdjustmentMemory 调整记忆库：索引历史调整，生成时检索相关备注
type AdjustmentMemory interface {
	IndexAdjustment(ctx context.Context, planType schema.PlanType, brief string, summary string) error
	Query(ctx context.Context, query string, topK int) ([]string, error)
}
