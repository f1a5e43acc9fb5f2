package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yuqie6/FitPlan/internal/adherence"
	"github.com/yuqie6/FitPlan/internal/ai"
	"github.com/yuqie6/FitPlan/internal/eventbus"
	"github.com/yuqie6/FitPlan/internal/schema"
)

// State 规划器状态机
type State string

const (
	StateIdle            State = "idle"             // 无分析结果
	StateAnalyzing       State = "analyzing"        // 分析进行中
	StateNeedsAdjustment State = "needs_adjustment" // 分析建议调整
	StateSatisfied       State = "satisfied"        // 分析认为无需调整
	StateAdjusting       State = "adjusting"        // 调整进行中
)

// ErrPlanExists 首次生成时该类型已有生效计划
var ErrPlanExists = errors.New("该类型计划已存在，请使用调整流程")

// 分析默认回看最近 7 天
const defaultWindowDays = 7

// PlannerService 规划编排：分析执行记录、驱动状态机、在需要时让 AI
// 生成调整后的新计划并原子替换旧计划。
//
// 关键约束：生成失败时生效计划保持原样；归档旧计划与写入新计划在
// 同一事务内完成；同类型计划同一时刻只允许一次调整。
type PlannerService struct {
	logRepo     DailyLogRepository
	planRepo    PlanRepository
	profileRepo ProfileRepository
	generator   PlanGenerator
	memory      AdjustmentMemory // 可为 nil（未配置向量记忆时）
	hub         *eventbus.Hub

	windowDays int
	now        func() time.Time

	mu        sync.Mutex
	state     State
	analysis  *adherence.Analysis
	adjusting map[schema.PlanType]bool
}

// NewPlannerService 创建规划服务。memory 传 nil 表示不启用调整记忆。
func NewPlannerService(
	logRepo DailyLogRepository,
	planRepo PlanRepository,
	profileRepo ProfileRepository,
	generator PlanGenerator,
	memory AdjustmentMemory,
	hub *eventbus.Hub,
) *PlannerService {
	return &PlannerService{
		logRepo:     logRepo,
		planRepo:    planRepo,
		profileRepo: profileRepo,
		generator:   generator,
		memory:      memory,
		hub:         hub,
		windowDays:  defaultWindowDays,
		now:         time.Now,
		state:       StateIdle,
		adjusting:   make(map[schema.PlanType]bool),
	}
}

// SetWindowDays 调整分析回看的天数，非正值忽略
func (s *PlannerService) SetWindowDays(days int) {
	if days > 0 {
		s.windowDays = days
	}
}

// Refresh 重新分析最近一个窗口的执行记录并更新状态机。
// 窗口内没有任何记录也是合法输入，得到一份全零的分析结果。
func (s *PlannerService) Refresh(ctx context.Context, userID string) (*adherence.Analysis, error) {
	s.mu.Lock()
	s.state = StateAnalyzing
	s.mu.Unlock()

	end := midnight(s.now())
	start := end.AddDate(0, 0, -(s.windowDays - 1))
	logs, err := s.logRepo.GetByDateRange(ctx, userID, start, end)
	if err != nil {
		s.mu.Lock()
		// 保留上一次的分析结果，状态跟着它走而不是直接回到空闲
		s.recomputeStateLocked()
		s.mu.Unlock()
		return nil, &PersistenceError{Op: "读取记录区间", Err: err}
	}

	analysis := adherence.Analyze(logs)

	s.mu.Lock()
	s.analysis = analysis
	s.recomputeStateLocked()
	s.mu.Unlock()

	s.hub.Publish(eventbus.Event{
		Type: eventbus.EventAnalysisUpdated,
		Data: map[string]any{
			"overall_adherence":    analysis.OverallAdherence,
			"triggers_adjustment":  analysis.TriggersAdjustment,
			"pattern_count":        len(analysis.Patterns),
			"recommendation_count": len(analysis.Recommendations),
		},
	})

	slog.Info("执行分析完成",
		"days", len(logs),
		"overall", analysis.OverallAdherence,
		"patterns", len(analysis.Patterns),
		"triggers", analysis.TriggersAdjustment,
	)
	return analysis, nil
}

// AdjustMealPlan 基于当前分析结果调整饮食计划
func (s *PlannerService) AdjustMealPlan(ctx context.Context, userID string) (*schema.Plan, error) {
	return s.adjust(ctx, userID, schema.PlanTypeMeal)
}

// AdjustTrainingPlan 基于当前分析结果调整训练计划
func (s *PlannerService) AdjustTrainingPlan(ctx context.Context, userID string) (*schema.Plan, error) {
	return s.adjust(ctx, userID, schema.PlanTypeTraining)
}

func (s *PlannerService) adjust(ctx context.Context, userID string, planType schema.PlanType) (*schema.Plan, error) {
	s.mu.Lock()
	if s.analysis == nil {
		s.mu.Unlock()
		return nil, &PreconditionError{Missing: "分析结果"}
	}
	if s.adjusting[planType] {
		s.mu.Unlock()
		return nil, ErrAdjustmentInFlight
	}
	analysis := s.analysis
	s.adjusting[planType] = true
	s.state = StateAdjusting
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.adjusting, planType)
		s.recomputeStateLocked()
		s.mu.Unlock()
	}()

	current, err := s.planRepo.GetActive(ctx, userID, planType)
	if err != nil {
		return nil, &PersistenceError{Op: "读取生效计划", Err: err}
	}
	if current == nil {
		return nil, &PreconditionError{Missing: "生效计划"}
	}

	profile, err := s.profileRepo.Get(ctx, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "读取用户档案", Err: err}
	}
	if profile == nil {
		return nil, &PreconditionError{Missing: "用户档案"}
	}

	brief := adherence.BuildAdjustmentBrief(analysis, planType)

	// 记忆库检索失败不阻断调整，只降级为无历史备注
	var history []string
	if s.memory != nil {
		history, err = s.memory.Query(ctx, brief, 3)
		if err != nil {
			slog.Warn("调整记忆检索失败，忽略", "error", err)
			history = nil
		}
	}

	durationDays := current.DurationDays
	if durationDays <= 0 {
		durationDays = len(current.Days)
	}
	req := &ai.PlanRequest{
		Type:         planType,
		Profile:      profile,
		StartDate:    midnight(s.now()),
		DurationDays: durationDays,
		Adjustment: &ai.AdjustmentContext{
			Brief:             brief,
			OverallAdherence:  analysis.OverallAdherence,
			MealAdherence:     analysis.MealAdherence,
			TrainingAdherence: analysis.TrainingAdherence,
			Recommendations:   analysis.Recommendations,
		},
		HistoryNotes: history,
	}

	result, err := s.generator.GeneratePlan(ctx, req)
	if err != nil {
		// 生成失败，旧计划原样保留
		return nil, &ProviderError{Err: err}
	}

	newPlan := &schema.Plan{
		ID:           uuid.NewString(),
		UserID:       userID,
		Type:         planType,
		Status:       schema.PlanStatusActive,
		Title:        result.Title,
		StartDate:    req.StartDate,
		DurationDays: durationDays,
		Days:         result.Days,
		Notes:        result.Notes,
	}
	if err := s.planRepo.Replace(ctx, current.ID, newPlan); err != nil {
		return nil, &PersistenceError{Op: "替换计划", Err: err}
	}

	if s.memory != nil {
		if err := s.memory.IndexAdjustment(ctx, planType, brief, result.Notes); err != nil {
			slog.Warn("调整记忆写入失败，忽略", "error", err)
		}
	}

	// 调整完成，本轮分析结果消费完毕
	s.mu.Lock()
	s.analysis = nil
	s.mu.Unlock()

	s.hub.Publish(eventbus.Event{
		Type: eventbus.EventPlanAdjusted,
		Data: map[string]any{"plan_type": string(planType), "plan_id": newPlan.ID, "title": newPlan.Title},
	})

	slog.Info("计划已调整", "type", planType, "old", current.ID, "new", newPlan.ID)
	return newPlan, nil
}

// GeneratePlanInitial 首次生成计划。该类型已有生效计划时拒绝，
// 避免绕过归档流程产生多个生效计划。
func (s *PlannerService) GeneratePlanInitial(ctx context.Context, userID string, planType schema.PlanType, durationDays int) (*schema.Plan, error) {
	if !planType.Valid() {
		return nil, &ValidationError{Field: "plan_type", Reason: "未知类型"}
	}

	existing, err := s.planRepo.GetActive(ctx, userID, planType)
	if err != nil {
		return nil, &PersistenceError{Op: "读取生效计划", Err: err}
	}
	if existing != nil {
		return nil, ErrPlanExists
	}

	profile, err := s.profileRepo.Get(ctx, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "读取用户档案", Err: err}
	}
	if profile == nil {
		return nil, &PreconditionError{Missing: "用户档案"}
	}

	req := &ai.PlanRequest{
		Type:         planType,
		Profile:      profile,
		StartDate:    midnight(s.now()),
		DurationDays: durationDays,
	}
	result, err := s.generator.GeneratePlan(ctx, req)
	if err != nil {
		return nil, &ProviderError{Err: err}
	}

	plan := &schema.Plan{
		ID:           uuid.NewString(),
		UserID:       userID,
		Type:         planType,
		Status:       schema.PlanStatusActive,
		Title:        result.Title,
		StartDate:    req.StartDate,
		DurationDays: len(result.Days),
		Days:         result.Days,
		Notes:        result.Notes,
	}
	if err := s.planRepo.Create(ctx, plan); err != nil {
		return nil, &PersistenceError{Op: "创建计划", Err: err}
	}

	slog.Info("计划已生成", "type", planType, "id", plan.ID, "days", len(plan.Days))
	return plan, nil
}

// DismissSuggestion 忽略本轮调整建议。只清内存状态，不写任何存储，
// 下次分析会基于最新记录重新给出判断。
func (s *PlannerService) DismissSuggestion() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analysis = nil
	s.state = StateIdle
}

// Analysis 当前分析结果，没有时返回 nil
func (s *PlannerService) Analysis() *adherence.Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analysis
}

// State 当前状态
func (s *PlannerService) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NeedsAdjustment 当前分析是否建议调整
func (s *PlannerService) NeedsAdjustment() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analysis != nil && s.analysis.TriggersAdjustment
}

// Adjusting 指定类型的调整是否在进行中
func (s *PlannerService) Adjusting(planType schema.PlanType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjusting[planType]
}

// recomputeStateLocked 按当前分析结果与进行中的调整重算状态，调用方持锁
func (s *PlannerService) recomputeStateLocked() {
	if len(s.adjusting) > 0 {
		s.state = StateAdjusting
		return
	}
	switch {
	case s.analysis == nil:
		s.state = StateIdle
	case s.analysis.TriggersAdjustment:
		s.state = StateNeedsAdjustment
	default:
		s.state = StateSatisfied
	}
}
