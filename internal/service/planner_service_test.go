package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yuqie6/FitPlan/internal/ai"
	"github.com/yuqie6/FitPlan/internal/schema"
)

type fakeProfileRepo struct {
	profile *schema.UserProfile
}

func (f *fakeProfileRepo) Get(ctx context.Context, userID string) (*schema.UserProfile, error) {
	return f.profile, nil
}

type fakeGenerator struct {
	result   *ai.PlanResult
	err      error
	requests []*ai.PlanRequest
}

func (f *fakeGenerator) GeneratePlan(ctx context.Context, req *ai.PlanRequest) (*ai.PlanResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeMemory struct {
	indexed []string
	notes   []string
}

func (f *fakeMemory) IndexAdjustment(ctx context.Context, planType schema.PlanType, brief string, summary string) error {
	f.indexed = append(f.indexed, brief)
	return nil
}

func (f *fakeMemory) Query(ctx context.Context, query string, topK int) ([]string, error) {
	return f.notes, nil
}

func testProfile() *schema.UserProfile {
	return &schema.UserProfile{UserID: "local", Age: 30, Goal: "减脂"}
}

func testPlanResult() *ai.PlanResult {
	return &ai.PlanResult{
		Title: "调整后的饮食计划",
		Days: schema.PlanDayList{
			{Meals: []schema.PlanMeal{{MealID: "d1-breakfast-0", MealType: "breakfast"}}},
		},
		Notes: "简化了早餐",
	}
}

func newTestPlannerService(
	logRepo *fakeLogRepo,
	planRepo *fakePlanRepo,
	profileRepo *fakeProfileRepo,
	gen *fakeGenerator,
	mem *fakeMemory,
) *PlannerService {
	var memory AdjustmentMemory
	if mem != nil {
		memory = mem
	}
	s := NewPlannerService(logRepo, planRepo, profileRepo, gen, memory, nil)
	s.now = func() time.Time { return testDay }
	return s
}

func seedLowAdherenceLogs(logRepo *fakeLogRepo) {
	for i := 0; i < 3; i++ {
		date := time.Date(2026, 8, 29+i, 0, 0, 0, 0, time.Local)
		logRepo.logs[date.Format("2006-01-02")] = &schema.DailyLog{
			UserID:           "local",
			Date:             date,
			OverallAdherence: 40,
			MealLogs: schema.MealLogList{
				{MealID: "m", MealType: "breakfast", Adherence: schema.AdherenceSkipped,
					Deviations: []schema.DeviationRecord{{Reason: schema.ReasonTimeConstraint}}},
			},
		}
	}
}

func TestRefreshUpdatesState(t *testing.T) {
	logRepo := newFakeLogRepo()
	seedLowAdherenceLogs(logRepo)
	s := newTestPlannerService(logRepo, newFakePlanRepo(), &fakeProfileRepo{}, &fakeGenerator{}, nil)

	analysis, err := s.Refresh(context.Background(), "local")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !analysis.TriggersAdjustment {
		t.Fatal("连续缺失且整体 40 应触发调整")
	}
	if s.State() != StateNeedsAdjustment {
		t.Fatalf("State = %s, want %s", s.State(), StateNeedsAdjustment)
	}
	if !s.NeedsAdjustment() {
		t.Fatal("NeedsAdjustment 应为 true")
	}
}

func TestRefreshFailureKeepsPreviousAnalysisAndState(t *testing.T) {
	logRepo := newFakeLogRepo()
	seedLowAdherenceLogs(logRepo)
	s := newTestPlannerService(logRepo, newFakePlanRepo(), &fakeProfileRepo{}, &fakeGenerator{}, nil)

	if _, err := s.Refresh(context.Background(), "local"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	logRepo.failRange = true
	_, err := s.Refresh(context.Background(), "local")
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PersistenceError", err)
	}
	// 读取失败后沿用上一次的分析结果，状态机不能掉回空闲
	if s.Analysis() == nil {
		t.Fatal("失败的刷新不应清空已有分析结果")
	}
	if s.State() != StateNeedsAdjustment {
		t.Fatalf("State = %s, want %s", s.State(), StateNeedsAdjustment)
	}
	if !s.NeedsAdjustment() {
		t.Fatal("NeedsAdjustment 应与状态保持一致")
	}
}

func TestRefreshSatisfiedWhenNoTrigger(t *testing.T) {
	logRepo := newFakeLogRepo()
	date := time.Date(2026, 8, 30, 0, 0, 0, 0, time.Local)
	logRepo.logs[date.Format("2006-01-02")] = &schema.DailyLog{
		UserID: "local", Date: date, OverallAdherence: 95,
	}
	s := newTestPlannerService(logRepo, newFakePlanRepo(), &fakeProfileRepo{}, &fakeGenerator{}, nil)

	if _, err := s.Refresh(context.Background(), "local"); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateSatisfied {
		t.Fatalf("State = %s, want %s", s.State(), StateSatisfied)
	}
}

func TestAdjustRequiresAnalysis(t *testing.T) {
	s := newTestPlannerService(newFakeLogRepo(), newFakePlanRepo(), &fakeProfileRepo{}, &fakeGenerator{}, nil)

	var perr *PreconditionError
	_, err := s.AdjustMealPlan(context.Background(), "local")
	if !errors.As(err, &perr) || perr.Missing != "分析结果" {
		t.Fatalf("无分析结果应返回前置条件错误, got %v", err)
	}
}

func TestAdjustRequiresActivePlan(t *testing.T) {
	logRepo := newFakeLogRepo()
	seedLowAdherenceLogs(logRepo)
	s := newTestPlannerService(logRepo, newFakePlanRepo(), &fakeProfileRepo{profile: testProfile()}, &fakeGenerator{}, nil)

	if _, err := s.Refresh(context.Background(), "local"); err != nil {
		t.Fatal(err)
	}

	var perr *PreconditionError
	_, err := s.AdjustMealPlan(context.Background(), "local")
	if !errors.As(err, &perr) || perr.Missing != "生效计划" {
		t.Fatalf("无生效计划应返回前置条件错误, got %v", err)
	}
}

func TestAdjustRequiresProfile(t *testing.T) {
	logRepo := newFakeLogRepo()
	seedLowAdherenceLogs(logRepo)
	planRepo := newFakePlanRepo()
	seedPlans(planRepo)
	s := newTestPlannerService(logRepo, planRepo, &fakeProfileRepo{}, &fakeGenerator{}, nil)

	if _, err := s.Refresh(context.Background(), "local"); err != nil {
		t.Fatal(err)
	}

	var perr *PreconditionError
	_, err := s.AdjustMealPlan(context.Background(), "local")
	if !errors.As(err, &perr) || perr.Missing != "用户档案" {
		t.Fatalf("无用户档案应返回前置条件错误, got %v", err)
	}
}

func TestAdjustProviderFailureKeepsPlan(t *testing.T) {
	logRepo := newFakeLogRepo()
	seedLowAdherenceLogs(logRepo)
	planRepo := newFakePlanRepo()
	seedPlans(planRepo)
	gen := &fakeGenerator{err: errors.New("上游超时")}
	s := newTestPlannerService(logRepo, planRepo, &fakeProfileRepo{profile: testProfile()}, gen, nil)
	ctx := context.Background()

	if _, err := s.Refresh(ctx, "local"); err != nil {
		t.Fatal(err)
	}

	_, err := s.AdjustMealPlan(ctx, "local")
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("生成失败应返回 ProviderError, got %v", err)
	}

	// 旧计划原样保留，没有归档动作
	if len(planRepo.archived) != 0 {
		t.Fatalf("失败时不应归档旧计划: %v", planRepo.archived)
	}
	if planRepo.plans[schema.PlanTypeMeal].ID != "meal-plan-1" {
		t.Fatal("生效计划不应被替换")
	}
	// 分析结果保留，状态回到待调整，允许重试
	if s.State() != StateNeedsAdjustment {
		t.Fatalf("State = %s, want %s", s.State(), StateNeedsAdjustment)
	}
}

func TestAdjustReplacesPlanAtomically(t *testing.T) {
	logRepo := newFakeLogRepo()
	seedLowAdherenceLogs(logRepo)
	planRepo := newFakePlanRepo()
	seedPlans(planRepo)
	gen := &fakeGenerator{result: testPlanResult()}
	mem := &fakeMemory{notes: []string{"上次调整: 简化早餐"}}
	s := newTestPlannerService(logRepo, planRepo, &fakeProfileRepo{profile: testProfile()}, gen, mem)
	ctx := context.Background()

	if _, err := s.Refresh(ctx, "local"); err != nil {
		t.Fatal(err)
	}

	newPlan, err := s.AdjustMealPlan(ctx, "local")
	if err != nil {
		t.Fatalf("AdjustMealPlan: %v", err)
	}

	if len(planRepo.archived) != 1 || planRepo.archived[0] != "meal-plan-1" {
		t.Fatalf("应归档旧计划 meal-plan-1, got %v", planRepo.archived)
	}
	if newPlan.Status != schema.PlanStatusActive || newPlan.Type != schema.PlanTypeMeal {
		t.Fatalf("新计划状态错误: %+v", newPlan)
	}
	if newPlan.Title != "调整后的饮食计划" {
		t.Fatalf("Title = %q", newPlan.Title)
	}

	// 生成请求应携带调整指令与记忆库备注
	req := gen.requests[0]
	if req.Adjustment == nil || req.Adjustment.Brief == "" {
		t.Fatalf("请求缺少调整指令: %+v", req)
	}
	if len(req.HistoryNotes) != 1 {
		t.Fatalf("请求缺少历史备注: %v", req.HistoryNotes)
	}
	if len(mem.indexed) != 1 {
		t.Fatalf("调整应写入记忆库, got %d", len(mem.indexed))
	}

	// 本轮分析消费完毕，状态归位
	if s.Analysis() != nil || s.State() != StateIdle {
		t.Fatalf("调整成功后应清空分析结果, state=%s", s.State())
	}
}

func TestAdjustSingleFlightPerPlanType(t *testing.T) {
	logRepo := newFakeLogRepo()
	seedLowAdherenceLogs(logRepo)
	planRepo := newFakePlanRepo()
	seedPlans(planRepo)
	s := newTestPlannerService(logRepo, planRepo, &fakeProfileRepo{profile: testProfile()}, &fakeGenerator{result: testPlanResult()}, nil)
	ctx := context.Background()

	if _, err := s.Refresh(ctx, "local"); err != nil {
		t.Fatal(err)
	}

	// 模拟同类型调整已在进行中
	s.mu.Lock()
	s.adjusting[schema.PlanTypeMeal] = true
	s.mu.Unlock()

	if _, err := s.AdjustMealPlan(ctx, "local"); !errors.Is(err, ErrAdjustmentInFlight) {
		t.Fatalf("并发调整应被拒绝, got %v", err)
	}
	if !s.Adjusting(schema.PlanTypeMeal) {
		t.Fatal("Adjusting 标记不应被清除")
	}
}

func TestGeneratePlanInitial(t *testing.T) {
	planRepo := newFakePlanRepo()
	gen := &fakeGenerator{result: testPlanResult()}
	s := newTestPlannerService(newFakeLogRepo(), planRepo, &fakeProfileRepo{profile: testProfile()}, gen, nil)
	ctx := context.Background()

	plan, err := s.GeneratePlanInitial(ctx, "local", schema.PlanTypeMeal, 7)
	if err != nil {
		t.Fatalf("GeneratePlanInitial: %v", err)
	}
	if plan.Status != schema.PlanStatusActive {
		t.Fatalf("新计划应为生效状态: %+v", plan)
	}
	if len(planRepo.created) != 1 {
		t.Fatalf("应创建 1 个计划, got %d", len(planRepo.created))
	}

	// 首次生成不带调整指令
	if gen.requests[0].Adjustment != nil {
		t.Fatal("首次生成不应携带调整上下文")
	}

	// 已有生效计划时拒绝再次生成
	if _, err := s.GeneratePlanInitial(ctx, "local", schema.PlanTypeMeal, 7); !errors.Is(err, ErrPlanExists) {
		t.Fatalf("重复生成应返回 ErrPlanExists, got %v", err)
	}
}

func TestGeneratePlanInitialRequiresProfile(t *testing.T) {
	s := newTestPlannerService(newFakeLogRepo(), newFakePlanRepo(), &fakeProfileRepo{}, &fakeGenerator{}, nil)

	var perr *PreconditionError
	_, err := s.GeneratePlanInitial(context.Background(), "local", schema.PlanTypeTraining, 7)
	if !errors.As(err, &perr) || perr.Missing != "用户档案" {
		t.Fatalf("无档案应返回前置条件错误, got %v", err)
	}
}

func TestDismissSuggestion(t *testing.T) {
	logRepo := newFakeLogRepo()
	seedLowAdherenceLogs(logRepo)
	s := newTestPlannerService(logRepo, newFakePlanRepo(), &fakeProfileRepo{}, &fakeGenerator{}, nil)

	if _, err := s.Refresh(context.Background(), "local"); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateNeedsAdjustment {
		t.Fatalf("State = %s", s.State())
	}

	s.DismissSuggestion()

	if s.Analysis() != nil || s.State() != StateIdle || s.NeedsAdjustment() {
		t.Fatal("忽略建议后应清空分析并回到 Idle")
	}
}
