package repository

import (
	"context"
	"testing"
	"time"

	"github.com/yuqie6/FitPlan/internal/schema"
	"github.com/yuqie6/FitPlan/internal/testutil"
)

func testPlan(id string, planType schema.PlanType, status schema.PlanStatus) *schema.Plan {
	return &schema.Plan{
		ID:           id,
		UserID:       "local",
		Type:         planType,
		Status:       status,
		Title:        "测试计划",
		StartDate:    time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		DurationDays: 7,
		Days: schema.PlanDayList{
			{Meals: []schema.PlanMeal{{MealID: "d1-breakfast-0", MealType: "breakfast", Time: "08:00"}}},
		},
	}
}

func TestPlanRepositoryGetActive(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewPlanRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testPlan("p1", schema.PlanTypeMeal, schema.PlanStatusArchived)); err != nil {
		t.Fatalf("Create p1: %v", err)
	}
	if err := repo.Create(ctx, testPlan("p2", schema.PlanTypeMeal, schema.PlanStatusActive)); err != nil {
		t.Fatalf("Create p2: %v", err)
	}

	got, err := repo.GetActive(ctx, "local", schema.PlanTypeMeal)
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if got == nil || got.ID != "p2" {
		t.Fatalf("GetActive = %+v, want p2", got)
	}
	if len(got.Days) != 1 || got.Days[0].Meals[0].MealID != "d1-breakfast-0" {
		t.Fatalf("Days 未完整持久化: %+v", got.Days)
	}

	// 没有该类型的生效计划时返回 nil
	none, err := repo.GetActive(ctx, "local", schema.PlanTypeTraining)
	if err != nil || none != nil {
		t.Fatalf("无训练计划应返回 nil, got %+v err=%v", none, err)
	}
}

func TestPlanRepositoryReplace(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewPlanRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testPlan("old", schema.PlanTypeMeal, schema.PlanStatusActive)); err != nil {
		t.Fatalf("Create old: %v", err)
	}

	newPlan := testPlan("new", schema.PlanTypeMeal, schema.PlanStatusActive)
	newPlan.Title = "调整后的计划"
	if err := repo.Replace(ctx, "old", newPlan); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	// 旧计划归档，新计划生效，同一时刻只有一个 active
	old, err := repo.GetByID(ctx, "old")
	if err != nil || old == nil {
		t.Fatalf("GetByID old: %v", err)
	}
	if old.Status != schema.PlanStatusArchived {
		t.Fatalf("旧计划状态 = %s, want archived", old.Status)
	}

	active, err := repo.GetActive(ctx, "local", schema.PlanTypeMeal)
	if err != nil || active == nil || active.ID != "new" {
		t.Fatalf("GetActive = %+v err=%v, want new", active, err)
	}
}

func TestPlanRepositoryReplaceMissingOldRollsBack(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewPlanRepository(db)
	ctx := context.Background()

	newPlan := testPlan("orphan", schema.PlanTypeMeal, schema.PlanStatusActive)
	if err := repo.Replace(ctx, "no-such-plan", newPlan); err == nil {
		t.Fatal("旧计划不存在时 Replace 应失败")
	}

	// 事务回滚后新计划不应存在
	got, err := repo.GetByID(ctx, "orphan")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Fatalf("回滚后不应写入新计划, got %+v", got)
	}
}

func TestPlanRepositoryListByUser(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewPlanRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, testPlan("a", schema.PlanTypeMeal, schema.PlanStatusArchived)); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, testPlan("b", schema.PlanTypeTraining, schema.PlanStatusActive)); err != nil {
		t.Fatal(err)
	}

	plans, err := repo.ListByUser(ctx, "local", 10)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("len = %d, want 2", len(plans))
	}
}

func TestProfileRepositoryUpsert(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	profile := &schema.UserProfile{
		UserID:              "local",
		Age:                 30,
		Goal:                "减脂",
		DietaryPreferences:  schema.StringList{"低碳水"},
		MealsPerDay:         3,
		TrainingDaysPerWeek: 4,
	}
	if err := repo.Upsert(ctx, profile); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	profile.Age = 31
	if err := repo.Upsert(ctx, profile); err != nil {
		t.Fatalf("Upsert update: %v", err)
	}

	got, err := repo.Get(ctx, "local")
	if err != nil || got == nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Age != 31 || len(got.DietaryPreferences) != 1 {
		t.Fatalf("Get = %+v", got)
	}

	missing, err := repo.Get(ctx, "nobody")
	if err != nil || missing != nil {
		t.Fatalf("不存在的档案应返回 nil, got %+v err=%v", missing, err)
	}
}
