package repository

import (
	"context"
	"testing"
	"time"

	"github.com/yuqie6/FitPlan/internal/schema"
	"github.com/yuqie6/FitPlan/internal/testutil"
)

func logDate(day int) time.Time {
	return time.Date(2026, 8, day, 0, 0, 0, 0, time.UTC)
}

func TestDailyLogRepositoryUpsertOnePerDay(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewDailyLogRepository(db)
	ctx := context.Background()

	log := &schema.DailyLog{
		ID:     "log-1",
		UserID: "local",
		Date:   logDate(30),
		MealLogs: schema.MealLogList{
			{MealID: "m1", MealType: "breakfast", Adherence: schema.AdherenceFull},
		},
		OverallAdherence: 33,
	}
	if err := repo.Upsert(ctx, log); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	// 同一天再写入应整条更新，不产生第二行
	log.MealLogs = append(log.MealLogs, schema.MealLogEntry{
		MealID: "m2", MealType: "lunch", Adherence: schema.AdherencePartial,
	})
	log.OverallAdherence = 50
	if err := repo.Upsert(ctx, log); err != nil {
		t.Fatalf("Upsert update: %v", err)
	}

	count, err := repo.Count(ctx, "local")
	if err != nil || count != 1 {
		t.Fatalf("Count = %d err=%v, want 1", count, err)
	}

	got, err := repo.GetByDate(ctx, "local", logDate(30))
	if err != nil {
		t.Fatalf("GetByDate: %v", err)
	}
	if got == nil || len(got.MealLogs) != 2 || got.OverallAdherence != 50 {
		t.Fatalf("GetByDate = %+v", got)
	}
}

func TestDailyLogRepositoryGetByDateMissing(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewDailyLogRepository(db)

	got, err := repo.GetByDate(context.Background(), "local", logDate(1))
	if err != nil {
		t.Fatalf("GetByDate: %v", err)
	}
	if got != nil {
		t.Fatalf("不存在的日期应返回 nil, got %+v", got)
	}
}

func TestDailyLogRepositoryDateRange(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewDailyLogRepository(db)
	ctx := context.Background()

	for day := 25; day <= 31; day++ {
		log := &schema.DailyLog{
			ID:               "log-" + time.Date(2026, 8, day, 0, 0, 0, 0, time.UTC).Format("02"),
			UserID:           "local",
			Date:             logDate(day),
			OverallAdherence: day,
		}
		if err := repo.Upsert(ctx, log); err != nil {
			t.Fatalf("Upsert day %d: %v", day, err)
		}
	}

	// 闭区间，按日期升序
	logs, err := repo.GetByDateRange(ctx, "local", logDate(27), logDate(29))
	if err != nil {
		t.Fatalf("GetByDateRange: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("len = %d, want 3", len(logs))
	}
	for i, want := range []int{27, 28, 29} {
		if logs[i].OverallAdherence != want {
			t.Fatalf("logs[%d].OverallAdherence = %d, want %d", i, logs[i].OverallAdherence, want)
		}
	}

	// 其他用户的记录不可见
	other, err := repo.GetByDateRange(ctx, "someone-else", logDate(25), logDate(31))
	if err != nil || len(other) != 0 {
		t.Fatalf("跨用户隔离失败: len=%d err=%v", len(other), err)
	}
}

func TestDailyLogRepositoryJSONRoundTrip(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewDailyLogRepository(db)
	ctx := context.Background()

	log := &schema.DailyLog{
		ID:     "log-json",
		UserID: "local",
		Date:   logDate(15),
		TrainingLogs: schema.TrainingLogList{
			{
				SessionID:   "s1",
				SessionName: "力量训练",
				Adherence:   schema.AdherencePartial,
				Exercises: []schema.ExerciseRating{
					{ExerciseName: "深蹲", Difficulty: 4},
					{ExerciseName: "硬拉", Difficulty: 5},
				},
				PerceivedExertion: 7,
				Deviations: []schema.DeviationRecord{
					{Reason: schema.ReasonTooTired, Description: "加班后体力不足"},
				},
			},
		},
	}
	if err := repo.Upsert(ctx, log); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := repo.GetByDate(ctx, "local", logDate(15))
	if err != nil || got == nil {
		t.Fatalf("GetByDate: %v", err)
	}
	entry := got.TrainingLogs[0]
	if len(entry.Exercises) != 2 || entry.Exercises[1].Difficulty != 5 {
		t.Fatalf("嵌套结构未完整持久化: %+v", entry)
	}
	if entry.Deviations[0].Reason != schema.ReasonTooTired {
		t.Fatalf("Deviations = %+v", entry.Deviations)
	}
}
