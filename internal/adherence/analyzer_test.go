package adherence

import (
	"testing"
	"time"

	"github.com/yuqie6/FitPlan/internal/schema"
)

func day(n int) time.Time {
	return time.Date(2026, 8, 1+n, 0, 0, 0, 0, time.Local)
}

func mealLog(n int, overall int, entries ...schema.MealLogEntry) schema.DailyLog {
	return schema.DailyLog{
		UserID:           "local",
		Date:             day(n),
		MealLogs:         entries,
		OverallAdherence: overall,
	}
}

func TestAnalyzeEmptyInput(t *testing.T) {
	a := Analyze(nil)

	if a.OverallAdherence != 0 || a.MealAdherence != 0 || a.TrainingAdherence != 0 {
		t.Fatalf("空输入应得到全零完成率, got %d/%d/%d",
			a.OverallAdherence, a.MealAdherence, a.TrainingAdherence)
	}
	if len(a.Patterns) != 0 {
		t.Fatalf("空输入不应产生模式, got %v", a.Patterns)
	}
	if a.TriggersAdjustment {
		t.Fatal("空输入不应触发调整")
	}
}

func TestAnalyzeConsecutiveSkipsFormPattern(t *testing.T) {
	// 连续 3 天跳过早餐，均因时间不够
	var logs []schema.DailyLog
	for i := 0; i < 3; i++ {
		logs = append(logs, mealLog(i, 50, schema.MealLogEntry{
			MealID:    "d1-breakfast-0",
			MealType:  "breakfast",
			Adherence: schema.AdherenceSkipped,
			Deviations: []schema.DeviationRecord{
				{Reason: schema.ReasonTimeConstraint},
			},
		}))
	}

	a := Analyze(logs)

	if len(a.Patterns) != 1 {
		t.Fatalf("期望 1 个模式, got %d", len(a.Patterns))
	}
	p := a.Patterns[0]
	if p.Type != schema.PlanTypeMeal || p.ItemName != "breakfast" {
		t.Fatalf("模式目标错误: %+v", p)
	}
	if p.ConsecutiveMisses != 3 {
		t.Fatalf("ConsecutiveMisses = %d, want 3", p.ConsecutiveMisses)
	}
	if p.MissRate != 1.0 {
		t.Fatalf("MissRate = %v, want 1.0", p.MissRate)
	}
	if len(p.CommonReasons) != 1 || p.CommonReasons[0] != schema.ReasonTimeConstraint {
		t.Fatalf("CommonReasons = %v", p.CommonReasons)
	}
	if !a.TriggersAdjustment {
		t.Fatal("连续 3 天缺失应触发调整")
	}
}

func TestAnalyzeRunBreaksOnCompletion(t *testing.T) {
	// 跳过、跳过、完成、跳过：最长连续缺失为 2，不成模式也不触发
	logs := []schema.DailyLog{
		mealLog(0, 80, schema.MealLogEntry{MealID: "m", MealType: "lunch", Adherence: schema.AdherenceSkipped}),
		mealLog(1, 80, schema.MealLogEntry{MealID: "m", MealType: "lunch", Adherence: schema.AdherenceSkipped}),
		mealLog(2, 90, schema.MealLogEntry{MealID: "m", MealType: "lunch", Adherence: schema.AdherenceFull}),
		mealLog(3, 80, schema.MealLogEntry{MealID: "m", MealType: "lunch", Adherence: schema.AdherenceSkipped}),
	}

	a := Analyze(logs)

	if len(a.Patterns) != 1 {
		// 缺失率 3/4 > 0.5 仍然成模式，但连续缺失应是 2
		t.Fatalf("期望 1 个模式(缺失率), got %d", len(a.Patterns))
	}
	if a.Patterns[0].ConsecutiveMisses != 2 {
		t.Fatalf("ConsecutiveMisses = %d, want 2", a.Patterns[0].ConsecutiveMisses)
	}
}

func TestAnalyzeMissRateExactlyHalfIsNotPattern(t *testing.T) {
	// 4 天里跳过 2 天（不连续），缺失率恰为 0.5，严格大于才算
	logs := []schema.DailyLog{
		mealLog(0, 80, schema.MealLogEntry{MealID: "m", MealType: "dinner", Adherence: schema.AdherenceSkipped}),
		mealLog(1, 90, schema.MealLogEntry{MealID: "m", MealType: "dinner", Adherence: schema.AdherenceFull}),
		mealLog(2, 80, schema.MealLogEntry{MealID: "m", MealType: "dinner", Adherence: schema.AdherenceSkipped}),
		mealLog(3, 90, schema.MealLogEntry{MealID: "m", MealType: "dinner", Adherence: schema.AdherenceFull}),
	}

	a := Analyze(logs)

	if len(a.Patterns) != 0 {
		t.Fatalf("缺失率 0.5 不应成模式, got %+v", a.Patterns)
	}
}

func TestAnalyzePerfectWeekDoesNotTrigger(t *testing.T) {
	var logs []schema.DailyLog
	for i := 0; i < 7; i++ {
		logs = append(logs, mealLog(i, 100,
			schema.MealLogEntry{MealID: "b", MealType: "breakfast", Adherence: schema.AdherenceFull},
			schema.MealLogEntry{MealID: "l", MealType: "lunch", Adherence: schema.AdherenceFull},
		))
	}

	a := Analyze(logs)

	if a.OverallAdherence != 100 || a.MealAdherence != 100 {
		t.Fatalf("完成率 = %d/%d, want 100/100", a.OverallAdherence, a.MealAdherence)
	}
	if len(a.Patterns) != 0 || a.TriggersAdjustment {
		t.Fatalf("全部完成不应有模式或触发调整: %+v", a.Patterns)
	}
}

func TestAnalyzeLowOverallTriggers(t *testing.T) {
	logs := []schema.DailyLog{
		mealLog(0, 50, schema.MealLogEntry{MealID: "m", MealType: "lunch", Adherence: schema.AdherencePartial}),
		mealLog(1, 60, schema.MealLogEntry{MealID: "m", MealType: "lunch", Adherence: schema.AdherencePartial}),
	}

	a := Analyze(logs)

	if a.OverallAdherence != 55 {
		t.Fatalf("OverallAdherence = %d, want 55", a.OverallAdherence)
	}
	if !a.TriggersAdjustment {
		t.Fatal("整体完成率 55 低于 60 应触发调整")
	}
}

func TestAnalyzeConsistentTimingShift(t *testing.T) {
	// 3 天都完成了晚餐，但实际时间稳定偏晚 40-50 分钟
	delays := []string{"18:45", "18:50", "18:40"}
	var logs []schema.DailyLog
	for i, actual := range delays {
		logs = append(logs, mealLog(i, 90, schema.MealLogEntry{
			MealID:        "d",
			MealType:      "dinner",
			ScheduledTime: "18:00",
			ActualTime:    actual,
			Adherence:     schema.AdherenceFull,
		}))
	}

	a := Analyze(logs)

	if len(a.Patterns) != 1 {
		t.Fatalf("稳定时间偏移应独立成模式, got %d", len(a.Patterns))
	}
	p := a.Patterns[0]
	if !p.Timing.Consistent {
		t.Fatalf("Timing.Consistent = false, samples avg %v", p.Timing.AverageDelay)
	}
	if p.Timing.AverageDelay != 45 {
		t.Fatalf("AverageDelay = %v, want 45", p.Timing.AverageDelay)
	}
	// 平均偏移 45 分钟未超过 60，不触发调整
	if a.TriggersAdjustment {
		t.Fatal("45 分钟偏移不应触发调整")
	}
}

func TestAnalyzeScatteredTimingIsNotConsistent(t *testing.T) {
	// 偏移方向不一，平均值小且样本分散
	actuals := []string{"19:10", "17:20", "18:05"}
	var logs []schema.DailyLog
	for i, actual := range actuals {
		logs = append(logs, mealLog(i, 90, schema.MealLogEntry{
			MealID:        "d",
			MealType:      "dinner",
			ScheduledTime: "18:00",
			ActualTime:    actual,
			Adherence:     schema.AdherenceFull,
		}))
	}

	a := Analyze(logs)

	if len(a.Patterns) != 0 {
		t.Fatalf("分散的时间偏移不应成模式, got %+v", a.Patterns)
	}
}

func TestAnalyzeTrainingPattern(t *testing.T) {
	var logs []schema.DailyLog
	for i := 0; i < 3; i++ {
		logs = append(logs, schema.DailyLog{
			UserID:           "local",
			Date:             day(i),
			OverallAdherence: 40,
			TrainingLogs: []schema.TrainingLogEntry{
				{
					SessionID:   "s1",
					SessionName: "力量训练",
					Adherence:   schema.AdherenceSkipped,
					Deviations: []schema.DeviationRecord{
						{Reason: schema.ReasonTooTired},
					},
				},
			},
		})
	}

	a := Analyze(logs)

	var found *Pattern
	for i := range a.Patterns {
		if a.Patterns[i].Type == schema.PlanTypeTraining {
			found = &a.Patterns[i]
		}
	}
	if found == nil {
		t.Fatalf("应检测到训练模式, got %+v", a.Patterns)
	}
	if found.ItemName != "力量训练" || found.ConsecutiveMisses != 3 {
		t.Fatalf("训练模式错误: %+v", found)
	}
	if found.Timing.Consistent || found.Timing.AverageDelay != 0 {
		t.Fatalf("训练模式不应有时间偏移统计: %+v", found.Timing)
	}
	if !a.TriggersAdjustment {
		t.Fatal("连续跳过训练应触发调整")
	}
}

func TestTopReasonsTieBreakByFirstSeen(t *testing.T) {
	// too_tired 与 schedule_conflict 各出现 2 次，too_tired 先出现应排前
	logs := []schema.DailyLog{
		mealLog(0, 40, schema.MealLogEntry{
			MealID: "m", MealType: "lunch", Adherence: schema.AdherenceSkipped,
			Deviations: []schema.DeviationRecord{
				{Reason: schema.ReasonTooTired},
				{Reason: schema.ReasonScheduleConflict},
			},
		}),
		mealLog(1, 40, schema.MealLogEntry{
			MealID: "m", MealType: "lunch", Adherence: schema.AdherenceSkipped,
			Deviations: []schema.DeviationRecord{
				{Reason: schema.ReasonScheduleConflict},
				{Reason: schema.ReasonTooTired},
				{Reason: schema.ReasonTimeConstraint},
			},
		}),
		mealLog(2, 40, schema.MealLogEntry{
			MealID: "m", MealType: "lunch", Adherence: schema.AdherenceSkipped,
			Deviations: []schema.DeviationRecord{
				{Reason: schema.ReasonNotHungry},
				{Reason: schema.ReasonTimeConstraint},
			},
		}),
	}

	a := Analyze(logs)

	if len(a.Patterns) != 1 {
		t.Fatalf("期望 1 个模式, got %d", len(a.Patterns))
	}
	got := a.Patterns[0].CommonReasons
	want := []schema.DeviationReason{
		schema.ReasonTooTired,
		schema.ReasonScheduleConflict,
		schema.ReasonTimeConstraint,
	}
	if len(got) != 3 {
		t.Fatalf("CommonReasons 长度 = %d, want 3 (截断到前三)", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("CommonReasons[%d] = %s, want %s (全部 %v)", i, got[i], want[i], got)
		}
	}
}

func TestAnalyzeRecommendationsForLowAdherence(t *testing.T) {
	logs := []schema.DailyLog{
		mealLog(0, 30, schema.MealLogEntry{MealID: "m", MealType: "lunch", Adherence: schema.AdherenceSkipped}),
		mealLog(1, 30, schema.MealLogEntry{MealID: "m", MealType: "lunch", Adherence: schema.AdherenceSkipped}),
	}

	a := Analyze(logs)

	if len(a.Recommendations) == 0 {
		t.Fatal("饮食完成率为 0 时应给出建议")
	}
}

func TestParseMinutes(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"08:30", 510, true},
		{"00:00", 0, true},
		{"23:59", 1439, true},
		{"24:00", 0, false},
		{"8", 0, false},
		{"", 0, false},
		{"ab:cd", 0, false},
	}
	for _, c := range cases {
		got, ok := parseMinutes(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("parseMinutes(%q) = (%d, %v), want (%d, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}
