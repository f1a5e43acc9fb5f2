package dto

// 注意：本包用于承载“对外契约”的 DTO（与前端/HTTP API 保持稳定）。
// 不要在这里放 GORM/持久化细节；内部持久化 schema 请见 internal/schema；业务逻辑收敛在 internal/service。

// LogMealRequest 记录一餐
type LogMealRequest struct {
	MealID        string               `json:"meal_id"`
	MealType      string               `json:"meal_type"`
	ScheduledTime string               `json:"scheduled_time,omitempty"` // HH:mm
	ActualTime    string               `json:"actual_time,omitempty"`    // HH:mm
	Adherence     string               `json:"adherence"`                // full | partial | skipped
	PortionScale  float64              `json:"portion_scale,omitempty"`
	Deviations    []DeviationRecordDTO `json:"deviations,omitempty"`
}

// LogTrainingRequest 记录一次训练
type LogTrainingRequest struct {
	SessionID         string               `json:"session_id"`
	SessionName       string               `json:"session_name"`
	ScheduledTime     string               `json:"scheduled_time,omitempty"`
	StartTime         string               `json:"start_time,omitempty"`
	EndTime           string               `json:"end_time,omitempty"`
	Adherence         string               `json:"adherence"`
	Exercises         []ExerciseRatingDTO  `json:"exercises,omitempty"`
	PerceivedExertion int                  `json:"perceived_exertion,omitempty"` // 1-10
	Deviations        []DeviationRecordDTO `json:"deviations,omitempty"`
}

type DeviationRecordDTO struct {
	Reason      string `json:"reason"`
	Description string `json:"description,omitempty"`
	Impact      string `json:"impact,omitempty"`
}

type ExerciseRatingDTO struct {
	ExerciseName string `json:"exercise_name"`
	Difficulty   int    `json:"difficulty"` // 1-5
}

// TodayDTO 今日视图：计划内条目 + 已有记录 + 当日完成率
type TodayDTO struct {
	Date             string              `json:"date"`
	Meals            []PlanMealDTO       `json:"meals"`
	Sessions         []PlanSessionDTO    `json:"sessions"`
	MealLogs         []MealLogEntryDTO   `json:"meal_logs"`
	TrainingLogs     []TrainingLogDTO    `json:"training_logs"`
	OverallAdherence int                 `json:"overall_adherence"`
}

type MealLogEntryDTO struct {
	MealID        string               `json:"meal_id"`
	MealType      string               `json:"meal_type"`
	ScheduledTime string               `json:"scheduled_time,omitempty"`
	ActualTime    string               `json:"actual_time,omitempty"`
	Adherence     string               `json:"adherence"`
	PortionScale  float64              `json:"portion_scale,omitempty"`
	Deviations    []DeviationRecordDTO `json:"deviations,omitempty"`
}

type TrainingLogDTO struct {
	SessionID         string               `json:"session_id"`
	SessionName       string               `json:"session_name"`
	Adherence         string               `json:"adherence"`
	PerceivedExertion int                  `json:"perceived_exertion,omitempty"`
	Deviations        []DeviationRecordDTO `json:"deviations,omitempty"`
}

// PlanDTO 计划视图
type PlanDTO struct {
	ID           string       `json:"id"`
	Type         string       `json:"type"`
	Status       string       `json:"status"`
	Title        string       `json:"title"`
	StartDate    string       `json:"start_date"`
	DurationDays int          `json:"duration_days"`
	Days         []PlanDayDTO `json:"days,omitempty"`
	Notes        string       `json:"notes,omitempty"`
}

type PlanDayDTO struct {
	Meals    []PlanMealDTO    `json:"meals,omitempty"`
	Sessions []PlanSessionDTO `json:"sessions,omitempty"`
}

type PlanMealDTO struct {
	MealID      string `json:"meal_id"`
	Name        string `json:"name"`
	MealType    string `json:"meal_type"`
	Time        string `json:"time"`
	Description string `json:"description,omitempty"`
	PrepMinutes int    `json:"prep_minutes,omitempty"`
	CookMinutes int    `json:"cook_minutes,omitempty"`
	Calories    int    `json:"calories,omitempty"`
}

type PlanSessionDTO struct {
	SessionID       string `json:"session_id"`
	Name            string `json:"name"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Intensity       string `json:"intensity,omitempty"`
}

// AnalysisDTO 执行分析视图
type AnalysisDTO struct {
	PeriodStart        string       `json:"period_start"`
	PeriodEnd          string       `json:"period_end"`
	OverallAdherence   int          `json:"overall_adherence"`
	MealAdherence      int          `json:"meal_adherence"`
	TrainingAdherence  int          `json:"training_adherence"`
	Patterns           []PatternDTO `json:"patterns"`
	Recommendations    []string     `json:"recommendations"`
	TriggersAdjustment bool         `json:"triggers_adjustment"`
	State              string       `json:"state"`
}

type PatternDTO struct {
	Type              string   `json:"type"`
	ItemName          string   `json:"item_name"`
	ConsecutiveMisses int      `json:"consecutive_misses"`
	MissRate          float64  `json:"miss_rate"`
	CommonReasons     []string `json:"common_reasons"`
	AverageDelay      float64  `json:"average_delay,omitempty"`
	ConsistentTiming  bool     `json:"consistent_timing,omitempty"`
}

// GeneratePlanRequest 首次生成计划
type GeneratePlanRequest struct {
	Type         string `json:"type"` // meal | training
	DurationDays int    `json:"duration_days,omitempty"`
}

// ProfileDTO 用户档案
type ProfileDTO struct {
	Age                 int      `json:"age,omitempty"`
	Gender              string   `json:"gender,omitempty"`
	HeightCm            float64  `json:"height_cm,omitempty"`
	WeightKg            float64  `json:"weight_kg,omitempty"`
	Goal                string   `json:"goal,omitempty"`
	ActivityLevel       string   `json:"activity_level,omitempty"`
	DietaryPreferences  []string `json:"dietary_preferences,omitempty"`
	Allergies           []string `json:"allergies,omitempty"`
	Equipment           []string `json:"equipment,omitempty"`
	MealsPerDay         int      `json:"meals_per_day,omitempty"`
	TrainingDaysPerWeek int      `json:"training_days_per_week,omitempty"`
}
