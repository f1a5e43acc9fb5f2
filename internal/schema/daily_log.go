package schema

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// DailyLog 每日执行记录 - 一个用户一天恰好一条（按 user_id+date 唯一索引，靠按日期 upsert 维持）
// 数据量级：365 条/年
type DailyLog struct {
	ID               string          `gorm:"primaryKey;size:36" json:"id"`
	UserID           string          `gorm:"size:64;uniqueIndex:uidx_daily_logs_user_date" json:"user_id"`
	Date             time.Time       `gorm:"uniqueIndex:uidx_daily_logs_user_date" json:"date"` // 当天零点
	MealLogs         MealLogList     `gorm:"type:text" json:"meal_logs"`
	TrainingLogs     TrainingLogList `gorm:"type:text" json:"training_logs"`
	OverallAdherence int             `gorm:"default:0" json:"overall_adherence"` // 当日完成率 0-100
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (DailyLog) TableName() string {
	return "daily_logs"
}

// DeviationRecord 一次未按计划执行的原因记录
type DeviationRecord struct {
	Reason      DeviationReason `json:"reason"`
	Description string          `json:"description,omitempty"`
	Impact      string          `json:"impact,omitempty"`
}

// MealLogEntry 单餐记录。MealID 在一天内唯一。
type MealLogEntry struct {
	MealID        string            `json:"meal_id"`
	MealType      string            `json:"meal_type"`                // breakfast/lunch/dinner/snack
	ScheduledTime string            `json:"scheduled_time"`           // HH:mm
	ActualTime    string            `json:"actual_time,omitempty"`    // HH:mm，未记录为空
	Adherence     AdherenceLevel    `json:"adherence"`
	Deviations    []DeviationRecord `json:"deviations,omitempty"`
	PortionScale  float64           `json:"portion_scale,omitempty"` // 1.0 = 按计划份量
}

// ExerciseRating 单个动作的难度反馈
type ExerciseRating struct {
	ExerciseName string `json:"exercise_name"`
	Difficulty   int    `json:"difficulty"` // 1-5
}

// TrainingLogEntry 单次训练记录。SessionID 在一天内唯一。
type TrainingLogEntry struct {
	SessionID         string            `json:"session_id"`
	SessionName       string            `json:"session_name"`
	ScheduledTime     string            `json:"scheduled_time,omitempty"` // HH:mm
	StartTime         string            `json:"start_time,omitempty"`
	EndTime           string            `json:"end_time,omitempty"`
	Adherence         AdherenceLevel    `json:"adherence"`
	Exercises         []ExerciseRating  `json:"exercises,omitempty"`
	PerceivedExertion int               `json:"perceived_exertion,omitempty"` // RPE 1-10
	Deviations        []DeviationRecord `json:"deviations,omitempty"`
}

// MealLogList 以 JSON 文本存储的餐饮记录列表
type MealLogList []MealLogEntry

// Value 实现 driver.Valuer 接口
func (l MealLogList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan 实现 sql.Scanner 接口
func (l *MealLogList) Scan(value interface{}) error {
	return scanJSON(value, l, func() { *l = make(MealLogList, 0) })
}

// TrainingLogList 以 JSON 文本存储的训练记录列表
type TrainingLogList []TrainingLogEntry

// Value 实现 driver.Valuer 接口
func (l TrainingLogList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan 实现 sql.Scanner 接口
func (l *TrainingLogList) Scan(value interface{}) error {
	return scanJSON(value, l, func() { *l = make(TrainingLogList, 0) })
}

// scanJSON 通用的 JSON 字段反序列化：nil/未知类型回退为空值
func scanJSON(value interface{}, dst interface{}, reset func()) error {
	if value == nil {
		reset()
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		reset()
		return nil
	}

	return json.Unmarshal(bytes, dst)
}
