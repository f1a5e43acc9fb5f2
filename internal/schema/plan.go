package schema

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Plan AI 生成的饮食/训练计划。同一用户同一类型至多一个 active。
// 数据量级：百级/年（历史计划归档保留）
type Plan struct {
	ID           string      `gorm:"primaryKey;size:36" json:"id"`
	UserID       string      `gorm:"size:64;index:idx_plans_user_type" json:"user_id"`
	Type         PlanType    `gorm:"size:20;index:idx_plans_user_type" json:"type"`
	Status       PlanStatus  `gorm:"size:20;index" json:"status"`
	Title        string      `gorm:"size:255" json:"title"`
	StartDate    time.Time   `json:"start_date"` // 当天零点
	DurationDays int         `json:"duration_days"`
	Days         PlanDayList `gorm:"type:text" json:"days"` // 按天循环展开
	Notes        string      `gorm:"type:text" json:"notes,omitempty"` // 生成备注
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Plan) TableName() string {
	return "plans"
}

// PlanDay 计划中的一天。饮食计划填 Meals，训练计划填 Sessions（休息日为空）。
type PlanDay struct {
	Meals    []PlanMeal    `json:"meals,omitempty"`
	Sessions []PlanSession `json:"sessions,omitempty"`
}

// PlanMeal 计划中的一餐
type PlanMeal struct {
	MealID      string `json:"meal_id"`   // 计划内稳定 ID，日志按它对齐
	Name        string `json:"name"`
	MealType    string `json:"meal_type"` // breakfast/lunch/dinner/snack
	Time        string `json:"time"`      // HH:mm
	Description string `json:"description,omitempty"`
	PrepMinutes int    `json:"prep_minutes,omitempty"`
	CookMinutes int    `json:"cook_minutes,omitempty"`
	Calories    int    `json:"calories,omitempty"`
}

// PlanExercise 计划中的单个动作
type PlanExercise struct {
	Name  string `json:"name"`
	Sets  int    `json:"sets,omitempty"`
	Reps  int    `json:"reps,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// PlanSession 计划中的一次训练
type PlanSession struct {
	SessionID       string         `json:"session_id"`
	Name            string         `json:"name"`
	Time            string         `json:"time,omitempty"` // HH:mm
	DurationMinutes int            `json:"duration_minutes,omitempty"`
	Intensity       string         `json:"intensity,omitempty"` // low/medium/high
	Exercises       []PlanExercise `json:"exercises,omitempty"`
}

// PlanDayList 以 JSON 文本存储的计划天列表
type PlanDayList []PlanDay

// Value 实现 driver.Valuer 接口
func (l PlanDayList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan 实现 sql.Scanner 接口
func (l *PlanDayList) Scan(value interface{}) error {
	return scanJSON(value, l, func() { *l = make(PlanDayList, 0) })
}

// DayFor 返回指定日期对应的计划天。计划按天数循环；date 早于开始日期返回 nil。
func (p *Plan) DayFor(date time.Time) *PlanDay {
	if p == nil || len(p.Days) == 0 {
		return nil
	}
	offset := int(date.Sub(p.StartDate).Hours() / 24)
	if offset < 0 {
		return nil
	}
	day := p.Days[offset%len(p.Days)]
	return &day
}
