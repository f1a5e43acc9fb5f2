package schema

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// UserProfile 用户画像，生成计划时作为输入。本地单用户场景下通常只有一行。
type UserProfile struct {
	UserID              string     `gorm:"primaryKey;size:64" json:"user_id"`
	Age                 int        `json:"age,omitempty"`
	Gender              string     `gorm:"size:20" json:"gender,omitempty"`
	HeightCm            float64    `json:"height_cm,omitempty"`
	WeightKg            float64    `json:"weight_kg,omitempty"`
	Goal                string     `gorm:"size:100" json:"goal,omitempty"` // 减脂/增肌/维持
	ActivityLevel       string     `gorm:"size:50" json:"activity_level,omitempty"`
	DietaryPreferences  StringList `gorm:"type:text" json:"dietary_preferences,omitempty"`
	Allergies           StringList `gorm:"type:text" json:"allergies,omitempty"`
	Equipment           StringList `gorm:"type:text" json:"equipment,omitempty"`
	MealsPerDay         int        `gorm:"default:3" json:"meals_per_day"`
	TrainingDaysPerWeek int        `gorm:"default:3" json:"training_days_per_week"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (UserProfile) TableName() string {
	return "user_profiles"
}

// StringList 以 JSON 文本存储的字符串列表
type StringList []string

// Value 实现 driver.Valuer 接口
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan 实现 sql.Scanner 接口
func (l *StringList) Scan(value interface{}) error {
	return scanJSON(value, l, func() { *l = make(StringList, 0) })
}
