package schema

// AdherenceLevel 完成度等级
type AdherenceLevel string

const (
	AdherenceFull    AdherenceLevel = "full"    // 按计划完成
	AdherencePartial AdherenceLevel = "partial" // 部分完成
	AdherenceSkipped AdherenceLevel = "skipped" // 跳过
)

// Weight 完成度权重：full=1.0, partial=0.5, skipped=0
func (a AdherenceLevel) Weight() float64 {
	switch a {
	case AdherenceFull:
		return 1.0
	case AdherencePartial:
		return 0.5
	default:
		return 0
	}
}

// Valid 检查是否是已知等级
func (a AdherenceLevel) Valid() bool {
	switch a {
	case AdherenceFull, AdherencePartial, AdherenceSkipped:
		return true
	}
	return false
}

// DeviationReason 偏离原因（封闭枚举，可扩展）
type DeviationReason string

const (
	ReasonTimeConstraint       DeviationReason = "time_constraint"
	ReasonNotHungry            DeviationReason = "not_hungry"
	ReasonTooTired             DeviationReason = "too_tired"
	ReasonScheduleConflict     DeviationReason = "schedule_conflict"
	ReasonEquipmentUnavailable DeviationReason = "equipment_unavailable"
	ReasonOther                DeviationReason = "other"
)

// PlanType 计划类型
type PlanType string

const (
	PlanTypeMeal     PlanType = "meal"
	PlanTypeTraining PlanType = "training"
)

// Valid 检查是否是已知计划类型
func (t PlanType) Valid() bool {
	return t == PlanTypeMeal || t == PlanTypeTraining
}

// PlanStatus 计划状态。同一用户同一类型至多一个 active 计划。
type PlanStatus string

const (
	PlanStatusActive   PlanStatus = "active"
	PlanStatusInactive PlanStatus = "inactive"
	PlanStatusArchived PlanStatus = "archived"
)
