package adherence

import (
	"fmt"
	"math"
	"strings"

	"github.com/yuqie6/FitPlan/internal/schema"
)

// 调整指令的兜底文案。导出是为了让调用方/测试能精确比对。
const (
	// BriefMaintain 没有检测到该类型的问题模式时返回的通用维持指令
	BriefMaintain = "保持当前计划的整体结构，在此基础上增加内容多样性，确保计划可持续执行。"
	// BriefGenericAdjust 有模式但没有任何原因命中指令映射时的兜底
	BriefGenericAdjust = "对计划做小幅调整以提升执行率，同时保持目标进度不变。"
)

// 按 (计划类型, 偏离原因) 映射到具体的生成指令句
var mealReasonDirectives = map[schema.DeviationReason]string{
	schema.ReasonTimeConstraint:       "优先选用准备时间 15 分钟以内、烹饪 20 分钟以内的食谱。",
	schema.ReasonNotHungry:            "将相应餐次份量减少 20-30%，或调整进餐时间使其更贴近实际食欲。",
	schema.ReasonTooTired:             "减少需要复杂烹饪的菜式，多安排可提前备好或直接取用的简餐。",
	schema.ReasonScheduleConflict:     "将该餐次安排在更灵活的时间窗口，或改为便携可移动的餐食。",
	schema.ReasonEquipmentUnavailable: "避免依赖特殊厨具的食谱。",
}

var trainingReasonDirectives = map[schema.DeviationReason]string{
	schema.ReasonTooTired:             "将训练强度降低 20-30%，并且/或者将单次训练时长缩短 15 分钟。",
	schema.ReasonTimeConstraint:       "改用 30 分钟以内的紧凑课程，减少组间休息时间。",
	schema.ReasonScheduleConflict:     "将该训练调整到日程冲突更少的时段，并给出备选时段。",
	schema.ReasonEquipmentUnavailable: "改用自重或无器械动作替代。",
}

// BuildAdjustmentBrief 把分析结果合成为传给计划生成端的自然语言调整指令。
// 纯字符串合成，无副作用。
func BuildAdjustmentBrief(analysis *Analysis, planType schema.PlanType) string {
	if analysis == nil {
		return BriefMaintain
	}

	directives := mealReasonDirectives
	if planType == schema.PlanTypeTraining {
		directives = trainingReasonDirectives
	}

	var sentences []string
	matched := false
	for _, p := range analysis.Patterns {
		if p.Type != planType {
			continue
		}
		matched = true
		for _, reason := range p.CommonReasons {
			if s, ok := directives[reason]; ok {
				sentences = append(sentences, s)
			}
		}
		if p.Timing.Consistent {
			sentences = append(sentences, timingDirective(p))
		}
	}

	// 没有该类型的模式：维持现状
	if !matched {
		return BriefMaintain
	}
	// 有模式但没有任何指令命中：给出通用的小幅调整指令
	if len(sentences) == 0 {
		return BriefGenericAdjust
	}

	return strings.Join(sentences, " ")
}

// timingDirective 将稳定的时间偏移转成整点调整指令，方向取平均偏移的符号，
// 幅度为 round(|平均偏移|/60) 小时。
func timingDirective(p Pattern) string {
	hours := int(math.Round(math.Abs(p.Timing.AverageDelay) / 60))
	if hours < 1 {
		hours = 1
	}
	direction := "推后"
	if p.Timing.AverageDelay < 0 {
		direction = "提前"
	}
	return fmt.Sprintf("将「%s」的计划时间整体%s约 %d 小时。", p.ItemName, direction, hours)
}
