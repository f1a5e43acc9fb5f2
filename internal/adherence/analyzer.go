package adherence

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yuqie6/FitPlan/internal/schema"
)

// Analysis 一段时间窗内的执行情况分析。纯派生值，不落库，日志变化后重新计算。
type Analysis struct {
	PeriodStart        time.Time `json:"period_start"`
	PeriodEnd          time.Time `json:"period_end"`
	OverallAdherence   int       `json:"overall_adherence"`  // 0-100
	MealAdherence      int       `json:"meal_adherence"`     // 0-100
	TrainingAdherence  int       `json:"training_adherence"` // 0-100
	Patterns           []Pattern `json:"patterns"`
	Recommendations    []string  `json:"recommendations"`
	TriggersAdjustment bool      `json:"triggers_adjustment"`
}

// Pattern 针对单个餐次类型或训练名称检测到的执行问题
type Pattern struct {
	Type              schema.PlanType          `json:"type"`
	ItemName          string                   `json:"item_name"`
	ConsecutiveMisses int                      `json:"consecutive_misses"`
	MissRate          float64                  `json:"miss_rate"` // 0-1，分母是窗口天数
	CommonReasons     []schema.DeviationReason `json:"common_reasons"`
	Timing            TimingDeviation          `json:"timing_deviations"`
}

// TimingDeviation 时间偏移统计（仅餐饮记录有实际时间可比）
type TimingDeviation struct {
	AverageDelay float64 `json:"average_delay"` // 分钟，正值表示偏晚
	Consistent   bool    `json:"consistent"`    // 样本≥3 且平均偏移>30 分钟且所有样本贴近平均值
}

// 模式判定阈值
const (
	consecutiveMissThreshold = 3    // 连续缺失达到该值即成模式
	missRateThreshold        = 0.5  // 缺失率严格大于该值即成模式
	lowAdherenceThreshold    = 60   // 整体/分项完成率低于该值视为偏低
	timingMinSamples         = 3    // 判定时间偏移一致性所需的最少样本数
	timingBandMinutes        = 30.0 // 时间偏移一致性的贴合带宽
	largeDelayMinutes        = 60.0 // 触发调整的平均偏移下限
)

// Analyze 对一个用户的若干天记录做执行情况分析。
// 输入无需有序，调用方负责日期窗口过滤（惯例是最近 7 天，本函数不关心窗口大小）。
// 空输入返回零值分析（PeriodStart=PeriodEnd=now），这是定义过的回退，不是错误。
func Analyze(logs []schema.DailyLog) *Analysis {
	if len(logs) == 0 {
		now := time.Now()
		return &Analysis{
			PeriodStart:     now,
			PeriodEnd:       now,
			Patterns:        []Pattern{},
			Recommendations: []string{},
		}
	}

	sorted := make([]schema.DailyLog, len(logs))
	copy(sorted, logs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	analysis := &Analysis{
		PeriodStart: sorted[0].Date,
		PeriodEnd:   sorted[len(sorted)-1].Date,
	}

	// 整体完成率：各天 OverallAdherence 的算术平均，四舍五入
	var sum float64
	for _, log := range sorted {
		sum += float64(log.OverallAdherence)
	}
	analysis.OverallAdherence = roundPct(sum / float64(len(sorted)))

	analysis.MealAdherence = mealAdherence(sorted)
	analysis.TrainingAdherence = trainingAdherence(sorted)

	patterns := detectMealPatterns(sorted)
	patterns = append(patterns, detectTrainingPatterns(sorted)...)
	analysis.Patterns = patterns

	analysis.Recommendations = buildRecommendations(analysis)
	analysis.TriggersAdjustment = shouldTriggerAdjustment(analysis)

	return analysis
}

// mealAdherence 所有天所有餐饮记录的加权完成率（×100 取整）。没有记录返回 0。
func mealAdherence(logs []schema.DailyLog) int {
	var weight float64
	var count int
	for _, log := range logs {
		for _, entry := range log.MealLogs {
			weight += entry.Adherence.Weight()
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return roundPct(weight / float64(count) * 100)
}

// trainingAdherence 同 mealAdherence，对训练记录
func trainingAdherence(logs []schema.DailyLog) int {
	var weight float64
	var count int
	for _, log := range logs {
		for _, entry := range log.TrainingLogs {
			weight += entry.Adherence.Weight()
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return roundPct(weight / float64(count) * 100)
}

// itemStats 按餐次类型/训练名称聚合的中间统计
type itemStats struct {
	name          string
	skippedCount  int // skipped 记录条数（缺失率分子）
	currentRun    int // 当前连续缺失天数
	maxRun        int
	reasonCounts  map[schema.DeviationReason]int
	reasonOrder   []schema.DeviationReason // 首次出现顺序，用于并列时排序
	timingSamples []float64                // 实际时间-计划时间，分钟
}

func newItemStats(name string) *itemStats {
	return &itemStats{
		name:         name,
		reasonCounts: make(map[schema.DeviationReason]int),
	}
}

func (s *itemStats) addDeviations(deviations []schema.DeviationRecord) {
	for _, d := range deviations {
		if _, seen := s.reasonCounts[d.Reason]; !seen {
			s.reasonOrder = append(s.reasonOrder, d.Reason)
		}
		s.reasonCounts[d.Reason]++
	}
}

// endDay 在处理完一天的全部记录后推进连续缺失计数。
// 连续性按排序后日志的下标邻接计算：当天在 logs 中出现但该条目未缺失（或没有该条目）即断开。
func (s *itemStats) endDay(skippedToday bool) {
	if skippedToday {
		s.currentRun++
		if s.currentRun > s.maxRun {
			s.maxRun = s.currentRun
		}
	} else {
		s.currentRun = 0
	}
}

// topReasons 出现频率前三的偏离原因，并列按首次出现顺序
func (s *itemStats) topReasons() []schema.DeviationReason {
	order := make(map[schema.DeviationReason]int, len(s.reasonOrder))
	for i, r := range s.reasonOrder {
		order[r] = i
	}
	reasons := append([]schema.DeviationReason(nil), s.reasonOrder...)
	sort.SliceStable(reasons, func(i, j int) bool {
		ci, cj := s.reasonCounts[reasons[i]], s.reasonCounts[reasons[j]]
		if ci != cj {
			return ci > cj
		}
		return order[reasons[i]] < order[reasons[j]]
	})
	if len(reasons) > 3 {
		reasons = reasons[:3]
	}
	return reasons
}

// timing 计算时间偏移统计
func (s *itemStats) timing() TimingDeviation {
	if len(s.timingSamples) == 0 {
		return TimingDeviation{}
	}
	var sum float64
	for _, d := range s.timingSamples {
		sum += d
	}
	avg := sum / float64(len(s.timingSamples))

	// 一致性：样本≥3、平均偏移超过 30 分钟、且每个样本都落在平均值 ±30 分钟内
	consistent := len(s.timingSamples) >= timingMinSamples && math.Abs(avg) > timingBandMinutes
	if consistent {
		for _, d := range s.timingSamples {
			if math.Abs(d-avg) > timingBandMinutes {
				consistent = false
				break
			}
		}
	}

	return TimingDeviation{AverageDelay: avg, Consistent: consistent}
}

// detectMealPatterns 按餐次类型聚合检测餐饮执行模式
func detectMealPatterns(logs []schema.DailyLog) []Pattern {
	groups := make(map[string]*itemStats)
	var groupOrder []string

	for _, log := range logs {
		skippedToday := make(map[string]bool)
		for _, entry := range log.MealLogs {
			g, ok := groups[entry.MealType]
			if !ok {
				g = newItemStats(entry.MealType)
				groups[entry.MealType] = g
				groupOrder = append(groupOrder, entry.MealType)
			}
			if entry.Adherence == schema.AdherenceSkipped {
				g.skippedCount++
				skippedToday[entry.MealType] = true
			}
			g.addDeviations(entry.Deviations)
			if delay, ok := timeDelayMinutes(entry.ScheduledTime, entry.ActualTime); ok {
				g.timingSamples = append(g.timingSamples, delay)
			}
		}
		// 对所有已知分组推进连续缺失计数（当天没有该餐次的条目视为未缺失）
		for _, name := range groupOrder {
			groups[name].endDay(skippedToday[name])
		}
	}

	days := len(logs)
	var patterns []Pattern
	for _, name := range groupOrder {
		g := groups[name]
		timing := g.timing()
		missRate := float64(g.skippedCount) / float64(days)
		if g.maxRun >= consecutiveMissThreshold || missRate > missRateThreshold || timing.Consistent {
			patterns = append(patterns, Pattern{
				Type:              schema.PlanTypeMeal,
				ItemName:          name,
				ConsecutiveMisses: g.maxRun,
				MissRate:          missRate,
				CommonReasons:     g.topReasons(),
				Timing:            timing,
			})
		}
	}
	return patterns
}

// detectTrainingPatterns 按训练名称聚合检测训练执行模式。
// 训练没有可比的计划/实际时间语义，不计算时间偏移。
func detectTrainingPatterns(logs []schema.DailyLog) []Pattern {
	groups := make(map[string]*itemStats)
	var groupOrder []string

	for _, log := range logs {
		skippedToday := make(map[string]bool)
		for _, entry := range log.TrainingLogs {
			g, ok := groups[entry.SessionName]
			if !ok {
				g = newItemStats(entry.SessionName)
				groups[entry.SessionName] = g
				groupOrder = append(groupOrder, entry.SessionName)
			}
			if entry.Adherence == schema.AdherenceSkipped {
				g.skippedCount++
				skippedToday[entry.SessionName] = true
			}
			g.addDeviations(entry.Deviations)
		}
		for _, name := range groupOrder {
			groups[name].endDay(skippedToday[name])
		}
	}

	days := len(logs)
	var patterns []Pattern
	for _, name := range groupOrder {
		g := groups[name]
		missRate := float64(g.skippedCount) / float64(days)
		if g.maxRun >= consecutiveMissThreshold || missRate > missRateThreshold {
			patterns = append(patterns, Pattern{
				Type:              schema.PlanTypeTraining,
				ItemName:          name,
				ConsecutiveMisses: g.maxRun,
				MissRate:          missRate,
				CommonReasons:     g.topReasons(),
			})
		}
	}
	return patterns
}

// shouldTriggerAdjustment 判定是否建议重新生成计划。
// 多个独立信号取 OR，阈值偏低：多弹一次建议成本很小，漏掉真实的执行下滑代价更高。
func shouldTriggerAdjustment(a *Analysis) bool {
	if a.OverallAdherence < lowAdherenceThreshold {
		return true
	}
	for _, p := range a.Patterns {
		if p.ConsecutiveMisses >= consecutiveMissThreshold {
			return true
		}
		if p.Timing.Consistent && math.Abs(p.Timing.AverageDelay) > largeDelayMinutes {
			return true
		}
	}
	return false
}

// 针对偏离原因的建议文案
var mealReasonAdvice = map[schema.DeviationReason]string{
	schema.ReasonTimeConstraint:       "换成准备时间更短的简餐或提前备餐",
	schema.ReasonNotHungry:            "减少该餐份量或调整进餐时间",
	schema.ReasonTooTired:             "多安排无需烹饪、可直接取用的食物",
	schema.ReasonScheduleConflict:     "把该餐挪到更稳定的时间段",
	schema.ReasonEquipmentUnavailable: "避免依赖特殊厨具的食谱",
}

var trainingReasonAdvice = map[schema.DeviationReason]string{
	schema.ReasonTooTired:             "降低训练强度或缩短时长",
	schema.ReasonTimeConstraint:       "改用更短的紧凑课程",
	schema.ReasonScheduleConflict:     "把训练挪到冲突更少的时段",
	schema.ReasonEquipmentUnavailable: "改为自重或无器械动作",
}

// buildRecommendations 根据模式与整体水平生成建议文案（只是提示字符串，不是结构化动作）
func buildRecommendations(a *Analysis) []string {
	recommendations := []string{}

	for _, p := range a.Patterns {
		advice := mealReasonAdvice
		if p.Type == schema.PlanTypeTraining {
			advice = trainingReasonAdvice
		}
		for _, reason := range p.CommonReasons {
			if text, ok := advice[reason]; ok {
				recommendations = append(recommendations,
					fmt.Sprintf("「%s」经常未完成：建议%s", p.ItemName, text))
			}
		}
	}

	if a.MealAdherence < lowAdherenceThreshold {
		recommendations = append(recommendations, "饮食整体完成率偏低，建议简化饮食计划")
	}
	if a.TrainingAdherence < lowAdherenceThreshold {
		recommendations = append(recommendations, "训练整体完成率偏低，建议降低训练频率或强度")
	}

	return recommendations
}

// timeDelayMinutes 计算实际时间相对计划时间的偏移（分钟）。任一时间缺失或非法返回 false。
func timeDelayMinutes(scheduled, actual string) (float64, bool) {
	s, ok := parseMinutes(scheduled)
	if !ok {
		return 0, false
	}
	a, ok := parseMinutes(actual)
	if !ok {
		return 0, false
	}
	return float64(a - s), true
}

// parseMinutes 将 HH:mm 解析为当天的分钟数
func parseMinutes(hhmm string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(hhmm), ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// roundPct 四舍五入到整数
func roundPct(v float64) int {
	return int(math.Round(v))
}
