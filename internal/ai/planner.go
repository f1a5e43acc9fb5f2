package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yuqie6/FitPlan/internal/schema"
)

// PlanGenerator 计划生成器，把结构化请求转成提示词并解析返回的计划
type PlanGenerator struct {
	client *DeepSeekClient
}

// NewPlanGenerator 创建计划生成器
func NewPlanGenerator(client *DeepSeekClient) *PlanGenerator {
	return &PlanGenerator{client: client}
}

// AdjustmentContext 调整上下文：分析摘要 + 合成好的调整指令
type AdjustmentContext struct {
	Brief             string   `json:"brief"`
	OverallAdherence  int      `json:"overall_adherence"`
	MealAdherence     int      `json:"meal_adherence"`
	TrainingAdherence int      `json:"training_adherence"`
	Recommendations   []string `json:"recommendations,omitempty"`
}

// PlanRequest 计划生成请求。Adjustment 为空表示首次生成。
type PlanRequest struct {
	Type         schema.PlanType
	Profile      *schema.UserProfile
	StartDate    time.Time
	DurationDays int
	Adjustment   *AdjustmentContext
	HistoryNotes []string // 来自调整记忆库的历史备注
}

// PlanResult 计划生成结果
type PlanResult struct {
	Title string
	Days  schema.PlanDayList
	Notes string // 生成备注
}

// AI 返回的原始计划结构
type planResponse struct {
	Title string            `json:"title"`
	Notes string            `json:"notes"`
	Days  []planResponseDay `json:"days"`
}

type planResponseDay struct {
	Meals    []planResponseMeal    `json:"meals,omitempty"`
	Sessions []planResponseSession `json:"sessions,omitempty"`
}

type planResponseMeal struct {
	Name        string `json:"name"`
	MealType    string `json:"meal_type"`
	Time        string `json:"time"`
	Description string `json:"description"`
	PrepMinutes int    `json:"prep_minutes"`
	CookMinutes int    `json:"cook_minutes"`
	Calories    int    `json:"calories"`
}

type planResponseSession struct {
	Name            string `json:"name"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	Intensity       string `json:"intensity"`
	Exercises       []struct {
		Name  string `json:"name"`
		Sets  int    `json:"sets"`
		Reps  int    `json:"reps"`
		Notes string `json:"notes"`
	} `json:"exercises,omitempty"`
}

// GeneratePlan 生成一份按天展开的计划。外部网络调用，失败原样返回给调用方，
// 不在这里做重试（由调用方决定）。
func (g *PlanGenerator) GeneratePlan(ctx context.Context, req *PlanRequest) (*PlanResult, error) {
	if !g.client.IsConfigured() {
		return nil, fmt.Errorf("DeepSeek API 未配置")
	}
	if req == nil || !req.Type.Valid() {
		return nil, fmt.Errorf("无效的计划生成请求")
	}
	if req.DurationDays <= 0 {
		req.DurationDays = 7
	}

	prompt := g.buildPrompt(req)

	system := "你是一个专业的营养与训练规划助手，为单个用户生成可执行的个人计划。回复必须是纯 JSON，不要 markdown 代码块。"
	messages := []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: prompt},
	}

	response, err := g.client.ChatWithOptions(ctx, messages, 0.5, 4000)
	if err != nil {
		return nil, fmt.Errorf("生成计划失败: %w", err)
	}

	response = cleanJSONResponse(response)

	var parsed planResponse
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		return nil, fmt.Errorf("解析计划响应失败: %w", err)
	}
	if len(parsed.Days) == 0 {
		return nil, fmt.Errorf("计划响应缺少天数据")
	}

	return &PlanResult{
		Title: parsed.Title,
		Days:  normalizeDays(req.Type, parsed.Days),
		Notes: parsed.Notes,
	}, nil
}

// buildPrompt 构建提示词：画像 + 时间窗 + 调整指令 + 历史备注 + 返回格式
func (g *PlanGenerator) buildPrompt(req *PlanRequest) string {
	var b strings.Builder

	if req.Type == schema.PlanTypeMeal {
		b.WriteString(fmt.Sprintf("请为以下用户生成 %d 天的饮食计划。\n\n", req.DurationDays))
	} else {
		b.WriteString(fmt.Sprintf("请为以下用户生成 %d 天的训练计划（可含休息日）。\n\n", req.DurationDays))
	}

	b.WriteString("用户画像:\n")
	if p := req.Profile; p != nil {
		if p.Age > 0 {
			b.WriteString(fmt.Sprintf("- 年龄: %d\n", p.Age))
		}
		if p.Gender != "" {
			b.WriteString(fmt.Sprintf("- 性别: %s\n", p.Gender))
		}
		if p.HeightCm > 0 {
			b.WriteString(fmt.Sprintf("- 身高: %.0f cm\n", p.HeightCm))
		}
		if p.WeightKg > 0 {
			b.WriteString(fmt.Sprintf("- 体重: %.1f kg\n", p.WeightKg))
		}
		if p.Goal != "" {
			b.WriteString(fmt.Sprintf("- 目标: %s\n", p.Goal))
		}
		if p.ActivityLevel != "" {
			b.WriteString(fmt.Sprintf("- 活动水平: %s\n", p.ActivityLevel))
		}
		if len(p.DietaryPreferences) > 0 {
			b.WriteString(fmt.Sprintf("- 饮食偏好: %s\n", strings.Join(p.DietaryPreferences, "、")))
		}
		if len(p.Allergies) > 0 {
			b.WriteString(fmt.Sprintf("- 过敏/忌口: %s\n", strings.Join(p.Allergies, "、")))
		}
		if len(p.Equipment) > 0 {
			b.WriteString(fmt.Sprintf("- 可用器械: %s\n", strings.Join(p.Equipment, "、")))
		}
		if req.Type == schema.PlanTypeMeal && p.MealsPerDay > 0 {
			b.WriteString(fmt.Sprintf("- 每日餐数: %d\n", p.MealsPerDay))
		}
		if req.Type == schema.PlanTypeTraining && p.TrainingDaysPerWeek > 0 {
			b.WriteString(fmt.Sprintf("- 每周训练天数: %d\n", p.TrainingDaysPerWeek))
		}
	}
	b.WriteString(fmt.Sprintf("\n计划开始日期: %s\n", req.StartDate.Format("2006-01-02")))

	if adj := req.Adjustment; adj != nil {
		b.WriteString("\n这是对现有计划的调整。近期执行情况:\n")
		b.WriteString(fmt.Sprintf("- 整体完成率: %d%%\n", adj.OverallAdherence))
		b.WriteString(fmt.Sprintf("- 饮食完成率: %d%%\n", adj.MealAdherence))
		b.WriteString(fmt.Sprintf("- 训练完成率: %d%%\n", adj.TrainingAdherence))
		b.WriteString("\n调整要求（必须体现在新计划中）:\n")
		b.WriteString(adj.Brief + "\n")
		for _, rec := range adj.Recommendations {
			b.WriteString("- " + rec + "\n")
		}
	}

	if len(req.HistoryNotes) > 0 {
		b.WriteString("\n历史调整备注（可参考，避免重复之前无效的调整）:\n")
		for _, note := range req.HistoryNotes {
			b.WriteString("- " + strings.TrimSpace(note) + "\n")
		}
	}

	b.WriteString("\n请用 JSON 格式返回（不要 markdown 代码块）:\n")
	if req.Type == schema.PlanTypeMeal {
		b.WriteString(`{
  "title": "计划标题",
  "notes": "生成说明（一两句话）",
  "days": [
    {
      "meals": [
        {"name": "菜名", "meal_type": "breakfast", "time": "08:00", "description": "做法简述", "prep_minutes": 10, "cook_minutes": 15, "calories": 450}
      ]
    }
  ]
}
meal_type 只能是 breakfast/lunch/dinner/snack，days 数组长度与计划天数一致。`)
	} else {
		b.WriteString(`{
  "title": "计划标题",
  "notes": "生成说明（一两句话）",
  "days": [
    {
      "sessions": [
        {"name": "训练名称", "time": "19:00", "duration_minutes": 45, "intensity": "medium", "exercises": [{"name": "动作名", "sets": 3, "reps": 12, "notes": ""}]}
      ]
    }
  ]
}
休息日的 sessions 为空数组，intensity 只能是 low/medium/high，days 数组长度与计划天数一致。`)
	}

	return b.String()
}

// normalizeDays 给计划条目补上稳定 ID（日志按它对齐），并丢掉类型不符的数据
func normalizeDays(planType schema.PlanType, days []planResponseDay) schema.PlanDayList {
	out := make(schema.PlanDayList, 0, len(days))
	for i, d := range days {
		var day schema.PlanDay
		if planType == schema.PlanTypeMeal {
			for j, m := range d.Meals {
				day.Meals = append(day.Meals, schema.PlanMeal{
					MealID:      fmt.Sprintf("d%d-%s-%d", i+1, m.MealType, j+1),
					Name:        m.Name,
					MealType:    m.MealType,
					Time:        m.Time,
					Description: m.Description,
					PrepMinutes: m.PrepMinutes,
					CookMinutes: m.CookMinutes,
					Calories:    m.Calories,
				})
			}
		} else {
			for j, s := range d.Sessions {
				session := schema.PlanSession{
					SessionID:       fmt.Sprintf("d%d-s%d", i+1, j+1),
					Name:            s.Name,
					Time:            s.Time,
					DurationMinutes: s.DurationMinutes,
					Intensity:       s.Intensity,
				}
				for _, ex := range s.Exercises {
					session.Exercises = append(session.Exercises, schema.PlanExercise{
						Name:  ex.Name,
						Sets:  ex.Sets,
						Reps:  ex.Reps,
						Notes: ex.Notes,
					})
				}
				day.Sessions = append(day.Sessions, session)
			}
		}
		out = append(out, day)
	}
	return out
}
