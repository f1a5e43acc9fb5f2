package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/yuqie6/FitPlan/internal/bootstrap"
	"github.com/yuqie6/FitPlan/internal/httpapi"
	"github.com/yuqie6/FitPlan/internal/pkg/buildinfo"
	"github.com/yuqie6/FitPlan/internal/pkg/config"
	"github.com/yuqie6/FitPlan/internal/schema"
)

var (
	cfgFile string
	core    *bootstrap.Core
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fitplan",
		Short: "FitPlan - 本地运行的个人健康计划助手",
		Long:  `FitPlan 在本地记录你的饮食与训练执行情况，分析执行偏差，并让 AI 据此调整计划。`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if cfgFile == "" {
				if path, pathErr := config.DefaultConfigPath(); pathErr == nil {
					if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
						_ = config.WriteFile(path, config.Default())
					}
					cfgFile = path
				}
			}
			var err error
			core, err = bootstrap.NewCore(cfgFile)
			if err != nil {
				slog.Error("初始化失败", "error", err)
				os.Exit(1)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if core != nil {
				_ = core.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")

	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(todayCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(adjustCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func userID() string {
	return core.Cfg.App.UserID
}

// parseDeviations 解析 --reason 标志，形如 time_constraint 或 time_constraint:加班到很晚
func parseDeviations(reasons []string) []schema.DeviationRecord {
	out := make([]schema.DeviationRecord, 0, len(reasons))
	for _, r := range reasons {
		parts := strings.SplitN(r, ":", 2)
		rec := schema.DeviationRecord{Reason: schema.DeviationReason(parts[0])}
		if len(parts) == 2 {
			rec.Description = parts[1]
		}
		out = append(out, rec)
	}
	return out
}

// logCmd 记录命令
func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "记录今天的一餐或一次训练",
	}
	cmd.AddCommand(logMealCmd())
	cmd.AddCommand(logTrainingCmd())
	return cmd
}

func logMealCmd() *cobra.Command {
	var adherence string
	var actualTime string
	var portion float64
	var reasons []string

	cmd := &cobra.Command{
		Use:   "meal <meal-id>",
		Short: "记录一餐的完成情况",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			mealID := args[0]

			// 从当天计划里补全餐次信息
			entry := schema.MealLogEntry{
				MealID:       mealID,
				Adherence:    schema.AdherenceLevel(adherence),
				ActualTime:   actualTime,
				PortionScale: portion,
				Deviations:   parseDeviations(reasons),
			}
			meals, err := core.Services.Logging.TodayMeals(ctx, userID())
			if err == nil {
				for _, m := range meals {
					if m.MealID == mealID {
						entry.MealType = m.MealType
						entry.ScheduledTime = m.Time
						break
					}
				}
			}

			log, err := core.Services.Logging.LogMeal(ctx, userID(), entry)
			if err != nil {
				fmt.Printf("❌ 记录失败: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("✅ 已记录 %s (%s)，今日完成率 %d%%\n", mealID, adherence, log.OverallAdherence)
		},
	}

	cmd.Flags().StringVarP(&adherence, "adherence", "a", "full", "完成度: full | partial | skipped")
	cmd.Flags().StringVar(&actualTime, "time", "", "实际进餐时间 (HH:mm)")
	cmd.Flags().Float64Var(&portion, "portion", 0, "实际份量比例，如 0.5 表示吃了一半")
	cmd.Flags().StringSliceVarP(&reasons, "reason", "r", nil, "偏离原因，可重复，形如 time_constraint[:说明]")

	return cmd
}

func logTrainingCmd() *cobra.Command {
	var adherence string
	var exertion int
	var reasons []string

	cmd := &cobra.Command{
		Use:   "training <session-id>",
		Short: "记录一次训练的完成情况",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			sessionID := args[0]

			entry := schema.TrainingLogEntry{
				SessionID:         sessionID,
				Adherence:         schema.AdherenceLevel(adherence),
				PerceivedExertion: exertion,
				Deviations:        parseDeviations(reasons),
			}
			sessions, err := core.Services.Logging.TodaySessions(ctx, userID())
			if err == nil {
				for _, s := range sessions {
					if s.SessionID == sessionID {
						entry.SessionName = s.Name
						entry.ScheduledTime = s.Time
						break
					}
				}
			}

			log, err := core.Services.Logging.LogTraining(ctx, userID(), entry)
			if err != nil {
				fmt.Printf("❌ 记录失败: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("✅ 已记录 %s (%s)，今日完成率 %d%%\n", sessionID, adherence, log.OverallAdherence)
		},
	}

	cmd.Flags().StringVarP(&adherence, "adherence", "a", "full", "完成度: full | partial | skipped")
	cmd.Flags().IntVar(&exertion, "rpe", 0, "主观疲劳度 1-10")
	cmd.Flags().StringSliceVarP(&reasons, "reason", "r", nil, "偏离原因，可重复，形如 too_tired[:说明]")

	return cmd
}

// todayCmd 今日视图
func todayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "查看今天的计划与记录",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			svc := core.Services.Logging

			meals, _ := svc.TodayMeals(ctx, userID())
			sessions, _ := svc.TodaySessions(ctx, userID())
			log, err := svc.TodayLog(ctx, userID())
			if err != nil {
				fmt.Printf("❌ 读取失败: %v\n", err)
				os.Exit(1)
			}

			logged := make(map[string]schema.AdherenceLevel)
			if log != nil {
				for _, m := range log.MealLogs {
					logged[m.MealID] = m.Adherence
				}
				for _, t := range log.TrainingLogs {
					logged[t.SessionID] = t.Adherence
				}
			}

			fmt.Printf("📅 今天 %s\n", time.Now().Format("2006-01-02"))
			fmt.Println("═══════════════════════════════════════")

			fmt.Printf("\n🍱 饮食\n")
			if len(meals) == 0 {
				fmt.Println("  (没有生效的饮食计划)")
			}
			for _, m := range meals {
				fmt.Printf("  %s %s %s [%s] %s\n", statusIcon(logged, m.MealID), m.Time, m.Name, m.MealID, adherenceLabel(logged, m.MealID))
			}

			fmt.Printf("\n🏋️ 训练\n")
			if len(sessions) == 0 {
				fmt.Println("  (今天没有安排训练)")
			}
			for _, s := range sessions {
				fmt.Printf("  %s %s %s [%s] %s\n", statusIcon(logged, s.SessionID), s.Time, s.Name, s.SessionID, adherenceLabel(logged, s.SessionID))
			}

			if log != nil {
				fmt.Printf("\n📊 今日完成率: %d%%\n", log.OverallAdherence)
			}
			fmt.Println("\n═══════════════════════════════════════")
		},
	}
}

func statusIcon(logged map[string]schema.AdherenceLevel, id string) string {
	switch logged[id] {
	case schema.AdherenceFull:
		return "✅"
	case schema.AdherencePartial:
		return "🟡"
	case schema.AdherenceSkipped:
		return "❌"
	default:
		return "⬜"
	}
}

func adherenceLabel(logged map[string]schema.AdherenceLevel, id string) string {
	if a, ok := logged[id]; ok {
		return "(" + string(a) + ")"
	}
	return ""
}

// analyzeCmd 执行分析
func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "分析最近的执行记录",
		Run: func(cmd *cobra.Command, args []string) {
			analysis, err := core.Services.Planner.Refresh(context.Background(), userID())
			if err != nil {
				fmt.Printf("❌ 分析失败: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("📊 执行分析 (%s ~ %s)\n",
				analysis.PeriodStart.Format("2006-01-02"),
				analysis.PeriodEnd.Format("2006-01-02"))
			fmt.Println("═══════════════════════════════════════")
			fmt.Printf("\n  整体完成率: %d%%\n", analysis.OverallAdherence)
			fmt.Printf("  饮食完成率: %d%%\n", analysis.MealAdherence)
			fmt.Printf("  训练完成率: %d%%\n", analysis.TrainingAdherence)

			if len(analysis.Patterns) > 0 {
				fmt.Printf("\n🔍 发现的问题模式\n")
				for _, p := range analysis.Patterns {
					fmt.Printf("  • [%s] %s: 连续缺失 %d 天, 缺失率 %.0f%%\n",
						p.Type, p.ItemName, p.ConsecutiveMisses, p.MissRate*100)
					for _, r := range p.CommonReasons {
						fmt.Printf("      原因: %s\n", r)
					}
					if p.Timing.Consistent {
						fmt.Printf("      时间偏移: 平均 %.0f 分钟\n", p.Timing.AverageDelay)
					}
				}
			}

			if len(analysis.Recommendations) > 0 {
				fmt.Printf("\n💡 建议\n")
				for _, rec := range analysis.Recommendations {
					fmt.Printf("  • %s\n", rec)
				}
			}

			if analysis.TriggersAdjustment {
				fmt.Println("\n⚠️  建议调整计划，运行 'fitplan adjust --meal' 或 'fitplan adjust --training'")
			} else {
				fmt.Println("\n✅ 执行情况良好，无需调整")
			}
			fmt.Println("\n═══════════════════════════════════════")
		},
	}
}

// adjustCmd 调整计划
func adjustCmd() *cobra.Command {
	var meal bool
	var training bool

	cmd := &cobra.Command{
		Use:   "adjust",
		Short: "基于最新分析结果调整计划",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			if err := core.RequireAIConfigured(); err != nil {
				fmt.Printf("⚠️  %v\n", err)
				os.Exit(1)
			}
			if !meal && !training {
				fmt.Println("请指定 --meal 或 --training")
				os.Exit(1)
			}

			// 调整前先刷新分析，确保基于最新记录
			if _, err := core.Services.Planner.Refresh(ctx, userID()); err != nil {
				fmt.Printf("❌ 分析失败: %v\n", err)
				os.Exit(1)
			}

			if meal {
				runAdjust(ctx, schema.PlanTypeMeal, core.Services.Planner.AdjustMealPlan)
			}
			if training {
				runAdjust(ctx, schema.PlanTypeTraining, core.Services.Planner.AdjustTrainingPlan)
			}
		},
	}

	cmd.Flags().BoolVar(&meal, "meal", false, "调整饮食计划")
	cmd.Flags().BoolVar(&training, "training", false, "调整训练计划")

	return cmd
}

func runAdjust(ctx context.Context, planType schema.PlanType, fn func(context.Context, string) (*schema.Plan, error)) {
	fmt.Printf("🤖 正在调整%s计划...\n", planTypeLabel(planType))
	plan, err := fn(ctx, userID())
	if err != nil {
		fmt.Printf("❌ 调整失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ 新计划已生效: %s (%d 天)\n", plan.Title, len(plan.Days))
	if plan.Notes != "" {
		fmt.Printf("   备注: %s\n", plan.Notes)
	}
}

func planTypeLabel(t schema.PlanType) string {
	if t == schema.PlanTypeTraining {
		return "训练"
	}
	return "饮食"
}

// planCmd 计划管理
func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "管理饮食/训练计划",
	}
	cmd.AddCommand(planGenerateCmd())
	cmd.AddCommand(planShowCmd())
	cmd.AddCommand(planListCmd())
	return cmd
}

func planGenerateCmd() *cobra.Command {
	var planType string
	var days int

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "首次生成计划（需要先设置档案）",
		Run: func(cmd *cobra.Command, args []string) {
			if err := core.RequireAIConfigured(); err != nil {
				fmt.Printf("⚠️  %v\n", err)
				os.Exit(1)
			}
			if days <= 0 {
				days = core.Cfg.Planner.PlanDurationDays
			}

			fmt.Printf("🤖 正在生成%s计划 (%d 天)...\n", planTypeLabel(schema.PlanType(planType)), days)
			plan, err := core.Services.Planner.GeneratePlanInitial(
				context.Background(), userID(), schema.PlanType(planType), days)
			if err != nil {
				fmt.Printf("❌ 生成失败: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("✅ 计划已生成: %s\n", plan.Title)
			printPlanDays(plan)
		},
	}

	cmd.Flags().StringVarP(&planType, "type", "t", "meal", "计划类型: meal | training")
	cmd.Flags().IntVar(&days, "days", 0, "计划天数（默认取配置）")

	return cmd
}

func planShowCmd() *cobra.Command {
	var planType string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "查看当前生效的计划",
		Run: func(cmd *cobra.Command, args []string) {
			t := schema.PlanType(planType)
			if !t.Valid() {
				fmt.Println("type 必须是 meal 或 training")
				os.Exit(1)
			}
			plan, err := core.Repos.Plan.GetActive(context.Background(), userID(), t)
			if err != nil {
				fmt.Printf("❌ 读取失败: %v\n", err)
				os.Exit(1)
			}
			if plan == nil {
				fmt.Printf("📭 没有生效的%s计划，先运行 'fitplan plan generate -t %s'\n", planTypeLabel(t), planType)
				return
			}

			fmt.Printf("📋 %s (自 %s 起，%d 天循环)\n", plan.Title, plan.StartDate.Format("2006-01-02"), len(plan.Days))
			fmt.Println("═══════════════════════════════════════")
			printPlanDays(plan)
			if plan.Notes != "" {
				fmt.Printf("\n📝 备注: %s\n", plan.Notes)
			}
		},
	}

	cmd.Flags().StringVarP(&planType, "type", "t", "meal", "计划类型: meal | training")

	return cmd
}

func printPlanDays(plan *schema.Plan) {
	for i, day := range plan.Days {
		fmt.Printf("\n  第 %d 天\n", i+1)
		for _, m := range day.Meals {
			fmt.Printf("    🍱 %s %s [%s]", m.Time, m.Name, m.MealID)
			if m.Calories > 0 {
				fmt.Printf(" %d kcal", m.Calories)
			}
			fmt.Println()
		}
		for _, s := range day.Sessions {
			fmt.Printf("    🏋️ %s %s [%s]", s.Time, s.Name, s.SessionID)
			if s.DurationMinutes > 0 {
				fmt.Printf(" %d 分钟", s.DurationMinutes)
			}
			fmt.Println()
		}
		if len(day.Meals) == 0 && len(day.Sessions) == 0 {
			fmt.Println("    (休息日)")
		}
	}
}

func planListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "列出历史计划",
		Run: func(cmd *cobra.Command, args []string) {
			plans, err := core.Repos.Plan.ListByUser(context.Background(), userID(), 20)
			if err != nil {
				fmt.Printf("❌ 读取失败: %v\n", err)
				os.Exit(1)
			}
			if len(plans) == 0 {
				fmt.Println("📭 还没有任何计划")
				return
			}
			for _, p := range plans {
				fmt.Printf("  [%s] %-8s %-10s %s (%s 起)\n", p.ID[:8], p.Type, p.Status, p.Title, p.StartDate.Format("2006-01-02"))
			}
		},
	}
}

// profileCmd 用户档案
func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "查看或设置用户档案",
	}
	cmd.AddCommand(profileShowCmd())
	cmd.AddCommand(profileSetCmd())
	return cmd
}

func profileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "查看档案",
		Run: func(cmd *cobra.Command, args []string) {
			p, err := core.Services.Profile.Get(context.Background(), userID())
			if err != nil {
				fmt.Printf("❌ 读取失败: %v\n", err)
				os.Exit(1)
			}
			if p == nil {
				fmt.Println("📭 尚未设置档案，运行 'fitplan profile set --goal 减脂 ...'")
				return
			}
			fmt.Println("👤 用户档案")
			fmt.Printf("  目标: %s\n", p.Goal)
			if p.Age > 0 {
				fmt.Printf("  年龄: %d\n", p.Age)
			}
			if p.HeightCm > 0 {
				fmt.Printf("  身高: %.0f cm\n", p.HeightCm)
			}
			if p.WeightKg > 0 {
				fmt.Printf("  体重: %.1f kg\n", p.WeightKg)
			}
			fmt.Printf("  每日餐数: %d\n", p.MealsPerDay)
			fmt.Printf("  每周训练: %d 天\n", p.TrainingDaysPerWeek)
			if len(p.DietaryPreferences) > 0 {
				fmt.Printf("  饮食偏好: %s\n", strings.Join(p.DietaryPreferences, ", "))
			}
			if len(p.Allergies) > 0 {
				fmt.Printf("  过敏原: %s\n", strings.Join(p.Allergies, ", "))
			}
		},
	}
}

func profileSetCmd() *cobra.Command {
	var (
		age       int
		gender    string
		height    float64
		weight    float64
		goal      string
		activity  string
		prefs     []string
		allergies []string
		equipment []string
		meals     int
		trainDays int
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "设置档案（生成计划的输入）",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			// 在已有档案基础上更新
			profile, err := core.Services.Profile.Get(ctx, userID())
			if err != nil {
				fmt.Printf("❌ 读取失败: %v\n", err)
				os.Exit(1)
			}
			if profile == nil {
				profile = &schema.UserProfile{UserID: userID()}
			}

			if age > 0 {
				profile.Age = age
			}
			if gender != "" {
				profile.Gender = gender
			}
			if height > 0 {
				profile.HeightCm = height
			}
			if weight > 0 {
				profile.WeightKg = weight
			}
			if goal != "" {
				profile.Goal = goal
			}
			if activity != "" {
				profile.ActivityLevel = activity
			}
			if len(prefs) > 0 {
				profile.DietaryPreferences = prefs
			}
			if len(allergies) > 0 {
				profile.Allergies = allergies
			}
			if len(equipment) > 0 {
				profile.Equipment = equipment
			}
			if meals > 0 {
				profile.MealsPerDay = meals
			}
			if trainDays > 0 {
				profile.TrainingDaysPerWeek = trainDays
			}

			if err := core.Services.Profile.Save(ctx, profile); err != nil {
				fmt.Printf("❌ 保存失败: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("✅ 档案已保存")
		},
	}

	cmd.Flags().IntVar(&age, "age", 0, "年龄")
	cmd.Flags().StringVar(&gender, "gender", "", "性别")
	cmd.Flags().Float64Var(&height, "height", 0, "身高 (cm)")
	cmd.Flags().Float64Var(&weight, "weight", 0, "体重 (kg)")
	cmd.Flags().StringVar(&goal, "goal", "", "目标，如 减脂/增肌/维持")
	cmd.Flags().StringVar(&activity, "activity", "", "活动水平，如 sedentary/moderate/active")
	cmd.Flags().StringSliceVar(&prefs, "pref", nil, "饮食偏好，可重复")
	cmd.Flags().StringSliceVar(&allergies, "allergy", nil, "过敏原，可重复")
	cmd.Flags().StringSliceVar(&equipment, "equipment", nil, "可用器械，可重复")
	cmd.Flags().IntVar(&meals, "meals", 0, "每日餐数")
	cmd.Flags().IntVar(&trainDays, "train-days", 0, "每周训练天数")

	return cmd
}

// serveCmd 本地 API 服务
func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动本地 API 服务（供前端调用）",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if addr == "" {
				addr = fmt.Sprintf("127.0.0.1:%d", core.Cfg.Server.Port)
			}

			srv, err := httpapi.Start(ctx, core, httpapi.Options{ListenAddr: addr})
			if err != nil {
				slog.Error("启动服务失败", "error", err)
				os.Exit(1)
			}
			fmt.Printf("🚀 FitPlan API: %s\n", srv.BaseURL())

			// 配置文件热更新（只对日志级别这类运行时配置生效）
			if cfgFile != "" {
				watcher, err := config.NewWatcher(cfgFile, func(cfg *config.Config) {
					config.SetupLogger(cfg.App.LogLevel)
				})
				if err != nil {
					slog.Warn("配置热更新不可用", "error", err)
				} else {
					go watcher.Run(ctx)
				}
			}

			<-ctx.Done()
			fmt.Println("\n👋 正在退出...")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "监听地址，默认 127.0.0.1:<配置端口>")

	return cmd
}

func versionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fitplan %s (%s)\n", buildinfo.Version, buildinfo.Commit)
		},
	}
	// version 不需要加载配置和数据库
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {}
	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {}
	return cmd
}
