package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/yuqie6/FitPlan/internal/adherence"
	"github.com/yuqie6/FitPlan/internal/bootstrap"
	"github.com/yuqie6/FitPlan/internal/dto"
	"github.com/yuqie6/FitPlan/internal/eventbus"
	"github.com/yuqie6/FitPlan/internal/schema"
	"github.com/yuqie6/FitPlan/internal/service"
)

type apiServer struct {
	core      *bootstrap.Core
	hub       *eventbus.Hub
	userID    string
	startTime time.Time
}

func newAPI(core *bootstrap.Core) *apiServer {
	return &apiServer{
		core:      core,
		hub:       core.Hub,
		userID:    core.Cfg.App.UserID,
		startTime: time.Now(),
	}
}

func (a *apiServer) registerJSONRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/today", a.handleToday)
	mux.HandleFunc("POST /api/log/meal", a.handleLogMeal)
	mux.HandleFunc("POST /api/log/training", a.handleLogTraining)
	mux.HandleFunc("GET /api/analysis", a.handleGetAnalysis)
	mux.HandleFunc("POST /api/analyze", a.handleAnalyze)
	mux.HandleFunc("POST /api/adjust/meal", a.handleAdjustMeal)
	mux.HandleFunc("POST /api/adjust/training", a.handleAdjustTraining)
	mux.HandleFunc("POST /api/dismiss", a.handleDismiss)
	mux.HandleFunc("GET /api/plans", a.handleListPlans)
	mux.HandleFunc("GET /api/plans/active", a.handleActivePlan)
	mux.HandleFunc("POST /api/plans/generate", a.handleGeneratePlan)
	mux.HandleFunc("GET /api/profile", a.handleGetProfile)
	mux.HandleFunc("PUT /api/profile", a.handlePutProfile)
}

func (a *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"name":       a.core.Cfg.App.Name,
		"version":    a.core.Cfg.App.Version,
		"started_at": a.startTime.Format(time.RFC3339),
	})
}

// writeServiceError 按服务层错误分类映射 HTTP 状态码
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *service.ValidationError
	var perr *service.PreconditionError
	var provErr *service.ProviderError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.As(err, &perr):
		writeError(w, http.StatusConflict, perr.Error())
	case errors.Is(err, service.ErrAdjustmentInFlight), errors.Is(err, service.ErrPlanExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &provErr):
		writeError(w, http.StatusBadGateway, provErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (a *apiServer) handleToday(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	svc := a.core.Services.Logging

	meals, err := svc.TodayMeals(ctx, a.userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	sessions, err := svc.TodaySessions(ctx, a.userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	log, err := svc.TodayLog(ctx, a.userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := dto.TodayDTO{
		Date:         time.Now().Format("2006-01-02"),
		Meals:        toPlanMealDTOs(meals),
		Sessions:     toPlanSessionDTOs(sessions),
		MealLogs:     []dto.MealLogEntryDTO{},
		TrainingLogs: []dto.TrainingLogDTO{},
	}
	if log != nil {
		out.Date = log.Date.Format("2006-01-02")
		out.OverallAdherence = log.OverallAdherence
		for _, m := range log.MealLogs {
			out.MealLogs = append(out.MealLogs, dto.MealLogEntryDTO{
				MealID:        m.MealID,
				MealType:      m.MealType,
				ScheduledTime: m.ScheduledTime,
				ActualTime:    m.ActualTime,
				Adherence:     string(m.Adherence),
				PortionScale:  m.PortionScale,
				Deviations:    toDeviationDTOs(m.Deviations),
			})
		}
		for _, t := range log.TrainingLogs {
			out.TrainingLogs = append(out.TrainingLogs, dto.TrainingLogDTO{
				SessionID:         t.SessionID,
				SessionName:       t.SessionName,
				Adherence:         string(t.Adherence),
				PerceivedExertion: t.PerceivedExertion,
				Deviations:        toDeviationDTOs(t.Deviations),
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiServer) handleLogMeal(w http.ResponseWriter, r *http.Request) {
	var req dto.LogMealRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败: "+err.Error())
		return
	}

	entry := schema.MealLogEntry{
		MealID:        req.MealID,
		MealType:      req.MealType,
		ScheduledTime: req.ScheduledTime,
		ActualTime:    req.ActualTime,
		Adherence:     schema.AdherenceLevel(req.Adherence),
		PortionScale:  req.PortionScale,
		Deviations:    toDeviationRecords(req.Deviations),
	}
	log, err := a.core.Services.Logging.LogMeal(r.Context(), a.userID, entry)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":              log.Date.Format("2006-01-02"),
		"overall_adherence": log.OverallAdherence,
	})
}

func (a *apiServer) handleLogTraining(w http.ResponseWriter, r *http.Request) {
	var req dto.LogTrainingRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败: "+err.Error())
		return
	}

	exercises := make([]schema.ExerciseRating, 0, len(req.Exercises))
	for _, e := range req.Exercises {
		exercises = append(exercises, schema.ExerciseRating{
			ExerciseName: e.ExerciseName,
			Difficulty:   e.Difficulty,
		})
	}
	entry := schema.TrainingLogEntry{
		SessionID:         req.SessionID,
		SessionName:       req.SessionName,
		ScheduledTime:     req.ScheduledTime,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		Adherence:         schema.AdherenceLevel(req.Adherence),
		Exercises:         exercises,
		PerceivedExertion: req.PerceivedExertion,
		Deviations:        toDeviationRecords(req.Deviations),
	}
	log, err := a.core.Services.Logging.LogTraining(r.Context(), a.userID, entry)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":              log.Date.Format("2006-01-02"),
		"overall_adherence": log.OverallAdherence,
	})
}

func (a *apiServer) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis := a.core.Services.Planner.Analysis()
	if analysis == nil {
		writeError(w, http.StatusNotFound, "尚无分析结果，请先执行分析")
		return
	}
	writeJSON(w, http.StatusOK, toAnalysisDTO(analysis, a.core.Services.Planner.State()))
}

func (a *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	analysis, err := a.core.Services.Planner.Refresh(r.Context(), a.userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnalysisDTO(analysis, a.core.Services.Planner.State()))
}

func (a *apiServer) handleAdjustMeal(w http.ResponseWriter, r *http.Request) {
	plan, err := a.core.Services.Planner.AdjustMealPlan(r.Context(), a.userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(plan, true))
}

func (a *apiServer) handleAdjustTraining(w http.ResponseWriter, r *http.Request) {
	plan, err := a.core.Services.Planner.AdjustTrainingPlan(r.Context(), a.userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(plan, true))
}

func (a *apiServer) handleDismiss(w http.ResponseWriter, r *http.Request) {
	a.core.Services.Planner.DismissSuggestion()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *apiServer) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := a.core.Repos.Plan.ListByUser(r.Context(), a.userID, 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]dto.PlanDTO, 0, len(plans))
	for i := range plans {
		out = append(out, toPlanDTO(&plans[i], false))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiServer) handleActivePlan(w http.ResponseWriter, r *http.Request) {
	planType := schema.PlanType(r.URL.Query().Get("type"))
	if !planType.Valid() {
		writeError(w, http.StatusBadRequest, "type 必须是 meal 或 training")
		return
	}
	plan, err := a.core.Repos.Plan.GetActive(r.Context(), a.userID, planType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if plan == nil {
		writeError(w, http.StatusNotFound, "该类型没有生效计划")
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(plan, true))
}

func (a *apiServer) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req dto.GeneratePlanRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败: "+err.Error())
		return
	}
	duration := req.DurationDays
	if duration <= 0 {
		duration = a.core.Cfg.Planner.PlanDurationDays
	}
	plan, err := a.core.Services.Planner.GeneratePlanInitial(r.Context(), a.userID, schema.PlanType(req.Type), duration)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanDTO(plan, true))
}

func (a *apiServer) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := a.core.Services.Profile.Get(r.Context(), a.userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "尚未设置用户档案")
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(profile))
}

func (a *apiServer) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var req dto.ProfileDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "请求体解析失败: "+err.Error())
		return
	}
	profile := &schema.UserProfile{
		UserID:              a.userID,
		Age:                 req.Age,
		Gender:              req.Gender,
		HeightCm:            req.HeightCm,
		WeightKg:            req.WeightKg,
		Goal:                req.Goal,
		ActivityLevel:       req.ActivityLevel,
		DietaryPreferences:  req.DietaryPreferences,
		Allergies:           req.Allergies,
		Equipment:           req.Equipment,
		MealsPerDay:         req.MealsPerDay,
		TrainingDaysPerWeek: req.TrainingDaysPerWeek,
	}
	if err := a.core.Services.Profile.Save(r.Context(), profile); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(profile))
}

// ---- 转换辅助 ----

func toDeviationRecords(in []dto.DeviationRecordDTO) []schema.DeviationRecord {
	out := make([]schema.DeviationRecord, 0, len(in))
	for _, d := range in {
		out = append(out, schema.DeviationRecord{
			Reason:      schema.DeviationReason(d.Reason),
			Description: d.Description,
			Impact:      d.Impact,
		})
	}
	return out
}

func toDeviationDTOs(in []schema.DeviationRecord) []dto.DeviationRecordDTO {
	out := make([]dto.DeviationRecordDTO, 0, len(in))
	for _, d := range in {
		out = append(out, dto.DeviationRecordDTO{
			Reason:      string(d.Reason),
			Description: d.Description,
			Impact:      d.Impact,
		})
	}
	return out
}

func toPlanMealDTOs(in []schema.PlanMeal) []dto.PlanMealDTO {
	out := make([]dto.PlanMealDTO, 0, len(in))
	for _, m := range in {
		out = append(out, dto.PlanMealDTO{
			MealID:      m.MealID,
			Name:        m.Name,
			MealType:    m.MealType,
			Time:        m.Time,
			Description: m.Description,
			PrepMinutes: m.PrepMinutes,
			CookMinutes: m.CookMinutes,
			Calories:    m.Calories,
		})
	}
	return out
}

func toPlanSessionDTOs(in []schema.PlanSession) []dto.PlanSessionDTO {
	out := make([]dto.PlanSessionDTO, 0, len(in))
	for _, s := range in {
		out = append(out, dto.PlanSessionDTO{
			SessionID:       s.SessionID,
			Name:            s.Name,
			Time:            s.Time,
			DurationMinutes: s.DurationMinutes,
			Intensity:       s.Intensity,
		})
	}
	return out
}

// toPlanDTO withDays=false 时省略逐天明细（列表页用）
func toPlanDTO(plan *schema.Plan, withDays bool) dto.PlanDTO {
	out := dto.PlanDTO{
		ID:           plan.ID,
		Type:         string(plan.Type),
		Status:       string(plan.Status),
		Title:        plan.Title,
		StartDate:    plan.StartDate.Format("2006-01-02"),
		DurationDays: plan.DurationDays,
		Notes:        plan.Notes,
	}
	if withDays {
		for _, d := range plan.Days {
			out.Days = append(out.Days, dto.PlanDayDTO{
				Meals:    toPlanMealDTOs(d.Meals),
				Sessions: toPlanSessionDTOs(d.Sessions),
			})
		}
	}
	return out
}

func toAnalysisDTO(a *adherence.Analysis, state service.State) dto.AnalysisDTO {
	out := dto.AnalysisDTO{
		PeriodStart:        a.PeriodStart.Format("2006-01-02"),
		PeriodEnd:          a.PeriodEnd.Format("2006-01-02"),
		OverallAdherence:   a.OverallAdherence,
		MealAdherence:      a.MealAdherence,
		TrainingAdherence:  a.TrainingAdherence,
		Patterns:           []dto.PatternDTO{},
		Recommendations:    a.Recommendations,
		TriggersAdjustment: a.TriggersAdjustment,
		State:              string(state),
	}
	for _, p := range a.Patterns {
		reasons := make([]string, 0, len(p.CommonReasons))
		for _, r := range p.CommonReasons {
			reasons = append(reasons, string(r))
		}
		out.Patterns = append(out.Patterns, dto.PatternDTO{
			Type:              string(p.Type),
			ItemName:          p.ItemName,
			ConsecutiveMisses: p.ConsecutiveMisses,
			MissRate:          p.MissRate,
			CommonReasons:     reasons,
			AverageDelay:      p.Timing.AverageDelay,
			ConsistentTiming:  p.Timing.Consistent,
		})
	}
	return out
}

func toProfileDTO(p *schema.UserProfile) dto.ProfileDTO {
	return dto.ProfileDTO{
		Age:                 p.Age,
		Gender:              p.Gender,
		HeightCm:            p.HeightCm,
		WeightKg:            p.WeightKg,
		Goal:                p.Goal,
		ActivityLevel:       p.ActivityLevel,
		DietaryPreferences:  p.DietaryPreferences,
		Allergies:           p.Allergies,
		Equipment:           p.Equipment,
		MealsPerDay:         p.MealsPerDay,
		TrainingDaysPerWeek: p.TrainingDaysPerWeek,
	}
}
