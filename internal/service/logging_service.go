package service

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yuqie6/FitPlan/internal/eventbus"
	"github.com/yuqie6/FitPlan/internal/schema"
)

// LoggingService 每日记录工作流：记录当天单餐/单次训练的完成情况，
// 合并进当天的 DailyLog 并重算当日完成率。只写日志存储，不动计划。
type LoggingService struct {
	logRepo  DailyLogRepository
	planRepo PlanRepository
	hub      *eventbus.Hub

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex

	now func() time.Time
}

// NewLoggingService 创建每日记录服务
func NewLoggingService(logRepo DailyLogRepository, planRepo PlanRepository, hub *eventbus.Hub) *LoggingService {
	return &LoggingService{
		logRepo:   logRepo,
		planRepo:  planRepo,
		hub:       hub,
		userLocks: make(map[string]*sync.Mutex),
		now:       time.Now,
	}
}

// userLock 同一用户的写操作串行化，避免两次读-改-写互相覆盖
func (s *LoggingService) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}

// LogMeal 记录当天一餐。同一 MealID 重复记录时整条替换（重试幂等）。
func (s *LoggingService) LogMeal(ctx context.Context, userID string, entry schema.MealLogEntry) (*schema.DailyLog, error) {
	if entry.MealID == "" {
		return nil, &ValidationError{Field: "meal_id", Reason: "不能为空"}
	}
	if !entry.Adherence.Valid() {
		return nil, &ValidationError{Field: "adherence", Reason: "未知等级"}
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	log, err := s.loadOrCreateToday(ctx, userID)
	if err != nil {
		return nil, err
	}

	replaced := false
	for i := range log.MealLogs {
		if log.MealLogs[i].MealID == entry.MealID {
			log.MealLogs[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		log.MealLogs = append(log.MealLogs, entry)
	}

	return s.persistToday(ctx, userID, log)
}

// LogTraining 记录当天一次训练。同一 SessionID 重复记录时整条替换。
func (s *LoggingService) LogTraining(ctx context.Context, userID string, entry schema.TrainingLogEntry) (*schema.DailyLog, error) {
	if entry.SessionID == "" {
		return nil, &ValidationError{Field: "session_id", Reason: "不能为空"}
	}
	if !entry.Adherence.Valid() {
		return nil, &ValidationError{Field: "adherence", Reason: "未知等级"}
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	log, err := s.loadOrCreateToday(ctx, userID)
	if err != nil {
		return nil, err
	}

	replaced := false
	for i := range log.TrainingLogs {
		if log.TrainingLogs[i].SessionID == entry.SessionID {
			log.TrainingLogs[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		log.TrainingLogs = append(log.TrainingLogs, entry)
	}

	return s.persistToday(ctx, userID, log)
}

// loadOrCreateToday 加载当天记录，没有则惰性创建（不落库，等第一次写入时一起持久化）
func (s *LoggingService) loadOrCreateToday(ctx context.Context, userID string) (*schema.DailyLog, error) {
	today := midnight(s.now())
	log, err := s.logRepo.GetByDate(ctx, userID, today)
	if err != nil {
		return nil, &PersistenceError{Op: "读取当日记录", Err: err}
	}
	if log == nil {
		log = &schema.DailyLog{
			ID:           uuid.NewString(),
			UserID:       userID,
			Date:         today,
			MealLogs:     schema.MealLogList{},
			TrainingLogs: schema.TrainingLogList{},
		}
	}
	return log, nil
}

// persistToday 重算当日完成率并持久化。写失败时直接返回错误，不保留任何内存态，
// 避免 UI 与存储出现偏差。
func (s *LoggingService) persistToday(ctx context.Context, userID string, log *schema.DailyLog) (*schema.DailyLog, error) {
	scheduled, err := s.scheduledItemCount(ctx, userID, log.Date)
	if err != nil {
		return nil, err
	}
	log.OverallAdherence = dayAdherence(log, scheduled)

	if err := s.logRepo.Upsert(ctx, log); err != nil {
		return nil, &PersistenceError{Op: "写入当日记录", Err: err}
	}

	s.hub.Publish(eventbus.Event{
		Type: eventbus.EventLogUpdated,
		Data: map[string]any{"date": log.Date.Format("2006-01-02"), "overall_adherence": log.OverallAdherence},
	})

	slog.Debug("当日记录已更新",
		"date", log.Date.Format("2006-01-02"),
		"meals", len(log.MealLogs),
		"trainings", len(log.TrainingLogs),
		"adherence", log.OverallAdherence,
	)
	return log, nil
}

// scheduledItemCount 当天计划内条目总数（餐数 + 训练数）。
// 分母由计划固定，不随日志条目增减；计划外的补充记录只计入分子。
func (s *LoggingService) scheduledItemCount(ctx context.Context, userID string, date time.Time) (int, error) {
	count := 0

	mealPlan, err := s.planRepo.GetActive(ctx, userID, schema.PlanTypeMeal)
	if err != nil {
		return 0, &PersistenceError{Op: "读取饮食计划", Err: err}
	}
	if day := mealPlan.DayFor(date); day != nil {
		count += len(day.Meals)
	}

	trainingPlan, err := s.planRepo.GetActive(ctx, userID, schema.PlanTypeTraining)
	if err != nil {
		return 0, &PersistenceError{Op: "读取训练计划", Err: err}
	}
	if day := trainingPlan.DayFor(date); day != nil {
		count += len(day.Sessions)
	}

	return count, nil
}

// dayAdherence 当日完成率：round(100 × 完成权重 / 计划条目数)，封顶 100。
// 当天没有计划条目时按约定返回 0（不是未定义）。
func dayAdherence(log *schema.DailyLog, scheduled int) int {
	if scheduled == 0 {
		return 0
	}
	var weight float64
	for _, m := range log.MealLogs {
		weight += m.Adherence.Weight()
	}
	for _, t := range log.TrainingLogs {
		weight += t.Adherence.Weight()
	}
	pct := int(math.Round(weight / float64(scheduled) * 100))
	if pct > 100 {
		pct = 100
	}
	return pct
}

// TodayLog 当天记录。还没有任何记录时返回 nil。
func (s *LoggingService) TodayLog(ctx context.Context, userID string) (*schema.DailyLog, error) {
	log, err := s.logRepo.GetByDate(ctx, userID, midnight(s.now()))
	if err != nil {
		return nil, &PersistenceError{Op: "读取当日记录", Err: err}
	}
	return log, nil
}

// TodayMeals 当天计划内的餐（来自生效饮食计划）
func (s *LoggingService) TodayMeals(ctx context.Context, userID string) ([]schema.PlanMeal, error) {
	plan, err := s.planRepo.GetActive(ctx, userID, schema.PlanTypeMeal)
	if err != nil {
		return nil, &PersistenceError{Op: "读取饮食计划", Err: err}
	}
	if day := plan.DayFor(midnight(s.now())); day != nil {
		return day.Meals, nil
	}
	return nil, nil
}

// TodaySessions 当天计划内的训练（来自生效训练计划）
func (s *LoggingService) TodaySessions(ctx context.Context, userID string) ([]schema.PlanSession, error) {
	plan, err := s.planRepo.GetActive(ctx, userID, schema.PlanTypeTraining)
	if err != nil {
		return nil, &PersistenceError{Op: "读取训练计划", Err: err}
	}
	if day := plan.DayFor(midnight(s.now())); day != nil {
		return day.Sessions, nil
	}
	return nil, nil
}

// GetMealLog 按 MealID 取当天的一条餐饮记录。没有返回 nil。
func (s *LoggingService) GetMealLog(ctx context.Context, userID, mealID string) (*schema.MealLogEntry, error) {
	log, err := s.TodayLog(ctx, userID)
	if err != nil || log == nil {
		return nil, err
	}
	for i := range log.MealLogs {
		if log.MealLogs[i].MealID == mealID {
			return &log.MealLogs[i], nil
		}
	}
	return nil, nil
}

// GetTrainingLog 按 SessionID 取当天的一条训练记录。没有返回 nil。
func (s *LoggingService) GetTrainingLog(ctx context.Context, userID, sessionID string) (*schema.TrainingLogEntry, error) {
	log, err := s.TodayLog(ctx, userID)
	if err != nil || log == nil {
		return nil, err
	}
	for i := range log.TrainingLogs {
		if log.TrainingLogs[i].SessionID == sessionID {
			return &log.TrainingLogs[i], nil
		}
	}
	return nil, nil
}

// midnight 截断到当天零点
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
