package bootstrap

import (
	"fmt"

	"github.com/yuqie6/FitPlan/internal/ai"
	"github.com/yuqie6/FitPlan/internal/eventbus"
	"github.com/yuqie6/FitPlan/internal/pkg/config"
	"github.com/yuqie6/FitPlan/internal/repository"
	"github.com/yuqie6/FitPlan/internal/service"
)

// Core 持有跨命令共享的核心依赖
type Core struct {
	Cfg *config.Config
	DB  *repository.Database
	Hub *eventbus.Hub

	Repos struct {
		DailyLog *repository.DailyLogRepository
		Plan     *repository.PlanRepository
		Profile  *repository.ProfileRepository
	}

	Services struct {
		Logging *service.LoggingService
		Planner *service.PlannerService
		Profile *service.ProfileService
		Memory  *service.MemoryService
	}

	Clients struct {
		DeepSeek    *ai.DeepSeekClient
		SiliconFlow *ai.SiliconFlowClient
	}
}

// NewCore 构建核心依赖
func NewCore(cfgPath string) (*Core, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	config.SetupLogger(cfg.App.LogLevel)

	db, err := repository.NewDatabase(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	c := &Core{Cfg: cfg, DB: db, Hub: eventbus.NewHub()}

	// Repos
	c.Repos.DailyLog = repository.NewDailyLogRepository(db.DB)
	c.Repos.Plan = repository.NewPlanRepository(db.DB)
	c.Repos.Profile = repository.NewProfileRepository(db.DB)

	// Clients
	c.Clients.DeepSeek = ai.NewDeepSeekClient(&ai.DeepSeekConfig{
		APIKey:     cfg.AI.DeepSeek.APIKey,
		BaseURL:    cfg.AI.DeepSeek.BaseURL,
		Model:      cfg.AI.DeepSeek.Model,
		TimeoutSec: cfg.AI.DeepSeek.TimeoutSec,
	})
	c.Clients.SiliconFlow = ai.NewSiliconFlowClient(&ai.SiliconFlowConfig{
		APIKey:         cfg.AI.SiliconFlow.APIKey,
		BaseURL:        cfg.AI.SiliconFlow.BaseURL,
		EmbeddingModel: cfg.AI.SiliconFlow.EmbeddingModel,
	})

	// 调整记忆库可选：嵌入服务未配置时不启用
	var memory service.AdjustmentMemory
	if c.Clients.SiliconFlow.IsConfigured() {
		mem, err := service.NewMemoryService(c.Clients.SiliconFlow, &service.MemoryConfig{
			StoragePath: cfg.Memory.StoragePath,
		})
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		c.Services.Memory = mem
		memory = mem
	}

	// Services
	generator := ai.NewPlanGenerator(c.Clients.DeepSeek)
	c.Services.Logging = service.NewLoggingService(c.Repos.DailyLog, c.Repos.Plan, c.Hub)
	c.Services.Planner = service.NewPlannerService(
		c.Repos.DailyLog,
		c.Repos.Plan,
		c.Repos.Profile,
		generator,
		memory,
		c.Hub,
	)
	c.Services.Planner.SetWindowDays(cfg.Planner.WindowDays)
	c.Services.Profile = service.NewProfileService(c.Repos.Profile)

	return c, nil
}

// Close 关闭核心依赖资源
func (c *Core) Close() error {
	if c == nil {
		return nil
	}
	if c.Services.Memory != nil {
		_ = c.Services.Memory.Close()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// RequireAIConfigured 检查计划生成端是否已配置
func (c *Core) RequireAIConfigured() error {
	if c.Clients.DeepSeek == nil || !c.Clients.DeepSeek.IsConfigured() {
		return fmt.Errorf("DeepSeek API 未配置，请在配置文件中设置 ai.deepseek.api_key")
	}
	return nil
}
