package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"github.com/yuqie6/FitPlan/internal/ai"
	"github.com/yuqie6/FitPlan/internal/schema"
)

// MemoryService 调整记忆库：把每次计划调整的摘要向量化存档，
// 下次调整前按当前问题描述检索相似的历史调整，避免 AI 反复开同一张药方。
// SiliconFlow 未配置时全部操作静默降级为空操作。
type MemoryService struct {
	db         *chromem.DB
	collection *chromem.Collection
	sfClient   *ai.SiliconFlowClient
}

// MemoryConfig 配置
type MemoryConfig struct {
	StoragePath string // 向量数据库存储路径
}

// NewMemoryService 创建调整记忆服务
func NewMemoryService(sfClient *ai.SiliconFlowClient, cfg *MemoryConfig) (*MemoryService, error) {
	if cfg == nil {
		cfg = &MemoryConfig{}
	}
	if cfg.StoragePath == "" {
		cfg.StoragePath = "./data/memory"
	}

	if err := os.MkdirAll(cfg.StoragePath, 0755); err != nil {
		return nil, fmt.Errorf("创建记忆存储目录失败: %w", err)
	}

	db, err := chromem.NewPersistentDB(cfg.StoragePath, false)
	if err != nil {
		return nil, fmt.Errorf("创建向量数据库失败: %w", err)
	}

	collection, err := db.GetOrCreateCollection("adjustments", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("创建 collection 失败: %w", err)
	}

	return &MemoryService{
		db:         db,
		collection: collection,
		sfClient:   sfClient,
	}, nil
}

// IndexAdjustment 索引一次计划调整
func (s *MemoryService) IndexAdjustment(ctx context.Context, planType schema.PlanType, brief string, summary string) error {
	if !s.sfClient.IsConfigured() {
		slog.Debug("SiliconFlow 未配置，跳过调整索引")
		return nil
	}

	now := time.Now()
	content := fmt.Sprintf("日期: %s\n计划类型: %s\n调整原因: %s\n调整说明: %s",
		now.Format("2006-01-02"), planType, brief, summary)

	embeddings, err := s.sfClient.Embed(ctx, []string{content})
	if err != nil {
		return fmt.Errorf("生成嵌入失败: %w", err)
	}
	if len(embeddings) == 0 {
		return fmt.Errorf("嵌入结果为空")
	}

	doc := chromem.Document{
		ID:        fmt.Sprintf("adjustment_%s_%d", planType, now.UnixMilli()),
		Content:   content,
		Embedding: embeddings[0],
		Metadata: map[string]string{
			"type":      "adjustment",
			"plan_type": string(planType),
			"date":      now.Format("2006-01-02"),
		},
	}

	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("添加文档失败: %w", err)
	}

	slog.Debug("索引计划调整", "plan_type", planType)
	return nil
}

// Query 按问题描述检索相关的历史调整记录
func (s *MemoryService) Query(ctx context.Context, query string, topK int) ([]string, error) {
	if !s.sfClient.IsConfigured() {
		return nil, nil
	}

	if topK <= 0 {
		topK = 3
	}
	// chromem 要求 nResults 不超过文档总数
	if count := s.collection.Count(); count < topK {
		if count == 0 {
			return nil, nil
		}
		topK = count
	}

	queryEmb, err := s.sfClient.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("生成查询嵌入失败: %w", err)
	}
	if len(queryEmb) == 0 {
		return nil, fmt.Errorf("查询嵌入为空")
	}

	results, err := s.collection.QueryEmbedding(ctx, queryEmb[0], topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("向量搜索失败: %w", err)
	}

	notes := make([]string, len(results))
	for i, r := range results {
		notes[i] = r.Content
	}
	return notes, nil
}

// Close 关闭服务。chromem 持久化数据库自动保存，无需额外处理。
func (s *MemoryService) Close() error {
	return nil
}
