package service

import (
	"context"

	"github.com/yuqie6/FitPlan/internal/schema"
)

// ProfileStore 档案读写接口
type ProfileStore interface {
	Upsert(ctx context.Context, profile *schema.UserProfile) error
	Get(ctx context.Context, userID string) (*schema.UserProfile, error)
}

// ProfileService 用户档案维护
type ProfileService struct {
	repo ProfileStore
}

func NewProfileService(repo ProfileStore) *ProfileService {
	return &ProfileService{repo: repo}
}

// Save 保存档案，带基础校验
func (s *ProfileService) Save(ctx context.Context, profile *schema.UserProfile) error {
	if profile.UserID == "" {
		return &ValidationError{Field: "user_id", Reason: "不能为空"}
	}
	if profile.Age < 0 || profile.Age > 120 {
		return &ValidationError{Field: "age", Reason: "超出合理范围"}
	}
	if profile.HeightCm < 0 || profile.WeightKg < 0 {
		return &ValidationError{Field: "height/weight", Reason: "不能为负"}
	}
	if profile.MealsPerDay <= 0 {
		profile.MealsPerDay = 3
	}
	if profile.TrainingDaysPerWeek < 0 {
		profile.TrainingDaysPerWeek = 0
	}
	if err := s.repo.Upsert(ctx, profile); err != nil {
		return &PersistenceError{Op: "保存用户档案", Err: err}
	}
	return nil
}

// Get 读取档案，不存在时返回 nil
func (s *ProfileService) Get(ctx context.Context, userID string) (*schema.UserProfile, error) {
	profile, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "读取用户档案", Err: err}
	}
	return profile, nil
}
