package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"labkeeper/internal/dto"
	"labkeeper/internal/model"
	"labkeeper/internal/repository"
)

// ErrCategoryNotFound 分类不存在
var ErrCategoryNotFound = errors.New("分类不存在")

// CategoryService 设备分类业务接口
type CategoryService interface {
	Create(ctx context.Context, req *dto.CreateCategoryRequest, callerID string) (*dto.CategoryResponse, error)
	List(ctx context.Context) ([]dto.CategoryResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateCategoryRequest, callerID string) (*dto.CategoryResponse, error)
	Delete(ctx context.Context, id, callerID string) error
}

type categoryService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewCategoryService 创建 CategoryService 实例
func NewCategoryService(repo *repository.Repository, logger *zap.Logger) CategoryService {
	return &categoryService{repo: repo, logger: logger}
}

func (s *categoryService) Create(ctx context.Context, req *dto.CreateCategoryRequest, callerID string) (*dto.CategoryResponse, error) {
	category := &model.Category{
		Name:        req.Name,
		Description: req.Description,
	}
	category.CreatedBy = &callerID
	category.UpdatedBy = &callerID

	if err := s.repo.Category.Create(ctx, category); err != nil {
		s.logger.Error("创建分类失败", zap.Error(err))
		return nil, err
	}
	return toCategoryResponse(category), nil
}

func (s *categoryService) List(ctx context.Context) ([]dto.CategoryResponse, error) {
	categories, err := s.repo.Category.List(ctx)
	if err != nil {
		s.logger.Error("查询分类列表失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.CategoryResponse, 0, len(categories))
	for i := range categories {
		result = append(result, *toCategoryResponse(&categories[i]))
	}
	return result, nil
}

func (s *categoryService) Update(ctx context.Context, id string, req *dto.UpdateCategoryRequest, callerID string) (*dto.CategoryResponse, error) {
	category, err := s.repo.Category.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	if req.Name != nil {
		category.Name = *req.Name
	}
	if req.Description != nil {
		category.Description = *req.Description
	}
	category.UpdatedBy = &callerID

	if err := s.repo.Category.Update(ctx, category); err != nil {
		s.logger.Error("更新分类失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toCategoryResponse(category), nil
}

func (s *categoryService) Delete(ctx context.Context, id, callerID string) error {
	if _, err := s.repo.Category.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCategoryNotFound
		}
		return err
	}
	return s.repo.Category.Delete(ctx, id, callerID)
}

func toCategoryResponse(category *model.Category) *dto.CategoryResponse {
	return &dto.CategoryResponse{
		ID:          category.CategoryID,
		Name:        category.Name,
		Description: category.Description,
		CreatedAt:   category.CreatedAt.Format(time.RFC3339),
	}
}
