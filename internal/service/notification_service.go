package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"labkeeper/internal/dto"
	"labkeeper/internal/model"
	"labkeeper/internal/repository"
)

// NotificationService 通知业务接口
//
// 站内通知为尽力而为：写入失败只记日志，不向调用方传播错误，
// 避免通知故障拖垮主流程
type NotificationService interface {
	Notify(ctx context.Context, userID, typ, title, content string, relatedType, relatedID *string)
	List(ctx context.Context, userID string, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error)
	MarkRead(ctx context.Context, id, userID string) error
}

type notificationService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(repo *repository.Repository, logger *zap.Logger) NotificationService {
	return &notificationService{repo: repo, logger: logger}
}

func (s *notificationService) Notify(ctx context.Context, userID, typ, title, content string, relatedType, relatedID *string) {
	n := &model.Notification{
		UserID:      userID,
		Type:        typ,
		Title:       title,
		Content:     content,
		RelatedType: relatedType,
		RelatedID:   relatedID,
	}
	if err := s.repo.Notification.Create(ctx, n); err != nil {
		s.logger.Warn("写入通知失败",
			zap.String("user_id", userID),
			zap.String("type", typ),
			zap.Error(err),
		)
	}
}

func (s *notificationService) List(ctx context.Context, userID string, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error) {
	items, total, err := s.repo.Notification.ListByUser(ctx, userID, req.UnreadOnly, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询通知列表失败", zap.String("user_id", userID), zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.NotificationResponse, 0, len(items))
	for i := range items {
		n := &items[i]
		result = append(result, dto.NotificationResponse{
			ID:          n.NotificationID,
			Type:        n.Type,
			Title:       n.Title,
			Content:     n.Content,
			IsRead:      n.IsRead,
			RelatedType: n.RelatedType,
			RelatedID:   n.RelatedID,
			CreatedAt:   n.CreatedAt.Format(time.RFC3339),
		})
	}
	return result, total, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID string) error {
	return s.repo.Notification.MarkRead(ctx, id, userID)
}
