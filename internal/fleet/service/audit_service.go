package service

import (
	"context"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"github.com/bitfantasy/mojing/internal/fleet/repository"
)

// AuditService 审计日志查询
type AuditService struct {
	repos *repository.Repositories
}

func NewAuditService(repos *repository.Repositories) *AuditService {
	return &AuditService{repos: repos}
}

func (s *AuditService) List(ctx context.Context, params repository.AuditLogListParams) ([]entity.AuditLog, int64, error) {
	return s.repos.AuditLog.List(ctx, params)
}
