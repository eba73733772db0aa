package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/libstats-api/internal/models"
	appErrors "github.com/noah-isme/libstats-api/pkg/errors"
)

const maxAuditTrail = 200

type auditTrailReader interface {
	ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error)
}

var auditResources = map[string]struct{}{
	models.AuditResourceCategoryRecord: {},
	models.AuditResourceInstitutionYr:  {},
	models.AuditResourceScheduledEvent: {},
	models.AuditResourceExportJob:      {},
}

// AuditTrailService lets administrators read the audit history of a resource.
type AuditTrailService struct {
	repo   auditTrailReader
	logger *zap.Logger
}

// NewAuditTrailService constructs an AuditTrailService.
func NewAuditTrailService(repo auditTrailReader, logger *zap.Logger) *AuditTrailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditTrailService{repo: repo, logger: logger}
}

// List returns up to limit entries for resource/resourceID, newest first.
func (s *AuditTrailService) List(ctx context.Context, actor *models.JWTClaims, resource, resourceID string, limit int) ([]models.AuditLog, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	if _, ok := auditResources[resource]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown audit resource")
	}
	if resourceID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "resource id required")
	}
	if limit <= 0 || limit > maxAuditTrail {
		limit = maxAuditTrail
	}
	logs, err := s.repo.ListByResource(ctx, resource, resourceID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return logs, nil
}
