package service

import (
	"context"
	"encoding/json"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/libstats-api/internal/models"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type clientInfoKey struct{}

// ClientInfo identifies the network origin of a request for audit purposes.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// WithClientInfo stores request origin data on ctx.
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, info)
}

func clientInfoFrom(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(clientInfoKey{}).(ClientInfo)
	return info
}

// auditEntry describes one privileged action before it is turned into a log row.
type auditEntry struct {
	Action        string
	Resource      string
	ResourceID    string
	InstitutionID *int64
	Old           interface{}
	New           interface{}
	Success       bool
	Override      bool
}

func buildAuditLog(ctx context.Context, actor *models.JWTClaims, entry auditEntry) *models.AuditLog {
	info := clientInfoFrom(ctx)
	log := &models.AuditLog{
		InstitutionID: entry.InstitutionID,
		Action:        entry.Action,
		Resource:      entry.Resource,
		OldValues:     marshalAuditValue(entry.Old),
		NewValues:     marshalAuditValue(entry.New),
		Success:       entry.Success,
		Override:      entry.Override,
		IPAddress:     info.IPAddress,
		UserAgent:     info.UserAgent,
	}
	if actor != nil && actor.UserID != "" {
		userID := actor.UserID
		log.UserID = &userID
	}
	if entry.ResourceID != "" {
		resourceID := entry.ResourceID
		log.ResourceID = &resourceID
	}
	return log
}

// recordAudit writes an audit row outside any transaction. Failures never fail the caller.
func recordAudit(ctx context.Context, repo auditLogger, logger *zap.Logger, actor *models.JWTClaims, entry auditEntry) {
	if repo == nil {
		return
	}
	if err := repo.CreateAuditLog(ctx, buildAuditLog(ctx, actor, entry)); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}

func marshalAuditValue(value interface{}) []byte {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return payload
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
