package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"electricity-billing/internal/clock"
	"electricity-billing/internal/metrics"
	"electricity-billing/internal/model"
	"electricity-billing/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// --- DTOs ---

type AuditLogResponse struct {
	ID                string                 `json:"id"`
	InvoiceID         string                 `json:"invoice_id"`
	PerformedByUserID string                 `json:"performed_by_user_id"`
	PerformedByName   string                 `json:"performed_by_name"`
	Action            string                 `json:"action"`
	OldValue          *model.InvoiceSnapshot `json:"old_value"`
	NewValue          *model.InvoiceSnapshot `json:"new_value"`
	PerformedAt       string                 `json:"performed_at"`
}

// --- Interface ---

// AuditService is the audit recorder. Record is best-effort: it never returns
// an error and never panics into the caller.
type AuditService interface {
	Record(ctx context.Context, invoiceID, performedBy uuid.UUID, action model.AuditAction, oldSnap, newSnap *model.InvoiceSnapshot)
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]AuditLogResponse, error)
	FindByProvider(ctx context.Context, providerID uuid.UUID, page, limit int) ([]AuditLogResponse, int64, error)
	FindByInvoiceNumber(ctx context.Context, number string, providerID uuid.UUID) ([]AuditLogResponse, error)
}

type auditService struct {
	auditRepo repository.AuditRepository
	clock     clock.Clock
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, clk clock.Clock, m *metrics.Metrics, log *zap.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		clock:     clk,
		metrics:   m,
		log:       log.Named("audit.service"),
	}
}

// --- Implementation ---

// Record appends one audit row outside any transaction carried by ctx, so a
// failed insert can neither abort nor roll back the invoice write.
func (s *auditService) Record(ctx context.Context, invoiceID, performedBy uuid.UUID, action model.AuditAction, oldSnap, newSnap *model.InvoiceSnapshot) {
	fields := []zap.Field{
		zap.String("invoice_id", invoiceID.String()),
		zap.String("performed_by", performedBy.String()),
		zap.String("action", string(action)),
	}
	defer func() {
		if r := recover(); r != nil {
			s.metrics.AuditRecordFailures.WithLabelValues("panic").Inc()
			s.log.Error("audit record panicked", append(fields, zap.Any("panic", r))...)
		}
	}()

	oldJSON, err := encodeSnapshot(oldSnap)
	if err != nil {
		s.metrics.AuditRecordFailures.WithLabelValues("encode").Inc()
		s.log.Error("failed to encode audit pre-image", append(fields, zap.Error(err))...)
		return
	}
	newJSON, err := encodeSnapshot(newSnap)
	if err != nil {
		s.metrics.AuditRecordFailures.WithLabelValues("encode").Inc()
		s.log.Error("failed to encode audit post-image", append(fields, zap.Error(err))...)
		return
	}

	entry := &model.AuditLog{
		InvoiceID:         invoiceID,
		PerformedByUserID: performedBy,
		Action:            action,
		OldValue:          oldJSON,
		NewValue:          newJSON,
		PerformedAt:       s.clock.Now(),
	}
	if err := s.auditRepo.Append(repository.WithoutTx(context.WithoutCancel(ctx)), entry); err != nil {
		s.metrics.AuditRecordFailures.WithLabelValues("persist").Inc()
		s.log.Error("failed to write audit log", append(fields, zap.Error(err))...)
		return
	}
}

func (s *auditService) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]AuditLogResponse, error) {
	logs, err := s.auditRepo.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audit logs: %w", err)
	}
	return s.toResponses(logs), nil
}

func (s *auditService) FindByProvider(ctx context.Context, providerID uuid.UUID, page, limit int) ([]AuditLogResponse, int64, error) {
	logs, total, err := s.auditRepo.ListByProvider(ctx, providerID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}
	return s.toResponses(logs), total, nil
}

func (s *auditService) FindByInvoiceNumber(ctx context.Context, number string, providerID uuid.UUID) ([]AuditLogResponse, error) {
	logs, err := s.auditRepo.ListByInvoiceNumber(ctx, number, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audit logs: %w", err)
	}
	return s.toResponses(logs), nil
}

// --- Mapping ---

func encodeSnapshot(snap *model.InvoiceSnapshot) (datatypes.JSON, error) {
	if snap == nil {
		return nil, nil
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func (s *auditService) toResponses(logs []model.AuditLog) []AuditLogResponse {
	res := make([]AuditLogResponse, 0, len(logs))
	for i := range logs {
		l := &logs[i]
		item := AuditLogResponse{
			ID:                l.ID.String(),
			InvoiceID:         l.InvoiceID.String(),
			PerformedByUserID: l.PerformedByUserID.String(),
			Action:            string(l.Action),
			PerformedAt:       l.PerformedAt.UTC().Format(time.RFC3339),
		}
		if l.PerformedBy != nil {
			item.PerformedByName = l.PerformedBy.Name
		}
		var err error
		if item.OldValue, err = l.DecodeOld(); err != nil {
			s.log.Warn("unreadable audit pre-image", zap.String("audit_id", l.ID.String()), zap.Error(err))
		}
		if item.NewValue, err = l.DecodeNew(); err != nil {
			s.log.Warn("unreadable audit post-image", zap.String("audit_id", l.ID.String()), zap.Error(err))
		}
		res = append(res, item)
	}
	return res
}
