package service

import (
	"context"
	"fmt"
	"ops-monitor/internal/opsmonitor/data"
	"ops-monitor/pkg/logging"
	"strings"

	"go.uber.org/zap"
)

// Journal keeps operator notes about orders. A Journal without a repository
// is disabled and answers data.ErrJournalDisabled.
type Journal struct {
	repository JournalRepository
	logger     *logging.ZapLogger
}

func NewJournal(repository JournalRepository, logger *logging.ZapLogger) *Journal {
	return &Journal{
		repository: repository,
		logger:     logger,
	}
}

func (j *Journal) Enabled() bool {
	return j.repository != nil
}

func (j *Journal) LogAudit(ctx context.Context, entry data.AuditEntry) (data.AuditEntry, error) {
	if !j.Enabled() {
		return data.AuditEntry{}, data.ErrJournalDisabled
	}
	if entry.OrderID <= 0 {
		return data.AuditEntry{}, ErrInvalidOrderNumber
	}
	entry.Stage = strings.TrimSpace(entry.Stage)
	entry.ActionTaken = strings.TrimSpace(entry.ActionTaken)
	entry.RootCause = strings.TrimSpace(entry.RootCause)
	if entry.Stage == "" || entry.ActionTaken == "" {
		return data.AuditEntry{}, fmt.Errorf("%w: stage and action_taken are required", ErrInvalidAuditEntry)
	}

	stored, err := j.repository.InsertAudit(ctx, entry)
	if err != nil {
		return data.AuditEntry{}, fmt.Errorf("failed to store audit entry: %w", err)
	}
	j.logger.InfoCtx(ctx, "audit entry logged",
		zap.Int64("orderID", stored.OrderID),
		zap.String("stage", stored.Stage),
		zap.String("author", stored.Author),
	)
	return stored, nil
}

func (j *Journal) GetAuditHistory(ctx context.Context, orderID int64) ([]data.AuditEntry, error) {
	if !j.Enabled() {
		return nil, data.ErrJournalDisabled
	}
	if orderID <= 0 {
		return nil, ErrInvalidOrderNumber
	}
	entries, err := j.repository.GetAudits(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit history: %w", err)
	}
	return entries, nil
}
