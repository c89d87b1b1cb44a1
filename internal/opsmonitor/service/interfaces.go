package service

import (
	"context"
	"ops-monitor/internal/common/backendprotocol"
	"ops-monitor/internal/opsmonitor/data"
)

type LiveAuditSource interface {
	GetLiveAudit(ctx context.Context, orderID int64) (backendprotocol.LiveAudit, error)
}

type JournalRepository interface {
	InsertAudit(ctx context.Context, entry data.AuditEntry) (data.AuditEntry, error)
	GetAudits(ctx context.Context, orderID int64) ([]data.AuditEntry, error)
}
