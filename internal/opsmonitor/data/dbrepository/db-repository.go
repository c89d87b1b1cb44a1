package dbrepository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"ops-monitor/internal/opsmonitor/data"
	"ops-monitor/pkg/logging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

type DBStorage interface {
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryValue(ctx context.Context, query string, args []any, dest []any) error
}

type DBRepository struct {
	storage DBStorage
	logger  *logging.ZapLogger
}

func New(storage DBStorage, logger *logging.ZapLogger) *DBRepository {
	return &DBRepository{
		storage: storage,
		logger:  logger,
	}
}

//go:embed sql/insert_audit.sql
var insertAuditQuery string

func (db *DBRepository) InsertAudit(ctx context.Context, entry data.AuditEntry) (data.AuditEntry, error) {
	err := db.storage.QueryValue(
		ctx,
		insertAuditQuery,
		[]any{entry.OrderID, entry.Stage, entry.ActionTaken, entry.RootCause, entry.Notes, entry.Author},
		[]any{&entry.ID, &entry.CreatedAt},
	)
	if err != nil {
		return data.AuditEntry{}, handleSQLError(err)
	}
	db.logger.DebugCtx(ctx, "audit entry stored", zap.Int64("orderID", entry.OrderID), zap.Int64("auditID", entry.ID))
	return entry, nil
}

//go:embed sql/select_audits.sql
var selectAuditsQuery string

// GetAudits returns the journal of one order, newest first.
func (db *DBRepository) GetAudits(ctx context.Context, orderID int64) ([]data.AuditEntry, error) {
	rows, err := db.storage.Query(ctx, selectAuditsQuery, orderID)
	if err != nil {
		return nil, handleSQLError(err)
	}
	defer rows.Close()

	result := make([]data.AuditEntry, 0)
	for rows.Next() {
		entry := data.AuditEntry{
			OrderID: orderID,
		}
		err := rows.Scan(
			&entry.ID,
			&entry.Stage,
			&entry.ActionTaken,
			&entry.RootCause,
			&entry.Notes,
			&entry.Author,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, handleSQLError(err)
		}
		result = append(result, entry)
	}
	if err = rows.Err(); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return make([]data.AuditEntry, 0), nil
		default:
			return nil, handleSQLError(err)
		}
	}
	return result, nil
}

func handleSQLError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return data.ErrUniqueConstraintViolation
		}
	}
	return fmt.Errorf("journal query failed: %w", err)
}
