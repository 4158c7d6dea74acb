package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/shiptrack/internal/domain"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rejectLogRepository struct {
	pool *pgxpool.Pool
}

// NewRejectLogRepository wires a repository backed by pgxpool.
func NewRejectLogRepository(pool *pgxpool.Pool) RejectLogRepository {
	return &rejectLogRepository{pool: pool}
}

func (r *rejectLogRepository) Record(ctx context.Context, entry domain.RejectLogEntry) error {
	if r.pool == nil {
		return fmt.Errorf("reject log repository not initialized")
	}

	var rowNumber any
	if entry.RowNumber != nil {
		rowNumber = *entry.RowNumber
	}

	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO reject_logs (source, file_name, row_number, error_message)
		 VALUES ($1, $2, $3, $4)`,
		entry.Source,
		entry.FileName,
		rowNumber,
		entry.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to record reject log: %w", err)
	}

	return nil
}

func (r *rejectLogRepository) List(ctx context.Context, source string, fileName string, limit int, offset int) ([]domain.RejectLogEntry, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("reject log repository not initialized")
	}

	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, source, file_name, row_number, error_message, created_at
		 FROM reject_logs
		 WHERE source = $1
		   AND ($2 = '' OR file_name = $2)
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		source,
		fileName,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reject logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.RejectLogEntry{}
	for rows.Next() {
		var (
			entry     domain.RejectLogEntry
			rowNumber pgtype.Int4
			createdAt pgtype.Timestamptz
		)
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.Source,
			&entry.FileName,
			&rowNumber,
			&entry.ErrorMessage,
			&createdAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan reject log: %w", scanErr)
		}

		if rowNumber.Valid {
			value := int(rowNumber.Int32)
			entry.RowNumber = &value
		}
		if createdAt.Valid {
			entry.CreatedAt = createdAt.Time
		}

		logs = append(logs, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate reject logs: %w", rowsErr)
	}

	return logs, nil
}
