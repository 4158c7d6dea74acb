package repository

import (
	"context"

	"github.com/rpattn/shiptrack/internal/domain"
)

// RejectLogRepository persists rows rejected during snapshot ingestion.
type RejectLogRepository interface {
	Record(ctx context.Context, entry domain.RejectLogEntry) error
	List(ctx context.Context, source string, fileName string, limit int, offset int) ([]domain.RejectLogEntry, error)
}
