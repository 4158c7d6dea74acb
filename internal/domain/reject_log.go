package domain

import (
	"time"

	"github.com/google/uuid"
)

// RejectLogEntry captures a row rejected during snapshot ingestion.
type RejectLogEntry struct {
	ID           uuid.UUID `json:"id"`
	Source       string    `json:"source"`
	FileName     string    `json:"file_name"`
	RowNumber    *int      `json:"row_number,omitempty"`
	ErrorMessage string    `json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
}
