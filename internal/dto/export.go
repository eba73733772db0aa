package dto

import "github.com/noah-isme/libstats-api/internal/models"

// ExportRequest captures POST /exports payload.
type ExportRequest struct {
	Category string `json:"category" validate:"required"`
	Year     int    `json:"year" validate:"required,min=1900,max=2100"`
	Format   string `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID     string              `json:"id"`
	Status models.ExportStatus `json:"status"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Category  models.Category     `json:"category"`
	Year      int                 `json:"year"`
	Format    models.ExportFormat `json:"format"`
	Status    models.ExportStatus `json:"status"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
