package dto

import "github.com/noah-isme/libstats-api/internal/models"

// SubmitCategoryRequest captures PUT /institutions/:id/years/:year/categories/:category payload.
type SubmitCategoryRequest struct {
	Values models.FieldValues `json:"values" validate:"required"`
	Notes  *string            `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

// SubmissionResponse returns the stored form with its computed rollups.
type SubmissionResponse struct {
	Record   *models.CategoryRecord `json:"record"`
	Override bool                   `json:"override"`
}

// ImportResponse reports a subscription import.
type ImportResponse struct {
	Kind       models.CatalogKind     `json:"kind"`
	Category   models.Category        `json:"category"`
	Subscribed int                    `json:"subscribed"`
	Distinct   int                    `json:"distinct"`
	Counts     models.FieldValues     `json:"counts"`
	Record     *models.CategoryRecord `json:"record"`
	Override   bool                   `json:"override"`
}
