package models

import "time"

// Project is a kind of checkup report owning a catalog of indicators.
type Project struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	SortOrder   int       `json:"sort_order" db:"sort_order"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type Indicator struct {
	ID             string    `json:"id" db:"id"`
	ProjectID      string    `json:"project_id" db:"project_id"`
	Name           string    `json:"name" db:"name"`
	Unit           string    `json:"unit" db:"unit"`
	ReferenceRange string    `json:"reference_range" db:"reference_range"`
	SortOrder      int       `json:"sort_order" db:"sort_order"`
	IsCore         bool      `json:"is_core" db:"is_core"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
	SortOrder   *int    `json:"sort_order"`
}

type CreateIndicatorRequest struct {
	ProjectID      string  `json:"-"`
	Name           string  `json:"name" validate:"required,max=100"`
	Unit           string  `json:"unit"`
	ReferenceRange string  `json:"reference_range"`
	IsCore         *bool   `json:"is_core"`
}

type UpdateIndicatorRequest struct {
	Name           *string `json:"name" validate:"omitempty,min=1,max=100"`
	Unit           *string `json:"unit"`
	ReferenceRange *string `json:"reference_range"`
	IsCore         *bool   `json:"is_core"`
	SortOrder      *int    `json:"sort_order"`
}
