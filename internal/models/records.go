package models

import (
	"time"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/lifecycle"
)

type CheckupRecord struct {
	ID           string           `json:"id" db:"id"`
	CheckupDate  string           `json:"checkup_date" db:"checkup_date"`
	Status       lifecycle.Status `json:"status" db:"status"`
	Notes        string           `json:"notes" db:"notes"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at" db:"updated_at"`
	FileCount    int              `json:"file_count" db:"file_count"`
	ProjectNames []string         `json:"project_names" db:"-"`
}

type CreateRecordRequest struct {
	CheckupDate string `json:"checkup_date" validate:"required,datetime=2006-01-02"`
	Notes       string `json:"notes"`
}

type UpdateRecordRequest struct {
	CheckupDate *string `json:"checkup_date" validate:"omitempty,datetime=2006-01-02"`
	Notes       *string `json:"notes"`
	Status      *string `json:"status"`
}
