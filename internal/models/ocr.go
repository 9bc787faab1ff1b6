package models

import "time"

const (
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
)

// Reading is one extracted indicator tuple, before catalog matching.
type Reading struct {
	Name           string `json:"name"`
	Value          string `json:"value"`
	Unit           string `json:"unit"`
	ReferenceRange string `json:"reference_range"`
	IsAbnormal     bool   `json:"is_abnormal"`
}

type OcrResult struct {
	ID           string    `json:"id"`
	FileID       string    `json:"file_id"`
	RecordID     string    `json:"record_id"`
	ProjectID    string    `json:"project_id"`
	CheckupDate  string    `json:"checkup_date"`
	RawText      string    `json:"raw_text"`
	Items        []Reading `json:"items"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
}

// IndicatorValue is one point of an indicator's time series.
type IndicatorValue struct {
	ID          string    `json:"id" db:"id"`
	OcrResultID string    `json:"ocr_result_id" db:"ocr_result_id"`
	RecordID    string    `json:"record_id" db:"record_id"`
	ProjectID   string    `json:"project_id" db:"project_id"`
	IndicatorID string    `json:"indicator_id" db:"indicator_id"`
	CheckupDate string    `json:"checkup_date" db:"checkup_date"`
	Value       *float64  `json:"value" db:"value"`
	ValueText   string    `json:"value_text" db:"value_text"`
	IsAbnormal  bool      `json:"is_abnormal" db:"is_abnormal"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type OcrStatus struct {
	RecordStatus string `json:"record_status"`
	TotalFiles   int    `json:"total_files"`
	TotalOcr     int    `json:"total_ocr"`
	SuccessOcr   int    `json:"success_ocr"`
	FailedOcr    int    `json:"failed_ocr"`
}

// BatchOutcome is the aggregate reported when an extraction job finishes.
type BatchOutcome struct {
	RecordID string   `json:"record_id"`
	Total    int      `json:"total"`
	Success  int      `json:"success"`
	Errors   []string `json:"errors"`
}
