package models

import "time"

type AiAnalysis struct {
	ID              string    `json:"id" db:"id"`
	RecordID        string    `json:"record_id" db:"record_id"`
	RequestPrompt   string    `json:"request_prompt" db:"request_prompt"`
	ResponseContent string    `json:"response_content" db:"response_content"`
	ModelUsed       string    `json:"model_used" db:"model_used"`
	Status          string    `json:"status" db:"status"`
	ErrorMessage    string    `json:"error_message" db:"error_message"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

type AnalysisHistoryItem struct {
	ID              string    `json:"id" db:"id"`
	RecordID        string    `json:"record_id" db:"record_id"`
	CheckupDate     string    `json:"checkup_date" db:"checkup_date"`
	ResponseContent string    `json:"response_content" db:"response_content"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

type ChatMessage struct {
	ID        string    `json:"id" db:"id"`
	Role      string    `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type TrendPoint struct {
	CheckupDate string   `json:"checkup_date" db:"checkup_date"`
	Value       *float64 `json:"value" db:"value"`
	ValueText   string   `json:"value_text" db:"value_text"`
	IsAbnormal  bool     `json:"is_abnormal" db:"is_abnormal"`
}

type IndicatorTrend struct {
	IndicatorID    string       `json:"indicator_id"`
	IndicatorName  string       `json:"indicator_name"`
	Unit           string       `json:"unit"`
	ReferenceRange string       `json:"reference_range"`
	IsCore         bool         `json:"is_core"`
	Points         []TrendPoint `json:"data_points"`
}

type ProjectTrend struct {
	ProjectID   string           `json:"project_id"`
	ProjectName string           `json:"project_name"`
	Indicators  []IndicatorTrend `json:"indicators"`
}

// AcceptedResponse is returned by endpoints that start background work.
type AcceptedResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type AnalysisHistoryPage struct {
	Items    []AnalysisHistoryItem `json:"items"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}

type ChatRequest struct {
	Message string `json:"message" validate:"required"`
}

type UpdateContentRequest struct {
	Content string `json:"content"`
}
