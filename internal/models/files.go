package models

import "time"

type CheckupFile struct {
	ID               string    `json:"id" db:"id"`
	RecordID         string    `json:"record_id" db:"record_id"`
	ProjectID        string    `json:"project_id" db:"project_id"`
	ProjectName      string    `json:"project_name" db:"project_name"`
	OriginalFilename string    `json:"original_filename" db:"original_filename"`
	StoredPath       string    `json:"stored_path" db:"stored_path"`
	FileSize         int64     `json:"file_size" db:"file_size"`
	MimeType         string    `json:"mime_type" db:"mime_type"`
	UploadedAt       time.Time `json:"uploaded_at" db:"uploaded_at"`
}

type UploadFile struct {
	ProjectID string
	Filename  string
	Data      []byte
}

type UploadRequest struct {
	RecordID string
	Files    []UploadFile
}
