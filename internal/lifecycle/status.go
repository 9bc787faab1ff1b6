// Package lifecycle holds the status labels of a checkup record and the
// happy-path transitions between them. Transitions are advisory: callers may
// still write any known label directly, and unknown labels read back from
// storage are carried through unchanged.
package lifecycle

import "fmt"

type Status string

const (
	PendingUpload Status = "pending_upload"
	PendingOCR    Status = "pending_ocr"
	OCRProcessing Status = "ocr_processing"
	OCRDone       Status = "ocr_done"
	AIProcessing  Status = "ai_processing"
	AIDone        Status = "ai_done"
)

var known = map[Status]bool{
	PendingUpload: true,
	PendingOCR:    true,
	OCRProcessing: true,
	OCRDone:       true,
	AIProcessing:  true,
	AIDone:        true,
}

func (s Status) Valid() bool {
	return known[s]
}

func (s Status) String() string {
	return string(s)
}

// Parse accepts any known label, for out-of-band status writes.
func Parse(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown record status %q", s)
	}
	return st, nil
}

// Created is the status of a freshly created record.
func Created() Status {
	return PendingUpload
}

// AfterUpload reports the status after a successful file upload. Only the
// first upload into a pending_upload record moves it forward.
func AfterUpload(current Status) (Status, bool) {
	if current == PendingUpload {
		return PendingOCR, true
	}
	return current, false
}

// StartOCR applies from any status.
func StartOCR(Status) Status {
	return OCRProcessing
}

// FinishOCR advances when at least one file succeeded and otherwise sends
// the record back so the user can retry.
func FinishOCR(_ Status, successes int) Status {
	if successes > 0 {
		return OCRDone
	}
	return PendingOCR
}

// AfterRetry only moves a record that had no successful extraction yet.
func AfterRetry(current Status, succeeded bool) Status {
	if succeeded && current == PendingOCR {
		return OCRDone
	}
	return current
}

// StartAnalysis applies from any status.
func StartAnalysis(Status) Status {
	return AIProcessing
}

// FinishAnalysis returns ai_done on success and falls back to ocr_done on any
// failure.
func FinishAnalysis(_ Status, err error) Status {
	if err != nil {
		return OCRDone
	}
	return AIDone
}
